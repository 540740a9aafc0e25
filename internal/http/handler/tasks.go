package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/jaekwang-park/tasksync/internal/middleware"
	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/service"
)

type TaskHandler struct {
	svc *service.TaskService
}

func NewTaskHandler(svc *service.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type taskListResponse struct {
	Tasks  []model.Task    `json:"tasks"`
	Filter model.Filter    `json:"filter"`
	Stats  model.TaskStats `json:"stats"`
}

// ServeHTTP routes /api/v1/tasks, /api/v1/tasks/{id} and /api/v1/tasks/{id}/toggle.
func (h *TaskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks")
	path = strings.Trim(path, "/")

	parts := strings.SplitN(path, "/", 2)
	taskID := parts[0]
	subPath := ""
	if len(parts) > 1 {
		subPath = parts[1]
	}

	switch {
	case taskID != "" && subPath == "toggle":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.handleToggle(w, r, taskID)
	case taskID != "" && subPath == "":
		switch r.Method {
		case http.MethodPatch:
			h.handleUpdate(w, r, taskID)
		case http.MethodDelete:
			h.handleDelete(w, r, taskID)
		default:
			methodNotAllowed(w)
		}
	case taskID == "":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			methodNotAllowed(w)
		}
	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	}
}

func (h *TaskHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r)

	if _, err := h.svc.LoadTasks(r.Context(), ownerID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if f := r.URL.Query().Get("filter"); f != "" {
		if _, err := h.svc.SetFilter(ownerID, model.Filter(f)); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}
	writeTaskList(w, r, h.svc, ownerID)
}

func writeTaskList(w http.ResponseWriter, r *http.Request, svc *service.TaskService, ownerID string) {
	st, err := svc.State(r.Context(), ownerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, taskListResponse{Tasks: st.Tasks, Filter: st.Filter, Stats: st.Stats})
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	ReminderAt  *time.Time `json:"reminder_at,omitempty"`
}

func (h *TaskHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tasks, err := h.svc.AddTask(r.Context(), middleware.GetOwnerID(r), model.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		ReminderAt:  req.ReminderAt,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, tasks[0])
}

func (h *TaskHandler) handleUpdate(w http.ResponseWriter, r *http.Request, taskID string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	patch, err := model.DecodePatch(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	tasks, err := h.svc.UpdateTask(r.Context(), middleware.GetOwnerID(r), taskID, patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTask(w, r, tasks, taskID)
}

func (h *TaskHandler) handleToggle(w http.ResponseWriter, r *http.Request, taskID string) {
	tasks, err := h.svc.ToggleComplete(r.Context(), middleware.GetOwnerID(r), taskID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTask(w, r, tasks, taskID)
}

func (h *TaskHandler) handleDelete(w http.ResponseWriter, r *http.Request, taskID string) {
	if _, err := h.svc.DeleteTask(r.Context(), middleware.GetOwnerID(r), taskID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeTask(w http.ResponseWriter, r *http.Request, tasks []model.Task, taskID string) {
	for _, t := range tasks {
		if t.ID == taskID {
			WriteJSON(w, http.StatusOK, t)
			return
		}
	}
	handleServiceError(w, r, service.ErrNotFound)
}

// FilterHandler serves PUT /api/v1/filter.
type FilterHandler struct {
	svc *service.TaskService
}

func NewFilterHandler(svc *service.TaskService) *FilterHandler {
	return &FilterHandler{svc: svc}
}

type setFilterRequest struct {
	Filter model.Filter `json:"filter"`
}

func (h *FilterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}

	var req setFilterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ownerID := middleware.GetOwnerID(r)
	if _, err := h.svc.SetFilter(ownerID, req.Filter); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTaskList(w, r, h.svc, ownerID)
}
