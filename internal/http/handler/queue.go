package handler

import (
	"net/http"
	"strings"

	"github.com/jaekwang-park/tasksync/internal/middleware"
	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/service"
)

// QueueHandler exposes the caller's mutation queue so a UI can surface and
// resolve abandoned entries.
type QueueHandler struct {
	svc *service.TaskService
}

func NewQueueHandler(svc *service.TaskService) *QueueHandler {
	return &QueueHandler{svc: svc}
}

type queueResponse struct {
	Entries []model.MutationEntry `json:"entries"`
}

// ServeHTTP routes /api/v1/queue, /api/v1/queue/abandoned,
// /api/v1/queue/{id} and /api/v1/queue/{id}/retry.
func (h *QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/queue"), "/")
	ownerID := middleware.GetOwnerID(r)

	switch {
	case path == "" || path == "abandoned":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		list := h.svc.QueuedEntries
		if path == "abandoned" {
			list = h.svc.AbandonedEntries
		}
		entries, err := list(r.Context(), ownerID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, queueResponse{Entries: entries})

	case strings.HasSuffix(path, "/retry"):
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		id := strings.TrimSuffix(path, "/retry")
		if err := h.svc.RetryEntry(r.Context(), ownerID, id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case !strings.Contains(path, "/"):
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return
		}
		if err := h.svc.DiscardEntry(r.Context(), ownerID, path); err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "endpoint not found")
	}
}
