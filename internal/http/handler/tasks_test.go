package handler_test

import (
	"net/http"
	"testing"

	"github.com/jaekwang-park/tasksync/internal/http/handler"
	"github.com/jaekwang-park/tasksync/internal/model"
)

type listBody struct {
	Tasks  []model.Task    `json:"tasks"`
	Filter model.Filter    `json:"filter"`
	Stats  model.TaskStats `json:"stats"`
}

func TestTaskHandler_Create(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"success", `{"title":"Buy groceries","description":"Milk"}`, http.StatusCreated, ""},
		{"with reminder", `{"title":"Call","reminder_at":"2025-01-02T09:00:00Z"}`, http.StatusCreated, ""},
		{"empty title", `{"title":"","description":"Milk"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"invalid json", `{bad`, http.StatusBadRequest, "INVALID_JSON"},
		{"unknown field", `{"title":"a","owner_id":"someone"}`, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newApp(t)
			w := do(t, handler.NewTaskHandler(a.tasks), http.MethodPost, "/api/v1/tasks", "u1", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
				return
			}
			task := decode[model.Task](t, w)
			if task.ID == "" || task.OwnerID != "u1" || task.SyncStatus != model.SyncStatusPending {
				t.Errorf("unexpected task: %+v", task)
			}
		})
	}
}

func TestTaskHandler_ListAndFilter(t *testing.T) {
	a := newApp(t)
	h := handler.NewTaskHandler(a.tasks)

	for _, title := range []string{"a", "b"} {
		if w := do(t, h, http.MethodPost, "/api/v1/tasks", "u1", `{"title":"`+title+`"}`); w.Code != http.StatusCreated {
			t.Fatalf("create %s: status %d", title, w.Code)
		}
	}
	first := decode[listBody](t, do(t, h, http.MethodGet, "/api/v1/tasks", "u1", ""))
	if len(first.Tasks) != 2 || first.Filter != model.FilterAll {
		t.Fatalf("unexpected list: %+v", first)
	}
	toggleID := first.Tasks[1].ID
	if w := do(t, h, http.MethodPost, "/api/v1/tasks/"+toggleID+"/toggle", "u1", ""); w.Code != http.StatusOK {
		t.Fatalf("toggle: status %d", w.Code)
	}

	tests := []struct {
		query      string
		wantStatus int
		wantLen    int
	}{
		{"?filter=completed", http.StatusOK, 1},
		{"?filter=active", http.StatusOK, 1},
		{"?filter=all", http.StatusOK, 2},
		{"?filter=done", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/api/v1/tasks"+tt.query, "u1", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			body := decode[listBody](t, w)
			if len(body.Tasks) != tt.wantLen {
				t.Errorf("got %d tasks, want %d", len(body.Tasks), tt.wantLen)
			}
			if body.Stats.Total != 2 || body.Stats.Completed != 1 {
				t.Errorf("unexpected stats: %+v", body.Stats)
			}
		})
	}

	other := decode[listBody](t, do(t, h, http.MethodGet, "/api/v1/tasks", "u2", ""))
	if len(other.Tasks) != 0 {
		t.Errorf("another owner sees %d tasks", len(other.Tasks))
	}
}

func TestTaskHandler_UpdateAndDelete(t *testing.T) {
	a := newApp(t)
	h := handler.NewTaskHandler(a.tasks)
	created := decode[model.Task](t, do(t, h, http.MethodPost, "/api/v1/tasks", "u1", `{"title":"draft"}`))
	path := "/api/v1/tasks/" + created.ID

	tests := []struct {
		name       string
		owner      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"rename", "u1", `{"title":"final"}`, http.StatusOK, ""},
		{"clear reminder", "u1", `{"clear_reminder":true}`, http.StatusOK, ""},
		{"unknown key", "u1", `{"titel":"typo"}`, http.StatusBadRequest, "INVALID_JSON"},
		{"empty patch", "u1", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"other owner", "u2", `{"title":"hijack"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPatch, path, tt.owner, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (body: %s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("code = %q, want %q", got, tt.wantCode)
				}
			}
		})
	}

	updated := decode[listBody](t, do(t, h, http.MethodGet, "/api/v1/tasks", "u1", ""))
	if updated.Tasks[0].Title != "final" {
		t.Errorf("title = %q, want final", updated.Tasks[0].Title)
	}

	if w := do(t, h, http.MethodDelete, path, "u2", ""); w.Code != http.StatusNoContent {
		t.Errorf("foreign delete: expected 204 no-op, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, path, "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if got := decode[listBody](t, do(t, h, http.MethodGet, "/api/v1/tasks", "u1", "")); len(got.Tasks) != 0 {
		t.Errorf("task still listed after delete: %+v", got.Tasks)
	}
}

func TestTaskHandler_Routing(t *testing.T) {
	a := newApp(t)
	h := handler.NewTaskHandler(a.tasks)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodPut, "/api/v1/tasks", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/tasks/t1", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/tasks/t1/toggle", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/v1/tasks/t1/archive", http.StatusNotFound},
		{http.MethodPost, "/api/v1/tasks/missing/toggle", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := do(t, h, tt.method, tt.path, "u1", ""); w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestFilterHandler(t *testing.T) {
	a := newApp(t)
	tasks := handler.NewTaskHandler(a.tasks)
	h := handler.NewFilterHandler(a.tasks)

	created := decode[model.Task](t, do(t, tasks, http.MethodPost, "/api/v1/tasks", "u1", `{"title":"a"}`))
	do(t, tasks, http.MethodPost, "/api/v1/tasks", "u1", `{"title":"b"}`)
	do(t, tasks, http.MethodPost, "/api/v1/tasks/"+created.ID+"/toggle", "u1", "")

	w := do(t, h, http.MethodPut, "/api/v1/filter", "u1", `{"filter":"completed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode[listBody](t, w)
	if body.Filter != model.FilterCompleted || len(body.Tasks) != 1 || body.Tasks[0].ID != created.ID {
		t.Errorf("unexpected filtered list: %+v", body)
	}

	if w := do(t, h, http.MethodPut, "/api/v1/filter", "u1", `{"filter":"nope"}`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid filter: expected 400, got %d", w.Code)
	}
	if w := do(t, h, http.MethodGet, "/api/v1/filter", "u1", ""); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: expected 405, got %d", w.Code)
	}
}
