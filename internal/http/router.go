package http

import (
	"log/slog"
	"net/http"

	"github.com/jaekwang-park/tasksync/internal/http/handler"
	"github.com/jaekwang-park/tasksync/internal/service"
)

type RouterDeps struct {
	Tasks   *service.TaskService
	Auth    *service.AuthService
	Events  handler.EventSource
	Network handler.StatusSource
	// OriginPatterns lists the browser origins allowed to open the event stream.
	OriginPatterns []string
	Logger         *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// Health check stays outside /api/v1 so it needs no auth
	mux.Handle("/health", handler.NewHealthHandler(deps.Network))

	tasks := handler.NewTaskHandler(deps.Tasks)
	mux.Handle("/api/v1/tasks", tasks)
	mux.Handle("/api/v1/tasks/", tasks)
	mux.Handle("/api/v1/filter", handler.NewFilterHandler(deps.Tasks))

	mux.Handle("/api/v1/sync", handler.NewSyncHandler(deps.Tasks))
	if deps.Events != nil {
		mux.Handle("/api/v1/sync/events", handler.NewEventsHandler(deps.Events, deps.OriginPatterns, deps.Logger))
	}

	queue := handler.NewQueueHandler(deps.Tasks)
	mux.Handle("/api/v1/queue", queue)
	mux.Handle("/api/v1/queue/", queue)

	if deps.Auth != nil {
		mux.Handle("/api/v1/auth/", handler.NewAuthHandler(deps.Auth, deps.Tasks))
	}

	return mux
}
