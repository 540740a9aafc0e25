package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jaekwang-park/tasksync/internal/middleware"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

func NewServer(port string, logger *slog.Logger, auth *middleware.Auth, deps RouterDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = logger
	}
	router := NewRouter(deps)

	// request id -> logging -> recovery -> auth -> router
	chain := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.Recovery(logger)(
				auth.Middleware(router))))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      chain,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// event streams are not tracked by the server, so RegisterOnShutdown hooks
// are how they learn about it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// RegisterOnShutdown runs f when Shutdown is called.
func (s *Server) RegisterOnShutdown(f func()) {
	s.httpServer.RegisterOnShutdown(f)
}
