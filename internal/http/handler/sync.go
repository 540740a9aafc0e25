package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/jaekwang-park/tasksync/internal/middleware"
	"github.com/jaekwang-park/tasksync/internal/model"
	"github.com/jaekwang-park/tasksync/internal/service"
	"github.com/jaekwang-park/tasksync/internal/syncer"
)

const eventWriteTimeout = 5 * time.Second

type SyncHandler struct {
	svc *service.TaskService
}

func NewSyncHandler(svc *service.TaskService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type syncStatusResponse struct {
	IsSyncing         bool            `json:"is_syncing"`
	LastSyncAt        *time.Time      `json:"last_sync_at"`
	HasPendingChanges bool            `json:"has_pending_changes"`
	Stats             model.TaskStats `json:"stats"`
}

// ServeHTTP serves GET (status) and POST (run a cycle) on /api/v1/sync.
func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r)

	switch r.Method {
	case http.MethodGet:
		st, err := h.svc.State(r.Context(), ownerID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, syncStatusResponse{
			IsSyncing:         st.IsSyncing,
			LastSyncAt:        st.LastSyncAt,
			HasPendingChanges: st.HasPendingChanges,
			Stats:             st.Stats,
		})
	case http.MethodPost:
		report, err := h.svc.Sync(r.Context(), ownerID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		status := http.StatusOK
		if report.Outcome == syncer.OutcomeSkipped {
			status = http.StatusAccepted
		}
		WriteJSON(w, status, report)
	default:
		methodNotAllowed(w)
	}
}

// EventSource hands out subscriptions to sync lifecycle events.
type EventSource interface {
	Subscribe() (<-chan syncer.Event, func())
}

// EventsHandler streams the caller's sync events over a websocket.
type EventsHandler struct {
	events         EventSource
	originPatterns []string
	logger         *slog.Logger
}

func NewEventsHandler(events EventSource, originPatterns []string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{events: events, originPatterns: originPatterns, logger: logger}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ownerID := middleware.GetOwnerID(r)

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	events, cancel := h.events.Subscribe()
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "owner_id", ownerID, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	h.logger.Debug("event stream opened", "owner_id", ownerID)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if ev.OwnerID != ownerID {
				continue
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("event stream closed", "owner_id", ownerID, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev syncer.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
