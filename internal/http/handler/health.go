package handler

import (
	"net/http"

	"github.com/jaekwang-park/tasksync/internal/network"
)

// StatusSource reports the most recent connectivity probe result.
type StatusSource interface {
	Last() network.Status
}

type HealthHandler struct {
	network StatusSource
}

// NewHealthHandler reports liveness. With a non-nil source the response
// also carries the last known network status.
func NewHealthHandler(net StatusSource) *HealthHandler {
	return &HealthHandler{network: net}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is allowed")
		return
	}

	body := map[string]string{"status": "ok"}
	if h.network != nil {
		body["network"] = string(h.network.Last())
	}
	WriteJSON(w, http.StatusOK, body)
}
