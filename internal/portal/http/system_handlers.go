package http

import (
	"net/http"
	"time"

	"github.com/nexusbq/portal/internal/portal/store"
	"github.com/nexusbq/portal/pkg/httpx"
)

// HealthResponse is shared by the liveness and readiness probes.
type HealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version,omitempty"`
	Database string `json:"database,omitempty"`
}

// LivezHandler always answers 200 while the process is up.
type LivezHandler struct {
	Version   string
	StartTime time.Time
}

func (h *LivezHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(h.StartTime).String(),
		Version: h.Version,
	})
}

// ReadyzHandler reports 503 until the store answers a ping.
type ReadyzHandler struct {
	Store store.Store
}

func (h *ReadyzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	database := "ok"
	statusCode := http.StatusOK

	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		database = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	httpx.WriteJSON(w, statusCode, HealthResponse{
		Status:   status,
		Database: database,
	})
}
