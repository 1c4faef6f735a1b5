package handler

import (
	"net/http"
	"time"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready      bool      `json:"ready"`
	ServerTime time.Time `json:"serverTime"`
}

// Readyz reports readiness. The adapter holds no warm state: once the
// process is serving, it is ready.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ReadyResponse{
		Ready:      true,
		ServerTime: time.Now(),
	})
}
