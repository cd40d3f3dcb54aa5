package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves /health. Every registered dependency is checked on
// each call.
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]HealthCheck)}
}

// Register adds a named dependency check. Not safe for use after serving starts.
func (h *HealthHandler) Register(name string, check HealthCheck) {
	h.checks[name] = check
}

type HealthResponse struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Success: true, Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Success = false
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
