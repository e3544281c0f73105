package handler

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports service health.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a HealthHandler running checks by name.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := map[string]any{"status": "ok"}
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			continue
		}
		results[name] = "ok"
	}
	if len(results) > 0 {
		resp["checks"] = results
	}
	respondJSON(w, status, resp)
}
