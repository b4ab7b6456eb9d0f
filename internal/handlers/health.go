package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check reports the health of one dependency
type Check func(ctx context.Context) error

// Health serves /api/health, /healthz and /readyz
type Health struct {
	// Checks are reported by /api/health
	Checks map[string]Check
	// Critical names the checks /readyz depends on
	Critical []string
}

// Register mounts the health endpoints on mux
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.HealthHandler)
	mux.HandleFunc("/healthz", h.LivenessHandler) // Kubernetes liveness check
	mux.HandleFunc("/readyz", h.ReadinessHandler) // Kubernetes readiness check
}

// HealthHandler runs every check and reports each one
func (h *Health) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			checks[name] = map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			continue
		}
		checks[name] = map[string]any{"status": "healthy"}
	}

	respond(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// LivenessHandler returns 200 while the process runs; dependencies are not checked
func (h *Health) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

// ReadinessHandler returns 200 when every critical dependency answers
func (h *Health) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, name := range h.Critical {
		check, ok := h.Checks[name]
		if !ok {
			continue
		}
		if err := check(ctx); err != nil {
			respond(w, http.StatusServiceUnavailable, map[string]any{
				"status":    "not_ready",
				"reason":    name + "_unavailable",
				"timestamp": time.Now().Unix(),
			})
			return
		}
	}

	respond(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

func respond(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
