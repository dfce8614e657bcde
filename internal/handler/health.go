package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/matescarabino/gatheringTracker-server/pkg/database"
)

// HealthHandler handles liveness and readiness endpoints plus the root
// info page.
type HealthHandler struct {
	pool           *database.ConnectionPool
	environment    string
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pool *database.ConnectionPool, environment string, allowedOrigins []string, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthHandler{
		pool:           pool,
		environment:    environment,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Root handles GET / with basic server info.
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"environment":    h.environment,
		"allowedOrigins": h.allowedOrigins,
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}

// Health handles GET /healthz - simple liveness check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz - reports ready only when the database answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "ready"
	statusCode := http.StatusOK

	if h.pool == nil {
		checks["database"] = "not configured"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if err := h.pool.Health(ctx); err != nil {
		checks["database"] = "error: " + err.Error()
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	writeJSON(w, statusCode, map[string]any{
		"status": status,
		"checks": checks,
	})

	if status != "ready" {
		h.logger.Warn("readiness check failed",
			slog.String("database", checks["database"]),
		)
	}
}
