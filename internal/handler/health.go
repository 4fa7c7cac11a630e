package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/surelog/surelog/internal/session"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db       *sql.DB
	sessions *session.Store
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, sessions *session.Store) *HealthHandler {
	return &HealthHandler{db: db, sessions: sessions}
}

// Healthz handles GET /healthz, a pure liveness check
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. The service is ready only when both Postgres
// and the session store answer.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "sessions": "ok"}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.sessions.Ping(ctx); err != nil {
		checks["sessions"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}
