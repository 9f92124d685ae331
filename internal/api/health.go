package api

import (
	"context"
	"net/http"
	"time"

	"github.com/talvik/intervox/internal/log"
)

const readinessTimeout = 2 * time.Second

type healthHandler struct {
	pool   pinger
	logger log.Logger
}

// live reports process liveness.
func (h *healthHandler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports readiness to serve, including the database when wired.
func (h *healthHandler) ready(w http.ResponseWriter, r *http.Request) {
	if h.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			h.logger.Warn("readiness ping failed", "error", err)
			writeJSON(w, h.logger, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"reason": "database unreachable",
			})
			return
		}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ready"})
}
