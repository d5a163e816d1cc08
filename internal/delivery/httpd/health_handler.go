package httpd

import (
	"net/http"
	"time"
)

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := "healthy"
	dbStatus := "up"
	status := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("Database ping failed")
		health = "degraded"
		dbStatus = "down"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    health,
		"service":   "notification-service",
		"database":  dbStatus,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

func (h *Handler) GetWorkerStats(w http.ResponseWriter, r *http.Request) {
	if h.attendanceWorker == nil {
		writeSuccess(w, map[string]interface{}{
			"worker": "disabled",
		})
		return
	}

	writeSuccess(w, h.attendanceWorker.GetStats())
}
