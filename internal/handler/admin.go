package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/portfolio/internal/service"
)

// AdminHandler serves the dashboard summary. The admin lists for posts,
// contacts and subscribers live on the handlers that own those services.
type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

// HandleStats: GET /api/admin/stats
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Pinger is anything whose liveness the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers GET /healthz.
//
// It pings the database with a short timeout: a process that is up but
// cannot reach its store is not healthy, and a load balancer should stop
// sending it traffic.
func HealthHandler(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
