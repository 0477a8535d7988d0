package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const probeTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

type HealthHandler struct {
	db            *gorm.DB
	redis         *redis.Client
	crmConfigured bool
}

// NewHealthHandler reports on the store and, when set, Redis. crmConfigured
// is informational: leads are stored whether or not the CRM is reachable.
func NewHealthHandler(db *gorm.DB, redis *redis.Client, crmConfigured bool) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, crmConfigured: crmConfigured}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Health is 503 only when the store is down. Redis backs manual resync and
// nothing else, so losing it degrades the service without failing it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	resp := HealthResponse{Status: statusHealthy, Services: map[string]string{}}

	resp.Services["database"] = statusHealthy
	if h.pingDB(ctx) != nil {
		resp.Services["database"] = statusUnhealthy
		resp.Status = statusUnhealthy
	}

	if h.redis != nil {
		resp.Services["redis"] = statusHealthy
		if h.redis.Ping(ctx).Err() != nil {
			resp.Services["redis"] = statusUnhealthy
			if resp.Status == statusHealthy {
				resp.Status = statusDegraded
			}
		}
	}

	resp.Services["crm"] = "not_configured"
	if h.crmConfigured {
		resp.Services["crm"] = "configured"
	}

	code := http.StatusOK
	if resp.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// Ready only checks the store; without it no request can be served.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	if err := h.pingDB(ctx); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
