package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Payphone-Digital/account-security/internal/constants"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db    Pinger
	redis Pinger
	stats map[string]func() map[string]interface{}
}

type HealthCheckResponse struct {
	Status    string                            `json:"status"`
	Timestamp time.Time                         `json:"timestamp"`
	Checks    map[string]HealthCheck            `json:"checks"`
	Stats     map[string]map[string]interface{} `json:"stats,omitempty"`
}

type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthHandler builds the health endpoint. A nil redis means Redis is
// disabled and is reported as such.
func NewHealthHandler(db, redis Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, stats: map[string]func() map[string]interface{}{}}
}

// WithStats adds a named runtime snapshot, such as pool or breaker state,
// to the response.
func (h *HealthHandler) WithStats(name string, fn func() map[string]interface{}) *HealthHandler {
	h.stats[name] = fn
	return h
}

// HealthCheck reports database and Redis status. Only the database decides
// overall health; Redis has an in-process fallback.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), constants.HealthCheckTimeout)
	defer cancel()

	response := HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck),
	}

	response.Checks["database"] = h.check(ctx, "database", h.db)
	if response.Checks["database"].Status != "healthy" {
		response.Status = "unhealthy"
	}

	if h.redis == nil {
		response.Checks["redis"] = HealthCheck{Status: "disabled", Message: "Redis is disabled, rate limits are per instance"}
	} else {
		response.Checks["redis"] = h.check(ctx, "redis", h.redis)
	}

	if len(h.stats) > 0 {
		response.Stats = make(map[string]map[string]interface{}, len(h.stats))
		for name, fn := range h.stats {
			response.Stats[name] = fn()
		}
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	logger.GetLogger().Debug("Health check performed",
		zap.String("overall_status", response.Status),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, response)
}

func (h *HealthHandler) check(ctx context.Context, name string, p Pinger) HealthCheck {
	if p == nil {
		return HealthCheck{Status: "unhealthy", Message: name + " connection not initialized"}
	}
	if err := p.Ping(ctx); err != nil {
		logger.GetLogger().Warn("Health check ping failed", zap.String("dependency", name), zap.Error(err))
		return HealthCheck{Status: "unhealthy", Message: name + " ping failed"}
	}
	return HealthCheck{Status: "healthy"}
}
