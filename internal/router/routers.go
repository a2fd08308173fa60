package router

import (
	"github.com/Payphone-Digital/account-security/config"
	"github.com/Payphone-Digital/account-security/internal/handler"
	"github.com/Payphone-Digital/account-security/internal/middleware"
	"github.com/Payphone-Digital/account-security/internal/ratelimit"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Router struct {
	authHandler   *handler.AuthHandler
	healthHandler *handler.HealthHandler

	authMw    *middleware.AuthMiddleware
	limiter   ratelimit.Limiter // nil disables rate limiting
	validator *validator.Validate
	Config    *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	health *handler.HealthHandler,

	authMw *middleware.AuthMiddleware,
	limiter ratelimit.Limiter,
	validate *validator.Validate,
	config *config.Config,
) *Router {
	return &Router{
		authHandler:   auth,
		healthHandler: health,

		authMw:    authMw,
		limiter:   limiter,
		validator: validate,
		Config:    config,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	// Without trusted proxies ClientIP is the TCP peer, so a client cannot
	// pick its own rate limit bucket through X-Forwarded-For.
	if err := router.SetTrustedProxies(r.Config.App.TrustedProxies); err != nil {
		logger.GetLogger().Error("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.ContextMiddleware("http"))
	router.Use(middleware.RequestResponseMiddleware())
	router.Use(middleware.RequestTimeoutMiddleware(r.Config.App.Timeout))
	router.Use(middleware.CORS())

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.HealthCheck)

		v1 := api.Group("/v1")
		{
			r.authRoutes(v1)
			r.adminRoutes(v1)
			r.publicRoutes(v1)
		}
	}

	return router
}

// rateLimit returns the limiter for purpose, or a pass-through when rate
// limiting is off.
func (r *Router) rateLimit(purpose string) gin.HandlerFunc {
	if r.limiter == nil || !r.Config.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(r.limiter, r.Config.RateLimit.Prefix, purpose)
}
