package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configs "github.com/Payphone-Digital/account-security/config"
	"github.com/Payphone-Digital/account-security/internal/constants"
	"github.com/Payphone-Digital/account-security/internal/handler"
	"github.com/Payphone-Digital/account-security/internal/middleware"
	"github.com/Payphone-Digital/account-security/internal/notification"
	"github.com/Payphone-Digital/account-security/internal/ratelimit"
	"github.com/Payphone-Digital/account-security/internal/repository"
	"github.com/Payphone-Digital/account-security/internal/router"
	"github.com/Payphone-Digital/account-security/internal/security"
	"github.com/Payphone-Digital/account-security/internal/service"
	"github.com/Payphone-Digital/account-security/pkg/circuit"
	"github.com/Payphone-Digital/account-security/pkg/database"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/Payphone-Digital/account-security/pkg/redis"
	"github.com/Payphone-Digital/account-security/pkg/validation"
	"github.com/Payphone-Digital/account-security/pkg/workerpool"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
	)

	db, err := database.NewPostgresDB(config.Database)
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if err := database.AutoMigrate(db); err != nil {
		logger.GetLogger().Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.GetLogger().Info("Database migrated successfully")

	// Password hashing runs on its own pool so bcrypt bursts cannot take
	// every request goroutine.
	hashPool := workerpool.New(workerpool.PoolConfig{
		Workers:   config.Security.HashWorkers,
		QueueSize: config.Security.HashWorkers * 16,
	}, logger.GetLogger())
	defer hashPool.Close()

	hasher := security.NewHasher(config.Security.BcryptCost, hashPool)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.SeedAdmin(seedCtx, db, config.Seed, hasher); err != nil {
		logger.GetLogger().Error("Failed to seed admin account", zap.Error(err))
	}
	cancelSeed()

	limiter, redisPinger, breaker, closeRedis := buildLimiter(config)
	defer closeRedis()

	var notifier service.Notifier
	if config.Mail.Enabled {
		smtp, err := notification.NewSMTPSender(config.Mail)
		if err != nil {
			logger.GetLogger().Fatal("Failed to configure mail delivery", zap.Error(err))
		}
		notifier = smtp
	} else {
		logger.GetLogger().Warn("Mail delivery disabled, tokens will not be sent")
		notifier = notification.NewLogSender(config.Mail.BaseURL)
	}

	userRepo := repository.NewUserRepository(db)
	jwtService := service.NewJWTService(config.JWT.Secret, config.JWT.ExpirationTime, config.JWT.Issuer)
	authService := service.NewAuthService(userRepo, hasher, jwtService, notifier, service.AuthConfig{
		Lockout: security.LockoutPolicy{
			Threshold: config.Security.LockThreshold,
			Duration:  config.Security.LockDuration,
		},
		ResetTokenTTL:        config.Security.ResetTokenTTL,
		VerificationTokenTTL: config.Security.VerificationTokenTTL,
		TokenBytes:           config.Security.TokenBytes,
		UniformResetResponse: config.Security.UniformResetResponse,
	})

	healthHandler := handler.NewHealthHandler(
		handler.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
		redisPinger,
	).WithStats("hash_pool", hashPool.Stats)
	if breaker != nil {
		healthHandler.WithStats("rate_limit_breaker", breaker.Stats)
	}

	r := router.NewRouter(
		handler.NewAuthHandler(authService),
		healthHandler,

		middleware.NewAuthMiddleware(authService),
		limiter,
		validation.New(),
		config,
	).SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + config.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.GetLogger().Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.GetLogger().Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.GetLogger().Error("Server forced to shutdown", zap.Error(err))
	}
}

// buildLimiter wires the shared Redis limiter behind a circuit breaker with
// an in-process fallback. Without Redis only the in-process limiter is used.
// The returned pinger is nil when Redis is not in use.
func buildLimiter(config *configs.Config) (ratelimit.Limiter, handler.Pinger, *circuit.Breaker, func()) {
	local := ratelimit.NewMemoryLimiter(config.RateLimit.Request, config.RateLimit.Window)

	if !config.Redis.Enabled {
		logger.GetLogger().Warn("Redis disabled, rate limits are enforced per instance")
		return local, nil, nil, func() {}
	}

	client, err := redis.NewClient(config)
	if err != nil {
		logger.GetLogger().Warn("Redis unavailable at startup, rate limits are enforced per instance",
			zap.Error(err),
		)
		return local, nil, nil, func() {}
	}

	breaker := circuit.NewBreaker("rate-limit-redis", circuit.DefaultConfig(), logger.GetLogger())
	shared := ratelimit.NewRedisLimiter(client.RDB(), config.RateLimit.Request, config.RateLimit.Window)

	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.GetLogger().Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	return ratelimit.NewFallbackLimiter(shared, local, breaker), client, breaker, closeFn
}
