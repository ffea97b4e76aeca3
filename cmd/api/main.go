// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/licensegate/internal/admin"
	"github.com/carterperez-dev/licensegate/internal/audit"
	"github.com/carterperez-dev/licensegate/internal/auth"
	"github.com/carterperez-dev/licensegate/internal/config"
	"github.com/carterperez-dev/licensegate/internal/core"
	"github.com/carterperez-dev/licensegate/internal/fee"
	"github.com/carterperez-dev/licensegate/internal/health"
	"github.com/carterperez-dev/licensegate/internal/license"
	"github.com/carterperez-dev/licensegate/internal/middleware"
	"github.com/carterperez-dev/licensegate/internal/server"
	"github.com/carterperez-dev/licensegate/internal/settings"
	"github.com/carterperez-dev/licensegate/internal/sync"
	"github.com/carterperez-dev/licensegate/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	tokenManager, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token manager initialized",
		"algorithm", "ES256",
		"key_id", tokenManager.GetKeyID(),
	)

	auditRepo := audit.NewRepository(db.DB)
	auditSvc := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(auditSvc)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, auditSvc, cfg.Fee.MaxPercent)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, tokenManager, userSvc, auditSvc)
	authHandler := auth.NewHandler(authSvc)

	licenseRepo := license.NewRepository(db.DB)
	licenseSvc := license.NewService(licenseRepo, auditSvc, cfg.License)
	licenseHandler := license.NewHandler(licenseSvc)

	settingsRepo := settings.NewRepository(db.DB)
	settingsSvc := settings.NewService(settingsRepo, auditSvc)
	settingsHandler := settings.NewHandler(settingsSvc)

	feeRepo := fee.NewRepository(db.DB)
	feeSvc := fee.NewService(feeRepo, userSvc, licenseSvc, settingsSvc, auditSvc)
	feeHandler := fee.NewHandler(feeSvc)

	syncRepo := sync.NewRepository(db.DB)
	syncSvc := sync.NewService(syncRepo, licenseSvc, cfg.Sync)
	syncHandler := sync.NewHandler(syncSvc)

	healthHandler := health.NewHandler(db, rdb)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: rdb.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  rdb.Ping,
		Janitor:    authSvc,
	})

	go authSvc.RunSessionGC(ctx)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(rdb.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", tokenManager.GetJWKSHandler())

	// Per-user window sits behind the session check so KeyByUser sees
	// the resolved user id; anonymous traffic stays on the IP limiter
	// above.
	userLimiter := middleware.NewRateLimiter(rdb.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.UserRequests,
			cfg.RateLimit.UserBurst,
		),
		KeyFunc:  middleware.KeyByUser,
		FailOpen: true,
	})

	sessionAuth := middleware.Authenticator(authSvc)
	authenticator := func(next http.Handler) http.Handler {
		return sessionAuth(userLimiter.Handler(next))
	}
	operatorOnly := middleware.RequireOperator

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, operatorOnly)
		auditHandler.RegisterRoutes(r, authenticator, operatorOnly)

		// Desktop clients hold a license key, not a session.
		licenseHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			feeHandler.RegisterRoutes(r)
			syncHandler.RegisterRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticator)
			r.Use(operatorOnly)

			licenseHandler.RegisterAdminRoutes(r)
			settingsHandler.RegisterAdminRoutes(r)
			feeHandler.RegisterAdminRoutes(r)
			adminHandler.RegisterRoutes(r)
		})
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
