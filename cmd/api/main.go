// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carterperez-dev/saas-metrics/internal/admin"
	"github.com/carterperez-dev/saas-metrics/internal/auth"
	"github.com/carterperez-dev/saas-metrics/internal/config"
	"github.com/carterperez-dev/saas-metrics/internal/core"
	"github.com/carterperez-dev/saas-metrics/internal/health"
	"github.com/carterperez-dev/saas-metrics/internal/integrity"
	"github.com/carterperez-dev/saas-metrics/internal/metric"
	"github.com/carterperez-dev/saas-metrics/internal/middleware"
	"github.com/carterperez-dev/saas-metrics/internal/notify"
	"github.com/carterperez-dev/saas-metrics/internal/server"
	"github.com/carterperez-dev/saas-metrics/internal/tenant"
	"github.com/carterperez-dev/saas-metrics/internal/user"
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

	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}

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

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			return err
		}
		logger.Info("database schema up to date")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	if cfg.IsDevelopment() {
		generated, keyErr := auth.EnsureKeyPair(cfg.JWT)
		if keyErr != nil {
			return keyErr
		}
		if generated {
			logger.Warn("generated development signing key",
				"path", cfg.JWT.PrivateKeyPath,
			)
		}
	}

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	tenantRepo := tenant.NewRepository(db.DB)
	userRepo := user.NewRepository(db.DB)
	metricRepo := metric.NewRepository(db.DB)

	coordinator := integrity.NewCoordinator(integrity.Config{
		Tenants:   tenantRepo,
		Users:     userRepo,
		Metrics:   metricRepo,
		Locker:    redis.NewLocker(cfg.Tenancy),
		Events:    integrity.NewStreamPublisher(redis.Client, cfg.Events.RoleStream, cfg.Events.MaxLen),
		Logger:    logger,
		Serialize: cfg.Tenancy.SerializeMutations,
	})

	inTx := func(
		ctx context.Context,
		fn func(users user.Repository, tenants tenant.Repository) error,
	) error {
		return db.WithTx(ctx, func(tx core.DBTX) error {
			return fn(user.NewRepository(tx), tenant.NewRepository(tx))
		})
	}

	var notifier auth.Notifier
	if cfg.Notifier.Endpoint != "" {
		notifier = notify.NewHTTPMailer(cfg.Notifier, cfg.Auth.TempCredentialTTL)
	} else {
		logger.Warn("notifier endpoint not set, temporary credentials are logged")
		notifier = notify.NewLogMailer(logger)
	}

	tenantSvc := tenant.NewService(tenantRepo, coordinator)
	tenantHandler := tenant.NewHandler(tenantSvc)

	userSvc := user.NewService(userRepo, tenantRepo, inTx, coordinator, logger)

	authSvc := auth.NewService(
		jwtManager,
		userSvc,
		auth.NewRedisRevocations(redis.Client),
		notifier,
		cfg.Auth,
		logger,
	)
	authHandler := auth.NewHandler(authSvc, cfg.Auth, cfg.IsProduction())

	userHandler := user.NewHandler(userSvc, authHandler)

	metricSvc := metric.NewService(metricRepo, tenantRepo, coordinator)
	metricHandler := metric.NewHandler(metricSvc)

	healthHandler := health.NewHandler(
		health.Check{Name: "database", Checker: db},
		health.Check{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Counts: db.Counts,
		EventsCount: func(ctx context.Context) (int64, error) {
			return redis.StreamLen(ctx, cfg.Events.RoleStream)
		},
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc, cfg.Auth.CookieName)
	adminOnly := middleware.RequireGlobalAdmin

	router.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			authHandler.RegisterRoutes(r, authenticator)
			userHandler.RegisterRoutes(r, authenticator)
		})

		tenantHandler.RegisterRoutes(r, authenticator)
		metricHandler.RegisterRoutes(r, authenticator)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
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

	if err := redis.Close(); err != nil {
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
