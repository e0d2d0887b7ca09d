// Package app wires together all dependencies and runs the accounts service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hazemadel/accounts/internal/auth"
	"github.com/hazemadel/accounts/internal/config"
	"github.com/hazemadel/accounts/internal/event"
	handler "github.com/hazemadel/accounts/internal/handler/http"
	"github.com/hazemadel/accounts/internal/idp"
	"github.com/hazemadel/accounts/internal/repository/ledger"
	"github.com/hazemadel/accounts/internal/repository/postgres"
	"github.com/hazemadel/accounts/internal/service"
	"github.com/hazemadel/accounts/internal/storage/memory"
	"github.com/hazemadel/accounts/internal/storage/presign"
	"github.com/hazemadel/accounts/migrations"
	"github.com/hazemadel/accounts/pkg/database"
	"github.com/hazemadel/accounts/pkg/health"
	"github.com/hazemadel/accounts/pkg/httpclient"
	pkgkafka "github.com/hazemadel/accounts/pkg/kafka"
	"github.com/hazemadel/accounts/pkg/middleware"
	"github.com/hazemadel/accounts/pkg/tracing"
)

// App holds the long-lived components of the accounts service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	google         *idp.GoogleVerifier
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "accounts",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     1.0,
		Enabled:        cfg.OTELEndpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL connection pool.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Redis, backing the token revocation ledger.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Token signing keyring: one secret per class/audience pair.
	keyring := auth.NewKeyring(auth.KeyringConfig{
		AccessUserSecret:   cfg.AccessTokenUserSecret,
		AccessAdminSecret:  cfg.AccessTokenAdminSecret,
		RefreshUserSecret:  cfg.RefreshTokenUserSecret,
		RefreshAdminSecret: cfg.RefreshTokenAdminSecret,
		UserPrefix:         cfg.BearerPrefix,
		AdminPrefix:        cfg.AdminPrefix,
	})
	tokenManager := auth.NewManager(keyring, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	// Google federated sign-in, enabled only when a client ID is configured.
	var google *idp.GoogleVerifier
	var identity service.IdentityVerifier
	if cfg.GoogleClientID != "" {
		cbClient := httpclient.NewCircuitBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultCircuitBreakerConfig("google-jwks"),
			logger,
		)
		google, err = idp.NewGoogleVerifier(ctx, cfg.GoogleClientID, cbClient, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("init google verifier: %w", err)
		}
		identity = google
		logger.Info("google sign-in enabled")
	}

	// Build the dependency graph.
	userRepo := postgres.NewUserRepository(pool)
	revocations := ledger.New(redisClient)
	eventProducer := event.NewProducer(producer, logger)
	store := memory.New(cfg.StorageBaseURL)
	presigner := presign.New(cfg.UploadPresignSecret, cfg.UploadPresignBaseURL)
	accountService := service.NewAccountService(
		userRepo,
		revocations,
		tokenManager,
		identity,
		eventProducer,
		store,
		presigner,
		cfg.UploadPresignTTL,
		logger,
	)
	sessions := auth.NewSessionValidator(tokenManager, userRepo, revocations)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.CORSAllowedOrigins
	corsConfig.Environment = cfg.Environment
	router := handler.NewRouter(accountService, sessions, healthHandler, logger, corsConfig)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		google:         google,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.google != nil {
		a.google.Close()
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
