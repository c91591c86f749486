// Package main is the entrypoint for the orgtree server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/api"
	"github.com/MacJediWizard/orgtree/internal/auth"
	"github.com/MacJediWizard/orgtree/internal/config"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/hierarchy"
	"github.com/MacJediWizard/orgtree/internal/metrics"
	"github.com/MacJediWizard/orgtree/internal/store"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, cfgErr := config.LoadServerConfig()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	}

	if cfgErr != nil {
		logger.Error().Err(cfgErr).Msg("Invalid configuration")
		return 1
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("env", string(cfg.Environment)).
		Msg("Starting orgtree server")

	if cfg.SessionSecretGenerated {
		logger.Warn().Msg("SESSION_SECRET not set, generated a random one; operator sessions will not survive a restart")
	}

	// Connect to database
	m := metrics.New()
	raw, err := db.Open(ctx, cfg.Database(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to connect to database")
		return 1
	}
	database := db.NewInstrumented(raw, m)

	stores := store.New(database, store.Options{
		DefaultPageSize: cfg.PageSizeDefault,
		MaxPageSize:     cfg.PageSizeMax,
	})
	defer stores.Close()

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	retry := hierarchy.DefaultRetryConfig()
	retry.Attempts = cfg.ReadRetryAttempts
	service := hierarchy.NewService(stores, retry, logger)
	composer := hierarchy.NewComposer(stores, retry, logger)

	// API key gate
	usage := auth.NewUsageRecorder(stores.APIKeys, cfg.UsageQueueSize, m.UsageDropped, logger)
	defer usage.Close()
	gate := auth.NewGate(stores.APIKeys, usage, m, auth.GateConfig{CacheTTL: cfg.APIKeyCacheTTL}, logger)
	keys := auth.NewKeyManager(stores.APIKeys, cfg.BcryptCost, logger)

	// Initialize session store
	sessionCfg := auth.DefaultSessionConfig([]byte(cfg.SessionSecret), cfg.SecureCookies)
	sessionCfg.MaxAge = cfg.SessionMaxAge
	sessions, err := auth.NewSessionStore(sessionCfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize session store")
		return 1
	}

	var operator *auth.Operator
	if cfg.OperatorPasswordHash != "" || cfg.OperatorPassword != "" {
		operator, err = auth.NewOperator(cfg.OperatorUsername, cfg.OperatorPasswordHash, cfg.OperatorPassword)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize operator credential")
			return 1
		}
		if cfg.OperatorPassword != "" {
			logger.Warn().Msg("OPERATOR_PASSWORD is set in plaintext; prefer OPERATOR_PASSWORD_HASH")
		}
	}

	// Shared rate limit store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to parse REDIS_URL")
			return 1
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis not reachable at startup")
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := api.DefaultConfig()
	routerCfg.AllowedOrigins = cfg.CORSOrigins
	routerCfg.Production = cfg.IsProduction()
	routerCfg.RateLimitRequests = cfg.RateLimitRequests
	routerCfg.RateLimitPeriod = cfg.RateLimitPeriod
	routerCfg.APIKeyHeader = cfg.APIKeyHeader
	routerCfg.Version = Version
	routerCfg.Commit = Commit
	routerCfg.BuildDate = BuildDate

	router, err := api.NewRouter(routerCfg, api.Dependencies{
		Database: database,
		Service:  service,
		Composer: composer,
		Gate:     gate,
		Keys:     keys,
		Sessions: sessions,
		Operator: operator,
		Metrics:  m,
		Redis:    redisClient,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("backend", raw.Dialect().Name()).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("HTTP server failed")
		return 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Server stopped")
	return 0
}
