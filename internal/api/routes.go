// Package api provides the HTTP API for the orgtree server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/api/handlers"
	"github.com/MacJediWizard/orgtree/internal/api/middleware"
	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/auth"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/hierarchy"
	"github.com/MacJediWizard/orgtree/internal/metrics"
)

// Config holds configuration for the API router.
type Config struct {
	// AllowedOrigins for CORS. Empty means all origins allowed outside production.
	AllowedOrigins []string
	Production     bool
	// RateLimitRequests is the number of requests allowed per period. Zero disables limiting.
	RateLimitRequests int64
	RateLimitPeriod   time.Duration
	// APIKeyHeader names the header carrying the API key.
	APIKeyHeader string
	// BodyLimit bounds request bodies in bytes.
	BodyLimit int64
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins:    []string{},
		RateLimitRequests: 100,
		RateLimitPeriod:   time.Minute,
		APIKeyHeader:      "X-API-Key",
		BodyLimit:         middleware.DefaultBodyLimit,
		Version:           "dev",
		Commit:            "unknown",
		BuildDate:         "unknown",
	}
}

// Dependencies are the components the router serves.
type Dependencies struct {
	Database db.Executor
	Service  *hierarchy.Service
	Composer *hierarchy.Composer
	Gate     middleware.Authenticator
	Keys     *auth.KeyManager
	// Sessions and Operator enable the /auth and /web/v1 routes. Both nil
	// disables the web path.
	Sessions *auth.SessionStore
	Operator *auth.Operator
	Metrics  *metrics.Metrics
	// Redis shares rate limit counters between instances when set.
	Redis *redis.Client
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.Metrics(deps.Metrics))
	r.Engine.Use(middleware.SecurityHeaders(cfg.Production))

	cors, err := middleware.CORS(cfg.AllowedOrigins, cfg.Production, cfg.APIKeyHeader, logger)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(cors)

	if cfg.RateLimitRequests > 0 {
		rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, deps.Redis, logger)
		if err != nil {
			return nil, err
		}
		r.Engine.Use(rateLimiter)
	}
	if cfg.BodyLimit > 0 {
		r.Engine.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	r.Engine.NoRoute(func(c *gin.Context) {
		middleware.AbortWithError(c, &apperr.Error{Code: apperr.CodeNotFound, Message: "route not found"})
	})

	backend := ""
	if deps.Database != nil {
		backend = deps.Database.Dialect().Name()
	}

	// Health check endpoints (no auth required)
	storageInfo := handlers.StorageInfo{Backend: backend}
	if backend != "" {
		latest, err := db.LatestVersion(backend)
		if err != nil {
			return nil, err
		}
		storageInfo.LatestVersion = latest
	}
	var rateLimitPing handlers.PingFunc
	if deps.Redis != nil {
		rateLimitPing = func(ctx context.Context) error { return deps.Redis.Ping(ctx).Err() }
	}
	var storage handlers.Storage
	if deps.Database != nil {
		storage = deps.Database
	}
	healthHandler := handlers.NewHealthHandler(storage, storageInfo, rateLimitPing, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	if deps.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Version endpoint (no auth required)
	versionHandler := handlers.NewVersionHandler(handlers.VersionInfo{
		Version:   cfg.Version,
		Commit:    cfg.Commit,
		BuildDate: cfg.BuildDate,
		Backend:   backend,
	}, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	// API v1 routes (API key required)
	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.APIKeyMiddleware(deps.Gate, cfg.APIKeyHeader, logger))
	r.registerHierarchy(apiV1, deps, logger)

	// Web routes (operator session required)
	if deps.Sessions != nil && deps.Operator != nil {
		authGroup := r.Engine.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Sessions, deps.Operator, logger)
		authHandler.RegisterRoutes(authGroup)

		webV1 := r.Engine.Group("/web/v1")
		webV1.Use(middleware.SessionMiddleware(deps.Sessions, deps.Operator, logger))
		r.registerHierarchy(webV1, deps, logger)

		keysHandler := handlers.NewAPIKeysHandler(deps.Keys, logger)
		keysHandler.RegisterRoutes(webV1)
	} else {
		r.logger.Warn().Msg("operator credential not configured, web routes disabled")
	}

	r.logger.Info().Int("routes", len(r.Engine.Routes())).Msg("router initialized")
	return r, nil
}

// registerHierarchy mounts the entity and tree routes. The API key and web
// paths share them so both reach the same repository contracts.
func (r *Router) registerHierarchy(group *gin.RouterGroup, deps Dependencies, logger zerolog.Logger) {
	handlers.NewCompaniesHandler(deps.Service, logger).RegisterRoutes(group)
	handlers.NewBranchesHandler(deps.Service, logger).RegisterRoutes(group)
	handlers.NewDivisionsHandler(deps.Service, logger).RegisterRoutes(group)
	handlers.NewDepartmentsHandler(deps.Service, logger).RegisterRoutes(group)
	handlers.NewTreeHandler(deps.Composer, logger).RegisterRoutes(group)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Engine.ServeHTTP(w, req)
}
