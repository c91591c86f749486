package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// CheckState is the outcome of one dependency check.
type CheckState string

const (
	StateUp       CheckState = "up"
	StateDegraded CheckState = "degraded"
	StateDown     CheckState = "down"
)

func (s CheckState) rank() int {
	switch s {
	case StateDown:
		return 2
	case StateDegraded:
		return 1
	default:
		return 0
	}
}

// DependencyCheck reports on one dependency of the server.
type DependencyCheck struct {
	State   CheckState     `json:"state"`
	Took    string         `json:"took"`
	Details map[string]any `json:"details,omitempty"`
	Problem string         `json:"problem,omitempty"`
}

// HealthReport is the body of the health endpoints. A degraded report is
// still served with 200; only a dependency that is down yields 503.
type HealthReport struct {
	Status  CheckState                  `json:"status"`
	Backend string                      `json:"backend,omitempty"`
	Checks  map[string]*DependencyCheck `json:"checks"`
}

func (r *HealthReport) add(name string, check *DependencyCheck) {
	r.Checks[name] = check
	if check.State.rank() > r.Status.rank() {
		r.Status = check.State
	}
}

func (r *HealthReport) httpStatus() int {
	if r.Status == StateDown {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Storage is the part of the hierarchy backend the health endpoints inspect.
type Storage interface {
	Ping(ctx context.Context) error
	Health() map[string]any
	CurrentVersion(ctx context.Context) (int, error)
}

// StorageInfo names the configured backend and the newest schema version
// this build ships migrations for.
type StorageInfo struct {
	Backend       string
	LatestVersion int
}

// PingFunc checks an optional dependency such as the shared rate limit store.
type PingFunc func(ctx context.Context) error

// HealthHandler serves the unauthenticated health endpoints.
type HealthHandler struct {
	storage        Storage
	info           StorageInfo
	rateLimitStore PingFunc
	timeout        time.Duration
	logger         zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler. rateLimitStore may be nil
// when counters are kept in process memory.
func NewHealthHandler(storage Storage, info StorageInfo, rateLimitStore PingFunc, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		storage:        storage,
		info:           info,
		rateLimitStore: rateLimitStore,
		timeout:        5 * time.Second,
		logger:         logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers health check routes that don't require authentication.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	health := r.Group("/health")
	{
		health.GET("", h.Overall)
		health.GET("/db", h.Database)
	}
}

// Overall reports the storage backend and the rate limit store.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report := h.newReport()
	report.add("storage", h.checkStorage(ctx))
	report.add("rate_limit_store", h.checkRateLimitStore(ctx))
	c.JSON(report.httpStatus(), report)
}

// Database reports the storage backend alone.
// GET /health/db
func (h *HealthHandler) Database(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	report := h.newReport()
	report.add("storage", h.checkStorage(ctx))
	c.JSON(report.httpStatus(), report)
}

func (h *HealthHandler) newReport() *HealthReport {
	return &HealthReport{
		Status:  StateUp,
		Backend: h.info.Backend,
		Checks:  make(map[string]*DependencyCheck),
	}
}

// checkStorage pings the backend, then compares the applied schema version
// with the newest one this build knows about.
func (h *HealthHandler) checkStorage(ctx context.Context) *DependencyCheck {
	start := time.Now()
	check := &DependencyCheck{State: StateUp}
	defer func() { check.Took = time.Since(start).String() }()

	if h.storage == nil {
		check.State = StateDown
		check.Problem = "storage backend not configured"
		return check
	}

	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Str("backend", h.info.Backend).Msg("storage ping failed")
		check.State = StateDown
		check.Problem = "storage backend unreachable"
		return check
	}

	check.Details = map[string]any{}
	for k, v := range h.storage.Health() {
		check.Details[k] = v
	}

	version, err := h.storage.CurrentVersion(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("could not read schema version")
		check.State = StateDegraded
		check.Problem = "schema version unknown"
		return check
	}
	check.Details["schema_version"] = version
	check.Details["latest_schema_version"] = h.info.LatestVersion
	if pending := h.info.LatestVersion - version; pending > 0 {
		check.State = StateDegraded
		check.Problem = fmt.Sprintf("%d schema migration(s) pending", pending)
	}
	return check
}

func (h *HealthHandler) checkRateLimitStore(ctx context.Context) *DependencyCheck {
	start := time.Now()
	check := &DependencyCheck{State: StateUp, Details: map[string]any{"shared": h.rateLimitStore != nil}}
	defer func() { check.Took = time.Since(start).String() }()

	if h.rateLimitStore == nil {
		return check
	}
	if err := h.rateLimitStore(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("rate limit store ping failed")
		check.State = StateDown
		check.Problem = "rate limit store unreachable"
	}
	return check
}
