package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

const rateLimitPrefix = "orgtree_limiter"

// NewRateLimiter creates a Gin middleware for rate limiting.
// requests is the number of requests allowed per period. Counters are kept in
// process memory unless client is non-nil, in which case they are shared
// through Redis.
func NewRateLimiter(requests int64, period time.Duration, client *redis.Client, logger zerolog.Logger) (gin.HandlerFunc, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid rate limit period %s", period)
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  requests,
	}

	var store limiter.Store
	if client != nil {
		var err error
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}
	instance := limiter.New(store, rate)

	log := logger.With().Str("component", "rate_limit").Logger()
	middleware := mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: ErrorDetail{Code: "RATE_LIMITED", Message: "too many requests"},
			})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			log.Error().Err(err).Msg("rate limit store failed")
			AbortWithError(c, apperr.BackendUnavailable(err))
		}),
	)
	return middleware, nil
}
