package hierarchy

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// RetryConfig bounds the retries of idempotent reads. Writes are never
// retried.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first. Values
	// below 2 disable retrying.
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the standard read retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:        3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

type retrier struct {
	cfg    RetryConfig
	logger zerolog.Logger
}

func (r retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.cfg.InitialInterval > 0 {
		b.InitialInterval = r.cfg.InitialInterval
	}
	if r.cfg.MaxInterval > 0 {
		b.MaxInterval = r.cfg.MaxInterval
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.Attempts-1)), ctx)
}

// read runs fn, retrying while it fails with BackendUnavailable.
func read[T any](ctx context.Context, r retrier, fn func(context.Context) (T, error)) (T, error) {
	if r.cfg.Attempts < 2 {
		return fn(ctx)
	}
	attempt := 0
	return backoff.RetryWithData(func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !apperr.IsCode(err, apperr.CodeBackendUnavailable) {
			return v, backoff.Permanent(err)
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("read failed, backend unavailable")
		return v, err
	}, r.backOff(ctx))
}
