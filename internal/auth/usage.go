package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// UsageStore persists API key usage.
type UsageStore interface {
	RecordUsage(ctx context.Context, id string, at time.Time) error
}

type usageEvent struct {
	id string
	at time.Time
}

// UsageRecorder records API key usage off the request path. Record never
// blocks: when the queue is full the event is dropped and counted.
type UsageRecorder struct {
	store   UsageStore
	queue   chan usageEvent
	onDrop  func()
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewUsageRecorder starts a recorder with a queue of size events. onDrop may
// be nil.
func NewUsageRecorder(store UsageStore, size int, onDrop func(), logger zerolog.Logger) *UsageRecorder {
	if size <= 0 {
		size = 1024
	}
	if onDrop == nil {
		onDrop = func() {}
	}
	r := &UsageRecorder{
		store:   store,
		queue:   make(chan usageEvent, size),
		onDrop:  onDrop,
		timeout: 5 * time.Second,
		logger:  logger.With().Str("component", "apikey_usage").Logger(),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Record queues a usage event for key id.
func (r *UsageRecorder) Record(id string, at time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- usageEvent{id: id, at: at}:
	default:
		r.onDrop()
		r.logger.Warn().Str("api_key_id", id).Msg("usage queue full, dropping event")
	}
}

func (r *UsageRecorder) run() {
	defer r.wg.Done()
	for ev := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.store.RecordUsage(ctx, ev.id, ev.at); err != nil {
			r.logger.Warn().Err(err).Str("api_key_id", ev.id).Msg("failed to record api key usage")
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (r *UsageRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info().Msg("usage recorder stopped")
}
