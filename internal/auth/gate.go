package auth

import (
	"context"
	"crypto/sha256"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/models"
)

// State is a step of the per-request authentication state machine.
type State int

const (
	StateUnauthenticated State = iota
	StateKeyResolved
	StatePermissionChecked
	StateAuthorized
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateKeyResolved:
		return "key_resolved"
	case StatePermissionChecked:
		return "permission_checked"
	case StateAuthorized:
		return "authorized"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// KeyStore looks up API key records.
type KeyStore interface {
	FindByID(ctx context.Context, id string) (*models.APIKey, error)
}

// UsageSink receives successful authentications. Record must not block.
type UsageSink interface {
	Record(id string, at time.Time)
}

// DecisionObserver receives one outcome per Authenticate call.
type DecisionObserver interface {
	ObserveAuth(outcome string)
}

// GateConfig configures a Gate.
type GateConfig struct {
	// CacheTTL bounds how long a verified key skips the bcrypt comparison.
	// Zero disables the cache.
	CacheTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type verifiedEntry struct {
	id      string
	hash    string
	expires time.Time
}

const maxVerifiedEntries = 4096

// Gate authenticates presented API keys and authorizes the required
// permission. The key record is read on every call, so revocation and expiry
// apply to the next request; only the bcrypt comparison is cached.
type Gate struct {
	keys     KeyStore
	usage    UsageSink
	observer DecisionObserver
	cacheTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu       sync.Mutex
	verified map[[sha256.Size]byte]verifiedEntry
}

// NewGate creates a Gate. usage and observer may be nil.
func NewGate(keys KeyStore, usage UsageSink, observer DecisionObserver, cfg GateConfig, logger zerolog.Logger) *Gate {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gate{
		keys:     keys,
		usage:    usage,
		observer: observer,
		cacheTTL: cfg.CacheTTL,
		now:      cfg.Now,
		logger:   logger.With().Str("component", "apikey_gate").Logger(),
		verified: make(map[[sha256.Size]byte]verifiedEntry),
	}
}

// Authenticate resolves presented to an active key and checks that it grants
// required. Failures carry MissingCredential, InvalidCredential or
// InsufficientPermission; a storage outage is returned as is.
func (g *Gate) Authenticate(ctx context.Context, presented string, required models.Permission) (*Principal, error) {
	key, err := g.resolve(ctx, presented)
	if err != nil {
		return nil, g.reject(StateUnauthenticated, err)
	}

	if !key.Permission.Satisfies(required) {
		g.logger.Debug().
			Str("api_key_id", key.ID).
			Str("granted", key.Permission.String()).
			Str("required", required.String()).
			Msg("insufficient permission")
		return nil, g.reject(StateKeyResolved, apperr.InsufficientPermission(required.String()))
	}

	now := g.now()
	if g.usage != nil {
		g.usage.Record(key.ID, now)
	}
	g.observe("authorized")

	return &Principal{
		Type:       PrincipalAPIKey,
		ID:         key.ID,
		Name:       key.AppName,
		Permission: key.Permission,
	}, nil
}

// resolve takes a presented key from Unauthenticated to KeyResolved.
func (g *Gate) resolve(ctx context.Context, presented string) (*models.APIKey, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return nil, apperr.MissingCredential()
	}
	id, secret, ok := ParseAPIKey(presented)
	if !ok {
		return nil, apperr.InvalidCredential()
	}

	key, err := g.keys.FindByID(ctx, id)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			return nil, apperr.InvalidCredential()
		}
		return nil, err
	}

	if !g.verify(presented, key, secret) {
		return nil, apperr.InvalidCredential()
	}
	if !key.IsActive || key.Expired(g.now()) {
		return nil, apperr.InvalidCredential()
	}
	return key, nil
}

func (g *Gate) verify(presented string, key *models.APIKey, secret string) bool {
	fp := fingerprint(presented)
	now := g.now()

	if g.cacheTTL > 0 {
		g.mu.Lock()
		entry, ok := g.verified[fp]
		g.mu.Unlock()
		if ok && entry.id == key.ID && entry.hash == key.KeyHash && now.Before(entry.expires) {
			return true
		}
	}

	if !VerifySecret(key.KeyHash, secret) {
		return false
	}

	if g.cacheTTL > 0 {
		g.mu.Lock()
		if len(g.verified) >= maxVerifiedEntries {
			g.pruneLocked(now)
		}
		g.verified[fp] = verifiedEntry{id: key.ID, hash: key.KeyHash, expires: now.Add(g.cacheTTL)}
		g.mu.Unlock()
	}
	return true
}

func (g *Gate) pruneLocked(now time.Time) {
	for fp, entry := range g.verified {
		if !now.Before(entry.expires) {
			delete(g.verified, fp)
		}
	}
	if len(g.verified) >= maxVerifiedEntries {
		clear(g.verified)
	}
}

func (g *Gate) reject(from State, err error) error {
	outcome := strings.ToLower(string(apperr.CodeOf(err)))
	g.observe(outcome)
	g.logger.Debug().
		Str("from", from.String()).
		Str("to", StateRejected.String()).
		Str("outcome", outcome).
		Msg("request rejected")
	return err
}

func (g *Gate) observe(outcome string) {
	if g.observer != nil {
		g.observer.ObserveAuth(outcome)
	}
}
