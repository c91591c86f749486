package auth

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/MacJediWizard/orgtree/internal/models"
)

// KeyRepository is the persistence the key manager needs.
type KeyRepository interface {
	KeyStore
	List(ctx context.Context, f models.APIKeyFilter, req models.PageRequest) (*models.Page[*models.APIKey], error)
	Create(ctx context.Context, k *models.APIKey, actor string) (*models.APIKey, error)
	SetActive(ctx context.Context, id string, active bool, actor string) (*models.APIKey, error)
	Delete(ctx context.Context, id string) error
}

// KeyManager issues and administers API keys.
type KeyManager struct {
	keys       KeyRepository
	bcryptCost int
	now        func() time.Time
	logger     zerolog.Logger
}

// NewKeyManager creates a KeyManager. A zero bcryptCost uses bcrypt's default.
func NewKeyManager(keys KeyRepository, bcryptCost int, logger zerolog.Logger) *KeyManager {
	return &KeyManager{
		keys:       keys,
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     logger.With().Str("component", "apikey_manager").Logger(),
	}
}

// Create validates in, stores a new key and returns it with the plaintext.
// The plaintext cannot be recovered afterwards.
func (m *KeyManager) Create(ctx context.Context, in *models.APIKeyInput) (*models.CreatedAPIKey, error) {
	in.Normalize()
	if err := in.Validate(m.now()); err != nil {
		return nil, err
	}
	key, plaintext, err := NewAPIKey(in, m.bcryptCost)
	if err != nil {
		return nil, err
	}
	stored, err := m.keys.Create(ctx, key, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}

	m.logger.Info().
		Str("api_key_id", stored.ID).
		Str("app_name", stored.AppName).
		Str("permission", stored.Permission.String()).
		Str("actor", ActorFrom(ctx)).
		Msg("api key created")
	return &models.CreatedAPIKey{APIKey: stored, Key: plaintext}, nil
}

// Get returns one key record.
func (m *KeyManager) Get(ctx context.Context, id string) (*models.APIKey, error) {
	return m.keys.FindByID(ctx, id)
}

// List returns one page of key records.
func (m *KeyManager) List(ctx context.Context, f models.APIKeyFilter, req models.PageRequest) (*models.Page[*models.APIKey], error) {
	return m.keys.List(ctx, f, req)
}

// SetStatus enables or revokes a key. A nil active flips the current flag.
func (m *KeyManager) SetStatus(ctx context.Context, id string, active *bool) (*models.APIKey, error) {
	var next bool
	if active != nil {
		next = *active
	} else {
		current, err := m.keys.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		next = !current.IsActive
	}
	key, err := m.keys.SetActive(ctx, id, next, ActorFrom(ctx))
	if err != nil {
		return nil, err
	}
	m.logger.Info().Str("api_key_id", id).Bool("active", next).Str("actor", ActorFrom(ctx)).Msg("api key status changed")
	return key, nil
}

// Delete removes a key record.
func (m *KeyManager) Delete(ctx context.Context, id string) error {
	if err := m.keys.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info().Str("api_key_id", id).Str("actor", ActorFrom(ctx)).Msg("api key deleted")
	return nil
}
