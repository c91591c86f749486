package models

import (
	"time"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// APIKey is a stored API credential. Only a bcrypt hash of the secret is kept.
type APIKey struct {
	ID          string     `json:"api_key_id"`
	KeyPrefix   string     `json:"key_prefix"`
	KeyHash     string     `json:"-"`
	AppName     string     `json:"app_name"`
	Description string     `json:"description"`
	Permission  Permission `json:"permission"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at"`
	UsageCount  int64      `json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	Audit
}

// Expired reports whether the key has passed its expiry time.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// APIKeyInput is the caller-supplied state of a new API key.
type APIKeyInput struct {
	AppName     string     `json:"app_name" validate:"required,max=255"`
	Description string     `json:"description" validate:"max=1000"`
	Permission  Permission `json:"permission" validate:"permission"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// Normalize trims and NFC-normalizes the free-text fields.
func (in *APIKeyInput) Normalize() {
	in.AppName = NormalizeText(in.AppName)
	in.Description = NormalizeText(in.Description)
}

// Validate checks required fields.
func (in *APIKeyInput) Validate(now time.Time) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return apperr.Validation("expires_at must be in the future")
	}
	return nil
}

// CreatedAPIKey is returned once at creation and carries the plaintext key.
type CreatedAPIKey struct {
	*APIKey
	Key string `json:"key"`
}

// APIKeyFilter narrows API key listings.
type APIKeyFilter struct {
	Search   string
	IsActive *bool
}
