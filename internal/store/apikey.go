package store

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/orgtree/internal/apperr"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/models"
)

const kindAPIKey = "api_key"

var apiKeys = &table{
	name:    "api_keys",
	kind:    kindAPIKey,
	key:     "api_key_id",
	columns: `api_key_id, key_prefix, key_hash, app_name, description, permission, is_active, expires_at, usage_count, last_used_at, created_by, created_at, updated_by, updated_at`,
	sorts: map[string]string{
		"name":         "app_name",
		"created_at":   "created_at",
		"last_used_at": "last_used_at",
		"usage_count":  "usage_count",
	},
}

// APIKeyStore persists API key records. Plaintext secrets never reach it.
type APIKeyStore struct {
	*base
}

func apiKeyFromRow(r db.Row) *models.APIKey {
	perm, err := models.ParsePermission(r.String("permission"))
	if err != nil {
		perm = models.PermissionNone
	}
	return &models.APIKey{
		ID:          r.String("api_key_id"),
		KeyPrefix:   r.String("key_prefix"),
		KeyHash:     r.String("key_hash"),
		AppName:     r.String("app_name"),
		Description: r.String("description"),
		Permission:  perm,
		IsActive:    r.Bool("is_active"),
		ExpiresAt:   r.NullTime("expires_at"),
		UsageCount:  r.Int64("usage_count"),
		LastUsedAt:  r.NullTime("last_used_at"),
		Audit:       auditFromRow(r),
	}
}

func (s *APIKeyStore) predicate(f models.APIKeyFilter) *predicate {
	p := newPredicate()
	p.active(f.IsActive)
	p.search(s.exec.Dialect(), f.Search, "app_name", "key_prefix")
	return p
}

// FindByID returns the key record or a NotFound error.
func (s *APIKeyStore) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	row, err := apiKeys.find(ctx, s.exec, id)
	if err != nil {
		return nil, err
	}
	return apiKeyFromRow(row), nil
}

// List returns one page of key records matching f.
func (s *APIKeyStore) List(ctx context.Context, f models.APIKeyFilter, req models.PageRequest) (*models.Page[*models.APIKey], error) {
	return page(ctx, s.base, apiKeys, s.predicate(f), req, apiKeyFromRow)
}

// Create inserts k stamped with actor. k.KeyHash must already be set.
func (s *APIKeyStore) Create(ctx context.Context, k *models.APIKey, actor string) (*models.APIKey, error) {
	if k.KeyHash == "" {
		return nil, fmt.Errorf("create api key: missing hash")
	}
	k.Stamp(actor, s.now())
	params := auditParams(db.Params{
		"api_key_id":  k.ID,
		"key_prefix":  k.KeyPrefix,
		"key_hash":    k.KeyHash,
		"app_name":    k.AppName,
		"description": k.Description,
		"permission":  k.Permission.String(),
		"is_active":   k.IsActive,
		"expires_at":  k.ExpiresAt,
	}, k.Audit)

	res, err := s.exec.Query(ctx, `
		INSERT INTO api_keys (api_key_id, key_prefix, key_hash, app_name, description, permission, is_active,
			expires_at, usage_count, created_by, created_at, updated_by, updated_at)
		VALUES (@api_key_id, @key_prefix, @key_hash, @app_name, @description, @permission, @is_active,
			@expires_at, 0, @created_by, @created_at, @updated_by, @updated_at)
		RETURNING `+apiKeys.columns, params)
	if err != nil {
		if e, ok := constraintOf(err); ok && e.Constraint == db.ConstraintAPIKeysPK {
			return nil, apperr.AlreadyExists(kindAPIKey, k.ID)
		}
		return nil, fmt.Errorf("create api key: %w", err)
	}
	return apiKeyFromRow(res.Rows[0]), nil
}

// SetActive enables or revokes the key.
func (s *APIKeyStore) SetActive(ctx context.Context, id string, active bool, actor string) (*models.APIKey, error) {
	row, err := apiKeys.setActive(ctx, s.exec, id, active, actor, s.now())
	if err != nil {
		return nil, fmt.Errorf("set api key status: %w", err)
	}
	return apiKeyFromRow(row), nil
}

// Delete removes the key record.
func (s *APIKeyStore) Delete(ctx context.Context, id string) error {
	return apiKeys.delete(ctx, s.exec, id)
}

// RecordUsage increments the usage counter and stamps the last-used time.
func (s *APIKeyStore) RecordUsage(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec.Exec(ctx, `
		UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = @at
		WHERE api_key_id = @id`,
		db.Params{"id": id, "at": at.UTC().Truncate(time.Microsecond)})
	if err != nil {
		return fmt.Errorf("record api key usage: %w", err)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(kindAPIKey, id)
	}
	return nil
}
