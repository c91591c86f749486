package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MacJediWizard/orgtree/internal/models"
)

const (
	// APIKeyPrefix is the prefix for all orgtree API keys.
	APIKeyPrefix = "ohk_"
	// KeyIDLength is the length of the hex key id segment.
	KeyIDLength = 32
	// SecretLength is the length of the hex secret segment (32 bytes).
	SecretLength = 64
	// DisplayPrefixLength is how many characters of the key id are kept for display.
	DisplayPrefixLength = 8
)

// GenerateAPIKey returns a new plaintext key and its id. The plaintext is
// shown to the caller once and never stored.
func GenerateAPIKey() (plaintext, id string, err error) {
	id = strings.ReplaceAll(uuid.NewString(), "-", "")

	secret := make([]byte, SecretLength/2)
	if _, err := rand.Read(secret); err != nil {
		return "", "", fmt.Errorf("generate api key secret: %w", err)
	}
	return APIKeyPrefix + id + "_" + hex.EncodeToString(secret), id, nil
}

// ParseAPIKey splits a presented key into its id and secret segments.
func ParseAPIKey(key string) (id, secret string, ok bool) {
	rest, found := strings.CutPrefix(key, APIKeyPrefix)
	if !found {
		return "", "", false
	}
	id, secret, found = strings.Cut(rest, "_")
	if !found || len(id) != KeyIDLength || len(secret) != SecretLength {
		return "", "", false
	}
	if !isHex(id) || !isHex(secret) {
		return "", "", false
	}
	return id, secret, true
}

// IsValidAPIKeyFormat checks if the API key has the correct format.
func IsValidAPIKeyFormat(key string) bool {
	_, _, ok := ParseAPIKey(key)
	return ok
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

// DisplayPrefix returns the non-secret part of a key shown in listings.
func DisplayPrefix(id string) string {
	if len(id) > DisplayPrefixLength {
		id = id[:DisplayPrefixLength]
	}
	return APIKeyPrefix + id
}

// HashSecret returns the bcrypt hash of a key secret.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("hash api key secret: %w", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether secret matches the stored bcrypt hash.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// NewAPIKey builds the record for in and returns it with the plaintext key.
func NewAPIKey(in *models.APIKeyInput, cost int) (*models.APIKey, string, error) {
	plaintext, id, err := GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}
	_, secret, _ := ParseAPIKey(plaintext)
	hash, err := HashSecret(secret, cost)
	if err != nil {
		return nil, "", err
	}

	var expires *time.Time
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		expires = &t
	}
	return &models.APIKey{
		ID:          id,
		KeyPrefix:   DisplayPrefix(id),
		KeyHash:     hash,
		AppName:     in.AppName,
		Description: in.Description,
		Permission:  in.Permission,
		IsActive:    true,
		ExpiresAt:   expires,
	}, plaintext, nil
}

// fingerprint is the cache key for a presented key. It is never persisted.
func fingerprint(key string) [sha256.Size]byte {
	return sha256.Sum256([]byte(key))
}

// ExtractBearerToken extracts the token from an Authorization header value.
// Returns empty string if the header is not a valid Bearer token.
func ExtractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
