package auth

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MacJediWizard/orgtree/internal/models"
)

const (
	testKeyID  = "0123456789abcdef0123456789abcdef"
	testSecret = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
)

func TestIsValidAPIKeyFormat(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		expected bool
	}{
		{
			name:     "valid API key",
			apiKey:   "ohk_" + testKeyID + "_" + testSecret,
			expected: true,
		},
		{
			name:     "missing prefix",
			apiKey:   testKeyID + "_" + testSecret,
			expected: false,
		},
		{
			name:     "wrong prefix",
			apiKey:   "kld_" + testKeyID + "_" + testSecret,
			expected: false,
		},
		{
			name:     "missing separator",
			apiKey:   "ohk_" + testKeyID + testSecret,
			expected: false,
		},
		{
			name:     "short secret",
			apiKey:   "ohk_" + testKeyID + "_0123456789abcdef",
			expected: false,
		},
		{
			name:     "short key id",
			apiKey:   "ohk_0123_" + testSecret,
			expected: false,
		},
		{
			name:     "invalid hex characters",
			apiKey:   "ohk_" + testKeyID + "_" + strings.Repeat("g", SecretLength),
			expected: false,
		},
		{
			name:     "empty string",
			apiKey:   "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidAPIKeyFormat(tt.apiKey)
			if result != tt.expected {
				t.Errorf("IsValidAPIKeyFormat(%q) = %v, want %v", tt.apiKey, result, tt.expected)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, id, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}

	gotID, secret, ok := ParseAPIKey(key)
	if !ok {
		t.Fatalf("generated key %q does not parse", key)
	}
	if gotID != id {
		t.Errorf("ParseAPIKey() id = %q, want %q", gotID, id)
	}
	if len(secret) != SecretLength {
		t.Errorf("secret length = %d, want %d", len(secret), SecretLength)
	}

	key2, id2, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	if key == key2 || id == id2 {
		t.Error("GenerateAPIKey() returned the same key twice")
	}
}

func TestHashSecret(t *testing.T) {
	hash, err := HashSecret(testSecret, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	if hash == testSecret {
		t.Fatal("HashSecret() returned the plaintext")
	}
	if !VerifySecret(hash, testSecret) {
		t.Error("VerifySecret() rejected the matching secret")
	}
	if VerifySecret(hash, strings.Repeat("f", SecretLength)) {
		t.Error("VerifySecret() accepted a different secret")
	}

	// bcrypt salts every hash.
	hash2, err := HashSecret(testSecret, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashSecret() error = %v", err)
	}
	if hash == hash2 {
		t.Error("HashSecret() returned identical hashes for the same secret")
	}
}

func TestNewAPIKey(t *testing.T) {
	expires := time.Date(2030, 1, 1, 7, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	in := &models.APIKeyInput{
		AppName:    "payroll",
		Permission: models.PermissionRead,
		ExpiresAt:  &expires,
	}

	key, plaintext, err := NewAPIKey(in, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewAPIKey() error = %v", err)
	}

	id, secret, ok := ParseAPIKey(plaintext)
	if !ok {
		t.Fatalf("plaintext %q does not parse", plaintext)
	}
	if key.ID != id {
		t.Errorf("ID = %q, want %q", key.ID, id)
	}
	if key.KeyPrefix != "ohk_"+id[:DisplayPrefixLength] {
		t.Errorf("KeyPrefix = %q", key.KeyPrefix)
	}
	if strings.Contains(key.KeyHash, secret) {
		t.Error("KeyHash contains the secret")
	}
	if !VerifySecret(key.KeyHash, secret) {
		t.Error("KeyHash does not verify the secret")
	}
	if !key.IsActive {
		t.Error("new key should be active")
	}
	if key.ExpiresAt == nil || key.ExpiresAt.Location() != time.UTC || !key.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v in UTC", key.ExpiresAt, expires)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractBearerToken(tt.header); got != tt.want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
