package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate clears the variables LoadServerConfig reads so the host environment
// cannot leak into a test.
func isolate(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "LISTEN_ADDR", "PORT", "DATABASE_URL", "SQLITE_PATH", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"PAGE_SIZE_DEFAULT", "PAGE_SIZE_MAX", "SESSION_SECRET", "OPERATOR_PASSWORD_HASH",
		"OPERATOR_PASSWORD", "CORS_ORIGINS", "RATE_LIMIT_PERIOD", "API_KEY_CACHE_TTL",
		"SECURE_COOKIES", ConfigFileEnv,
	} {
		t.Setenv(key, "")
	}
	// godotenv.Load reads .env from the working directory.
	t.Chdir(t.TempDir())
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q, got %q", EnvDevelopment, cfg.Environment)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.ListenAddr)
	}
	if cfg.PageSizeDefault != 20 || cfg.PageSizeMax != 100 {
		t.Errorf("unexpected page sizes %d/%d", cfg.PageSizeDefault, cfg.PageSizeMax)
	}
	if cfg.APIKeyHeader != "X-API-Key" {
		t.Errorf("expected X-API-Key, got %s", cfg.APIKeyHeader)
	}
	if !cfg.SessionSecretGenerated || len(cfg.SessionSecret) < 32 {
		t.Error("expected a generated session secret in development")
	}
	if cfg.SecureCookies {
		t.Error("expected insecure cookies in development")
	}
}

func TestLoadServerConfig_InvalidEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("ENV", "invalid")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Environment != EnvDevelopment {
		t.Errorf("expected %q for invalid ENV, got %q", EnvDevelopment, cfg.Environment)
	}
}

func TestLoadServerConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://orgtree@localhost/orgtree")
	t.Setenv("PAGE_SIZE_DEFAULT", "10")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_PERIOD", "30")
	t.Setenv("API_KEY_CACHE_TTL", "90s")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.ListenAddr)
	}
	if cfg.Database().Backend() != "postgres" {
		t.Errorf("expected postgres backend, got %s", cfg.Database().Backend())
	}
	if cfg.PageSizeDefault != 10 {
		t.Errorf("expected page size 10, got %d", cfg.PageSizeDefault)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.RateLimitPeriod != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.RateLimitPeriod)
	}
	if cfg.APIKeyCacheTTL != 90*time.Second {
		t.Errorf("expected 90s, got %s", cfg.APIKeyCacheTTL)
	}
}

func TestLoadServerConfig_FileOverlay(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "orgtree.yaml")
	data := "listen_addr: \":7070\"\npage_size_max: 50\nrate_limit_period: 2m\ncors_origins:\n  - https://file.example\n"
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("LISTEN_ADDR", ":6060")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":6060" {
		t.Errorf("expected environment to win, got %s", cfg.ListenAddr)
	}
	if cfg.PageSizeMax != 50 {
		t.Errorf("expected page size max 50 from file, got %d", cfg.PageSizeMax)
	}
	if cfg.RateLimitPeriod != 2*time.Minute {
		t.Errorf("expected 2m from file, got %s", cfg.RateLimitPeriod)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Errorf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.PageSizeDefault != 20 {
		t.Errorf("expected default page size to survive overlay, got %d", cfg.PageSizeDefault)
	}
}

func TestLoadServerConfig_MissingFile(t *testing.T) {
	isolate(t)
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := LoadServerConfig(); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestLoadServerConfig_ProductionRequirements(t *testing.T) {
	isolate(t)
	t.Setenv("ENV", "production")
	t.Setenv("OPERATOR_PASSWORD", "plaintext")

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected production validation to fail")
	}
	for _, want := range []string{"SESSION_SECRET", "OPERATOR_PASSWORD_HASH", "OPERATOR_PASSWORD is not allowed"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}

	t.Setenv("OPERATOR_PASSWORD", "")
	t.Setenv("OPERATOR_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuuJ0pJ9b5Hq2m7nGf6zL7q3YhN6oQ8e1K")
	t.Setenv("SESSION_SECRET", strings.Repeat("s", 32))
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.SecureCookies {
		t.Error("expected secure cookies in production")
	}
}

func TestValidate_PageSizes(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.SessionSecret = strings.Repeat("s", 32)
	cfg.PageSizeDefault = 200
	if err := cfg.Validate(); err == nil {
		t.Error("expected default page size above max to be rejected")
	}

	cfg.PageSizeDefault = 20
	cfg.DBMinConns = 50
	if err := cfg.Validate(); err == nil {
		t.Error("expected min conns above max conns to be rejected")
	}
}

func TestSaveOmitsSecrets(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.SessionSecret = strings.Repeat("s", 32)
	cfg.OperatorPassword = "secret"

	path := filepath.Join(t.TempDir(), "nested", "orgtree.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), strings.Repeat("s", 32)) {
		t.Error("expected session secret to be omitted")
	}

	loaded := DefaultServerConfig()
	if err := LoadFile(path, &loaded); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.SessionSecret != "" || loaded.OperatorPassword != "" {
		t.Error("expected secrets to be empty after reload")
	}
	if loaded.ListenAddr != cfg.ListenAddr {
		t.Errorf("expected listen addr %s, got %s", cfg.ListenAddr, loaded.ListenAddr)
	}
}
