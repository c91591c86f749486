// Package config provides configuration management for the orgtree server.
//
// Settings are resolved in three layers: built-in defaults, an optional YAML
// file named by ORGTREE_CONFIG, and environment variables (optionally loaded
// from a .env file). Later layers win.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MacJediWizard/orgtree/internal/db"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ConfigFileEnv names the environment variable holding the YAML file path.
const ConfigFileEnv = "ORGTREE_CONFIG"

// ServerConfig holds server-level configuration.
type ServerConfig struct {
	Environment Environment `yaml:"env"`
	ListenAddr  string      `yaml:"listen_addr"`
	LogLevel    string      `yaml:"log_level"`

	DatabaseURL      string        `yaml:"database_url"`
	SQLitePath       string        `yaml:"sqlite_path"`
	DBMaxConns       int           `yaml:"db_max_conns"`
	DBMinConns       int           `yaml:"db_min_conns"`
	DBAcquireTimeout time.Duration `yaml:"db_acquire_timeout"`

	PageSizeDefault   int `yaml:"page_size_default"`
	PageSizeMax       int `yaml:"page_size_max"`
	ReadRetryAttempts int `yaml:"read_retry_attempts"`

	SessionSecret        string `yaml:"session_secret"`
	SessionMaxAge        int    `yaml:"session_max_age"` // seconds
	SecureCookies        bool   `yaml:"secure_cookies"`
	OperatorUsername     string `yaml:"operator_username"`
	OperatorPasswordHash string `yaml:"operator_password_hash"`
	OperatorPassword     string `yaml:"operator_password"`

	APIKeyHeader   string        `yaml:"api_key_header"`
	APIKeyCacheTTL time.Duration `yaml:"api_key_cache_ttl"`
	UsageQueueSize int           `yaml:"usage_queue_size"`
	BcryptCost     int           `yaml:"bcrypt_cost"`

	CORSOrigins       []string      `yaml:"cors_origins"`
	RateLimitRequests int64         `yaml:"rate_limit_requests"`
	RateLimitPeriod   time.Duration `yaml:"rate_limit_period"`
	RedisURL          string        `yaml:"redis_url"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SessionSecretGenerated is set when no secret was configured and a
	// random one was generated for this process.
	SessionSecretGenerated bool `yaml:"-"`
}

// DefaultServerConfig returns the built-in defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Environment:       EnvDevelopment,
		ListenAddr:        ":8080",
		LogLevel:          "info",
		SQLitePath:        "data/orgtree.db",
		DBMaxConns:        25,
		DBMinConns:        5,
		DBAcquireTimeout:  5 * time.Second,
		PageSizeDefault:   20,
		PageSizeMax:       100,
		ReadRetryAttempts: 3,
		SessionMaxAge:     86400,
		OperatorUsername:  "admin",
		APIKeyHeader:      "X-API-Key",
		APIKeyCacheTTL:    5 * time.Minute,
		UsageQueueSize:    1024,
		RateLimitRequests: 100,
		RateLimitPeriod:   time.Minute,
		ShutdownTimeout:   30 * time.Second,
	}
}

// LoadServerConfig resolves the configuration and validates it.
func LoadServerConfig() (ServerConfig, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := DefaultServerConfig()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()

	if cfg.SessionSecret == "" && cfg.Environment != EnvProduction {
		secret, err := randomSecret()
		if err != nil {
			return cfg, err
		}
		cfg.SessionSecret = secret
		cfg.SessionSecretGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ServerConfig) applyEnv() {
	if env := Environment(strings.ToLower(os.Getenv("ENV"))); env != "" {
		c.Environment = env
	}
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		c.Environment = EnvDevelopment
	}

	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LISTEN_ADDR") == "" {
		c.ListenAddr = ":" + port
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.DBMaxConns = getEnvInt("DB_MAX_CONNS", c.DBMaxConns)
	c.DBMinConns = getEnvInt("DB_MIN_CONNS", c.DBMinConns)
	c.DBAcquireTimeout = getEnvDuration("DB_ACQUIRE_TIMEOUT", c.DBAcquireTimeout)

	c.PageSizeDefault = getEnvInt("PAGE_SIZE_DEFAULT", c.PageSizeDefault)
	c.PageSizeMax = getEnvInt("PAGE_SIZE_MAX", c.PageSizeMax)
	c.ReadRetryAttempts = getEnvInt("READ_RETRY_ATTEMPTS", c.ReadRetryAttempts)

	c.SessionSecret = getEnv("SESSION_SECRET", c.SessionSecret)
	c.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", c.SessionMaxAge)
	if c.SessionMaxAge < 0 {
		c.SessionMaxAge = 86400
	}
	c.SecureCookies = getEnvBool("SECURE_COOKIES", c.SecureCookies || c.IsProduction())
	c.OperatorUsername = getEnv("OPERATOR_USERNAME", c.OperatorUsername)
	c.OperatorPasswordHash = getEnv("OPERATOR_PASSWORD_HASH", c.OperatorPasswordHash)
	c.OperatorPassword = getEnv("OPERATOR_PASSWORD", c.OperatorPassword)

	c.APIKeyHeader = getEnv("API_KEY_HEADER", c.APIKeyHeader)
	c.APIKeyCacheTTL = getEnvDuration("API_KEY_CACHE_TTL", c.APIKeyCacheTTL)
	c.UsageQueueSize = getEnvInt("USAGE_QUEUE_SIZE", c.UsageQueueSize)
	c.BcryptCost = getEnvInt("BCRYPT_COST", c.BcryptCost)

	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.RateLimitRequests = int64(getEnvInt("RATE_LIMIT_REQUESTS", int(c.RateLimitRequests)))
	c.RateLimitPeriod = getEnvDuration("RATE_LIMIT_PERIOD", c.RateLimitPeriod)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
}

// Validate reports every invalid setting.
func (c ServerConfig) Validate() error {
	var errs []error
	if c.PageSizeMax < 1 {
		errs = append(errs, errors.New("PAGE_SIZE_MAX must be at least 1"))
	}
	if c.PageSizeDefault < 1 || c.PageSizeDefault > c.PageSizeMax {
		errs = append(errs, fmt.Errorf("PAGE_SIZE_DEFAULT must be between 1 and %d", c.PageSizeMax))
	}
	if c.DBMaxConns < 1 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be at least 1"))
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS"))
	}
	if c.DBAcquireTimeout <= 0 {
		errs = append(errs, errors.New("DB_ACQUIRE_TIMEOUT must be positive"))
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		errs = append(errs, errors.New("one of DATABASE_URL or SQLITE_PATH is required"))
	}
	if c.APIKeyHeader == "" {
		errs = append(errs, errors.New("API_KEY_HEADER must not be empty"))
	}
	if c.APIKeyCacheTTL < 0 {
		errs = append(errs, errors.New("API_KEY_CACHE_TTL must not be negative"))
	}
	if c.RateLimitRequests < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must not be negative"))
	}
	if c.RateLimitRequests > 0 && c.RateLimitPeriod <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PERIOD must be positive"))
	}
	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.OperatorUsername == "" {
		errs = append(errs, errors.New("OPERATOR_USERNAME must not be empty"))
	}
	if c.IsProduction() {
		if c.OperatorPasswordHash == "" {
			errs = append(errs, errors.New("OPERATOR_PASSWORD_HASH is required in production"))
		}
		if c.OperatorPassword != "" {
			errs = append(errs, errors.New("OPERATOR_PASSWORD is not allowed in production; use OPERATOR_PASSWORD_HASH"))
		}
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs in production.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Database returns the storage configuration.
func (c ServerConfig) Database() db.Config {
	cfg := db.DefaultConfig(c.DatabaseURL)
	cfg.SQLitePath = c.SQLitePath
	cfg.MaxConns = int32(c.DBMaxConns)
	cfg.MinConns = int32(c.DBMinConns)
	cfg.AcquireTimeout = c.DBAcquireTimeout
	return cfg
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultVal
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

// getEnvList reads a comma separated list.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
