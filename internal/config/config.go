package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingAccessSecret  = errors.New("JWT_SECRET is not set")
	ErrMissingRefreshSecret = errors.New("JWT_REFRESH_SECRET is not set")
	ErrSharedSecret         = errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int
	Environment     string
	LogLevel        string
	LogFormat       string
	APIPrefix       string
	ShutdownTimeout time.Duration

	DatabaseDriver string // sqlite or postgres
	DatabaseURL    string // file path for sqlite, DSN for postgres

	AccessSecret    string
	RefreshSecret   string
	TokenIssuer     string
	TokenAudience   string
	AccessTokenTTL  time.Duration // zero means tokens carry no exp claim
	RefreshTokenTTL time.Duration

	BcryptCost int

	HealthProbeSchedule string
}

// Load loads configuration from environment variables or sets defaults.
// The signing secrets have no default; their absence is a startup error.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 5005)
	if err != nil {
		return nil, err
	}
	cost, err := getEnvInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}
	accessTTL, err := getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	shutdown, err := getEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:          port,
		Environment:         getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", ""),
		APIPrefix:           getEnv("API_PREFIX", "/api/auth"),
		ShutdownTimeout:     shutdown,
		DatabaseDriver:      strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:         getEnv("DATABASE_URL", "./spacemate.db"),
		AccessSecret:        os.Getenv("JWT_SECRET"),
		RefreshSecret:       os.Getenv("JWT_REFRESH_SECRET"),
		TokenIssuer:         getEnv("JWT_ISSUER", "spacemate-app"),
		TokenAudience:       getEnv("JWT_AUDIENCE", "spacemate-users"),
		AccessTokenTTL:      accessTTL,
		RefreshTokenTTL:     refreshTTL,
		BcryptCost:          cost,
		HealthProbeSchedule: getEnv("HEALTH_PROBE_SCHEDULE", "@every 30s"),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the program relies on.
func (c *Config) Validate() error {
	if c.AccessSecret == "" {
		return ErrMissingAccessSecret
	}
	if c.RefreshSecret == "" {
		return ErrMissingRefreshSecret
	}
	if c.AccessSecret == c.RefreshSecret {
		return ErrSharedSecret
	}
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.AccessTokenTTL < 0 || c.RefreshTokenTTL < 0 {
		return errors.New("token TTLs must not be negative")
	}
	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with '/', got %q", c.APIPrefix)
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	if raw == "0" {
		return 0, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
