package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:5174"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	Environment    string   `env:"ENVIRONMENT" envDefault:"production"`

	DatabaseURL     string `env:"DATABASE_URL"`
	DatabaseReadURL string `env:"DATABASE_READ_URL"` // Read replica URL for SELECT queries
	RedisURL        string `env:"REDIS_URL"`

	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"`
	StorageBucket      string `env:"STORAGE_BUCKET" envDefault:"audio-files"`

	GrantDuration  time.Duration `env:"GRANT_DURATION" envDefault:"3h"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// Registration attempts allowed per client IP within the window
	RegisterRateLimit  int64         `env:"REGISTER_RATE_LIMIT" envDefault:"20"`
	RegisterRateWindow time.Duration `env:"REGISTER_RATE_WINDOW" envDefault:"10m"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.AllowedOrigins = cleanList(cfg.AllowedOrigins)
	if cfg.DatabaseReadURL == "" {
		// Falls back to write DB if not set
		cfg.DatabaseReadURL = cfg.DatabaseURL
	}
	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")

	return cfg, nil
}

// Validate checks the values the server cannot start without
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.SupabaseJWTSecret == "" {
		errs = append(errs, errors.New("SUPABASE_JWT_SECRET is required"))
	}
	if c.GrantDuration <= 0 {
		errs = append(errs, errors.New("GRANT_DURATION must be positive"))
	}
	return errors.Join(errs...)
}

// UseSupabaseAuth reports whether staff identities live in Supabase GoTrue.
// Otherwise the local staff_users table is used.
func (c *Config) UseSupabaseAuth() bool {
	return c.SupabaseURL != "" && c.SupabaseAnonKey != ""
}

// UseSupabaseStorage reports whether uploads can be written to Supabase Storage
func (c *Config) UseSupabaseStorage() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// IsDevelopment reports whether the app runs locally
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// cleanList trims entries and drops empty ones
func cleanList(items []string) []string {
	result := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
