// Package config loads sitelog settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	devSecret = "sitelog-development-secret-change-me"
)

type Config struct {
	Env      string     `env:"SITELOG_ENV" envDefault:"development"`
	HTTPAddr string     `env:"SITELOG_HTTP_ADDR" envDefault:":8080"`
	LogLevel slog.Level `env:"SITELOG_LOG_LEVEL" envDefault:"INFO"`

	StoreDriver string `env:"SITELOG_STORE" envDefault:"sqlite"`
	// DBPath is the SQLite file; empty means the per-user default.
	DBPath      string `env:"SITELOG_DB_PATH"`
	DatabaseURL string `env:"SITELOG_DATABASE_URL"`
	// RedisURL enables the shared session cache; empty keeps it in memory.
	RedisURL string `env:"SITELOG_REDIS_URL"`

	JWTSecret    string        `env:"SITELOG_JWT_SECRET"`
	CookieSecret string        `env:"SITELOG_COOKIE_SECRET"`
	TokenTTL     time.Duration `env:"SITELOG_TOKEN_TTL" envDefault:"24h"`
	SessionTTL   time.Duration `env:"SITELOG_SESSION_TTL" envDefault:"30m"`
	BcryptCost   int           `env:"SITELOG_BCRYPT_COST" envDefault:"10"`

	// Timezone is the site zone the write windows are evaluated in.
	Timezone string `env:"SITELOG_TIMEZONE" envDefault:"Local"`

	ImageMaxWidth int `env:"SITELOG_IMAGE_MAX_WIDTH" envDefault:"800"`
	ImageQuality  int `env:"SITELOG_IMAGE_QUALITY" envDefault:"70"`
	ImageMaxBytes int `env:"SITELOG_IMAGE_MAX_BYTES" envDefault:"5242880"`

	// ImageMaxPixels bounds width*height of an upload; zero uses the pipeline default.
	ImageMaxPixels int `env:"SITELOG_IMAGE_MAX_PIXELS" envDefault:"25000000"`

	RequestTimeout time.Duration `env:"SITELOG_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxBodyBytes   int64         `env:"SITELOG_MAX_BODY_BYTES" envDefault:"26214400"`

	OTelEndpoint string `env:"SITELOG_OTEL_ENDPOINT"`

	// SeedPassword, when set, creates the admin, checker and owner accounts
	// at start-up if they are missing.
	SeedPassword string `env:"SITELOG_SEED_PASSWORD"`
	SeedDomain   string `env:"SITELOG_SEED_DOMAIN" envDefault:"sitelog.local"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.Env != EnvProduction {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = devSecret
		}
		if cfg.CookieSecret == "" {
			cfg.CookieSecret = devSecret
		}
	}
	return &cfg, nil
}

func (c *Config) Production() bool { return c.Env == EnvProduction }

// Location resolves the site time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("SITELOG_DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q (want sqlite or postgres)", c.StoreDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ImageMaxWidth <= 0 || c.ImageQuality < 1 || c.ImageQuality > 100 || c.ImageMaxBytes <= 0 {
		return errors.New("image settings out of range")
	}
	return nil
}

// ValidateServer adds the checks for the HTTP server.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return errors.New("SITELOG_JWT_SECRET is required")
	}
	if c.Production() && len(c.CookieSecret) < 32 {
		return errors.New("SITELOG_COOKIE_SECRET must be at least 32 bytes in production")
	}
	if c.TokenTTL <= 0 || c.SessionTTL <= 0 {
		return errors.New("token and session TTLs must be positive")
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
