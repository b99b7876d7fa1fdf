package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StoreDriver != StoreSQLite {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TokenTTL != 24*time.Hour || cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected ttls: %v %v", cfg.TokenTTL, cfg.SessionTTL)
	}
	if cfg.ImageMaxWidth != 800 || cfg.ImageQuality != 70 || cfg.ImageMaxPixels != 25_000_000 {
		t.Fatalf("unexpected image defaults: %d %d %d", cfg.ImageMaxWidth, cfg.ImageQuality, cfg.ImageMaxPixels)
	}
	if cfg.JWTSecret == "" {
		t.Fatal("development should get a secret")
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SITELOG_STORE", " Postgres ")
	t.Setenv("SITELOG_DATABASE_URL", "postgres://localhost/sitelog")
	t.Setenv("SITELOG_SESSION_TTL", "5m")
	t.Setenv("SITELOG_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreDriver != StorePostgres || cfg.SessionTTL != 5*time.Minute || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SITELOG_HTTP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SITELOG_HTTP_ADDR") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected :9999, got %s", cfg.HTTPAddr)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("SITELOG_BCRYPT_COST", "not-an-int")
	var cfg Config
	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{StoreDriver: StoreSQLite, Timezone: "UTC", ImageMaxWidth: 800, ImageQuality: 70, ImageMaxBytes: 1,
			JWTSecret: "s", TokenTTL: time.Hour, SessionTTL: time.Minute}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.StoreDriver = "mongo" }},
		{"postgres without url", func(c *Config) { c.StoreDriver = StorePostgres }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad quality", func(c *Config) { c.ImageQuality = 101 }},
		{"no jwt secret", func(c *Config) { c.JWTSecret = "" }},
		{"short cookie secret in production", func(c *Config) { c.Env = EnvProduction; c.CookieSecret = "short" }},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			if err := cfg.ValidateServer(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	cfg := base()
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
}

func TestLocation(t *testing.T) {
	cfg := Config{Timezone: "Asia/Kolkata"}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc.String() != "Asia/Kolkata" {
		t.Fatalf("got %s", loc)
	}
	cfg.Timezone = "Local"
	if loc, _ := cfg.Location(); loc != time.Local {
		t.Fatal("expected time.Local")
	}
}
