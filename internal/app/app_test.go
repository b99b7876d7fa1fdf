package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/sadopc/sitelog/internal/config"
	"github.com/sadopc/sitelog/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:           config.EnvDevelopment,
		StoreDriver:   config.StoreSQLite,
		DBPath:        filepath.Join(t.TempDir(), "sitelog.db"),
		JWTSecret:     "test-secret",
		SessionTTL:    time.Minute,
		TokenTTL:      time.Hour,
		BcryptCost:    4,
		Timezone:      "UTC",
		ImageMaxWidth: 800,
		ImageQuality:  70,
		ImageMaxBytes: 1 << 20,
		SeedDomain:    "site.test",
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNewSQLite(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if a.Service == nil || a.Sessions == nil || a.Users == nil {
		t.Fatal("services not wired")
	}
	if _, ok := a.Backend.(*store.Store); !ok {
		t.Fatalf("expected sqlite backend, got %T", a.Backend)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "couch"
	if _, err := New(context.Background(), cfg, slog.Default()); err == nil {
		t.Fatal("expected error for unknown store")
	}
}

func TestNewWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	a := newTestApp(t, cfg)
	if len(a.closers) != 2 {
		t.Fatalf("expected store and cache closers, got %d", len(a.closers))
	}
}

func TestSeedAccounts(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedPassword = "seed-pass"
	a := newTestApp(t, cfg)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := a.SeedAccounts(ctx); err != nil {
			t.Fatalf("seed run %d: %v", i+1, err)
		}
	}
	users, err := a.Users.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 seeded accounts, got %d", len(users))
	}
	if _, err := a.Users.Authenticate(ctx, "admin@site.test", "seed-pass"); err != nil {
		t.Fatalf("admin login: %v", err)
	}
}

func TestSeedAccountsWithoutPassword(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	if err := a.SeedAccounts(context.Background()); err != nil {
		t.Fatal(err)
	}
	users, _ := a.Users.List(context.Background(), "")
	if len(users) != 0 {
		t.Fatalf("expected no accounts, got %d", len(users))
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Env: config.EnvProduction}
	NewLogger(cfg, &buf).Info("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	cfg.Env = config.EnvDevelopment
	NewLogger(cfg, &buf).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}
