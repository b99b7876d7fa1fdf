// Package app builds the sitelog dependency graph from configuration.
// Every binary gets its store, identity directory, orchestrator and session
// resolver from here; nothing is held in package globals.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sadopc/sitelog/internal/auth"
	"github.com/sadopc/sitelog/internal/config"
	"github.com/sadopc/sitelog/internal/evidence"
	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/session"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/store/postgres"
)

type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Backend  store.Backend
	Auth     *auth.Manager
	Users    *identity.Store
	Service  *service.Service
	Sessions *session.Resolver

	closers []io.Closer
}

// NewLogger returns a JSON logger in production and a text logger otherwise.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// New opens the configured store and session cache and wires the services.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Backend = backend
	a.closers = append(a.closers, backend)

	cache, err := openCache(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := cache.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	a.Auth = auth.NewManager(cfg.JWTSecret, cfg.BcryptCost)
	a.Users = identity.New(backend, a.Auth)
	pipeline := evidence.New(evidence.Options{
		MaxWidth:  cfg.ImageMaxWidth,
		Quality:   cfg.ImageQuality,
		MaxBytes:  cfg.ImageMaxBytes,
		MaxPixels: cfg.ImageMaxPixels,
	})
	a.Service = service.New(backend, a.Users, pipeline, service.Options{Location: loc, Logger: log})
	a.Sessions = session.NewResolver(cache, a.Users, cfg.TokenTTL)

	log.Info("sitelog ready", "store", cfg.StoreDriver, "session_cache", cacheName(cfg), "timezone", loc.String())
	return a, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		path := cfg.DBPath
		if path == "" {
			p, err := store.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		s, err := store.New(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	}
}

func openCache(ctx context.Context, cfg *config.Config) (session.Cache, error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryCache(cfg.SessionTTL), nil
	}
	c, err := session.DialRedis(ctx, cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("open session cache: %w", err)
	}
	return c, nil
}

func cacheName(cfg *config.Config) string {
	if cfg.RedisURL == "" {
		return "memory"
	}
	return "redis"
}

// SeedAccounts creates the admin, checker and owner accounts when they do
// not exist yet. It does nothing without a seed password.
func (a *App) SeedAccounts(ctx context.Context) error {
	if a.Config.SeedPassword == "" {
		a.Log.Debug("account seeding skipped, no seed password")
		return nil
	}
	for _, role := range []store.Role{store.RoleAdmin, store.RoleChecker, store.RoleOwner} {
		email := fmt.Sprintf("%s@%s", role, a.Config.SeedDomain)
		created, err := a.Users.EnsureAccount(ctx, identity.RegisterInput{
			Name:     seedName(role),
			Email:    email,
			Password: a.Config.SeedPassword,
			Role:     role,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", role, err)
		}
		if created {
			a.Log.Info("seeded account", "email", email, "role", role)
		}
	}
	return nil
}

func seedName(r store.Role) string {
	switch r {
	case store.RoleAdmin:
		return "Admin User"
	case store.RoleChecker:
		return "Checker User"
	default:
		return "Owner User"
	}
}

// Close releases the store and the session cache.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
