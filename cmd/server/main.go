package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sadopc/sitelog/internal/api"
	"github.com/sadopc/sitelog/internal/app"
	"github.com/sadopc/sitelog/internal/config"
	"github.com/sadopc/sitelog/internal/telemetry"
)

const serviceName = "sitelog-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("error: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		config.Exitf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Run(ctx, serviceName, cfg.OTelEndpoint, func(ctx context.Context) error {
		return run(ctx, cfg)
	}); err != nil {
		config.Exitf("error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := app.NewLogger(cfg, nil)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.SeedAccounts(ctx); err != nil {
		return err
	}

	handler := api.New(api.Options{
		Service:        a.Service,
		Sessions:       a.Sessions,
		Auth:           a.Auth,
		Logger:         log,
		CookieSecret:   cfg.CookieSecret,
		SecureCookies:  cfg.Production(),
		TokenTTL:       cfg.TokenTTL,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	return nil
}
