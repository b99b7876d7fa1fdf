package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/sitelog/internal/app"
	"github.com/sadopc/sitelog/internal/config"
	"github.com/sadopc/sitelog/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("error: %v", err)
	}
	if err := run(context.Background(), cfg); err != nil {
		config.Exitf("error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// The terminal belongs to the UI.
	log := app.NewLogger(cfg, io.Discard)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.SeedAccounts(ctx); err != nil {
		return err
	}

	m := tui.NewApp(a.Service, a.Sessions, tui.Options{})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
