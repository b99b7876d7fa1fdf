package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sadopc/sitelog/internal/apperr"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/session"
	"github.com/sadopc/sitelog/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewProjects
	viewReports
	viewSettings
)

var viewNames = []string{"Dashboard", "Projects", "Reports", "Windows"}

const callTimeout = 10 * time.Second

// client is the console's handle on the service, shared by every view.
// It is held by pointer so the signed-in user survives model copies.
type client struct {
	svc      *service.Service
	sessions *session.Resolver
	user     session.CurrentUser
}

func (c *client) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), callTimeout)
}

func (c *client) signedIn() bool { return c.user.SessionID != "" }

// verified re-reads the signed-in account before a write. It runs inside
// commands, so it returns the fresh user instead of storing it.
func (c *client) verified(ctx context.Context, roles ...store.Role) (session.CurrentUser, error) {
	u, err := c.sessions.Verify(ctx, session.Credential{
		SessionID: c.user.SessionID,
		UserID:    c.user.ID,
		Email:     c.user.Email,
	})
	if err != nil {
		return session.CurrentUser{}, err
	}
	if len(roles) > 0 && !u.Is(roles...) {
		return session.CurrentUser{}, apperr.New(apperr.CodeForbidden, "your role cannot do that")
	}
	return u, nil
}

// projects lists what the signed-in user may see: leaders get their own.
func (c *client) projects(ctx context.Context) ([]*store.Project, error) {
	leaderID := ""
	if c.user.Is(store.RoleLeader) {
		leaderID = c.user.ID
	}
	return c.svc.ListProjects(ctx, leaderID)
}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type loggedInMsg struct {
	user session.CurrentUser
}

type progressSavedMsg struct {
	update *store.ProgressUpdate
}

type exportDoneMsg struct {
	path string
}

func errStatus(prefix string, err error) statusMsg {
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return statusMsg{text: prefix + ": " + msg, isError: true}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatHours renders fractional hours as "1.5h".
func formatHours(h float64) string {
	return fmt.Sprintf("%.1fh", h)
}

// progressBar renders a fixed-width bar for a fraction in [0, 1].
func progressBar(frac float64, width int) string {
	if width < 1 {
		width = 1
	}
	filled := int(frac*float64(width) + 0.5)
	filled = max(0, min(filled, width))
	return successStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", width-filled))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
