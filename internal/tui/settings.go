package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

// settingsModel shows each project's write windows. Admins can change them
// and recount a project's completed work from its updates.
type settingsModel struct {
	client *client
	width  int
	height int

	projects []*store.Project
	cursor   int

	form *windowsForm
}

func newSettingsModel(c *client) settingsModel {
	return settingsModel{client: c}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s settingsModel) formActive() bool { return s.form != nil }

type settingsDataMsg struct {
	projects []*store.Project
}

func (s settingsModel) refresh() tea.Cmd {
	c := s.client
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		projects, err := c.projects(ctx)
		if err != nil {
			return errStatus("Load projects", err)
		}
		return settingsDataMsg{projects: projects}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.projects = msg.projects
		if s.cursor >= len(s.projects) {
			s.cursor = max(0, len(s.projects)-1)
		}
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if s.cursor > 0 {
				s.cursor--
			}
		case key.Matches(msg, keys.Down):
			if s.cursor < len(s.projects)-1 {
				s.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if len(s.projects) == 0 {
				return s, nil
			}
			if !s.client.user.Is(store.RoleAdmin) {
				return s, func() tea.Msg {
					return statusMsg{text: "Only admins change time windows", isError: true}
				}
			}
			s.form = newWindowsForm(s.projects[s.cursor])
			return s, s.form.form.Init()
		case key.Matches(msg, keys.Recount):
			if len(s.projects) == 0 {
				return s, nil
			}
			return s, tea.Sequence(s.recount(s.projects[s.cursor].ID), s.refresh())
		}
	}
	return s, nil
}

func (s settingsModel) recount(projectID string) tea.Cmd {
	c := s.client
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		if _, err := c.verified(ctx, store.RoleAdmin); err != nil {
			return errStatus("Recount failed", err)
		}
		p, err := c.svc.RecomputeProject(ctx, projectID)
		if err != nil {
			return errStatus("Recount failed", err)
		}
		return statusMsg{text: fmt.Sprintf("%s: %g of %g done", p.Name, p.CompletedWork, p.TotalWork)}
	}
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		s.form = nil
		return s, nil
	}

	form, cmd := s.form.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form.form = f
	}

	if s.form.form.State == huh.StateCompleted {
		submit := s.form.submit(s.client)
		s.form = nil
		return s, tea.Sequence(submit, s.refresh())
	}
	return s, cmd
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Time Windows")

	if s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.form.View()),
		)
	}

	if len(s.projects) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render("No projects yet")))
	}

	zone := s.client.svc.Now().Location().String()
	rows := []string{title, mutedStyle.Render("  site time zone: " + zone), ""}
	for i, p := range s.projects {
		cursor := "  "
		style := normalItemStyle
		if i == s.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+p.Name))
		label := lipgloss.NewStyle().Width(12)
		rows = append(rows, "    "+label.Render("updates")+" "+describeWindow(p.UpdateTimeWindow))
		rows = append(rows, "    "+label.Render("payments")+" "+describeWindow(p.PaymentTimeWindow))
	}

	hint := "  enter: edit windows  c: recount progress"
	if !s.client.user.Is(store.RoleAdmin) {
		hint = "  read only"
	}
	rows = append(rows, "", mutedStyle.Render(hint))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func describeWindow(w *window.Window) string {
	if w == nil {
		return mutedStyle.Render("always open")
	}
	return highlightStyle.Render(w.String())
}
