package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/store"
)

type dashboardModel struct {
	client *client
	timer  timerModel
	width  int
	height int

	projects []*store.Project
	summary  *service.Dashboard // admins only

	// Project picker state
	picking      bool
	pickerCursor int

	report *progressForm
}

func newDashboardModel(c *client, now func() time.Time) dashboardModel {
	return dashboardModel{
		client: c,
		timer:  newTimerModel(now),
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }
func (d dashboardModel) isPaused() bool  { return d.timer.paused() }
func (d dashboardModel) elapsed() time.Duration {
	return d.timer.currentElapsed()
}
func (d dashboardModel) formActive() bool { return d.report != nil }

type dashboardDataMsg struct {
	projects []*store.Project
	summary  *service.Dashboard
}

func (d dashboardModel) loadData() tea.Cmd {
	c := d.client
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		projects, err := c.projects(ctx)
		if err != nil {
			return errStatus("Load projects", err)
		}
		msg := dashboardDataMsg{projects: projects}
		if c.user.Is(store.RoleAdmin) {
			if msg.summary, err = c.svc.Dashboard(ctx); err != nil {
				return errStatus("Load dashboard", err)
			}
		}
		return msg
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if d.report != nil {
		return d.updateReport(msg)
	}

	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.projects = msg.projects
		d.summary = msg.summary
		return d, nil

	case tickMsg:
		d.timer.tick()
		return d, nil

	case tea.KeyMsg:
		d.timer.recordActivity()

		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.timer.running() {
				return d, nil
			}
			if !d.client.user.Is(store.RoleLeader) {
				return d, func() tea.Msg {
					return statusMsg{text: "Only site leaders report progress", isError: true}
				}
			}
			if len(d.projects) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No projects assigned to you yet", isError: true}
				}
			}
			if len(d.projects) == 1 {
				return d.startTimer(d.projects[0])
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopTimer()

		case key.Matches(msg, keys.Pause):
			d.timer.toggle()
			return d, nil
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.projects)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		p := d.projects[d.pickerCursor]
		d.picking = false
		return d.startTimer(p)
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTimer(p *store.Project) (dashboardModel, tea.Cmd) {
	d.timer.start(p.ID, p.Name)
	return d, func() tea.Msg { return statusMsg{text: "Work started on " + p.Name} }
}

// stopTimer ends the run and opens a progress report with the worked hours
// filled in.
func (d dashboardModel) stopTimer() (dashboardModel, tea.Cmd) {
	name := d.timer.projectName
	id, worked := d.timer.stop()
	if id == "" {
		return d, nil
	}
	d.report = newProgressForm(id, name, worked.Hours())
	return d, d.report.form.Init()
}

func (d dashboardModel) updateReport(msg tea.Msg) (dashboardModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		d.report = nil
		return d, func() tea.Msg { return statusMsg{text: "Progress report discarded"} }
	}

	form, cmd := d.report.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.report.form = f
	}

	if d.report.form.State == huh.StateCompleted {
		submit := d.report.submit(d.client)
		d.report = nil
		return d, submit
	}
	return d, cmd
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	if d.report != nil {
		return activePanelStyle.Width(contentWidth).Render(d.report.form.View())
	}

	panels := []string{d.renderTimerPanel(contentWidth)}
	if d.summary != nil {
		panels = append(panels, d.renderSummaryPanel(contentWidth))
	}
	if d.picking {
		panels = append(panels, d.renderProjectPicker(contentWidth))
	} else {
		panels = append(panels, d.renderProjectsPanel(contentWidth))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panels...)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	var timeDisplay string
	var indicator string

	if d.timer.running() {
		timeStr := formatDuration(d.timer.currentElapsed())

		if d.timer.paused() {
			timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
			if d.timer.isIdle {
				indicator = warningStyle.Render("⏸  IDLE")
			} else {
				indicator = warningStyle.Render("⏸  PAUSED")
			}
		} else {
			timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
			indicator = successStyle.Render("●  ON SITE")
		}

		content := lipgloss.JoinVertical(lipgloss.Center,
			timeDisplay,
			indicator,
			highlightStyle.Render(d.timer.projectName),
		)
		return activePanelStyle.Width(w).Render(content)
	}

	hint := "Press s to start work on a project"
	if !d.client.user.Is(store.RoleLeader) {
		hint = "Signed in as " + string(d.client.user.Role)
	}
	content := lipgloss.JoinVertical(lipgloss.Center,
		timerStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  NOT WORKING"),
		mutedStyle.Render(hint),
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	s := d.summary
	var frac float64
	if s.TotalWork > 0 {
		frac = min(s.CompletedWork/s.TotalWork, 1)
	}
	rows := []string{
		titleStyle.Render("Overview"),
		fmt.Sprintf("  Work       %s %5.1f%%", progressBar(frac, 24), frac*100),
		fmt.Sprintf("  Projects   %s completed  %s in progress  %s not started",
			successStyle.Render(fmt.Sprint(s.Projects.Completed)),
			highlightStyle.Render(fmt.Sprint(s.Projects.InProgress)),
			mutedStyle.Render(fmt.Sprint(s.Projects.NotStarted)),
		),
		fmt.Sprintf("  Payments   %s paid  %s pending",
			successStyle.Render(s.PaidAmount.StringFixed(2)),
			warningStyle.Render(fmt.Sprint(s.PendingPayments)),
		),
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderProjectsPanel(w int) string {
	title := titleStyle.Render("Projects")
	if len(d.projects) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No projects yet"),
		))
	}

	barWidth := max(10, min(30, w-50))
	rows := []string{title}
	for _, p := range d.projects {
		status := "●"
		if p.Completed() {
			status = successStyle.Render("✓")
		}
		rows = append(rows, fmt.Sprintf("  %s %-22s %s %5.1f%%  %s",
			status,
			truncate(p.Name, 22),
			progressBar(p.Progress(), barWidth),
			p.Progress()*100,
			mutedStyle.Render(fmt.Sprintf("%g/%g", p.CompletedWork, p.TotalWork)),
		))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderProjectPicker(w int) string {
	rows := []string{titleStyle.Render("Select Project")}
	for i, p := range d.projects {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+p.Name))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
