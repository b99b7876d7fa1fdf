package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sitelog/internal/export"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/session"
	"github.com/sadopc/sitelog/internal/store"
)

type Options struct {
	// ExportDir receives CSV and backup files. Defaults to the home directory.
	ExportDir string
	// Clock drives the work timer. Defaults to time.Now.
	Clock func() time.Time
}

// App is the root Bubble Tea model.
type App struct {
	client    *client
	exportDir string
	width     int
	height    int

	login *loginForm

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	dashboard dashboardModel
	projects  projectsModel
	reports   reportsModel
	settings  settingsModel

	help        help.Model
	status      string
	statusError bool
}

func NewApp(svc *service.Service, sessions *session.Resolver, opts Options) App {
	if opts.ExportDir == "" {
		opts.ExportDir, _ = os.UserHomeDir()
	}
	h := help.New()
	h.ShowAll = false

	c := &client{svc: svc, sessions: sessions}
	return App{
		client:     c,
		exportDir:  opts.ExportDir,
		login:      newLoginForm(),
		activeView: viewDashboard,
		dashboard:  newDashboardModel(c, opts.Clock),
		projects:   newProjectsModel(c),
		reports:    newReportsModel(c),
		settings:   newSettingsModel(c),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.login.form.Init(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.dashboard.setSize(a.width, contentHeight)
		a.projects.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case loggedInMsg:
		a.client.user = msg.user
		a.login = nil
		a.setStatus(statusMsg{text: fmt.Sprintf("Signed in as %s (%s)", msg.user.Name, msg.user.Role)})
		return a, a.dashboard.loadData()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, a.quit()
		}
		if a.login != nil {
			return a.updateLogin(msg)
		}

		// Export picker
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, a.quit()
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewDashboard
			return a, a.dashboard.loadData()
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewProjects
			return a, a.projects.refresh()
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewReports
			return a, a.reports.refresh()
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewSettings
			return a, a.settings.refresh()
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, a.refreshCurrentView()
		}

	case tickMsg:
		cmds = append(cmds, tickCmd())
		// The timer keeps running whichever view is showing.
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		return a, tea.Batch(cmds...)

	case statusMsg:
		a.setStatus(msg)
		return a, nil

	case progressSavedMsg:
		a.setStatus(statusMsg{text: fmt.Sprintf("Progress saved: %g work in %s", msg.update.CompletedWork, formatHours(msg.update.TimeTaken))})
		return a, tea.Batch(a.dashboard.loadData(), a.refreshCurrentView())

	case exportDoneMsg:
		a.setStatus(statusMsg{text: "Exported to " + msg.path})
		a.exportPicking = false
		return a, nil
	}

	if a.login != nil {
		return a.updateLogin(msg)
	}
	return a.updateActiveView(msg)
}

func (a *App) setStatus(msg statusMsg) {
	a.status = msg.text
	a.statusError = msg.isError
}

func (a App) updateLogin(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.login.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.login.form = f
	}
	if a.login.form.State == huh.StateCompleted {
		submit := a.login.login(a.client)
		// A fresh form is ready if the attempt fails.
		a.login = newLoginForm()
		return a, tea.Batch(submit, a.login.form.Init())
	}
	return a, cmd
}

// quit ends the cached session before leaving.
func (a App) quit() tea.Cmd {
	if !a.client.signedIn() {
		return tea.Quit
	}
	return tea.Sequence(a.endSession, tea.Quit)
}

func (a App) endSession() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.client.sessions.End(ctx, a.client.user.SessionID); err != nil {
		return errStatus("Sign out", err)
	}
	return nil
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewProjects:
		a.projects, cmd = a.projects.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.formActive() || a.dashboard.picking
	case viewProjects:
		return a.projects.formActive()
	case viewSettings:
		return a.settings.formActive()
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewDashboard:
		return a.dashboard.loadData()
	case viewProjects:
		return a.projects.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch {
	case a.login != nil:
		content = activePanelStyle.Width(min(a.width-4, 60)).Render(a.login.form.View())
	case a.activeView == viewDashboard:
		content = a.dashboard.view()
	case a.activeView == viewProjects:
		content = a.projects.view()
	case a.activeView == viewReports:
		content = a.reports.view()
	case a.activeView == viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("sitelog")
	if a.login != nil {
		return headerStyle.Render(title)
	}

	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	who := mutedStyle.Render(fmt.Sprintf(" %s · %s", a.client.user.Name, a.client.user.Role))
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(who)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, who, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := ""
	if a.login == nil {
		helpView = a.help.View(keys)
	}

	status := ""
	if a.status != "" {
		if a.statusError {
			status = errorStyle.Render(" " + a.status)
		} else {
			status = mutedStyle.Render(" " + a.status)
		}
	}

	timerInfo := ""
	if a.dashboard.isRunning() {
		elapsed := a.dashboard.elapsed()
		timerInfo = successStyle.Render(" ● " + formatDuration(elapsed))
		if a.dashboard.isPaused() {
			timerInfo = warningStyle.Render(" ⏸ " + formatDuration(elapsed))
		}
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"Progress CSV", "Payments CSV", "Backup JSON (admin)"}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) doExport(format int) tea.Cmd {
	c, dir := a.client, a.exportDir
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()

		dateStr := c.svc.Now().Format("2006-01-02")
		path, err := exportTo(ctx, c, dir, dateStr, format)
		if err != nil {
			return errStatus("Export failed", err)
		}
		return exportDoneMsg{path: path}
	}
}

func exportTo(ctx context.Context, c *client, dir, dateStr string, format int) (string, error) {
	if format == 2 {
		if _, err := c.verified(ctx, store.RoleAdmin); err != nil {
			return "", err
		}
		b, err := c.svc.Snapshot(ctx)
		if err != nil {
			return "", err
		}
		path := filepath.Join(dir, fmt.Sprintf("sitelog-backup-%s.json", dateStr))
		return path, export.ToJSON(b, path)
	}

	projects, err := c.projects(ctx)
	if err != nil {
		return "", err
	}
	idx := make(map[string]*store.Project, len(projects))
	for _, p := range projects {
		idx[p.ID] = p
	}

	if format == 1 {
		var payments []*store.PaymentRequest
		for _, p := range projects {
			prs, err := c.svc.PaymentsForProject(ctx, p.ID)
			if err != nil {
				return "", err
			}
			payments = append(payments, prs...)
		}
		path := filepath.Join(dir, fmt.Sprintf("sitelog-payments-%s.csv", dateStr))
		return path, export.PaymentsToCSV(payments, idx, path)
	}

	var updates []*store.ProgressUpdate
	for _, p := range projects {
		us, err := c.svc.ProgressForProject(ctx, p.ID)
		if err != nil {
			return "", err
		}
		updates = append(updates, us...)
	}
	path := filepath.Join(dir, fmt.Sprintf("sitelog-progress-%s.csv", dateStr))
	return path, export.ToCSV(updates, idx, path)
}
