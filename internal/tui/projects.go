package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/store"
)

type detailPane int

const (
	paneUpdates detailPane = iota
	panePayments
)

// activeForm is any of the huh-backed forms the projects view can open.
type activeForm interface {
	huhForm() *huh.Form
	setForm(*huh.Form)
	submit(c *client) tea.Cmd
}

func (f *progressForm) huhForm() *huh.Form  { return f.form }
func (f *progressForm) setForm(h *huh.Form) { f.form = h }
func (f *projectForm) huhForm() *huh.Form   { return f.form }
func (f *projectForm) setForm(h *huh.Form)  { f.form = h }
func (f *paymentForm) huhForm() *huh.Form   { return f.form }
func (f *paymentForm) setForm(h *huh.Form)  { f.form = h }
func (f *windowsForm) huhForm() *huh.Form   { return f.form }
func (f *windowsForm) setForm(h *huh.Form)  { f.form = h }

type projectsModel struct {
	client *client
	width  int
	height int

	projects []*store.Project
	leaders  []identity.PublicUser
	cursor   int

	viewingDetail bool
	pane          detailPane
	updates       []*store.ProgressUpdate
	payments      []*store.PaymentRequest
	updateCursor  int
	paymentCursor int

	form      activeForm
	formTitle string
}

func newProjectsModel(c *client) projectsModel {
	return projectsModel{client: c}
}

func (p *projectsModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

func (p projectsModel) formActive() bool { return p.form != nil }

type projectsDataMsg struct {
	projects []*store.Project
	leaders  []identity.PublicUser
}

type detailDataMsg struct {
	projectID string
	updates   []*store.ProgressUpdate
	payments  []*store.PaymentRequest
}

func (p projectsModel) refresh() tea.Cmd {
	c := p.client
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		projects, err := c.projects(ctx)
		if err != nil {
			return errStatus("Load projects", err)
		}
		msg := projectsDataMsg{projects: projects}
		if c.user.Is(store.RoleAdmin) {
			if msg.leaders, err = c.svc.Users(ctx, store.RoleLeader); err != nil {
				return errStatus("Load leaders", err)
			}
		}
		return msg
	}
}

func (p projectsModel) refreshDetail() tea.Cmd {
	proj := p.selected()
	if proj == nil {
		return nil
	}
	c, id := p.client, proj.ID
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		updates, err := c.svc.ProgressForProject(ctx, id)
		if err != nil {
			return errStatus("Load progress", err)
		}
		payments, err := c.svc.PaymentsForProject(ctx, id)
		if err != nil {
			return errStatus("Load payments", err)
		}
		return detailDataMsg{projectID: id, updates: updates, payments: payments}
	}
}

func (p projectsModel) selected() *store.Project {
	if p.cursor < 0 || p.cursor >= len(p.projects) {
		return nil
	}
	return p.projects[p.cursor]
}

func (p projectsModel) update(msg tea.Msg) (projectsModel, tea.Cmd) {
	if p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case projectsDataMsg:
		p.projects = msg.projects
		p.leaders = msg.leaders
		if p.cursor >= len(p.projects) {
			p.cursor = max(0, len(p.projects)-1)
		}
		if p.viewingDetail {
			return p, p.refreshDetail()
		}
		return p, nil

	case detailDataMsg:
		if sel := p.selected(); sel == nil || sel.ID != msg.projectID {
			return p, nil
		}
		p.updates = msg.updates
		p.payments = msg.payments
		p.updateCursor = min(p.updateCursor, max(0, len(p.updates)-1))
		p.paymentCursor = min(p.paymentCursor, max(0, len(p.payments)-1))
		return p, nil

	case tea.KeyMsg:
		if p.viewingDetail {
			return p.updateDetail(msg)
		}
		return p.updateProjectList(msg)
	}
	return p, nil
}

func (p projectsModel) updateProjectList(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.projects)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(p.projects) > 0 {
			p.viewingDetail = true
			p.pane = paneUpdates
			p.updateCursor, p.paymentCursor = 0, 0
			p.updates, p.payments = nil, nil
			return p, p.refreshDetail()
		}
	case key.Matches(msg, keys.New):
		return p.showNewProjectForm()
	case key.Matches(msg, keys.Progress):
		if proj := p.selected(); proj != nil {
			return p.openForm(newProgressForm(proj.ID, proj.Name, 0), "Report progress")
		}
	}
	return p, nil
}

func (p projectsModel) updateDetail(msg tea.KeyMsg) (projectsModel, tea.Cmd) {
	proj := p.selected()
	if proj == nil {
		p.viewingDetail = false
		return p, nil
	}
	switch {
	case key.Matches(msg, keys.Back):
		p.viewingDetail = false
		return p, nil
	case key.Matches(msg, keys.Left), key.Matches(msg, keys.Right):
		if p.pane == paneUpdates {
			p.pane = panePayments
		} else {
			p.pane = paneUpdates
		}
	case key.Matches(msg, keys.Up):
		if p.pane == paneUpdates && p.updateCursor > 0 {
			p.updateCursor--
		} else if p.pane == panePayments && p.paymentCursor > 0 {
			p.paymentCursor--
		}
	case key.Matches(msg, keys.Down):
		if p.pane == paneUpdates && p.updateCursor < len(p.updates)-1 {
			p.updateCursor++
		} else if p.pane == panePayments && p.paymentCursor < len(p.payments)-1 {
			p.paymentCursor++
		}
	case key.Matches(msg, keys.Progress):
		return p.openForm(newProgressForm(proj.ID, proj.Name, 0), "Report progress")
	case key.Matches(msg, keys.Enter):
		if p.pane == paneUpdates && len(p.updates) > 0 {
			return p.openForm(newEditProgressForm(p.updates[p.updateCursor], proj.Name), "Correct progress")
		}
	case key.Matches(msg, keys.Payment):
		if len(p.updates) == 0 {
			return p, func() tea.Msg {
				return statusMsg{text: "Report progress before requesting a payment", isError: true}
			}
		}
		u := p.updates[p.updateCursor]
		return p.openForm(newPaymentForm(proj.ID, u.ID, proj.Name), "Request payment")
	case key.Matches(msg, keys.Approve):
		return p, p.setPaymentStatus(store.PaymentApproved)
	case key.Matches(msg, keys.Reject):
		return p, p.setPaymentStatus(store.PaymentRejected)
	case key.Matches(msg, keys.Paid):
		return p, p.setPaymentStatus(store.PaymentPaid)
	}
	return p, nil
}

func (p projectsModel) setPaymentStatus(status store.PaymentStatus) tea.Cmd {
	if p.pane != panePayments || len(p.payments) == 0 {
		return nil
	}
	c, id := p.client, p.payments[p.paymentCursor].ID
	return tea.Sequence(func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		if _, err := c.verified(ctx, store.RoleChecker, store.RoleOwner, store.RoleAdmin); err != nil {
			return errStatus("Status not changed", err)
		}
		pr, err := c.svc.SetPaymentStatus(ctx, id, status)
		if err != nil {
			return errStatus("Status not changed", err)
		}
		return statusMsg{text: fmt.Sprintf("Payment %s is now %s", truncate(pr.ID, 8), pr.Status)}
	}, p.refreshDetail())
}

func (p projectsModel) showNewProjectForm() (projectsModel, tea.Cmd) {
	u := p.client.user
	switch {
	case u.Is(store.RoleLeader):
		return p.openForm(newProjectForm(nil, u.ID), "New project")
	case u.Is(store.RoleAdmin):
		if len(p.leaders) == 0 {
			return p, func() tea.Msg {
				return statusMsg{text: "Register a site leader first", isError: true}
			}
		}
		opts := make([]huh.Option[string], len(p.leaders))
		for i, l := range p.leaders {
			opts[i] = huh.NewOption(fmt.Sprintf("%s <%s>", l.Name, l.Email), l.ID)
		}
		return p.openForm(newProjectForm(opts, p.leaders[0].ID), "New project")
	}
	return p, func() tea.Msg {
		return statusMsg{text: "Only leaders and admins create projects", isError: true}
	}
}

func (p projectsModel) openForm(f activeForm, title string) (projectsModel, tea.Cmd) {
	p.form = f
	p.formTitle = title
	return p, f.huhForm().Init()
}

func (p projectsModel) updateForm(msg tea.Msg) (projectsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		p.form = nil
		return p, nil
	}

	form, cmd := p.form.huhForm().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form.setForm(f)
	}

	if p.form.huhForm().State == huh.StateCompleted {
		submit := p.form.submit(p.client)
		p.form = nil
		next := p.refresh()
		if p.viewingDetail {
			next = p.refreshDetail()
		}
		return p, tea.Sequence(submit, next)
	}
	return p, cmd
}

func (p projectsModel) view() string {
	w := p.width - 4
	if p.form != nil {
		content := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(p.formTitle), "", p.form.huhForm().View())
		return panelStyle.Width(w).Render(content)
	}
	if p.viewingDetail && p.selected() != nil {
		return p.renderDetail(w)
	}
	return p.renderProjectList(w)
}

func (p projectsModel) renderProjectList(w int) string {
	title := titleStyle.Render("Projects")

	if len(p.projects) == 0 {
		hint := "No projects yet."
		if p.client.user.Is(store.RoleLeader, store.RoleAdmin) {
			hint += " Press n to create one."
		}
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title, "", mutedStyle.Render(hint)))
	}

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-24s %8s %12s %8s  %s", "Name", "Workers", "Work", "Done", "Status")))

	for i, proj := range p.projects {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		status := string(proj.Status)
		if proj.Completed() {
			status = successStyle.Render("completed")
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-24s %8d %12s %7.1f%%",
			cursor,
			truncate(proj.Name, 24),
			proj.Workers,
			fmt.Sprintf("%g/%g", proj.CompletedWork, proj.TotalWork),
			proj.Progress()*100,
		))+"  "+status)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  u: report progress  enter: details"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p projectsModel) renderDetail(w int) string {
	proj := p.selected()
	title := titleStyle.Render(proj.Name)
	bar := fmt.Sprintf("%s %5.1f%%", progressBar(proj.Progress(), 30), proj.Progress()*100)

	rows := []string{title, bar}
	if proj.UpdateTimeWindow != nil {
		rows = append(rows, mutedStyle.Render("  updates: "+proj.UpdateTimeWindow.String()))
	}
	if proj.PaymentTimeWindow != nil {
		rows = append(rows, mutedStyle.Render("  payments: "+proj.PaymentTimeWindow.String()))
	}
	rows = append(rows, "", p.renderUpdates(), "", p.renderPayments(), "")
	rows = append(rows, mutedStyle.Render("  ←/→: switch  u: report  enter: correct  p: request payment  a/r/m: approve/reject/paid  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p projectsModel) paneTitle(pane detailPane, name string) string {
	if p.pane == pane {
		return activeTabStyle.Render(name)
	}
	return inactiveTabStyle.Render(name)
}

func (p projectsModel) renderUpdates() string {
	rows := []string{p.paneTitle(paneUpdates, "Progress")}
	if len(p.updates) == 0 {
		return strings.Join(append(rows, mutedStyle.Render("  No progress reported")), "\n")
	}
	for i, u := range p.updates {
		cursor := "  "
		style := normalItemStyle
		if p.pane == paneUpdates && i == p.updateCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s  %8g work  %s",
			cursor,
			u.Date.In(p.client.svc.Now().Location()).Format("Jan 02 15:04"),
			u.CompletedWork,
			formatHours(u.TimeTaken),
		)))
	}
	return strings.Join(rows, "\n")
}

func (p projectsModel) renderPayments() string {
	rows := []string{p.paneTitle(panePayments, "Payments")}
	if len(p.payments) == 0 {
		return strings.Join(append(rows, mutedStyle.Render("  No payment requests")), "\n")
	}
	for i, pr := range p.payments {
		cursor := "  "
		style := normalItemStyle
		if p.pane == panePayments && i == p.paymentCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		var purposes []string
		for _, pp := range pr.Purposes {
			purposes = append(purposes, string(pp.Type))
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s  %10s  %-20s",
			cursor,
			pr.Date.In(p.client.svc.Now().Location()).Format("Jan 02"),
			pr.TotalAmount.StringFixed(2),
			truncate(strings.Join(purposes, ","), 20),
		))+" "+paymentStatus(pr.Status))
	}
	return strings.Join(rows, "\n")
}
