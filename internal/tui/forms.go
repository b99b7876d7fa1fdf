package tui

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"

	"github.com/sadopc/sitelog/internal/evidence"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

// Form values live behind pointers so they survive Bubble Tea's value copies.

func validNumber(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if v < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func parseNumber(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func newForm(groups ...*huh.Group) *huh.Form {
	return huh.NewForm(groups...).WithShowHelp(true).WithShowErrors(true)
}

// ============================================================
// Login
// ============================================================

type loginForm struct {
	email    *string
	password *string
	form     *huh.Form
}

func newLoginForm() *loginForm {
	email, password := "", ""
	f := &loginForm{email: &email, password: &password}
	f.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(f.email),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(f.password),
		).Title("Sign in"),
	)
	return f
}

func (f *loginForm) login(c *client) tea.Cmd {
	email, password := strings.TrimSpace(*f.email), *f.password
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		u, err := c.svc.Authenticate(ctx, email, password)
		if err != nil {
			return errStatus("Sign in failed", err)
		}
		cu, err := c.sessions.Begin(ctx, u)
		if err != nil {
			return errStatus("Sign in failed", err)
		}
		return loggedInMsg{user: cu}
	}
}

// ============================================================
// Progress report
// ============================================================

type progressForm struct {
	projectID string
	updateID  string // set when correcting an earlier report
	work      *string
	hours     *string
	form      *huh.Form
}

func newProgressForm(projectID, projectName string, hours float64) *progressForm {
	work, h := "", strconv.FormatFloat(hours, 'f', 2, 64)
	f := &progressForm{projectID: projectID, work: &work, hours: &h}
	f.form = newForm(
		huh.NewGroup(
			huh.NewInput().Title("Work completed").Description("units of work done in this session").
				Value(f.work).Validate(validNumber),
			huh.NewInput().Title("Time taken (hours)").Value(f.hours).Validate(validNumber),
		).Title("Report progress: " + projectName),
	)
	return f
}

func newEditProgressForm(u *store.ProgressUpdate, projectName string) *progressForm {
	f := newProgressForm(u.ProjectID, projectName, u.TimeTaken)
	*f.work = strconv.FormatFloat(u.CompletedWork, 'f', -1, 64)
	f.updateID = u.ID
	return f
}

func (f *progressForm) submit(c *client) tea.Cmd {
	work, hours := parseNumber(*f.work), parseNumber(*f.hours)
	projectID, updateID := f.projectID, f.updateID
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		u, err := c.verified(ctx, store.RoleLeader)
		if err != nil {
			return errStatus("Progress not saved", err)
		}
		var saved *store.ProgressUpdate
		if updateID != "" {
			saved, err = c.svc.EditProgress(ctx, service.EditProgressInput{
				LeaderID:      u.ID,
				UpdateID:      updateID,
				CompletedWork: work,
				TimeTaken:     &hours,
			})
		} else {
			saved, err = c.svc.SubmitProgress(ctx, service.SubmitProgressInput{
				LeaderID:      u.ID,
				ProjectID:     projectID,
				CompletedWork: work,
				TimeTaken:     hours,
			})
		}
		if err != nil {
			return errStatus("Progress not saved", err)
		}
		return progressSavedMsg{update: saved}
	}
}

// ============================================================
// Project
// ============================================================

type projectForm struct {
	name     *string
	leaderID *string
	workers  *string
	total    *string
	form     *huh.Form
}

// newProjectForm offers a leader picker when options is non-empty; a leader
// creating their own project passes nil.
func newProjectForm(options []huh.Option[string], self string) *projectForm {
	name, leader, workers, total := "", self, "", ""
	f := &projectForm{name: &name, leaderID: &leader, workers: &workers, total: &total}

	fields := []huh.Field{
		huh.NewInput().Title("Project name").Value(f.name).Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("name is required")
			}
			return nil
		}),
	}
	if len(options) > 0 {
		fields = append(fields, huh.NewSelect[string]().Title("Site leader").Options(options...).Value(f.leaderID))
	}
	fields = append(fields,
		huh.NewInput().Title("Workers").Value(f.workers).Validate(func(s string) error {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil || n <= 0 {
				return fmt.Errorf("enter a positive whole number")
			}
			return nil
		}),
		huh.NewInput().Title("Total work").Description("planned units of work").Value(f.total).Validate(validNumber),
	)
	f.form = newForm(huh.NewGroup(fields...).Title("New project"))
	return f
}

func (f *projectForm) submit(c *client) tea.Cmd {
	workers, _ := strconv.Atoi(strings.TrimSpace(*f.workers))
	in := service.CreateProjectInput{
		Name:      *f.name,
		LeaderID:  *f.leaderID,
		Workers:   workers,
		TotalWork: parseNumber(*f.total),
	}
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		u, err := c.verified(ctx, store.RoleLeader, store.RoleAdmin)
		if err != nil {
			return errStatus("Project not created", err)
		}
		if u.Is(store.RoleLeader) {
			in.LeaderID = u.ID
		}
		p, err := c.svc.CreateProject(ctx, in)
		if err != nil {
			return errStatus("Project not created", err)
		}
		return statusMsg{text: "Created project " + p.Name}
	}
}

// ============================================================
// Payment request
// ============================================================

type paymentForm struct {
	projectID string
	updateID  string
	purpose   *string
	amount    *string
	images    *string
	remarks   *string
	form      *huh.Form
}

func newPaymentForm(projectID, updateID, projectName string) *paymentForm {
	purpose, amount, images, remarks := string(store.PurposeFood), "", "", ""
	f := &paymentForm{
		projectID: projectID,
		updateID:  updateID,
		purpose:   &purpose,
		amount:    &amount,
		images:    &images,
		remarks:   &remarks,
	}

	purposes := []store.PurposeType{
		store.PurposeFood, store.PurposeFuel, store.PurposeLabour,
		store.PurposeVehicle, store.PurposeWater, store.PurposeOther,
	}
	opts := make([]huh.Option[string], len(purposes))
	for i, p := range purposes {
		opts[i] = huh.NewOption(string(p), string(p))
	}

	f.form = newForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Purpose").Options(opts...).Value(f.purpose),
			huh.NewInput().Title("Amount").Value(f.amount).Validate(func(s string) error {
				d, err := decimal.NewFromString(strings.TrimSpace(s))
				if err != nil {
					return fmt.Errorf("enter an amount")
				}
				if d.IsNegative() {
					return fmt.Errorf("must not be negative")
				}
				return nil
			}),
			huh.NewInput().Title("Receipt photos").Description("comma-separated file paths").Value(f.images),
			huh.NewInput().Title("Remarks").Value(f.remarks),
		).Title("Request payment: " + projectName),
	)
	return f
}

func (f *paymentForm) submit(c *client) tea.Cmd {
	amount, _ := decimal.NewFromString(strings.TrimSpace(*f.amount))
	purpose := store.PurposeType(*f.purpose)
	paths, remarks := *f.images, strings.TrimSpace(*f.remarks)
	projectID, updateID := f.projectID, f.updateID
	return func() tea.Msg {
		uploads, err := loadUploads(paths)
		if err != nil {
			return statusMsg{text: "Payment not requested: " + err.Error(), isError: true}
		}
		ctx, cancel := c.ctx()
		defer cancel()
		u, err := c.verified(ctx, store.RoleLeader)
		if err != nil {
			return errStatus("Payment not requested", err)
		}
		id, err := c.svc.SubmitPaymentRequest(ctx, service.PaymentInput{
			LeaderID:         u.ID,
			ProjectID:        projectID,
			ProgressUpdateID: updateID,
			Purposes: []service.PurposeInput{{
				Type:    purpose,
				Amount:  amount,
				Images:  uploads,
				Remarks: remarks,
			}},
		})
		if err != nil {
			return errStatus("Payment not requested", err)
		}
		return statusMsg{text: "Payment requested (" + id + ")"}
	}
}

// loadUploads reads receipt photos from disk. The content type is sniffed
// from the file; the pipeline rejects anything that is not an image.
func loadUploads(paths string) ([]evidence.Upload, error) {
	var out []evidence.Upload
	for _, p := range strings.Split(paths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		up := evidence.Upload{ContentType: http.DetectContentType(data), Data: data}
		if fi, err := os.Stat(p); err == nil {
			up.CapturedAt = fi.ModTime().UTC()
		}
		out = append(out, up)
	}
	return out, nil
}

// ============================================================
// Time windows
// ============================================================

type windowFields struct {
	enabled *bool
	start   *string
	end     *string
	days    *string
}

func newWindowFields(w *window.Window) windowFields {
	def := window.Default()
	enabled := w != nil
	if w == nil {
		w = &def
	}
	start, end := w.Start.String(), w.End.String()
	days := formatDays(w.DayNumbers())
	return windowFields{enabled: &enabled, start: &start, end: &end, days: &days}
}

func (wf windowFields) group(title string) *huh.Group {
	return huh.NewGroup(
		huh.NewConfirm().Title("Restrict "+strings.ToLower(title)+"?").Value(wf.enabled),
		huh.NewInput().Title("Opens (HH:MM)").Value(wf.start).Validate(validClock),
		huh.NewInput().Title("Closes (HH:MM)").Value(wf.end).Validate(validClock),
		huh.NewInput().Title("Days").Description("0=Sun … 6=Sat, comma-separated").Value(wf.days),
	).Title(title)
}

func (wf windowFields) window() (*window.Window, error) {
	if !*wf.enabled {
		return nil, nil
	}
	days, err := parseDays(*wf.days)
	if err != nil {
		return nil, err
	}
	w, err := window.Parse(*wf.start, *wf.end, days)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func validClock(s string) error {
	_, err := window.ParseClock(s)
	return err
}

func parseDays(s string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

func formatDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

type windowsForm struct {
	projectID string
	update    windowFields
	payment   windowFields
	form      *huh.Form
}

func newWindowsForm(p *store.Project) *windowsForm {
	f := &windowsForm{
		projectID: p.ID,
		update:    newWindowFields(p.UpdateTimeWindow),
		payment:   newWindowFields(p.PaymentTimeWindow),
	}
	f.form = newForm(
		f.update.group("Progress updates"),
		f.payment.group("Payment requests"),
	)
	return f
}

func (f *windowsForm) submit(c *client) tea.Cmd {
	update, uerr := f.update.window()
	payment, perr := f.payment.window()
	projectID := f.projectID
	return func() tea.Msg {
		if uerr != nil {
			return statusMsg{text: "Update window: " + uerr.Error(), isError: true}
		}
		if perr != nil {
			return statusMsg{text: "Payment window: " + perr.Error(), isError: true}
		}
		ctx, cancel := c.ctx()
		defer cancel()
		if _, err := c.verified(ctx, store.RoleAdmin); err != nil {
			return errStatus("Windows not saved", err)
		}
		p, err := c.svc.SetTimeWindows(ctx, projectID, service.WindowsInput{Update: update, Payment: payment})
		if err != nil {
			return errStatus("Windows not saved", err)
		}
		return statusMsg{text: "Saved windows for " + p.Name}
	}
}
