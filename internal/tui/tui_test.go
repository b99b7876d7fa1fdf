package tui

import (
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/sadopc/sitelog/internal/auth"
	"github.com/sadopc/sitelog/internal/evidence"
	"github.com/sadopc/sitelog/internal/identity"
	"github.com/sadopc/sitelog/internal/service"
	"github.com/sadopc/sitelog/internal/session"
	"github.com/sadopc/sitelog/internal/store"
	"github.com/sadopc/sitelog/internal/window"
)

// siteNow is Tuesday 2024-06-04 10:00 UTC.
var siteNow = time.Date(2024, 6, 4, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *service.Service
	sessions *session.Resolver
	cache    *session.MemoryCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	users := identity.New(s, auth.NewManager("test", bcrypt.MinCost))
	svc := service.New(s, users, evidence.New(evidence.Options{}), service.Options{
		Location: time.UTC,
		Clock:    func() time.Time { return siteNow },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	cache := session.NewMemoryCache(time.Hour)
	return &testEnv{
		svc:      svc,
		sessions: session.NewResolver(cache, users, time.Hour),
		cache:    cache,
	}
}

func (e *testEnv) register(t *testing.T, email string, role store.Role) identity.PublicUser {
	t.Helper()
	u, err := e.svc.Register(context.Background(), identity.RegisterInput{
		Name: "User " + email, Email: email, Password: "password1", Role: role,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return u
}

// signIn runs the login form's command and returns a client for the user.
func (e *testEnv) signIn(t *testing.T, email string) *client {
	t.Helper()
	c := &client{svc: e.svc, sessions: e.sessions}
	f := newLoginForm()
	*f.email = email
	*f.password = "password1"
	msg, ok := f.login(c)().(loggedInMsg)
	if !ok {
		t.Fatalf("login for %s did not succeed", email)
	}
	c.user = msg.user
	return c
}

func (e *testEnv) project(t *testing.T, leaderID string) *store.Project {
	t.Helper()
	p, err := e.svc.CreateProject(context.Background(), service.CreateProjectInput{
		LeaderID: leaderID, Name: "Canal Lining", Workers: 6, TotalWork: 1000,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (e *testEnv) progress(t *testing.T, c *client, projectID string, work float64) *store.ProgressUpdate {
	t.Helper()
	f := newProgressForm(projectID, "p", 2)
	*f.work = strconv.FormatFloat(work, 'f', -1, 64)
	msg, ok := f.submit(c)().(progressSavedMsg)
	if !ok {
		t.Fatal("progress was not saved")
	}
	return msg.update
}

// fakeClock is a settable time source for the work timer.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func statusOf(t *testing.T, msg tea.Msg) statusMsg {
	t.Helper()
	st, ok := msg.(statusMsg)
	if !ok {
		t.Fatalf("expected statusMsg, got %T", msg)
	}
	return st
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============================================================
// Timer model
// ============================================================

func TestTimerStartStop(t *testing.T) {
	clk := &fakeClock{t: siteNow}
	tm := newTimerModel(clk.now)
	if tm.running() {
		t.Fatal("timer should start stopped")
	}

	tm.start("p1", "Canal")
	if !tm.running() || tm.paused() {
		t.Fatal("timer should be running after start")
	}
	if tm.projectID != "p1" || tm.projectName != "Canal" {
		t.Fatal("project info not set")
	}

	clk.advance(90 * time.Minute)
	id, worked := tm.stop()
	if id != "p1" {
		t.Fatalf("stop returned project %q", id)
	}
	if worked != 90*time.Minute {
		t.Fatalf("worked = %v, want 1h30m", worked)
	}
	if tm.running() {
		t.Fatal("timer should be stopped")
	}
}

func TestTimerStopWhenStopped(t *testing.T) {
	tm := newTimerModel(nil)
	id, worked := tm.stop()
	if id != "" || worked != 0 {
		t.Fatal("stop on stopped timer should return nothing")
	}
}

func TestTimerPausesAreNotCounted(t *testing.T) {
	clk := &fakeClock{t: siteNow}
	tm := newTimerModel(clk.now)
	tm.start("p1", "Canal")

	clk.advance(time.Hour)
	tm.toggle()
	if !tm.paused() {
		t.Fatal("toggle should pause")
	}
	clk.advance(30 * time.Minute)
	if got := tm.currentElapsed(); got != time.Hour {
		t.Fatalf("elapsed while paused = %v, want 1h", got)
	}
	tm.toggle()
	clk.advance(time.Hour)

	if _, worked := tm.stop(); worked != 2*time.Hour {
		t.Fatalf("worked = %v, want 2h", worked)
	}
}

func TestTimerToggleWhenStopped(t *testing.T) {
	tm := newTimerModel(nil)
	tm.toggle()
	if tm.running() {
		t.Fatal("toggle should not start the timer")
	}
}

func TestTimerTick(t *testing.T) {
	clk := &fakeClock{t: siteNow}
	tm := newTimerModel(clk.now)

	tm.tick()
	if tm.elapsed != 0 {
		t.Fatal("tick on stopped timer should not change elapsed")
	}

	tm.start("p1", "Canal")
	clk.advance(time.Minute)
	tm.tick()
	if tm.elapsed != time.Minute {
		t.Fatalf("elapsed = %v after tick", tm.elapsed)
	}
}

func TestTimerIdleDetection(t *testing.T) {
	clk := &fakeClock{t: siteNow}
	tm := newTimerModel(clk.now)
	tm.idleTimeout = time.Minute
	tm.start("p1", "Canal")

	clk.advance(2 * time.Minute)
	tm.tick()
	if !tm.isIdle || !tm.paused() {
		t.Fatal("timer should auto-pause when idle")
	}

	clk.advance(10 * time.Minute)
	tm.recordActivity()
	if tm.isIdle || tm.paused() {
		t.Fatal("activity should resume an idle timer")
	}
	if got := tm.currentElapsed(); got != 2*time.Minute {
		t.Fatalf("idle time counted: elapsed = %v", got)
	}
}

// ============================================================
// Helpers
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{time.Second, "00:00:01"},
		{time.Hour + time.Minute + time.Second, "01:01:01"},
		{25 * time.Hour, "25:00:00"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		h    float64
		want string
	}{
		{0, "0.0h"},
		{1.5, "1.5h"},
		{7.96, "8.0h"},
	}
	for _, tt := range tests {
		if got := formatHours(tt.h); got != tt.want {
			t.Errorf("formatHours(%v) = %q, want %q", tt.h, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Canal Lining", 5); got != "Cana…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("Road", 8); got != "Road" {
		t.Fatalf("short strings should be kept, got %q", got)
	}
}

func TestProgressBarWidth(t *testing.T) {
	for _, frac := range []float64{0, 0.5, 1, 2} {
		bar := progressBar(frac, 10)
		if n := strings.Count(bar, "█") + strings.Count(bar, "░"); n != 10 {
			t.Fatalf("progressBar(%v) has %d cells", frac, n)
		}
	}
}

func TestParseDays(t *testing.T) {
	days, err := parseDays(" 1, 2,3,,5 ")
	if err != nil {
		t.Fatal(err)
	}
	if formatDays(days) != "1,2,3,5" {
		t.Fatalf("days = %v", days)
	}
	if _, err := parseDays("mon"); err == nil {
		t.Fatal("expected error for non-numeric day")
	}
}

func TestValidNumber(t *testing.T) {
	if validNumber("12.5") != nil {
		t.Fatal("12.5 should be valid")
	}
	for _, bad := range []string{"", "abc", "-1"} {
		if validNumber(bad) == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}

// ============================================================
// Sign in and session checks
// ============================================================

func TestLoginFormSignsIn(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "leader@site.in", store.RoleLeader)

	c := e.signIn(t, "leader@site.in")
	if !c.signedIn() || c.user.Role != store.RoleLeader {
		t.Fatalf("unexpected user: %+v", c.user)
	}
}

func TestLoginFormWrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "leader@site.in", store.RoleLeader)

	c := &client{svc: e.svc, sessions: e.sessions}
	f := newLoginForm()
	*f.email = "leader@site.in"
	*f.password = "nope"
	st := statusOf(t, f.login(c)())
	if !st.isError || !strings.HasPrefix(st.text, "Sign in failed") {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestVerifiedChecksRole(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "checker@site.in", store.RoleChecker)
	c := e.signIn(t, "checker@site.in")

	if _, err := c.verified(context.Background(), store.RoleChecker); err != nil {
		t.Fatalf("checker should pass: %v", err)
	}
	if _, err := c.verified(context.Background(), store.RoleAdmin); err == nil {
		t.Fatal("checker must not pass an admin check")
	}
}

func TestVerifiedRejectsDeletedAccount(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")

	if err := e.svc.DeleteUser(context.Background(), "leader@site.in"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.verified(context.Background()); err == nil {
		t.Fatal("deleted account should fail verification")
	}
}

// ============================================================
// Forms
// ============================================================

func TestProgressFormSubmit(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	p := e.project(t, leader.ID)

	u := e.progress(t, c, p.ID, 200)
	if u.CompletedWork != 200 || u.TimeTaken != 2 {
		t.Fatalf("unexpected update: %+v", u)
	}

	f := newEditProgressForm(u, p.Name)
	if *f.work != "200" || f.updateID != u.ID {
		t.Fatalf("edit form not prefilled: work=%q id=%q", *f.work, f.updateID)
	}
	*f.work = "150"
	if _, ok := f.submit(c)().(progressSavedMsg); !ok {
		t.Fatal("edit was not saved")
	}

	got, err := e.svc.Project(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedWork != 150 {
		t.Fatalf("completed work = %v, want 150", got.CompletedWork)
	}
}

func TestProgressFormRequiresLeader(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	e.register(t, "admin@site.in", store.RoleAdmin)
	p := e.project(t, leader.ID)

	c := e.signIn(t, "admin@site.in")
	f := newProgressForm(p.ID, p.Name, 1)
	*f.work = "10"
	if st := statusOf(t, f.submit(c)()); !st.isError {
		t.Fatalf("admin progress should be refused: %+v", st)
	}
}

func TestProgressFormOutsideWindow(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	p := e.project(t, leader.ID)

	closed, err := window.Parse("06:00", "08:00", []int{2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.SetTimeWindows(context.Background(), p.ID, service.WindowsInput{Update: &closed}); err != nil {
		t.Fatal(err)
	}

	f := newProgressForm(p.ID, p.Name, 1)
	*f.work = "10"
	st := statusOf(t, f.submit(c)())
	if !st.isError || !strings.Contains(st.text, "Progress not saved") {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestProjectFormLeaderOwnsProject(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	other := e.register(t, "other@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")

	f := newProjectForm(nil, other.ID)
	*f.name = "Village Road"
	*f.workers = "4"
	*f.total = "400"
	if st := statusOf(t, f.submit(c)()); st.isError {
		t.Fatalf("create failed: %s", st.text)
	}

	mine, err := e.svc.ListProjects(context.Background(), leader.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].Name != "Village Road" {
		t.Fatalf("project should belong to the signed-in leader: %+v", mine)
	}
}

func TestPaymentFormSubmit(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	p := e.project(t, leader.ID)
	u := e.progress(t, c, p.ID, 100)

	f := newPaymentForm(p.ID, u.ID, p.Name)
	*f.purpose = string(store.PurposeFuel)
	*f.amount = "300.50"
	*f.images = writePNG(t, 1200, 600)
	*f.remarks = "diesel"
	if st := statusOf(t, f.submit(c)()); st.isError {
		t.Fatalf("payment failed: %s", st.text)
	}

	payments, err := e.svc.PaymentsForProject(context.Background(), p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(payments))
	}
	pr := payments[0]
	if pr.TotalAmount.String() != "300.5" || pr.Status != store.PaymentPending {
		t.Fatalf("unexpected payment: total=%s status=%s", pr.TotalAmount, pr.Status)
	}
	img := pr.Purposes[0].Images[0]
	if img.ContentType != "image/jpeg" || img.Width != 800 {
		t.Fatalf("receipt not converted: %s %dpx", img.ContentType, img.Width)
	}
}

func TestPaymentFormMissingFile(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	p := e.project(t, leader.ID)
	u := e.progress(t, c, p.ID, 100)

	f := newPaymentForm(p.ID, u.ID, p.Name)
	*f.amount = "10"
	*f.images = filepath.Join(t.TempDir(), "missing.png")
	if st := statusOf(t, f.submit(c)()); !st.isError {
		t.Fatal("missing receipt should fail")
	}
	payments, _ := e.svc.PaymentsForProject(context.Background(), p.ID)
	if len(payments) != 0 {
		t.Fatal("nothing should be persisted")
	}
}

func TestLoadUploads(t *testing.T) {
	path := writePNG(t, 10, 10)
	ups, err := loadUploads(" " + path + " , ")
	if err != nil {
		t.Fatal(err)
	}
	if len(ups) != 1 || ups[0].ContentType != "image/png" || ups[0].CapturedAt.IsZero() {
		t.Fatalf("unexpected uploads: %+v", ups)
	}

	ups, err = loadUploads("")
	if err != nil || len(ups) != 0 {
		t.Fatalf("blank paths should give no uploads, got %d (%v)", len(ups), err)
	}
}

func TestWindowsFormSubmit(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	e.register(t, "admin@site.in", store.RoleAdmin)
	c := e.signIn(t, "admin@site.in")
	p := e.project(t, leader.ID)

	f := newWindowsForm(p)
	if *f.update.enabled || *f.update.start != "09:00" || *f.update.days != "1,2,3,4,5" {
		t.Fatal("form should offer the default window, disabled")
	}
	*f.update.enabled = true
	*f.update.start = "07:00"
	if st := statusOf(t, f.submit(c)()); st.isError {
		t.Fatalf("save failed: %s", st.text)
	}

	got, _ := e.svc.Project(context.Background(), p.ID)
	if got.UpdateTimeWindow == nil || got.UpdateTimeWindow.Start.String() != "07:00" {
		t.Fatalf("update window not saved: %+v", got.UpdateTimeWindow)
	}
	if got.PaymentTimeWindow != nil {
		t.Fatal("payment window should stay open")
	}
}

func TestWindowsFormRejectsBadDays(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	e.register(t, "admin@site.in", store.RoleAdmin)
	c := e.signIn(t, "admin@site.in")
	p := e.project(t, leader.ID)

	f := newWindowsForm(p)
	*f.payment.enabled = true
	*f.payment.days = "9"
	if st := statusOf(t, f.submit(c)()); !st.isError {
		t.Fatal("day 9 should be rejected")
	}
}

func TestWindowsFormRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	p := e.project(t, leader.ID)

	if st := statusOf(t, newWindowsForm(p).submit(c)()); !st.isError {
		t.Fatal("leader must not change windows")
	}
}

// ============================================================
// Dashboard model
// ============================================================

func TestDashboardStopOpensReport(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	p := e.project(t, leader.ID)

	clk := &fakeClock{t: siteNow}
	d := newDashboardModel(c, clk.now)
	d, _ = d.update(d.loadData()())
	if len(d.projects) != 1 {
		t.Fatalf("expected 1 project, got %d", len(d.projects))
	}

	d, _ = d.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if !d.isRunning() {
		t.Fatal("s should start the timer on the only project")
	}

	clk.advance(150 * time.Minute)
	d, _ = d.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if d.isRunning() || !d.formActive() {
		t.Fatal("stopping should open the progress report")
	}
	if d.report.projectID != p.ID || *d.report.hours != "2.50" {
		t.Fatalf("report not prefilled: project=%s hours=%s", d.report.projectID, *d.report.hours)
	}

	d, _ = d.update(tea.KeyMsg{Type: tea.KeyEsc})
	if d.formActive() {
		t.Fatal("esc should discard the report")
	}
}

func TestDashboardStartRequiresLeader(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "owner@site.in", store.RoleOwner)
	c := e.signIn(t, "owner@site.in")

	d := newDashboardModel(c, nil)
	d, cmd := d.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if d.isRunning() {
		t.Fatal("owner should not start the work timer")
	}
	if st := statusOf(t, cmd()); !st.isError {
		t.Fatal("expected an error status")
	}
}

func TestDashboardAdminSummary(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	e.register(t, "admin@site.in", store.RoleAdmin)
	e.project(t, leader.ID)
	c := e.signIn(t, "admin@site.in")

	d := newDashboardModel(c, nil)
	d.setSize(120, 40)
	d, _ = d.update(d.loadData()())
	if d.summary == nil || d.summary.Projects.NotStarted != 1 {
		t.Fatalf("unexpected summary: %+v", d.summary)
	}
	if !strings.Contains(d.view(), "Overview") {
		t.Fatal("admin dashboard should show the overview")
	}
}

// ============================================================
// Projects model
// ============================================================

func TestProjectsLeaderSeesOwnProjects(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	other := e.register(t, "other@site.in", store.RoleLeader)
	e.project(t, leader.ID)
	e.project(t, other.ID)
	c := e.signIn(t, "leader@site.in")

	p := newProjectsModel(c)
	p, _ = p.update(p.refresh()())
	if len(p.projects) != 1 || p.projects[0].LeaderID != leader.ID {
		t.Fatalf("leader should see only their project: %+v", p.projects)
	}
	if p.leaders != nil {
		t.Fatal("leaders are only loaded for admins")
	}
}

func TestProjectsDetailAndPaymentStatus(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	e.register(t, "checker@site.in", store.RoleChecker)
	lc := e.signIn(t, "leader@site.in")
	proj := e.project(t, leader.ID)
	u := e.progress(t, lc, proj.ID, 100)
	if _, err := e.svc.SubmitPaymentRequest(context.Background(), service.PaymentInput{
		LeaderID: leader.ID, ProjectID: proj.ID, ProgressUpdateID: u.ID,
		Purposes: []service.PurposeInput{{Type: store.PurposeFood, Amount: decimal.NewFromInt(500)}},
	}); err != nil {
		t.Fatal(err)
	}

	c := e.signIn(t, "checker@site.in")
	p := newProjectsModel(c)
	p.setSize(140, 40)
	p, _ = p.update(p.refresh()())
	p, cmd := p.update(tea.KeyMsg{Type: tea.KeyEnter})
	if !p.viewingDetail {
		t.Fatal("enter should open the project")
	}
	p, _ = p.update(cmd())
	if len(p.updates) != 1 || len(p.payments) != 1 {
		t.Fatalf("detail not loaded: %d updates %d payments", len(p.updates), len(p.payments))
	}

	if p.setPaymentStatus(store.PaymentApproved) != nil {
		t.Fatal("status keys act only in the payments pane")
	}
	p, _ = p.update(tea.KeyMsg{Type: tea.KeyRight})
	if p.pane != panePayments {
		t.Fatal("right should switch to payments")
	}
	if !strings.Contains(p.view(), "500.00") {
		t.Fatal("payment total should be shown")
	}
}

func TestProjectsAdminNeedsLeader(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "admin@site.in", store.RoleAdmin)
	c := e.signIn(t, "admin@site.in")

	p := newProjectsModel(c)
	p, _ = p.update(p.refresh()())
	p, cmd := p.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if p.formActive() {
		t.Fatal("no form without a leader to assign")
	}
	if st := statusOf(t, cmd()); !st.isError {
		t.Fatal("expected an error status")
	}
}

// ============================================================
// Reports model
// ============================================================

func TestReportsExpenseTotalsSkipRejected(t *testing.T) {
	r := reportsModel{payments: []*store.PaymentRequest{
		{ProjectID: "p1", Status: store.PaymentPaid, Purposes: []store.PaymentPurpose{
			{Type: store.PurposeFood, Amount: decimal.RequireFromString("0.10")},
			{Type: store.PurposeFood, Amount: decimal.RequireFromString("0.20")},
		}},
		{ProjectID: "p1", Status: store.PaymentRejected, Purposes: []store.PaymentPurpose{
			{Type: store.PurposeFood, Amount: decimal.NewFromInt(1000)},
		}},
	}}
	got := r.expenseTotals()["p1"][store.PurposeFood]
	if !got.Equal(decimal.RequireFromString("0.30")) {
		t.Fatalf("food total = %s, want 0.30", got)
	}
}

func TestReportsDailyBars(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	proj := e.project(t, leader.ID)
	e.progress(t, c, proj.ID, 40)
	e.progress(t, c, proj.ID, 60)

	r := newReportsModel(c)
	r.setSize(120, 40)
	r.mode = reportDaily
	r, _ = r.update(r.refresh()())

	bars := r.dailyBars()
	if len(bars) != 7 {
		t.Fatalf("expected 7 days, got %d", len(bars))
	}
	today := bars[6]
	if today.Label != "Tue 04" || len(today.Values) != 1 || today.Values[0].Value != 100 {
		t.Fatalf("unexpected bar for today: %+v", today)
	}

	r, _ = r.update(tea.KeyMsg{Type: tea.KeyLeft})
	from, _ := r.dateRange()
	if !from.Equal(time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("previous week starts %v", from)
	}
}

// ============================================================
// Export
// ============================================================

func TestExportProgressCSV(t *testing.T) {
	e := newTestEnv(t)
	leader := e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")
	proj := e.project(t, leader.ID)
	e.progress(t, c, proj.ID, 40)

	dir := t.TempDir()
	path, err := exportTo(context.Background(), c, dir, "2024-06-04", 0)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Canal Lining") {
		t.Fatal("csv should name the project")
	}
}

func TestExportBackupRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "leader@site.in", store.RoleLeader)
	e.register(t, "admin@site.in", store.RoleAdmin)
	dir := t.TempDir()

	if _, err := exportTo(context.Background(), e.signIn(t, "leader@site.in"), dir, "d", 2); err == nil {
		t.Fatal("leader must not export a backup")
	}
	path, err := exportTo(context.Background(), e.signIn(t, "admin@site.in"), dir, "d", 2)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "sitelog-backup-d.json" {
		t.Fatalf("unexpected path %s", path)
	}
}

// ============================================================
// App model
// ============================================================

func newTestApp(t *testing.T, e *testEnv) App {
	t.Helper()
	app := NewApp(e.svc, e.sessions, Options{ExportDir: t.TempDir()})
	app.width = 120
	app.height = 40
	return app
}

func TestAppStartsAtLogin(t *testing.T) {
	e := newTestEnv(t)
	app := NewApp(e.svc, e.sessions, Options{})
	if app.View() != "Loading..." {
		t.Fatal("unsized app should show loading")
	}

	app = newTestApp(t, e)
	if app.login == nil {
		t.Fatal("app should start at the sign in form")
	}
	if !strings.Contains(app.renderHeader(), "sitelog") {
		t.Fatal("header should carry the app name")
	}
	if strings.Contains(app.renderHeader(), "Dashboard") {
		t.Fatal("tabs should be hidden before sign in")
	}
}

func TestAppLoggedIn(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")

	app := newTestApp(t, e)
	model, cmd := app.Update(loggedInMsg{user: c.user})
	app = model.(App)
	if app.login != nil || cmd == nil {
		t.Fatal("sign in should close the form and load the dashboard")
	}

	header := app.renderHeader()
	for _, name := range viewNames {
		if !strings.Contains(header, name) {
			t.Fatalf("header missing tab %q", name)
		}
	}
	if !strings.Contains(app.renderFooter(), "Signed in as") {
		t.Fatal("footer should confirm sign in")
	}

	for _, v := range []viewState{viewDashboard, viewProjects, viewReports, viewSettings} {
		app.activeView = v
		if app.View() == "" {
			t.Fatalf("view %d rendered empty", v)
		}
	}
}

func TestAppErrorStatus(t *testing.T) {
	e := newTestEnv(t)
	app := newTestApp(t, e)

	model, _ := app.Update(statusMsg{text: "boom", isError: true})
	app = model.(App)
	if !app.statusError || !strings.Contains(app.renderFooter(), "boom") {
		t.Fatal("footer should show the error")
	}
}

func TestAppQuitEndsSession(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "leader@site.in", store.RoleLeader)
	c := e.signIn(t, "leader@site.in")

	app := newTestApp(t, e)
	model, _ := app.Update(loggedInMsg{user: c.user})
	app = model.(App)

	if _, err := e.cache.Load(context.Background(), c.user.SessionID); err != nil {
		t.Fatalf("session should be cached after sign in: %v", err)
	}
	if app.quit() == nil {
		t.Fatal("quit should return a command")
	}
	if msg := app.endSession(); msg != nil {
		t.Fatalf("end session: %v", msg)
	}
	if _, err := e.cache.Load(context.Background(), c.user.SessionID); err == nil {
		t.Fatal("session should be gone after quitting")
	}
}

// ============================================================
// Key bindings and styles
// ============================================================

func TestKeyMapHelp(t *testing.T) {
	if len(keys.ShortHelp()) == 0 {
		t.Fatal("short help should have bindings")
	}
	for i, g := range keys.FullHelp() {
		if len(g) == 0 {
			t.Fatalf("full help group %d is empty", i)
		}
	}
}

func TestPaymentStatusRender(t *testing.T) {
	for _, s := range []store.PaymentStatus{store.PaymentPending, store.PaymentApproved, store.PaymentPaid, store.PaymentRejected} {
		if !strings.Contains(paymentStatus(s), string(s)) {
			t.Fatalf("status %q not rendered", s)
		}
	}
	if describeWindow(nil) == "" {
		t.Fatal("open window should be described")
	}
}
