package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/sadopc/sitelog/internal/store"
)

type reportMode int

const (
	reportProjects reportMode = iota
	reportDaily
	reportExpenses
)

var reportModeNames = []string{"Projects", "Daily", "Expenses"}

var projectPalette = []lipgloss.Color{colorPrimary, colorSecondary, colorAccent, colorWarning, colorSuccess, colorHighlight}

type reportsModel struct {
	client *client
	width  int
	height int

	mode   reportMode
	offset int // 7-day blocks back from today, daily mode only

	projects []*store.Project
	updates  []*store.ProgressUpdate
	payments []*store.PaymentRequest

	chart barchart.Model
}

func newReportsModel(c *client) reportsModel {
	return reportsModel{
		client: c,
		chart:  barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	projects []*store.Project
	updates  []*store.ProgressUpdate
	payments []*store.PaymentRequest
}

func (r reportsModel) refresh() tea.Cmd {
	c := r.client
	return func() tea.Msg {
		ctx, cancel := c.ctx()
		defer cancel()
		projects, err := c.projects(ctx)
		if err != nil {
			return errStatus("Load reports", err)
		}
		msg := reportsDataMsg{projects: projects}
		for _, p := range projects {
			updates, err := c.svc.ProgressForProject(ctx, p.ID)
			if err != nil {
				return errStatus("Load reports", err)
			}
			payments, err := c.svc.PaymentsForProject(ctx, p.ID)
			if err != nil {
				return errStatus("Load reports", err)
			}
			msg.updates = append(msg.updates, updates...)
			msg.payments = append(msg.payments, payments...)
		}
		return msg
	}
}

// dateRange returns the seven site-local days shown in daily mode.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	now := r.client.svc.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := today.AddDate(0, 0, 1-7*r.offset)
	return end.AddDate(0, 0, -7), end
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.projects = msg.projects
		r.updates = msg.updates
		r.payments = msg.payments
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			if r.mode == reportDaily {
				r.offset++
				r.buildChart()
			}
		case key.Matches(msg, keys.Right):
			if r.mode == reportDaily && r.offset > 0 {
				r.offset--
				r.buildChart()
			}
		case key.Matches(msg, keys.Enter):
			r.mode = (r.mode + 1) % reportMode(len(reportModeNames))
			r.offset = 0
			r.buildChart()
		}
	}
	return r, nil
}

func (r reportsModel) colorOf(projectID string) lipgloss.Color {
	for i, p := range r.projects {
		if p.ID == projectID {
			return projectPalette[i%len(projectPalette)]
		}
	}
	return colorSubtle
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}
	r.chart = barchart.New(chartWidth, chartHeight)

	var bars []barchart.BarData
	switch r.mode {
	case reportProjects:
		bars = r.projectBars()
	case reportDaily:
		bars = r.dailyBars()
	case reportExpenses:
		bars = r.expenseBars()
	}
	if len(bars) == 0 {
		return
	}
	r.chart.PushAll(bars)
	r.chart.Draw()
}

// projectBars stacks completed work on the remaining work of each project.
func (r reportsModel) projectBars() []barchart.BarData {
	bars := make([]barchart.BarData, 0, len(r.projects))
	for _, p := range r.projects {
		remaining := max(p.TotalWork-p.CompletedWork, 0)
		bars = append(bars, barchart.BarData{
			Label: truncate(p.Name, 8),
			Values: []barchart.BarValue{
				{Name: "done", Value: p.CompletedWork, Style: lipgloss.NewStyle().Foreground(r.colorOf(p.ID))},
				{Name: "left", Value: remaining, Style: lipgloss.NewStyle().Foreground(colorSubtle)},
			},
		})
	}
	return bars
}

// dailyBars stacks the work reported each day per project.
func (r reportsModel) dailyBars() []barchart.BarData {
	from, to := r.dateRange()
	loc := from.Location()

	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		next := d.AddDate(0, 0, 1)
		perProject := map[string]float64{}
		var order []string
		for _, u := range r.updates {
			at := u.Date.In(loc)
			if at.Before(d) || !at.Before(next) {
				continue
			}
			if _, ok := perProject[u.ProjectID]; !ok {
				order = append(order, u.ProjectID)
			}
			perProject[u.ProjectID] += u.CompletedWork
		}

		var values []barchart.BarValue
		for _, id := range order {
			values = append(values, barchart.BarValue{
				Name:  id,
				Value: perProject[id],
				Style: lipgloss.NewStyle().Foreground(r.colorOf(id)),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}
		bars = append(bars, barchart.BarData{Label: d.Format("Mon 02"), Values: values})
	}
	return bars
}

// expenseTotals sums requested amounts per project and purpose, leaving out
// rejected requests.
func (r reportsModel) expenseTotals() map[string]map[store.PurposeType]decimal.Decimal {
	out := map[string]map[store.PurposeType]decimal.Decimal{}
	for _, pr := range r.payments {
		if pr.Status == store.PaymentRejected {
			continue
		}
		byPurpose, ok := out[pr.ProjectID]
		if !ok {
			byPurpose = map[store.PurposeType]decimal.Decimal{}
			out[pr.ProjectID] = byPurpose
		}
		for _, pp := range pr.Purposes {
			byPurpose[pp.Type] = byPurpose[pp.Type].Add(pp.Amount)
		}
	}
	return out
}

func (r reportsModel) expenseBars() []barchart.BarData {
	totals := r.expenseTotals()
	var bars []barchart.BarData
	for _, p := range r.projects {
		var values []barchart.BarValue
		for _, t := range []store.PurposeType{
			store.PurposeFood, store.PurposeFuel, store.PurposeLabour,
			store.PurposeVehicle, store.PurposeWater, store.PurposeOther,
		} {
			amt, ok := totals[p.ID][t]
			if !ok {
				continue
			}
			values = append(values, barchart.BarValue{
				Name:  string(t),
				Value: amt.InexactFloat64(),
				Style: lipgloss.NewStyle().Foreground(purposeColors[t]),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}
		bars = append(bars, barchart.BarData{Label: truncate(p.Name, 8), Values: values})
	}
	return bars
}

func (r reportsModel) view() string {
	w := r.width - 4

	var tabs []string
	for i, name := range reportModeNames {
		if reportMode(i) == r.mode {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	headerParts := []string{titleStyle.Render("Reports"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)}
	if r.mode == reportDaily {
		from, to := r.dateRange()
		headerParts = append(headerParts, "  ", mutedStyle.Render(fmt.Sprintf("%s to %s",
			from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006"))))
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom, headerParts...)

	if len(r.projects) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			header, "", mutedStyle.Render("  No projects to report on")))
	}

	nav := mutedStyle.Render("  enter: switch report  ←/→: previous/next week")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderLegend(), "", r.renderTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderLegend() string {
	if r.mode == reportExpenses {
		var items []string
		for _, t := range []store.PurposeType{
			store.PurposeFood, store.PurposeFuel, store.PurposeLabour,
			store.PurposeVehicle, store.PurposeWater, store.PurposeOther,
		} {
			dot := lipgloss.NewStyle().Foreground(purposeColors[t]).Render("●")
			items = append(items, dot+" "+string(t))
		}
		return "  " + strings.Join(items, "  ")
	}
	var items []string
	for _, p := range r.projects {
		dot := lipgloss.NewStyle().Foreground(r.colorOf(p.ID)).Render("●")
		items = append(items, fmt.Sprintf("%s %s", dot, p.Name))
	}
	return "  " + strings.Join(items, "  ")
}

func (r reportsModel) renderTable(w int) string {
	rule := mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 60)))
	totals := r.expenseTotals()

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-22s %12s %8s %10s %12s", "Project", "Work", "Done", "Hours", "Expenses")),
		rule,
	}
	hours := map[string]float64{}
	for _, u := range r.updates {
		hours[u.ProjectID] += u.TimeTaken
	}
	for _, p := range r.projects {
		spent := decimal.Zero
		for _, amt := range totals[p.ID] {
			spent = spent.Add(amt)
		}
		dot := lipgloss.NewStyle().Foreground(r.colorOf(p.ID)).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-20s %12s %7.1f%% %10s %12s",
			dot,
			truncate(p.Name, 20),
			fmt.Sprintf("%g/%g", p.CompletedWork, p.TotalWork),
			p.Progress()*100,
			formatHours(hours[p.ID]),
			spent.StringFixed(2),
		))
	}
	return strings.Join(rows, "\n")
}
