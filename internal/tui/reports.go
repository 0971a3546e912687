package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

type reportMode int

const (
	reportWeek reportMode = iota
	reportMonth
)

func (m reportMode) days() int {
	if m == reportMonth {
		return 30
	}
	return 7
}

type reportsModel struct {
	svc    *service.Service
	width  int
	height int

	mode   reportMode
	offset int // periods back from the current one
	stats  *service.ProductivityStats
	colors map[string]string

	chart barchart.Model
}

func newReportsModel(svc *service.Service) reportsModel {
	return reportsModel{
		svc:   svc,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	stats  *service.ProductivityStats
	colors map[string]string
}

// dateRange is the inclusive first and last day of the current period.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	today, err := time.Parse(store.DateLayout, r.svc.Today())
	if err != nil {
		today = time.Now().UTC().Truncate(24 * time.Hour)
	}
	n := r.mode.days()
	end := today.AddDate(0, 0, -n*r.offset)
	return end.AddDate(0, 0, -(n - 1)), end
}

func (r reportsModel) refresh() tea.Cmd {
	svc := r.svc
	from, to := r.dateRange()
	return func() tea.Msg {
		ctx := context.Background()
		stats, err := svc.ProductivityStats(ctx, from.Format(store.DateLayout), to.Format(store.DateLayout))
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load report: %v", err), isError: true}
		}
		colors := map[string]string{}
		if cats, err := svc.Categories(ctx); err == nil {
			for _, c := range cats {
				colors[c.ID] = c.Color
			}
		}
		return reportsDataMsg{stats: stats, colors: colors}
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.stats = msg.stats
		r.colors = msg.colors
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Mode):
			if r.mode == reportWeek {
				r.mode = reportMonth
			} else {
				r.mode = reportWeek
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := max(20, r.width-8)
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}
	r.chart = barchart.New(chartWidth, chartHeight)

	perDay := map[string]int64{}
	if r.stats != nil {
		for _, d := range r.stats.DailyBreakdown {
			perDay[d.Date] = d.Time
		}
	}

	from, to := r.dateRange()
	label := "Mon 02"
	if r.mode == reportMonth {
		label = "02"
	}
	barStyle := lipgloss.NewStyle().Foreground(colorPrimary)
	var bars []barchart.BarData
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		mins := perDay[d.Format(store.DateLayout)]
		bars = append(bars, barchart.BarData{
			Label: d.Format(label),
			Values: []barchart.BarValue{{
				Name:  "hours",
				Value: float64(mins) / 60,
				Style: barStyle,
			}},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	weekTab := inactiveTabStyle.Render("7 days")
	monthTab := inactiveTabStyle.Render("30 days")
	if r.mode == reportWeek {
		weekTab = activeTabStyle.Render("7 days")
	} else {
		monthTab = activeTabStyle.Render("30 days")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, weekTab, monthTab)

	from, to := r.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.Format("Jan 02, 2006")))

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", dateLabel,
	)

	nav := mutedStyle.Render("  ←/→: navigate  m: switch range")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderTotals(), "", r.renderCategories(w), "", nav,
		),
	)
}

func (r reportsModel) renderTotals() string {
	if r.stats == nil || len(r.stats.DailyBreakdown) == 0 {
		return mutedStyle.Render("  No data for this period")
	}
	best := 0
	for _, s := range r.stats.ProductivityScores {
		best = max(best, s.Score)
	}
	return fmt.Sprintf("  Total %s  ·  %d tasks completed  ·  best score %d",
		highlightStyle.Render(formatHours(r.stats.TotalTime)),
		r.stats.TasksCompleted,
		best,
	)
}

func (r reportsModel) renderCategories(w int) string {
	if r.stats == nil || len(r.stats.CategoryBreakdown) == 0 {
		return ""
	}
	type share struct {
		name string
		mins int64
	}
	var shares []share
	for name, mins := range r.stats.CategoryBreakdown {
		shares = append(shares, share{name, mins})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].mins != shares[j].mins {
			return shares[i].mins > shares[j].mins
		}
		return shares[i].name < shares[j].name
	})

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-20s %10s", "Category", "Time")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 32))),
	}
	for _, s := range shares {
		dot := lipgloss.NewStyle().Foreground(categoryColor(r.colors[s.name])).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-18s %10s", dot, s.name, formatMinutes(s.mins)))
	}
	return strings.Join(rows, "\n")
}
