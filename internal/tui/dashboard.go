package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

type dashboardModel struct {
	svc    *service.Service
	timer  timerModel
	width  int
	height int

	today     *service.DailyLogView
	dailyGoal int
	recent    []service.EntryRow
	open      []store.Task

	picking      bool
	pickerCursor int

	goalBar progress.Model
}

func newDashboardModel(svc *service.Service) dashboardModel {
	return dashboardModel{
		svc:       svc,
		timer:     newTimerModel(svc),
		dailyGoal: 480,
		goalBar:   progress.New(progress.WithSolidFill(string(colorSuccess)), progress.WithoutPercentage()),
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
	d.goalBar.Width = max(10, w-30)
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }
func (d dashboardModel) isPaused() bool  { return d.timer.paused() }
func (d dashboardModel) elapsed() time.Duration {
	return d.timer.currentElapsed()
}

type dashboardDataMsg struct {
	today     *service.DailyLogView
	dailyGoal int
	recent    []service.EntryRow
	open      []store.Task
}

func (d dashboardModel) loadData() tea.Cmd {
	svc := d.svc
	return func() tea.Msg {
		ctx := context.Background()
		today, _ := svc.DailyLog(ctx, svc.Today())
		recent, _ := svc.Entries(ctx, store.EntryFilter{Limit: 5})
		tasks, _ := svc.AllTasks(ctx)

		var open []store.Task
		for _, t := range tasks {
			if t.Status != store.StatusCompleted {
				open = append(open, t)
			}
		}
		return dashboardDataMsg{
			today:     today,
			dailyGoal: svc.Store().SettingInt(ctx, "daily_goal", 480),
			recent:    recent,
			open:      open,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	ctx := context.Background()
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.today = msg.today
		d.dailyGoal = msg.dailyGoal
		d.recent = msg.recent
		d.open = msg.open
		d.timer.loadSettings(ctx)
		d.timer.sync(ctx)
		return d, nil

	case tickMsg:
		wasRunning := d.timer.running()
		if err := d.timer.tick(ctx); err != nil {
			return d, errStatus("Idle action failed: %v", err)
		}
		if wasRunning && !d.timer.running() {
			return d, tea.Batch(d.loadData(), func() tea.Msg {
				return statusMsg{text: "Stopped after inactivity"}
			})
		}
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.timer.running() {
				return d, nil
			}
			if len(d.open) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No open tasks. Press 2 to go to Tasks and create one.", isError: true}
				}
			}
			if len(d.open) == 1 {
				return d.startTimer(d.open[0].ID, d.open[0].Title)
			}
			d.picking = true
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopTimer()

		case key.Matches(msg, keys.Pause):
			if err := d.timer.toggle(ctx); err != nil {
				return d, errStatus("Error: %v", err)
			}
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
		if d.pickerCursor < len(d.open)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		t := d.open[d.pickerCursor]
		d.picking = false
		return d.startTimer(t.ID, t.Title)
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTimer(taskID, title string) (dashboardModel, tea.Cmd) {
	if err := d.timer.start(context.Background(), taskID, title); err != nil {
		return d, errStatus("Error: %v", err)
	}
	entry := d.timer.entry
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStartedMsg{entry: entry, title: title} },
	)
}

func (d dashboardModel) stopTimer() (dashboardModel, tea.Cmd) {
	entry, err := d.timer.stop(context.Background())
	if err != nil {
		return d, errStatus("Error: %v", err)
	}
	if entry == nil {
		return d, nil
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return timerStoppedMsg{entry: entry} },
	)
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4
	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderTodayPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderTaskPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	if !d.timer.running() {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("00:00:00"),
			mutedStyle.Render("■  STOPPED"),
			mutedStyle.Render("Press s to start tracking"),
		)
		return panelStyle.Width(w).Render(content)
	}

	timeStr := formatDuration(d.timer.currentElapsed())
	var timeDisplay, indicator string
	switch {
	case d.timer.isIdle:
		timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
		indicator = warningStyle.Render("⏸  IDLE")
	case d.timer.paused():
		timeDisplay = timerPausedStyle.Width(w - 6).Render(timeStr)
		indicator = warningStyle.Render("⏸  PAUSED")
	default:
		timeDisplay = timerRunningStyle.Width(w - 6).Render(timeStr)
		indicator = successStyle.Render("●  RUNNING")
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timeDisplay,
		indicator,
		highlightStyle.Render(d.timer.taskTitle),
	)
	return activePanelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderTodayPanel(w int) string {
	var total int64
	if d.today != nil {
		total = d.today.TotalTime
	}
	header := fmt.Sprintf("%s  %s", titleStyle.Render("Today"), highlightStyle.Render(formatMinutes(total)))

	rows := []string{header}
	if d.dailyGoal > 0 {
		pct := float64(total) / float64(d.dailyGoal)
		rows = append(rows, fmt.Sprintf("%s %s",
			d.goalBar.ViewAs(min(pct, 1)),
			mutedStyle.Render(fmt.Sprintf("%d%% of %s goal", int(pct*100), formatMinutes(int64(d.dailyGoal)))),
		))
	}

	if d.today == nil || len(d.today.TasksWorkedOn) == 0 {
		rows = append(rows, mutedStyle.Render("No time tracked today"))
		return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
	}
	for _, t := range d.today.TasksWorkedOn {
		rows = append(rows, fmt.Sprintf("  %-28s %s", truncate(t.Title, 28), formatMinutes(t.TimeSpent)))
	}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %d completed  ·  score %d",
		len(d.today.TasksCompleted), d.today.ProductivityScore)))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Entries")
	if len(d.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No entries yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{title}
	for _, e := range d.recent {
		name := e.TaskTitle
		if name == "" {
			name = "?"
		}
		status, dur := "✓", formatMinutes(e.Duration)
		switch e.State() {
		case store.EntryOpen:
			status, dur = "●", "running"
		case store.EntryPaused:
			status, dur = "⏸", "paused"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %-24s %s",
			status, e.StartTime.Local().Format("15:04"), truncate(name, 24), dur))
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderTaskPicker(w int) string {
	rows := []string{titleStyle.Render("Select Task")}
	for i, t := range d.open {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+t.Title)+mutedStyle.Render(" "+t.Category))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
