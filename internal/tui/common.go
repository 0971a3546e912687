package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

type viewState int

const (
	viewDashboard viewState = iota
	viewTasks
	viewLog
	viewReports
	viewSettings
)

var viewNames = []string{"Dashboard", "Tasks", "Daily Log", "Reports", "Settings"}

// --- Messages ---

type timerStartedMsg struct {
	entry *store.TimeEntry
	title string
}

type timerStoppedMsg struct {
	entry *store.TimeEntry
}

// timeUpdateMsg carries a tracker update into the program.
type timeUpdateMsg tracker.Update

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

func errStatus(format string, err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf(format, err), isError: true}
	}
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatMinutes renders a minute count as "1h 05m" or "45m".
func formatMinutes(mins int64) string {
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh %02dm", mins/60, mins%60)
}

func formatHours(mins int64) string {
	return fmt.Sprintf("%.1fh", float64(mins)/60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
