package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

// logModel shows one day's log. offset counts days back from today.
type logModel struct {
	svc    *service.Service
	width  int
	height int

	offset int
	log    *service.DailyLogView

	formActive bool
	form       *huh.Form
	formNotes  *string
}

func newLogModel(svc *service.Service) logModel {
	notes := ""
	return logModel{svc: svc, formNotes: &notes}
}

func (l *logModel) setSize(w, h int) {
	l.width = w
	l.height = h
}

func (l logModel) date() string {
	today, err := time.Parse(store.DateLayout, l.svc.Today())
	if err != nil {
		return l.svc.Today()
	}
	return today.AddDate(0, 0, -l.offset).Format(store.DateLayout)
}

type logDataMsg struct {
	log *service.DailyLogView
}

func (l logModel) refresh() tea.Cmd {
	svc, date := l.svc, l.date()
	return func() tea.Msg {
		v, err := svc.DailyLog(context.Background(), date)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load log: %v", err), isError: true}
		}
		return logDataMsg{log: v}
	}
}

func (l logModel) update(msg tea.Msg) (logModel, tea.Cmd) {
	if l.formActive && l.form != nil {
		return l.updateForm(msg)
	}

	switch msg := msg.(type) {
	case logDataMsg:
		l.log = msg.log
		return l, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			l.offset++
			return l, l.refresh()
		case key.Matches(msg, keys.Right):
			if l.offset > 0 {
				l.offset--
			}
			return l, l.refresh()
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return l.showForm()
		}
	}
	return l, nil
}

func (l logModel) showForm() (logModel, tea.Cmd) {
	*l.formNotes = ""
	if l.log != nil {
		*l.formNotes = l.log.Notes
	}
	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().Title("Notes for " + l.date()).Value(l.formNotes).Lines(8),
		),
	).WithShowHelp(true)
	l.formActive = true
	return l, l.form.Init()
}

func (l logModel) updateForm(msg tea.Msg) (logModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		l.formActive = false
		l.form = nil
		return l, nil
	}

	form, cmd := l.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		l.form = f
	}
	if l.form.State != huh.StateCompleted {
		return l, cmd
	}

	l.formActive = false
	v, err := l.svc.SetNotes(context.Background(), l.date(), *l.formNotes)
	if err != nil {
		return l, errStatus("Save notes: %v", err)
	}
	l.log = v
	return l, func() tea.Msg { return statusMsg{text: "Notes saved"} }
}

func (l logModel) view() string {
	w := l.width - 4
	if l.formActive && l.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Daily Log"), "", l.form.View()),
		)
	}

	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Daily Log"), "  ", highlightStyle.Render(l.date()),
	)
	if l.log == nil {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, header, "", mutedStyle.Render("Loading...")))
	}

	rows := []string{
		header,
		"",
		fmt.Sprintf("  Total time    %s", highlightStyle.Render(formatMinutes(l.log.TotalTime))),
		fmt.Sprintf("  Productivity  %s", highlightStyle.Render(fmt.Sprintf("%d", l.log.ProductivityScore))),
		"",
		titleStyle.Render("Worked on"),
	}
	if len(l.log.TasksWorkedOn) == 0 {
		rows = append(rows, mutedStyle.Render("  nothing tracked"))
	}
	for _, t := range l.log.TasksWorkedOn {
		rows = append(rows, fmt.Sprintf("  %-36s %s", truncate(t.Title, 36), formatMinutes(t.TimeSpent)))
	}

	rows = append(rows, "", titleStyle.Render("Completed"))
	if len(l.log.TasksCompleted) == 0 {
		rows = append(rows, mutedStyle.Render("  none"))
	}
	for _, t := range l.log.TasksCompleted {
		rows = append(rows, successStyle.Render("  ✓ ")+t.Title)
	}

	rows = append(rows, "", titleStyle.Render("Notes"))
	if strings.TrimSpace(l.log.Notes) == "" {
		rows = append(rows, mutedStyle.Render("  no notes"))
	} else {
		for _, line := range strings.Split(l.log.Notes, "\n") {
			rows = append(rows, "  "+line)
		}
	}

	rows = append(rows, "", mutedStyle.Render("  ←/→: change day  enter: edit notes"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
