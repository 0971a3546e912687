package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

type settingsModel struct {
	svc    *service.Service
	width  int
	height int

	settings   []store.Setting
	categories []store.Category
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	idleTimeout     *string
	idleAction      *string
	dailyGoal       *string
	weekStart       *string
	defaultCategory *string
}

func newSettingsModel(svc *service.Service) settingsModel {
	it, ia, dg, ws, dc := "", "", "", "", ""
	return settingsModel{
		svc:             svc,
		idleTimeout:     &it,
		idleAction:      &ia,
		dailyGoal:       &dg,
		weekStart:       &ws,
		defaultCategory: &dc,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings   []store.Setting
	categories []store.Category
}

func (s settingsModel) refresh() tea.Cmd {
	svc := s.svc
	return func() tea.Msg {
		ctx := context.Background()
		settings, _ := svc.Store().GetAllSettings(ctx)
		cats, _ := svc.Categories(ctx)
		return settingsDataMsg{settings: settings, categories: cats}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		s.categories = msg.categories
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.idleTimeout = secsToMin(s.getVal("idle_timeout", "300"))
	*s.idleAction = s.getVal("idle_action", idlePause)
	*s.dailyGoal = minsToHours(s.getVal("daily_goal", "480"))
	*s.weekStart = s.getVal("week_start", "monday")
	*s.defaultCategory = s.getVal("default_category", store.DefaultCategory)

	catOptions := make([]huh.Option[string], 0, len(s.categories))
	for _, c := range s.categories {
		catOptions = append(catOptions, huh.NewOption(c.Name, c.ID))
	}
	if len(catOptions) == 0 {
		catOptions = append(catOptions, huh.NewOption(store.DefaultCategory, store.DefaultCategory))
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Idle timeout (min)").Value(s.idleTimeout).Validate(validateMinutes),
			huh.NewSelect[string]().Title("Idle action").
				Options(
					huh.NewOption("Pause", idlePause),
					huh.NewOption("Stop", idleStop),
				).Value(s.idleAction),
		).Title("Tracking"),
		huh.NewGroup(
			huh.NewInput().Title("Daily goal (hours)").Value(s.dailyGoal).Validate(func(v string) error {
				if h, err := strconv.ParseFloat(v, 64); err != nil || h < 0 {
					return fmt.Errorf("enter a number of hours")
				}
				return nil
			}),
			huh.NewSelect[string]().Title("Week starts on").
				Options(
					huh.NewOption("Monday", "monday"),
					huh.NewOption("Sunday", "sunday"),
				).Value(s.weekStart),
			huh.NewSelect[string]().Title("Default category").Options(catOptions...).Value(s.defaultCategory),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		s.formActive = false
		s.form = nil
		return s, nil
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.saveSettings(context.Background()); err != nil {
			return s, tea.Batch(s.refresh(), errStatus("Save settings: %v", err))
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return statusMsg{text: "Settings saved"} })
	}

	return s, cmd
}

func (s settingsModel) saveSettings(ctx context.Context) error {
	st := s.svc.Store()
	values := []store.Setting{
		{Key: "idle_timeout", Value: minToSecs(*s.idleTimeout)},
		{Key: "idle_action", Value: *s.idleAction},
		{Key: "daily_goal", Value: hoursToMins(*s.dailyGoal)},
		{Key: "week_start", Value: *s.weekStart},
		{Key: "default_category", Value: *s.defaultCategory},
	}
	for _, v := range values {
		if err := st.SetSetting(ctx, v.Key, v.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s settingsModel) getVal(k, fallback string) string {
	for _, st := range s.settings {
		if st.Key == k {
			return st.Value
		}
	}
	return fallback
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Settings"), "", s.form.View()),
		)
	}

	rows := []string{titleStyle.Render("Settings"), ""}
	for _, setting := range s.settings {
		label := lipgloss.NewStyle().Width(24).Render(setting.Key)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}

	rows = append(rows, "", titleStyle.Render("Categories"))
	for _, c := range s.categories {
		dot := lipgloss.NewStyle().Foreground(categoryColor(c.Color)).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %s", dot, c.Name))
	}

	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))
	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case "idle_timeout":
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%d min", secs/60)
		}
	case "daily_goal":
		if mins, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%.1f hours", float64(mins)/60)
		}
	}
	return v
}

func secsToMin(s string) string {
	if secs, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(secs / 60)
	}
	return s
}

func minToSecs(s string) string {
	if mins, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(mins * 60)
	}
	return s
}

func minsToHours(s string) string {
	if mins, err := strconv.Atoi(s); err == nil {
		return fmt.Sprintf("%.1f", float64(mins)/60)
	}
	return s
}

func hoursToMins(s string) string {
	if hours, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.Itoa(int(hours * 60))
	}
	return s
}
