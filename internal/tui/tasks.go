package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

const (
	formNewTask  = "new"
	formSubtask  = "subtask"
	formEditTask = "edit"
)

// treeRow is one line of the flattened task tree.
type treeRow struct {
	node  service.TaskNode
	depth int
}

type tasksModel struct {
	svc    *service.Service
	width  int
	height int

	rows       []treeRow
	categories []store.Category
	cursor     int

	formActive bool
	form       *huh.Form
	formType   string
	editingID  string
	parentID   string

	// Form field pointers (survive value copies)
	formTitle    *string
	formCategory *string
	formPriority *string
	formDeadline *string
	formEstimate *string
	formTags     *string
}

func newTasksModel(svc *service.Service) tasksModel {
	title, cat, prio, deadline, est, tags := "", "", "", "", "", ""
	return tasksModel{
		svc:          svc,
		formTitle:    &title,
		formCategory: &cat,
		formPriority: &prio,
		formDeadline: &deadline,
		formEstimate: &est,
		formTags:     &tags,
	}
}

func (p *tasksModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type tasksDataMsg struct {
	tree       []service.TaskNode
	categories []store.Category
}

func (p tasksModel) refresh() tea.Cmd {
	svc := p.svc
	return func() tea.Msg {
		ctx := context.Background()
		tree, err := svc.Hierarchy(ctx)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Load tasks: %v", err), isError: true}
		}
		cats, _ := svc.Categories(ctx)
		return tasksDataMsg{tree: tree, categories: cats}
	}
}

func flatten(nodes []service.TaskNode, depth int, out []treeRow) []treeRow {
	for _, n := range nodes {
		out = append(out, treeRow{node: n, depth: depth})
		out = flatten(n.Children, depth+1, out)
	}
	return out
}

func (p tasksModel) selected() *service.TaskNode {
	if p.cursor < 0 || p.cursor >= len(p.rows) {
		return nil
	}
	return &p.rows[p.cursor].node
}

func (p tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tasksDataMsg:
		p.rows = flatten(msg.tree, 0, nil)
		p.categories = msg.categories
		if p.cursor >= len(p.rows) {
			p.cursor = max(0, len(p.rows)-1)
		}
		return p, nil

	case tea.KeyMsg:
		return p.updateList(msg)
	}
	return p, nil
}

func (p tasksModel) updateList(msg tea.KeyMsg) (tasksModel, tea.Cmd) {
	ctx := context.Background()
	sel := p.selected()

	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.rows)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.New):
		return p.showForm(formNewTask, nil)
	case key.Matches(msg, keys.AddChild):
		if sel != nil {
			return p.showForm(formSubtask, sel)
		}
	case key.Matches(msg, keys.Enter):
		if sel != nil {
			return p.showForm(formEditTask, sel)
		}
	case key.Matches(msg, keys.Complete):
		if sel == nil {
			return p, nil
		}
		status := store.StatusCompleted
		if sel.Status == store.StatusCompleted {
			status = store.StatusTodo
		}
		if _, err := p.svc.UpdateTask(ctx, sel.ID, service.TaskInput{Status: &status}); err != nil {
			return p, errStatus("Update failed: %v", err)
		}
		return p, p.refresh()
	case key.Matches(msg, keys.Delete):
		if sel == nil {
			return p, nil
		}
		if err := p.svc.DeleteTask(ctx, sel.ID); err != nil {
			return p, errStatus("Delete failed: %v", err)
		}
		title := sel.Title
		return p, tea.Batch(p.refresh(), func() tea.Msg {
			return statusMsg{text: "Deleted " + title}
		})
	case key.Matches(msg, keys.Start):
		if sel == nil {
			return p, nil
		}
		e, err := p.svc.StartTracking(ctx, sel.ID, "")
		if err != nil {
			return p, errStatus("Start failed: %v", err)
		}
		title := sel.Title
		return p, func() tea.Msg { return timerStartedMsg{entry: e, title: title} }
	}
	return p, nil
}

func (p tasksModel) showForm(kind string, sel *service.TaskNode) (tasksModel, tea.Cmd) {
	p.formType = kind
	p.editingID, p.parentID = "", ""
	*p.formTitle = ""
	*p.formCategory = store.DefaultCategory
	*p.formPriority = store.PriorityMedium
	*p.formDeadline = ""
	*p.formEstimate = ""
	*p.formTags = ""

	switch kind {
	case formSubtask:
		p.parentID = sel.ID
		*p.formCategory = sel.Category
	case formEditTask:
		p.editingID = sel.ID
		*p.formTitle = sel.Title
		*p.formCategory = sel.Category
		*p.formPriority = sel.Priority
		if sel.Deadline != nil {
			*p.formDeadline = *sel.Deadline
		}
		if sel.EstimatedTime != nil {
			*p.formEstimate = strconv.FormatInt(*sel.EstimatedTime, 10)
		}
		*p.formTags = strings.Join(sel.Tags, ", ")
	}

	catOptions := make([]huh.Option[string], 0, len(p.categories))
	for _, c := range p.categories {
		catOptions = append(catOptions, huh.NewOption(c.Name, c.ID))
	}
	if len(catOptions) == 0 {
		catOptions = append(catOptions, huh.NewOption(store.DefaultCategory, store.DefaultCategory))
	}

	p.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(p.formTitle).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("title is required")
				}
				return nil
			}),
			huh.NewSelect[string]().Title("Category").Options(catOptions...).Value(p.formCategory),
			huh.NewSelect[string]().Title("Priority").Options(
				huh.NewOption("Low", store.PriorityLow),
				huh.NewOption("Medium", store.PriorityMedium),
				huh.NewOption("High", store.PriorityHigh),
			).Value(p.formPriority),
			huh.NewInput().Title("Deadline (YYYY-MM-DD)").Value(p.formDeadline).Validate(validateDate),
			huh.NewInput().Title("Estimate (minutes)").Value(p.formEstimate).Validate(validateMinutes),
			huh.NewInput().Title("Tags (comma-separated)").Value(p.formTags),
		),
	).WithShowHelp(true).WithShowErrors(true)

	p.formActive = true
	return p, p.form.Init()
}

func validateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(store.DateLayout, s); err != nil {
		return fmt.Errorf("use YYYY-MM-DD")
	}
	return nil
}

func validateMinutes(s string) error {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err != nil || n < 0 {
		return fmt.Errorf("enter a whole number of minutes")
	}
	return nil
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// input builds the service input from the form fields.
func (p tasksModel) input() service.TaskInput {
	title := *p.formTitle
	category := *p.formCategory
	priority := *p.formPriority
	deadline := *p.formDeadline
	tags := splitTags(*p.formTags)
	in := service.TaskInput{
		Title:    &title,
		Category: &category,
		Priority: &priority,
		Deadline: &deadline,
		Tags:     &tags,
	}
	if n, err := strconv.ParseInt(*p.formEstimate, 10, 64); err == nil {
		in.EstimatedTime = &n
	}
	if p.parentID != "" {
		parent := p.parentID
		in.ParentID = &parent
	}
	return in
}

func (p tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		p.formActive = false
		p.form = nil
		return p, nil
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}
	if p.form.State != huh.StateCompleted {
		return p, cmd
	}

	p.formActive = false
	ctx := context.Background()
	var err error
	if p.formType == formEditTask {
		_, err = p.svc.UpdateTask(ctx, p.editingID, p.input())
	} else {
		_, err = p.svc.CreateTask(ctx, p.input())
	}
	if err != nil {
		return p, tea.Batch(p.refresh(), errStatus("Save failed: %v", err))
	}
	return p, p.refresh()
}

func (p tasksModel) view() string {
	w := p.width - 4
	if p.formActive && p.form != nil {
		title := "New Task"
		switch p.formType {
		case formSubtask:
			title = "New Subtask"
		case formEditTask:
			title = "Edit Task"
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", p.form.View())
		return panelStyle.Width(w).Render(content)
	}

	title := titleStyle.Render("Tasks")
	if len(p.rows) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks yet. Press n to create one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	colors := make(map[string]string, len(p.categories))
	for _, c := range p.categories {
		colors[c.ID] = c.Color
	}

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-40s %-8s %9s %6s  %s", "Task", "Priority", "Time", "Done", "Deadline")))
	for i, r := range p.rows {
		n := r.node
		cursor := "  "
		style := normalItemStyle
		if n.Status == store.StatusCompleted {
			style = completedItemStyle
		}
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		dot := lipgloss.NewStyle().Foreground(categoryColor(colors[n.Category])).Render("●")
		name := truncate(strings.Repeat("  ", r.depth)+n.Title, 38)
		row := fmt.Sprintf("%s%s %s %s %9s %5d%%  %s",
			cursor,
			dot,
			style.Render(fmt.Sprintf("%-38s", name)),
			priorityStyle(n.Priority).Render(fmt.Sprintf("%-8s", n.Priority)),
			formatMinutes(n.TotalTime),
			n.Progress,
			renderDeadline(n),
		)
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  a: subtask  enter: edit  c: complete  s: track  d: delete"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func renderDeadline(n service.TaskNode) string {
	if n.Deadline == nil {
		return ""
	}
	switch {
	case n.IsOverdue:
		return errorStyle.Render(*n.Deadline + " overdue")
	case n.IsDueSoon:
		return warningStyle.Render(*n.Deadline)
	}
	return mutedStyle.Render(*n.Deadline)
}
