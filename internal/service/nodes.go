package service

import (
	"context"
	"time"

	"github.com/sadopc/worklog/internal/store"
)

// dueSoonDays is the window isDueSoon and the week view look ahead.
const dueSoonDays = 7

// TaskNode is a task with its subtree and the fields derived from it.
type TaskNode struct {
	store.Task
	Children          []TaskNode `json:"children"`
	Progress          int        `json:"progress"`
	TotalTime         int64      `json:"totalTime"`
	DaysUntilDeadline *int       `json:"daysUntilDeadline"`
	IsOverdue         bool       `json:"isOverdue"`
	IsDueSoon         bool       `json:"isDueSoon"`
}

// forest is one consistent snapshot of every task, indexed for tree building.
type forest struct {
	all      []*store.Task
	byID     map[string]*store.Task
	children map[string][]string // "" holds the roots
	today    time.Time
}

func (s *Service) forest(ctx context.Context) (*forest, error) {
	tasks, err := s.store.ListAllTasks(ctx)
	if err != nil {
		return nil, err
	}
	today, _ := time.Parse(store.DateLayout, s.Today())
	f := &forest{
		byID:     make(map[string]*store.Task, len(tasks)),
		children: make(map[string][]string),
		today:    today,
	}
	for i := range tasks {
		t := &tasks[i]
		f.all = append(f.all, t)
		f.byID[t.ID] = t
	}
	for _, t := range f.all {
		parent := ""
		if t.ParentID != nil && f.byID[*t.ParentID] != nil {
			parent = *t.ParentID
		}
		f.children[parent] = append(f.children[parent], t.ID)
	}
	return f, nil
}

func (f *forest) node(id string) *TaskNode {
	if f.byID[id] == nil {
		return nil
	}
	n := f.build(id, make(map[string]bool))
	return &n
}

func (f *forest) nodes(ids []string) []TaskNode {
	out := make([]TaskNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.build(id, make(map[string]bool)))
	}
	return out
}

func (f *forest) build(id string, seen map[string]bool) TaskNode {
	seen[id] = true
	t := f.byID[id]
	n := TaskNode{Task: *t, Children: []TaskNode{}}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	for _, cid := range f.children[id] {
		if seen[cid] {
			continue
		}
		n.Children = append(n.Children, f.build(cid, seen))
	}

	n.Progress = progress(n)
	// The ledger already carries every descendant's time.
	n.TotalTime = t.ActualTime
	n.DaysUntilDeadline = daysUntil(t.Deadline, f.today)
	if d := n.DaysUntilDeadline; d != nil && t.Status != store.StatusCompleted {
		n.IsOverdue = *d < 0
		n.IsDueSoon = *d >= 0 && *d <= dueSoonDays
	}
	return n
}

// progress is the percentage of completed direct children, or 0/100 for a
// leaf depending on its own status.
func progress(n TaskNode) int {
	if len(n.Children) == 0 {
		if n.Status == store.StatusCompleted {
			return 100
		}
		return 0
	}
	done := 0
	for _, c := range n.Children {
		if c.Status == store.StatusCompleted {
			done++
		}
	}
	return (done*100 + len(n.Children)/2) / len(n.Children)
}

func daysUntil(deadline *string, today time.Time) *int {
	if deadline == nil {
		return nil
	}
	d, err := time.Parse(store.DateLayout, *deadline)
	if err != nil {
		return nil
	}
	days := int(d.Sub(today).Hours() / 24)
	return &days
}
