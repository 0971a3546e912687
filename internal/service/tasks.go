package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sadopc/worklog/internal/store"
)

// TaskInput carries the fields of a create or a partial update. Nil fields are
// left unchanged; an empty ParentID moves the task to the root.
type TaskInput struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	ParentID      *string   `json:"parentId"`
	Category      *string   `json:"category"`
	Priority      *string   `json:"priority"`
	Status        *string   `json:"status"`
	EstimatedTime *int64    `json:"estimatedTime"`
	ActualTime    *int64    `json:"actualTime"`
	Deadline      *string   `json:"deadline"`
	Tags          *[]string `json:"tags"`
}

func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*TaskNode, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	t := &store.Task{}
	if err := applyInput(t, in); err != nil {
		return nil, err
	}
	if t.Category == "" {
		if def, err := s.store.GetSetting(ctx, "default_category"); err == nil {
			t.Category = def
		}
	}

	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if t.ParentID != nil {
			ok, err := tx.TaskExists(ctx, *t.ParentID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: parent %s does not exist", ErrInvalidParent, *t.ParentID)
			}
		}
		if t.Status == store.StatusCompleted {
			now := s.now().UTC()
			t.CompletedAt = &now
		}
		if err := tx.CreateTask(ctx, t); err != nil {
			return err
		}
		if t.Status == store.StatusCompleted {
			_, err := tx.RecordCompletion(ctx, s.Today(), t.ID, t.Title)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task created", "task", t.ID, "title", t.Title)
	return s.GetTask(ctx, t.ID)
}

// UpdateTask applies in to the task. Completing a task stamps completedAt and
// records it in today's log; reparenting rejects cycles; ActualTime is a
// manual ledger correction for this task only.
func (s *Service) UpdateTask(ctx context.Context, id string, in TaskInput) (*TaskNode, error) {
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			return notFound(err)
		}
		wasCompleted := t.Status == store.StatusCompleted
		oldParent := t.ParentID

		if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrInvalid)
		}
		if err := applyInput(t, in); err != nil {
			return err
		}

		if t.ParentID != nil && (oldParent == nil || *oldParent != *t.ParentID) {
			if err := tx.CheckParent(ctx, id, *t.ParentID); err != nil {
				if errors.Is(err, store.ErrCycle) || errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: %v", ErrInvalidParent, err)
				}
				return err
			}
		}

		switch {
		case t.Status == store.StatusCompleted && !wasCompleted:
			now := s.now().UTC()
			t.CompletedAt = &now
			if _, err := tx.RecordCompletion(ctx, s.Today(), t.ID, t.Title); err != nil {
				return err
			}
		case t.Status != store.StatusCompleted:
			t.CompletedAt = nil
		}

		if err := tx.UpdateTask(ctx, t); err != nil {
			return err
		}
		if in.ActualTime != nil {
			return tx.SetActualTime(ctx, id, *in.ActualTime)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// DeleteTask force-stops tracking anywhere in the subtree, then removes the
// task, its descendants and their time entries. Both steps run under the
// tracker's lock so a concurrent start cannot open a row the delete would
// cascade away. Ancestors keep the time already credited to them.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	ids, err := s.store.SubtreeIDs(ctx, id)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrTaskNotFound)
	}
	err = s.tracker.StopTasks(ctx, ids, func(ctx context.Context) error {
		return notFound(s.store.DeleteTask(ctx, id))
	})
	if err != nil {
		return err
	}
	s.log.Info("task deleted", "task", id, "subtree", len(ids))
	return nil
}

// GetTask returns the task with its full subtree and derived fields.
func (s *Service) GetTask(ctx context.Context, id string) (*TaskNode, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	n := f.node(id)
	if n == nil {
		return nil, fmt.Errorf("get %s: %w", id, ErrTaskNotFound)
	}
	return n, nil
}

// ListTasks returns the children of parentID, or the roots when it is nil,
// each with its subtree.
func (s *Service) ListTasks(ctx context.Context, parentID *string) ([]TaskNode, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	key := ""
	if parentID != nil {
		if f.byID[*parentID] == nil {
			return nil, fmt.Errorf("list children of %s: %w", *parentID, ErrTaskNotFound)
		}
		key = *parentID
	}
	return f.nodes(f.children[key]), nil
}

// Hierarchy is every root task with its full subtree.
func (s *Service) Hierarchy(ctx context.Context) ([]TaskNode, error) {
	return s.ListTasks(ctx, nil)
}

// TasksByCategory filters every task, at any depth, by category.
func (s *Service) TasksByCategory(ctx context.Context, category string) ([]TaskNode, error) {
	return s.filter(ctx, func(t *store.Task) bool { return t.Category == category })
}

func (s *Service) TasksByStatus(ctx context.Context, status string) ([]TaskNode, error) {
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalid, status)
	}
	return s.filter(ctx, func(t *store.Task) bool { return t.Status == status })
}

func (s *Service) filter(ctx context.Context, keep func(*store.Task) bool) ([]TaskNode, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, t := range f.all {
		if keep(t) {
			ids = append(ids, t.ID)
		}
	}
	return f.nodes(ids), nil
}

// AllTasks returns every task flat, in creation order.
func (s *Service) AllTasks(ctx context.Context) ([]store.Task, error) {
	return s.store.ListAllTasks(ctx)
}

func applyInput(t *store.Task, in TaskInput) error {
	if in.Title != nil {
		t.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.ParentID != nil {
		if *in.ParentID == "" {
			t.ParentID = nil
		} else {
			p := *in.ParentID
			t.ParentID = &p
		}
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.Priority != nil {
		if !validPriority(*in.Priority) {
			return fmt.Errorf("%w: priority %q", ErrInvalid, *in.Priority)
		}
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		if !validStatus(*in.Status) {
			return fmt.Errorf("%w: status %q", ErrInvalid, *in.Status)
		}
		t.Status = *in.Status
	}
	if in.EstimatedTime != nil {
		if *in.EstimatedTime < 0 {
			return fmt.Errorf("%w: estimated time must not be negative", ErrInvalid)
		}
		t.EstimatedTime = in.EstimatedTime
	}
	if in.ActualTime != nil && *in.ActualTime < 0 {
		return fmt.Errorf("%w: actual time must not be negative", ErrInvalid)
	}
	if in.Deadline != nil {
		if *in.Deadline == "" {
			t.Deadline = nil
		} else {
			if _, err := parseDate(*in.Deadline); err != nil {
				return err
			}
			d := *in.Deadline
			t.Deadline = &d
		}
	}
	if in.Tags != nil {
		t.Tags = append([]string{}, (*in.Tags)...)
	}
	return nil
}

func validStatus(v string) bool {
	switch v {
	case store.StatusTodo, store.StatusInProgress, store.StatusCompleted:
		return true
	}
	return false
}

func validPriority(v string) bool {
	switch v {
	case store.PriorityLow, store.PriorityMedium, store.PriorityHigh:
		return true
	}
	return false
}
