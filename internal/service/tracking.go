package service

import (
	"context"
	"fmt"

	"github.com/sadopc/worklog/internal/store"
)

// StartTracking starts a session on taskID, closing any other session first.
func (s *Service) StartTracking(ctx context.Context, taskID, description string) (*store.TimeEntry, error) {
	return s.tracker.Start(ctx, taskID, description)
}

// PauseTracking returns nil when taskID has no active session.
func (s *Service) PauseTracking(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	return s.tracker.Pause(ctx, taskID)
}

// ResumeTracking returns nil when taskID has no paused session.
func (s *Service) ResumeTracking(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	return s.tracker.Resume(ctx, taskID)
}

// StopTracking returns nil when taskID has nothing open.
func (s *Service) StopTracking(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	return s.tracker.Stop(ctx, taskID)
}

func (s *Service) ActiveEntries() []store.TimeEntry {
	return s.tracker.GetAllActive()
}

func (s *Service) ActiveTaskID() (string, bool) {
	return s.tracker.GetActiveTaskID()
}

func (s *Service) EntriesByTask(ctx context.Context, taskID string) ([]store.TimeEntry, error) {
	ok, err := s.store.TaskExists(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("entries of %s: %w", taskID, ErrTaskNotFound)
	}
	entries, err := s.store.EntriesByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []store.TimeEntry{}
	}
	return entries, nil
}

// EntryRow is a time entry joined with its task for listings and export.
type EntryRow struct {
	store.TimeEntry
	TaskTitle string `json:"taskTitle"`
	Category  string `json:"category"`
	ParentID  string `json:"parentId,omitempty"`
}

// Entries lists entries matching f, newest first, joined with their tasks.
func (s *Service) Entries(ctx context.Context, f store.EntryFilter) ([]EntryRow, error) {
	entries, err := s.store.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListAllTasks(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]store.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	rows := make([]EntryRow, 0, len(entries))
	for _, e := range entries {
		row := EntryRow{TimeEntry: e}
		if t, ok := byID[e.TaskID]; ok {
			row.TaskTitle = t.Title
			row.Category = t.Category
			if t.ParentID != nil {
				row.ParentID = *t.ParentID
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
