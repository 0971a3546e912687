package store

import (
	"math"
	"time"
)

// EntryState is the lifecycle position of a time entry.
type EntryState int

const (
	EntryOpen EntryState = iota
	EntryPaused
	EntryClosed
)

func (s EntryState) String() string {
	switch s {
	case EntryOpen:
		return "open"
	case EntryPaused:
		return "paused"
	case EntryClosed:
		return "closed"
	}
	return "unknown"
}

// NewEntry builds an open entry for taskID starting at start.
func NewEntry(id, taskID, description string, start time.Time) *TimeEntry {
	start = start.UTC()
	return &TimeEntry{
		ID:          id,
		TaskID:      taskID,
		StartTime:   start,
		Description: description,
		Date:        start.Format(DateLayout),
		CreatedAt:   start,
		UpdatedAt:   start,
	}
}

func (e *TimeEntry) State() EntryState {
	switch {
	case e.EndTime != nil:
		return EntryClosed
	case e.Paused:
		return EntryPaused
	}
	return EntryOpen
}

// Pause freezes accrual. It reports false unless the entry was open.
func (e *TimeEntry) Pause(now time.Time) bool {
	if e.State() != EntryOpen {
		return false
	}
	now = now.UTC()
	e.Paused = true
	e.PausedAt = &now
	e.UpdatedAt = now
	return true
}

// Resume restarts accrual, folding the pause into PausedTime. It reports
// false unless the entry was paused.
func (e *TimeEntry) Resume(now time.Time) bool {
	if e.State() != EntryPaused {
		return false
	}
	now = now.UTC()
	e.foldPause(now)
	e.Paused = false
	e.UpdatedAt = now
	return true
}

// Close stamps the end time and computes the final duration. Closing an
// already closed entry is a no-op that reports false.
func (e *TimeEntry) Close(now time.Time) bool {
	if e.State() == EntryClosed {
		return false
	}
	now = now.UTC()
	if e.Paused {
		e.foldPause(now)
		e.Paused = false
	}
	e.EndTime = &now
	e.Duration = e.durationAt(now)
	e.UpdatedAt = now
	return true
}

// CurrentDuration is the live duration in minutes. Closed entries report their
// stored duration; a pause in progress counts as paused time.
func (e *TimeEntry) CurrentDuration(now time.Time) int64 {
	if e.EndTime != nil {
		return e.Duration
	}
	paused := e.PausedTime
	if e.Paused && e.PausedAt != nil && now.After(*e.PausedAt) {
		paused += now.Sub(*e.PausedAt)
	}
	return clampDuration(roundMinutes(now.Sub(e.StartTime)), roundMinutes(paused))
}

// Elapsed is the live worked time at second resolution, for display.
func (e *TimeEntry) Elapsed(now time.Time) time.Duration {
	end := now
	if e.EndTime != nil {
		end = *e.EndTime
	} else if e.Paused && e.PausedAt != nil {
		end = *e.PausedAt
	}
	d := end.Sub(e.StartTime) - e.PausedTime
	if d < 0 {
		return 0
	}
	return d
}

func (e *TimeEntry) durationAt(end time.Time) int64 {
	return clampDuration(roundMinutes(end.Sub(e.StartTime)), roundMinutes(e.PausedTime))
}

// foldPause adds the pause in progress to PausedTime. Only the running total
// is rounded into PausedDuration.
func (e *TimeEntry) foldPause(now time.Time) {
	if e.PausedAt != nil && now.After(*e.PausedAt) {
		e.PausedTime += now.Sub(*e.PausedAt)
	}
	// Paused time can never exceed the wall-clock span.
	if span := now.Sub(e.StartTime); e.PausedTime > span {
		e.PausedTime = max(span, 0)
	}
	e.PausedDuration = roundMinutes(e.PausedTime)
	e.PausedAt = nil
}

func roundMinutes(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Round(d.Minutes()))
}

func clampDuration(span, paused int64) int64 {
	if d := span - paused; d > 0 {
		return d
	}
	return 0
}
