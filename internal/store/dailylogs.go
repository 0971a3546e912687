package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const dailyLogColumns = `id, date, total_time, tasks_completed, tasks_worked_on, notes, created_at, updated_at`

// GetDailyLog returns the stored log for date, or ErrNotFound.
func (c conn) GetDailyLog(ctx context.Context, date string) (*DailyLog, error) {
	l, err := scanDailyLog(c.q.QueryRowContext(ctx,
		`SELECT `+dailyLogColumns+` FROM daily_logs WHERE date = ?`, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get daily log %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get daily log %s: %w", date, err)
	}
	return l, nil
}

// DailyLogsBetween returns the stored logs with from <= date <= to.
func (c conn) DailyLogsBetween(ctx context.Context, from, to string) ([]DailyLog, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+dailyLogColumns+` FROM daily_logs WHERE date >= ? AND date <= ? ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var logs []DailyLog
	for rows.Next() {
		l, err := scanDailyLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (s *Store) GetOrCreateDailyLog(ctx context.Context, date string) (*DailyLog, error) {
	var l *DailyLog
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		l, err = tx.getOrCreateDailyLog(ctx, date)
		return err
	})
	return l, err
}

// RecordTimeWorked adds minutes to the day's total and to the worked-on entry
// for taskID, creating either as needed.
func (s *Store) RecordTimeWorked(ctx context.Context, date, taskID, title string, minutes int64) (*DailyLog, error) {
	var l *DailyLog
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		l, err = tx.recordTimeWorked(ctx, date, taskID, title, minutes)
		return err
	})
	return l, err
}

// RecordCompletion appends taskID to the day's completed list unless it is
// already there.
func (s *Store) RecordCompletion(ctx context.Context, date, taskID, title string) (*DailyLog, error) {
	var l *DailyLog
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		l, err = tx.RecordCompletion(ctx, date, taskID, title)
		return err
	})
	return l, err
}

func (s *Store) SetNotes(ctx context.Context, date, notes string) (*DailyLog, error) {
	var l *DailyLog
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		l, err = tx.getOrCreateDailyLog(ctx, date)
		if err != nil {
			return err
		}
		l.Notes = notes
		return tx.saveDailyLog(ctx, l)
	})
	return l, err
}

func (tx *Tx) RecordCompletion(ctx context.Context, date, taskID, title string) (*DailyLog, error) {
	l, err := tx.getOrCreateDailyLog(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, t := range l.TasksCompleted {
		if t.ID == taskID {
			return l, nil
		}
	}
	l.TasksCompleted = append(l.TasksCompleted, CompletedTask{ID: taskID, Title: title})
	return l, tx.saveDailyLog(ctx, l)
}

func (c conn) recordTimeWorked(ctx context.Context, date, taskID, title string, minutes int64) (*DailyLog, error) {
	l, err := c.getOrCreateDailyLog(ctx, date)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range l.TasksWorkedOn {
		if l.TasksWorkedOn[i].ID == taskID {
			l.TasksWorkedOn[i].TimeSpent += minutes
			found = true
			break
		}
	}
	if !found {
		l.TasksWorkedOn = append(l.TasksWorkedOn, WorkedTask{ID: taskID, Title: title, TimeSpent: minutes})
	}
	l.TotalTime += minutes
	return l, c.saveDailyLog(ctx, l)
}

func (c conn) getOrCreateDailyLog(ctx context.Context, date string) (*DailyLog, error) {
	l, err := c.GetDailyLog(ctx, date)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := c.now()
	l = &DailyLog{
		ID:             uuid.NewString(),
		Date:           date,
		TasksCompleted: []CompletedTask{},
		TasksWorkedOn:  []WorkedTask{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	completed, worked, err := encodeDailyLists(l)
	if err != nil {
		return nil, err
	}
	_, err = c.q.ExecContext(ctx,
		`INSERT INTO daily_logs (`+dailyLogColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Date, l.TotalTime, completed, worked, l.Notes, formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create daily log %s: %w", date, err)
	}
	return l, nil
}

func (c conn) saveDailyLog(ctx context.Context, l *DailyLog) error {
	l.UpdatedAt = c.now()
	completed, worked, err := encodeDailyLists(l)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx,
		`UPDATE daily_logs SET total_time = ?, tasks_completed = ?, tasks_worked_on = ?, notes = ?, updated_at = ?
		 WHERE date = ?`,
		l.TotalTime, completed, worked, l.Notes, formatTime(l.UpdatedAt), l.Date,
	)
	if err != nil {
		return fmt.Errorf("save daily log %s: %w", l.Date, err)
	}
	return nil
}

func encodeDailyLists(l *DailyLog) (string, string, error) {
	completed, err := json.Marshal(nonNil(l.TasksCompleted))
	if err != nil {
		return "", "", fmt.Errorf("encode completed tasks: %w", err)
	}
	worked, err := json.Marshal(nonNil(l.TasksWorkedOn))
	if err != nil {
		return "", "", fmt.Errorf("encode worked tasks: %w", err)
	}
	return string(completed), string(worked), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func scanDailyLog(sc scanner) (*DailyLog, error) {
	l := &DailyLog{}
	var completed, worked, createdAt, updatedAt string
	err := sc.Scan(&l.ID, &l.Date, &l.TotalTime, &completed, &worked, &l.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(completed), &l.TasksCompleted); err != nil {
		return nil, fmt.Errorf("decode completed tasks for %s: %w", l.Date, err)
	}
	if err := json.Unmarshal([]byte(worked), &l.TasksWorkedOn); err != nil {
		return nil, fmt.Errorf("decode worked tasks for %s: %w", l.Date, err)
	}
	l.TasksCompleted = nonNil(l.TasksCompleted)
	l.TasksWorkedOn = nonNil(l.TasksWorkedOn)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}
