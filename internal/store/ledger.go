package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// maxDepth bounds every walk over the parent chain.
const maxDepth = 256

// ApplyDelta adds minutes to the task's actual time and to every ancestor's,
// inside one transaction. It returns the ids it updated, leaf first.
func (s *Store) ApplyDelta(ctx context.Context, taskID string, minutes int64) ([]string, error) {
	var updated []string
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		updated, err = tx.ApplyDelta(ctx, taskID, minutes)
		return err
	})
	return updated, err
}

// ApplyDelta is the in-transaction form of Store.ApplyDelta.
func (tx *Tx) ApplyDelta(ctx context.Context, taskID string, minutes int64) ([]string, error) {
	return tx.applyDelta(ctx, taskID, minutes, make(map[string]bool), nil)
}

// applyDelta reads the latest persisted value, writes value+minutes and
// recurses into the parent with the same minutes. A revisited id stops the
// walk so a corrupted parent chain cannot loop.
func (c conn) applyDelta(ctx context.Context, taskID string, minutes int64, seen map[string]bool, updated []string) ([]string, error) {
	if seen[taskID] || len(seen) >= maxDepth {
		return updated, nil
	}
	seen[taskID] = true

	var actual int64
	var parent sql.NullString
	err := c.q.QueryRowContext(ctx,
		`SELECT actual_time, parent_id FROM tasks WHERE id = ?`, taskID,
	).Scan(&actual, &parent)
	if errors.Is(err, sql.ErrNoRows) {
		if len(updated) == 0 {
			return nil, fmt.Errorf("apply delta to task %s: %w", taskID, ErrNotFound)
		}
		return updated, nil
	}
	if err != nil {
		return updated, fmt.Errorf("read task time %s: %w", taskID, err)
	}

	_, err = c.q.ExecContext(ctx,
		`UPDATE tasks SET actual_time = ?, updated_at = ? WHERE id = ?`,
		actual+minutes, formatTime(c.now()), taskID,
	)
	if err != nil {
		return updated, fmt.Errorf("write task time %s: %w", taskID, err)
	}
	updated = append(updated, taskID)

	if parent.Valid && parent.String != "" {
		return c.applyDelta(ctx, parent.String, minutes, seen, updated)
	}
	return updated, nil
}

// SetActualTime overwrites a task's cumulative time. It does not propagate:
// a manual edit corrects one task only.
func (c conn) SetActualTime(ctx context.Context, taskID string, minutes int64) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE tasks SET actual_time = ?, updated_at = ? WHERE id = ?`,
		minutes, formatTime(c.now()), taskID,
	)
	if err != nil {
		return fmt.Errorf("set actual time %s: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set actual time %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// CloseEntry commits a stopped entry as one unit of work: the entry row, the
// ledger propagation and the daily log for the entry's date. An entry whose
// task no longer exists is persisted without ledger or log updates.
func (s *Store) CloseEntry(ctx context.Context, e *TimeEntry) error {
	return s.InTx(ctx, func(tx *Tx) error {
		return tx.CloseEntry(ctx, e)
	})
}

func (tx *Tx) CloseEntry(ctx context.Context, e *TimeEntry) error {
	if e.EndTime == nil {
		return fmt.Errorf("close entry %s: entry has no end time", e.ID)
	}
	if err := tx.UpdateEntry(ctx, e); err != nil {
		return err
	}

	task, err := tx.GetTask(ctx, e.TaskID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := tx.ApplyDelta(ctx, e.TaskID, e.Duration); err != nil {
		return err
	}
	_, err = tx.recordTimeWorked(ctx, e.Date, task.ID, task.Title, e.Duration)
	return err
}
