package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entryColumns = `id, task_id, start_time, end_time, duration, description, date,
	is_paused, paused_at, paused_duration, paused_ms, created_at, updated_at`

// CreateEntry inserts e. It is called when tracking starts so an open row
// exists for crash recovery.
func (c conn) CreateEntry(ctx context.Context, e *TimeEntry) error {
	_, err := c.q.ExecContext(ctx,
		`INSERT INTO time_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, formatTime(e.StartTime), nullTime(e.EndTime), e.Duration, e.Description, e.Date,
		boolInt(e.Paused), nullTime(e.PausedAt), e.PausedDuration, e.PausedTime.Milliseconds(), formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// UpdateEntry writes the mutable state of e (pause bookkeeping, end, duration).
func (c conn) UpdateEntry(ctx context.Context, e *TimeEntry) error {
	res, err := c.q.ExecContext(ctx,
		`UPDATE time_entries
		 SET end_time = ?, duration = ?, description = ?, is_paused = ?, paused_at = ?,
		     paused_duration = ?, paused_ms = ?, updated_at = ?
		 WHERE id = ?`,
		nullTime(e.EndTime), e.Duration, e.Description, boolInt(e.Paused), nullTime(e.PausedAt),
		e.PausedDuration, e.PausedTime.Milliseconds(), formatTime(e.UpdatedAt), e.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update entry %s: %w", e.ID, ErrNotFound)
	}
	return nil
}

func (c conn) GetEntry(ctx context.Context, id string) (*TimeEntry, error) {
	e, err := scanEntry(c.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}

// LatestOpenEntry returns the most recent entry for taskID with no end time,
// or nil when there is none.
func (c conn) LatestOpenEntry(ctx context.Context, taskID string) (*TimeEntry, error) {
	e, err := scanEntry(c.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries
		 WHERE task_id = ? AND end_time IS NULL
		 ORDER BY start_time DESC, created_at DESC LIMIT 1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open entry for task %s: %w", taskID, err)
	}
	return e, nil
}

// OpenEntries lists every entry without an end time, newest first.
func (c conn) OpenEntries(ctx context.Context) ([]TimeEntry, error) {
	return c.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE end_time IS NULL ORDER BY start_time DESC, created_at DESC`)
}

func (c conn) EntriesByTask(ctx context.Context, taskID string) ([]TimeEntry, error) {
	return c.ListEntries(ctx, EntryFilter{TaskID: &taskID})
}

func (c conn) ListEntries(ctx context.Context, f EntryFilter) ([]TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE 1=1`
	var args []any

	if f.TaskID != nil {
		query += ` AND task_id = ?`
		args = append(args, *f.TaskID)
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, formatTime(*f.To))
	}
	if f.Closed {
		query += ` AND end_time IS NOT NULL`
	}
	query += ` ORDER BY start_time DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	return c.queryEntries(ctx, query, args...)
}

// TrackedTotal sums closed durations for entries dated date.
func (c conn) TrackedTotal(ctx context.Context, date string) (int64, error) {
	var total sql.NullInt64
	err := c.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration), 0) FROM time_entries WHERE date = ? AND end_time IS NOT NULL`, date,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("tracked total: %w", err)
	}
	return total.Int64, nil
}

func (c conn) queryEntries(ctx context.Context, query string, args ...any) ([]TimeEntry, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*TimeEntry, error) {
	e := &TimeEntry{}
	var startTime, createdAt, updatedAt string
	var endTime, pausedAt sql.NullString
	var paused int
	var pausedMS int64

	err := sc.Scan(&e.ID, &e.TaskID, &startTime, &endTime, &e.Duration, &e.Description, &e.Date,
		&paused, &pausedAt, &e.PausedDuration, &pausedMS, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	e.StartTime = parseTime(startTime)
	e.EndTime = timePtr(endTime)
	e.Paused = paused == 1
	e.PausedAt = timePtr(pausedAt)
	e.PausedTime = time.Duration(pausedMS) * time.Millisecond
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return e, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
