package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrCycle is returned when a parent assignment would make a task its own ancestor.
var ErrCycle = errors.New("parent assignment would create a cycle")

const taskColumns = `id, title, description, parent_id, category, priority, status,
	estimated_time, actual_time, deadline, tags, created_at, updated_at, completed_at`

// CreateTask inserts t, filling in the id, defaults and timestamps.
func (c conn) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	now := c.now()
	t.CreatedAt, t.UpdatedAt = now, now

	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	_, err = c.q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.ParentID, t.Category, t.Priority, t.Status,
		t.EstimatedTime, t.ActualTime, t.Deadline, tags, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		nullTime(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (c conn) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(c.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (c conn) TaskExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("task exists %s: %w", id, err)
	}
	return n > 0, nil
}

// ListTasks returns the children of parentID ordered by creation, or the root
// tasks when parentID is nil.
func (c conn) ListTasks(ctx context.Context, parentID *string) ([]Task, error) {
	if parentID == nil {
		return c.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE parent_id IS NULL ORDER BY created_at, title`)
	}
	return c.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE parent_id = ? ORDER BY created_at, title`, *parentID)
}

func (c conn) ListAllTasks(ctx context.Context) ([]Task, error) {
	return c.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at, title`)
}

// UpdateTask writes every field except actual_time, which only the ledger
// (ApplyDelta) and SetActualTime may change.
func (c conn) UpdateTask(ctx context.Context, t *Task) error {
	t.UpdatedAt = c.now()
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := c.q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, parent_id = ?, category = ?, priority = ?, status = ?,
		        estimated_time = ?, deadline = ?, tags = ?, updated_at = ?, completed_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, t.ParentID, t.Category, t.Priority, t.Status,
		t.EstimatedTime, t.Deadline, tags, formatTime(t.UpdatedAt), nullTime(t.CompletedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update task %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

// SubtreeIDs returns id and the ids of all its descendants, root first.
func (c conn) SubtreeIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := c.q.QueryContext(ctx, `
		WITH RECURSIVE subtree(id, depth) AS (
			SELECT id, 0 FROM tasks WHERE id = ?
			UNION
			SELECT t.id, s.depth + 1 FROM tasks t JOIN subtree s ON t.parent_id = s.id
			WHERE s.depth < ?
		)
		SELECT id FROM subtree ORDER BY depth`, id, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("subtree of %s: %w", id, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var tid string
		if err := rows.Scan(&tid); err != nil {
			return nil, err
		}
		ids = append(ids, tid)
	}
	return ids, rows.Err()
}

// DeleteTask removes the task; descendants and time entries cascade.
func (c conn) DeleteTask(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete task %s: %w", id, ErrNotFound)
	}
	return nil
}

// CheckParent returns ErrCycle if making parentID the parent of taskID would
// put taskID on its own ancestor chain, and ErrNotFound if parentID is unknown.
func (c conn) CheckParent(ctx context.Context, taskID, parentID string) error {
	if taskID == parentID {
		return ErrCycle
	}
	seen := make(map[string]bool)
	cur := parentID
	for depth := 0; cur != ""; depth++ {
		if cur == taskID || seen[cur] || depth > maxDepth {
			return ErrCycle
		}
		seen[cur] = true

		var parent sql.NullString
		err := c.q.QueryRowContext(ctx, `SELECT parent_id FROM tasks WHERE id = ?`, cur).Scan(&parent)
		if errors.Is(err, sql.ErrNoRows) {
			if cur == parentID {
				return fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("check parent %s: %w", parentID, err)
		}
		cur = parent.String
	}
	return nil
}

func (c conn) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func scanTask(sc scanner) (*Task, error) {
	t := &Task{}
	var parentID, deadline, completedAt sql.NullString
	var estimated sql.NullInt64
	var tags, createdAt, updatedAt string

	err := sc.Scan(&t.ID, &t.Title, &t.Description, &parentID, &t.Category, &t.Priority, &t.Status,
		&estimated, &t.ActualTime, &deadline, &tags, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	if estimated.Valid {
		t.EstimatedTime = &estimated.Int64
	}
	if deadline.Valid {
		t.Deadline = &deadline.String
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of task %s: %w", t.ID, err)
		}
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.CompletedAt = timePtr(completedAt)
	return t, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}
