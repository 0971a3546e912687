package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDefaultCategory is returned when deleting one of the seeded categories.
	ErrDefaultCategory = errors.New("default categories cannot be deleted")
	ErrCategoryInUse   = errors.New("category is used by tasks")
	ErrDuplicate       = errors.New("already exists")
)

const categoryColumns = `id, name, color, description, is_default, created_at, updated_at`

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// CreateCategory inserts c. An empty id is derived from the name.
func (c conn) CreateCategory(ctx context.Context, cat *Category) error {
	if cat.ID == "" {
		cat.ID = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(cat.Name), "-"), "-")
	}
	if cat.ID == "" {
		return fmt.Errorf("create category: empty name")
	}
	if cat.Color == "" {
		cat.Color = "#3b82f6"
	}
	now := c.now()
	cat.CreatedAt, cat.UpdatedAt = now, now
	cat.IsDefault = false

	_, err := c.q.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		cat.ID, cat.Name, cat.Color, cat.Description, formatTime(now), formatTime(now),
	)
	if isUnique(err) {
		return fmt.Errorf("insert category %q: %w", cat.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (c conn) GetCategory(ctx context.Context, id string) (*Category, error) {
	cat, err := scanCategory(c.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get category %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return cat, nil
}

// ListCategories returns the defaults first, then custom categories by name.
func (c conn) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY is_default DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, *cat)
	}
	return cats, rows.Err()
}

func (c conn) UpdateCategory(ctx context.Context, cat *Category) error {
	cat.UpdatedAt = c.now()
	res, err := c.q.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ?, description = ?, updated_at = ? WHERE id = ?`,
		cat.Name, cat.Color, cat.Description, formatTime(cat.UpdatedAt), cat.ID,
	)
	if isUnique(err) {
		return fmt.Errorf("update category %s: %w", cat.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update category %s: %w", cat.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update category %s: %w", cat.ID, ErrNotFound)
	}
	return nil
}

func (c conn) DeleteCategory(ctx context.Context, id string) error {
	cat, err := c.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if cat.IsDefault {
		return fmt.Errorf("delete category %s: %w", id, ErrDefaultCategory)
	}
	var n int
	if err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE category = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("count tasks in category %s: %w", id, err)
	}
	if n > 0 {
		return fmt.Errorf("delete category %s: %w", id, ErrCategoryInUse)
	}
	if _, err := c.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

func scanCategory(sc scanner) (*Category, error) {
	cat := &Category{}
	var isDefault int
	var createdAt, updatedAt string
	err := sc.Scan(&cat.ID, &cat.Name, &cat.Color, &cat.Description, &isDefault, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	cat.IsDefault = isDefault == 1
	cat.CreatedAt = parseTime(createdAt)
	cat.UpdatedAt = parseTime(updatedAt)
	return cat, nil
}

func isUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
