// Package export writes time entries and tasks as CSV or JSON.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

var entryHeader = []string{"ID", "Task ID", "Task", "Category", "Date", "Start", "End", "Duration (min)", "Duration", "Paused (min)", "Description"}

func EntriesCSV(w io.Writer, rows []service.EntryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(entryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		title := r.TaskTitle
		if title == "" {
			title = "Unknown"
		}
		record := []string{
			r.ID,
			r.TaskID,
			title,
			r.Category,
			r.Date,
			r.StartTime.UTC().Format(time.RFC3339),
			formatOptTime(r.EndTime),
			strconv.FormatInt(r.Duration, 10),
			formatDuration(r.Duration),
			strconv.FormatInt(r.PausedDuration, 10),
			r.Description,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var taskHeader = []string{"ID", "Title", "Parent ID", "Category", "Priority", "Status", "Estimated (min)", "Actual (min)", "Deadline", "Tags", "Created", "Completed"}

func TasksCSV(w io.Writer, tasks []store.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(taskHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		record := []string{
			t.ID,
			t.Title,
			deref(t.ParentID),
			t.Category,
			t.Priority,
			t.Status,
			"",
			strconv.FormatInt(t.ActualTime, 10),
			deref(t.Deadline),
			strings.Join(t.Tags, ";"),
			t.CreatedAt.UTC().Format(time.RFC3339),
			formatOptTime(t.CompletedAt),
		}
		if t.EstimatedTime != nil {
			record[6] = strconv.FormatInt(*t.EstimatedTime, 10)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToFile renders with write and replaces path atomically, so a failed
// export leaves any previous file untouched.
func ToFile(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// formatDuration renders minutes as HH:MM.
func formatDuration(mins int64) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
