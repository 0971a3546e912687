package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

type entriesExport struct {
	ExportedAt string      `json:"exported_at"`
	Count      int         `json:"count"`
	Entries    []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	ID             string `json:"id"`
	TaskID         string `json:"task_id"`
	Task           string `json:"task"`
	Category       string `json:"category,omitempty"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time,omitempty"`
	DurationMin    int64  `json:"duration_minutes"`
	Duration       string `json:"duration"`
	PausedDuration int64  `json:"paused_minutes"`
	Description    string `json:"description,omitempty"`
}

type tasksExport struct {
	ExportedAt string       `json:"exported_at"`
	Count      int          `json:"count"`
	Tasks      []store.Task `json:"tasks"`
}

func EntriesJSON(w io.Writer, rows []service.EntryRow, now time.Time) error {
	out := entriesExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(rows),
		Entries:    []jsonEntry{},
	}
	for _, r := range rows {
		title := r.TaskTitle
		if title == "" {
			title = "Unknown"
		}
		out.Entries = append(out.Entries, jsonEntry{
			ID:             r.ID,
			TaskID:         r.TaskID,
			Task:           title,
			Category:       r.Category,
			Date:           r.Date,
			StartTime:      r.StartTime.UTC().Format(time.RFC3339),
			EndTime:        formatOptTime(r.EndTime),
			DurationMin:    r.Duration,
			Duration:       formatDuration(r.Duration),
			PausedDuration: r.PausedDuration,
			Description:    r.Description,
		})
	}
	return writeIndented(w, out)
}

func TasksJSON(w io.Writer, tasks []store.Task, now time.Time) error {
	if tasks == nil {
		tasks = []store.Task{}
	}
	return writeIndented(w, tasksExport{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Count:      len(tasks),
		Tasks:      tasks,
	})
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return nil
}
