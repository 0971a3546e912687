package store

import (
	"math"
	"time"
)

const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	DefaultCategory = "general"
)

// DateLayout is the calendar-day key used by time entries and daily logs.
const DateLayout = "2006-01-02"

type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	ParentID      *string    `json:"parentId"`
	Category      string     `json:"category"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	EstimatedTime *int64     `json:"estimatedTime"` // minutes
	ActualTime    int64      `json:"actualTime"`    // minutes, maintained by the ledger
	Deadline      *string    `json:"deadline"`      // YYYY-MM-DD
	Tags          []string   `json:"tags"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt"`
}

// TimeEntry is one tracked interval of work on a task.
type TimeEntry struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"taskId"`
	StartTime      time.Time  `json:"startTime"`
	EndTime        *time.Time `json:"endTime"`
	Duration       int64      `json:"duration"` // minutes
	Description    string     `json:"description"`
	Date           string     `json:"date"`
	Paused         bool       `json:"isPaused"`
	PausedAt       *time.Time `json:"pausedAt,omitempty"`
	PausedDuration int64      `json:"pausedDuration"` // minutes, rounded from PausedTime
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	// PausedTime is the exact sum of folded pauses. Durations are derived
	// from it so short pauses are not rounded away one at a time.
	PausedTime time.Duration `json:"-"`
}

type CompletedTask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type WorkedTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	TimeSpent int64  `json:"timeSpent"` // minutes
}

// DailyLog is the per-day rollup of tracked time and completed tasks.
type DailyLog struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	TotalTime      int64           `json:"totalTime"` // minutes
	TasksCompleted []CompletedTask `json:"tasksCompleted"`
	TasksWorkedOn  []WorkedTask    `json:"tasksWorkedOn"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ProductivityScore weighs completed tasks at 10 points each and worked hours
// at 5 points each, with hours capped at 8.
func (l DailyLog) ProductivityScore() int {
	completed := float64(len(l.TasksCompleted) * 10)
	hours := math.Min(float64(l.TotalTime)/60, 8)
	return int(math.Round(completed + hours*5))
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	IsDefault   bool      `json:"isDefault"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Setting struct {
	Key   string
	Value string
}

// EntryFilter is used to filter time entries in queries.
type EntryFilter struct {
	TaskID *string
	From   *time.Time
	To     *time.Time
	Closed bool // only entries with an end time
	Limit  int
}
