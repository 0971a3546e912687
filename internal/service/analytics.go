package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sadopc/worklog/internal/store"
)

type DayScore struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

type DayBreakdown struct {
	Date  string `json:"date"`
	Time  int64  `json:"time"`
	Tasks int    `json:"tasks"`
}

// ProductivityStats aggregates the stored daily logs of a date range. Days
// with no log are skipped.
type ProductivityStats struct {
	TotalTime          int64            `json:"totalTime"`
	TasksCompleted     int              `json:"tasksCompleted"`
	ProductivityScores []DayScore       `json:"productivityScores"`
	CategoryBreakdown  map[string]int64 `json:"categoryBreakdown"`
	DailyBreakdown     []DayBreakdown   `json:"dailyBreakdown"`
}

func (s *Service) ProductivityStats(ctx context.Context, start, end string) (*ProductivityStats, error) {
	if _, err := dateRange(start, end); err != nil {
		return nil, err
	}
	logs, err := s.store.DailyLogsBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListAllTasks(ctx)
	if err != nil {
		return nil, err
	}
	category := make(map[string]string, len(tasks))
	for _, t := range tasks {
		category[t.ID] = t.Category
	}

	st := &ProductivityStats{
		ProductivityScores: []DayScore{},
		CategoryBreakdown:  map[string]int64{},
		DailyBreakdown:     []DayBreakdown{},
	}
	for _, l := range logs {
		st.TotalTime += l.TotalTime
		st.TasksCompleted += len(l.TasksCompleted)
		st.ProductivityScores = append(st.ProductivityScores, DayScore{Date: l.Date, Score: l.ProductivityScore()})
		st.DailyBreakdown = append(st.DailyBreakdown, DayBreakdown{Date: l.Date, Time: l.TotalTime, Tasks: len(l.TasksCompleted)})
		for _, w := range l.TasksWorkedOn {
			c, ok := category[w.ID]
			if !ok {
				continue
			}
			if c == "" {
				c = store.DefaultCategory
			}
			st.CategoryBreakdown[c] += w.TimeSpent
		}
	}
	return st, nil
}

type TimeTrends struct {
	TimeByDay          []DayBreakdown   `json:"timeByDay"`
	ProductivityScores []DayScore       `json:"productivityScores"`
	CategoryBreakdown  map[string]int64 `json:"categoryBreakdown"`
	TotalTime          int64            `json:"totalTime"`
	TotalTasks         int              `json:"totalTasks"`
	AverageTimePerDay  float64          `json:"averageTimePerDay"`
	AverageTasksPerDay float64          `json:"averageTasksPerDay"`
}

// TimeTrends covers the last days days, today included.
func (s *Service) TimeTrends(ctx context.Context, days int) (*TimeTrends, error) {
	if days < 1 || days > maxRangeDays {
		return nil, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalid, maxRangeDays)
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -(days - 1))
	st, err := s.ProductivityStats(ctx, start.Format(store.DateLayout), end.Format(store.DateLayout))
	if err != nil {
		return nil, err
	}
	return &TimeTrends{
		TimeByDay:          st.DailyBreakdown,
		ProductivityScores: st.ProductivityScores,
		CategoryBreakdown:  st.CategoryBreakdown,
		TotalTime:          st.TotalTime,
		TotalTasks:         st.TasksCompleted,
		AverageTimePerDay:  float64(st.TotalTime) / float64(days),
		AverageTasksPerDay: float64(st.TasksCompleted) / float64(days),
	}, nil
}

type Deadlines struct {
	Overdue      []TaskNode `json:"overdue"`
	DueTomorrow  []TaskNode `json:"dueTomorrow"`
	DueThisWeek  []TaskNode `json:"dueThisWeek"`
	ActiveTaskID *string    `json:"activeTaskId"`
}

// Deadlines groups open tasks with a deadline. Completed tasks never appear.
func (s *Service) Deadlines(ctx context.Context) (*Deadlines, error) {
	f, err := s.forest(ctx)
	if err != nil {
		return nil, err
	}
	var overdue, tomorrow, week []string
	for _, t := range f.all {
		if t.Status == store.StatusCompleted {
			continue
		}
		d := daysUntil(t.Deadline, f.today)
		if d == nil {
			continue
		}
		switch {
		case *d < 0:
			overdue = append(overdue, t.ID)
		case *d <= dueSoonDays:
			week = append(week, t.ID)
			if *d == 1 {
				tomorrow = append(tomorrow, t.ID)
			}
		}
	}
	out := &Deadlines{
		Overdue:     f.nodes(overdue),
		DueTomorrow: f.nodes(tomorrow),
		DueThisWeek: f.nodes(week),
	}
	if id, ok := s.tracker.GetActiveTaskID(); ok {
		out.ActiveTaskID = &id
	}
	return out, nil
}

type TodaySummary struct {
	Time              int64 `json:"time"`
	TasksCompleted    int   `json:"tasksCompleted"`
	TasksWorkedOn     int   `json:"tasksWorkedOn"`
	ProductivityScore int   `json:"productivityScore"`
	DailyGoal         int   `json:"dailyGoal"`
}

type WeekSummary struct {
	TotalTime           int64            `json:"totalTime"`
	TasksCompleted      int              `json:"tasksCompleted"`
	AverageProductivity float64          `json:"averageProductivity"`
	CategoryBreakdown   map[string]int64 `json:"categoryBreakdown"`
}

type OverallSummary struct {
	TotalTasks      int `json:"totalTasks"`
	CompletedTasks  int `json:"completedTasks"`
	InProgressTasks int `json:"inProgressTasks"`
	ActiveTracking  int `json:"activeTracking"`
}

type Summary struct {
	Today   TodaySummary   `json:"today"`
	Week    WeekSummary    `json:"week"`
	Overall OverallSummary `json:"overall"`
}

// Summary reports today's log, the last seven days and task counts.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	now := s.now().UTC()
	today := now.Format(store.DateLayout)
	weekAgo := now.AddDate(0, 0, -7).Format(store.DateLayout)

	log, err := s.store.GetOrCreateDailyLog(ctx, today)
	if err != nil {
		return nil, err
	}
	week, err := s.ProductivityStats(ctx, weekAgo, today)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListAllTasks(ctx)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		Today: TodaySummary{
			Time:              log.TotalTime,
			TasksCompleted:    len(log.TasksCompleted),
			TasksWorkedOn:     len(log.TasksWorkedOn),
			ProductivityScore: log.ProductivityScore(),
			DailyGoal:         s.store.SettingInt(ctx, "daily_goal", 480),
		},
		Week: WeekSummary{
			TotalTime:         week.TotalTime,
			TasksCompleted:    week.TasksCompleted,
			CategoryBreakdown: week.CategoryBreakdown,
		},
		Overall: OverallSummary{
			TotalTasks:     len(tasks),
			ActiveTracking: len(s.tracker.GetAllActive()),
		},
	}
	if n := len(week.ProductivityScores); n > 0 {
		sum := 0
		for _, sc := range week.ProductivityScores {
			sum += sc.Score
		}
		out.Week.AverageProductivity = float64(sum) / float64(n)
	}
	for _, t := range tasks {
		switch t.Status {
		case store.StatusCompleted:
			out.Overall.CompletedTasks++
		case store.StatusInProgress:
			out.Overall.InProgressTasks++
		}
	}
	return out, nil
}

// dateRange expands start..end inclusive into day keys.
func dateRange(start, end string) ([]string, error) {
	from, err := parseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(end)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalid, end, start)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", ErrInvalid, maxRangeDays)
	}
	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(store.DateLayout))
	}
	return days, nil
}
