package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sadopc/worklog/internal/store"
)

func TestProductivityStats(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	writing := mustCreate(t, s, TaskInput{Title: ptr("Draft"), Category: ptr("writing")})
	research := mustCreate(t, s, TaskInput{Title: ptr("Survey"), Category: ptr("research")})

	// Monday: 30 minutes writing, 60 research; one completion.
	s.StartTracking(ctx, writing.ID, "")
	c.Advance(30 * time.Minute)
	s.StartTracking(ctx, research.ID, "")
	c.Advance(60 * time.Minute)
	s.StopTracking(ctx, research.ID)
	s.UpdateTask(ctx, research.ID, TaskInput{Status: ptr(store.StatusCompleted)})

	// Wednesday: 45 minutes writing.
	c.Advance(48 * time.Hour)
	s.StartTracking(ctx, writing.ID, "")
	c.Advance(45 * time.Minute)
	s.StopTracking(ctx, writing.ID)

	st, err := s.ProductivityStats(ctx, "2025-03-10", "2025-03-12")
	if err != nil {
		t.Fatal(err)
	}
	want := &ProductivityStats{
		TotalTime:      135,
		TasksCompleted: 1,
		ProductivityScores: []DayScore{
			{Date: "2025-03-10", Score: 18},
			{Date: "2025-03-12", Score: 4},
		},
		CategoryBreakdown: map[string]int64{"writing": 75, "research": 60},
		DailyBreakdown: []DayBreakdown{
			{Date: "2025-03-10", Time: 90, Tasks: 1},
			{Date: "2025-03-12", Time: 45, Tasks: 0},
		},
	}
	if diff := cmp.Diff(want, st); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestTimeTrends(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	n := mustCreate(t, s, TaskInput{Title: ptr("Read")})

	s.StartTracking(ctx, n.ID, "")
	c.Advance(70 * time.Minute)
	s.StopTracking(ctx, n.ID)

	tr, err := s.TimeTrends(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if tr.TotalTime != 70 || tr.AverageTimePerDay != 10 {
		t.Fatalf("unexpected trends: %+v", tr)
	}
	if _, err := s.TimeTrends(ctx, 0); err == nil {
		t.Fatal("expected error for zero days")
	}
}

func TestDeadlines(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	overdue := mustCreate(t, s, TaskInput{Title: ptr("Overdue"), Deadline: ptr("2025-03-07")})
	tomorrow := mustCreate(t, s, TaskInput{Title: ptr("Tomorrow"), Deadline: ptr("2025-03-11")})
	week := mustCreate(t, s, TaskInput{Title: ptr("Friday"), Deadline: ptr("2025-03-14")})
	mustCreate(t, s, TaskInput{Title: ptr("Far"), Deadline: ptr("2025-04-30")})
	mustCreate(t, s, TaskInput{Title: ptr("Done"), Deadline: ptr("2025-03-01"), Status: ptr(store.StatusCompleted)})
	s.StartTracking(ctx, week.ID, "")

	d, err := s.Deadlines(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ids := func(nodes []TaskNode) []string {
		var out []string
		for _, n := range nodes {
			out = append(out, n.ID)
		}
		return out
	}
	if diff := cmp.Diff([]string{overdue.ID}, ids(d.Overdue)); diff != "" {
		t.Fatalf("overdue mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{tomorrow.ID}, ids(d.DueTomorrow)); diff != "" {
		t.Fatalf("tomorrow mismatch (-want +got):\n%s", diff)
	}
	if len(d.DueThisWeek) != 2 {
		t.Fatalf("expected 2 due this week, got %d", len(d.DueThisWeek))
	}
	if d.ActiveTaskID == nil || *d.ActiveTaskID != week.ID {
		t.Fatalf("expected active task %s, got %v", week.ID, d.ActiveTaskID)
	}
}

func TestSummary(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, s, TaskInput{Title: ptr("A")})
	mustCreate(t, s, TaskInput{Title: ptr("B"), Status: ptr(store.StatusInProgress)})

	s.StartTracking(ctx, a.ID, "")
	c.Advance(120 * time.Minute)
	s.StopTracking(ctx, a.ID)
	s.UpdateTask(ctx, a.ID, TaskInput{Status: ptr(store.StatusCompleted)})
	s.StartTracking(ctx, a.ID, "")

	sum, err := s.Summary(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := TodaySummary{Time: 120, TasksCompleted: 1, TasksWorkedOn: 1, ProductivityScore: 20, DailyGoal: 480}
	if diff := cmp.Diff(want, sum.Today); diff != "" {
		t.Fatalf("today mismatch (-want +got):\n%s", diff)
	}
	wantOverall := OverallSummary{TotalTasks: 2, CompletedTasks: 1, InProgressTasks: 1, ActiveTracking: 1}
	if diff := cmp.Diff(wantOverall, sum.Overall); diff != "" {
		t.Fatalf("overall mismatch (-want +got):\n%s", diff)
	}
	if sum.Week.TotalTime != 120 || sum.Week.AverageProductivity != 20 {
		t.Fatalf("unexpected week: %+v", sum.Week)
	}
}
