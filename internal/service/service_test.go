package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

// 2025-03-10 is a Monday.
var t0 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	st, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	c := &clock{now: t0}
	st.SetClock(c.Now)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := tracker.New(st, tracker.WithClock(c.Now), tracker.WithLogger(quiet), tracker.WithTickInterval(0))
	return New(st, tr, WithClock(c.Now), WithLogger(quiet)), c
}

func ptr[T any](v T) *T { return &v }

func mustCreate(t *testing.T, s *Service, in TaskInput) *TaskNode {
	t.Helper()
	n, err := s.CreateTask(context.Background(), in)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return n
}

// ============================================================
// Task lifecycle
// ============================================================

func TestCreateTaskDefaults(t *testing.T) {
	s, _ := newTestService(t)
	n := mustCreate(t, s, TaskInput{Title: ptr("  Literature review ")})

	if n.Title != "Literature review" {
		t.Fatalf("expected trimmed title, got %q", n.Title)
	}
	if n.Category != store.DefaultCategory || n.Priority != store.PriorityMedium || n.Status != store.StatusTodo {
		t.Fatalf("unexpected defaults: %+v", n.Task)
	}
	if n.Children == nil || n.Tags == nil {
		t.Fatal("expected empty, non-nil children and tags")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   TaskInput
		want error
	}{
		{"missing title", TaskInput{}, ErrInvalid},
		{"blank title", TaskInput{Title: ptr("  ")}, ErrInvalid},
		{"bad priority", TaskInput{Title: ptr("x"), Priority: ptr("urgent")}, ErrInvalid},
		{"bad status", TaskInput{Title: ptr("x"), Status: ptr("done")}, ErrInvalid},
		{"bad deadline", TaskInput{Title: ptr("x"), Deadline: ptr("next week")}, ErrInvalid},
		{"unknown parent", TaskInput{Title: ptr("x"), ParentID: ptr("missing")}, ErrInvalidParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.CreateTask(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdateTaskCompletionRecordsLog(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	n := mustCreate(t, s, TaskInput{Title: ptr("Submit draft")})

	got, err := s.UpdateTask(ctx, n.ID, TaskInput{Status: ptr(store.StatusCompleted)})
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(t0) {
		t.Fatalf("expected completedAt %v, got %v", t0, got.CompletedAt)
	}
	// Completing again must not duplicate the log entry.
	s.UpdateTask(ctx, n.ID, TaskInput{Status: ptr(store.StatusCompleted)})

	log, err := s.DailyLog(ctx, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	want := []store.CompletedTask{{ID: n.ID, Title: "Submit draft"}}
	if diff := cmp.Diff(want, log.TasksCompleted); diff != "" {
		t.Fatalf("completed mismatch (-want +got):\n%s", diff)
	}
	if log.ProductivityScore != 10 {
		t.Fatalf("expected score 10, got %d", log.ProductivityScore)
	}

	reopened, _ := s.UpdateTask(ctx, n.ID, TaskInput{Status: ptr(store.StatusTodo)})
	if reopened.CompletedAt != nil {
		t.Fatal("expected completedAt cleared on reopen")
	}
}

func TestUpdateTaskRejectsCycle(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, s, TaskInput{Title: ptr("A")})
	b := mustCreate(t, s, TaskInput{Title: ptr("B"), ParentID: &a.ID})
	c := mustCreate(t, s, TaskInput{Title: ptr("C"), ParentID: &b.ID})

	_, err := s.UpdateTask(ctx, a.ID, TaskInput{ParentID: &c.ID})
	if !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("expected ErrInvalidParent, got %v", err)
	}
	got, _ := s.GetTask(ctx, a.ID)
	if got.ParentID != nil {
		t.Fatal("rejected reparent must not persist")
	}

	moved, err := s.UpdateTask(ctx, c.ID, TaskInput{ParentID: ptr("")})
	if err != nil {
		t.Fatal(err)
	}
	if moved.ParentID != nil {
		t.Fatal("expected C at the root")
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.UpdateTask(context.Background(), "missing", TaskInput{Title: ptr("x")})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestManualActualTimeEdit(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	parent := mustCreate(t, s, TaskInput{Title: ptr("P")})
	child := mustCreate(t, s, TaskInput{Title: ptr("C"), ParentID: &parent.ID})

	got, err := s.UpdateTask(ctx, child.ID, TaskInput{ActualTime: ptr(int64(45))})
	if err != nil {
		t.Fatal(err)
	}
	if got.ActualTime != 45 {
		t.Fatalf("expected 45, got %d", got.ActualTime)
	}
	p, _ := s.GetTask(ctx, parent.ID)
	if p.ActualTime != 0 {
		t.Fatalf("manual edit must not propagate, parent has %d", p.ActualTime)
	}
}

func TestDeleteTaskStopsTrackingInSubtree(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	root := mustCreate(t, s, TaskInput{Title: ptr("Root")})
	mid := mustCreate(t, s, TaskInput{Title: ptr("Mid"), ParentID: &root.ID})
	leaf := mustCreate(t, s, TaskInput{Title: ptr("Leaf"), ParentID: &mid.ID})

	if _, err := s.StartTracking(ctx, leaf.ID, ""); err != nil {
		t.Fatal(err)
	}
	c.Advance(20 * time.Minute)
	if err := s.DeleteTask(ctx, mid.ID); err != nil {
		t.Fatal(err)
	}

	if len(s.ActiveEntries()) != 0 {
		t.Fatal("expected tracking stopped")
	}
	r, _ := s.GetTask(ctx, root.ID)
	if r.ActualTime != 20 {
		t.Fatalf("expected root credited 20, got %d", r.ActualTime)
	}
	if len(r.Children) != 0 {
		t.Fatalf("expected subtree removed, got %d children", len(r.Children))
	}
	if _, err := s.GetTask(ctx, leaf.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected leaf gone, got %v", err)
	}
	if err := s.DeleteTask(ctx, mid.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTrackingSurvivesRowDeletedUnderSession(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	a := mustCreate(t, s, TaskInput{Title: ptr("A")})
	b := mustCreate(t, s, TaskInput{Title: ptr("B")})

	if _, err := s.StartTracking(ctx, a.ID, ""); err != nil {
		t.Fatal(err)
	}
	// A delete that bypassed the tracker, as a racing start once could.
	if err := s.store.DeleteTask(ctx, a.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := s.StartTracking(ctx, b.ID, ""); err != nil {
		t.Fatalf("start B after A's row vanished: %v", err)
	}
	if n := len(s.ActiveEntries()); n != 1 {
		t.Fatalf("expected one active entry, got %d", n)
	}
	c.Advance(10 * time.Minute)
	e, err := s.StopTracking(ctx, b.ID)
	if err != nil || e == nil || e.Duration != 10 {
		t.Fatalf("expected B stopped at 10 minutes, got %v %v", e, err)
	}
	if _, err := s.StartTracking(ctx, b.ID, ""); err != nil {
		t.Fatalf("restart B: %v", err)
	}
}

func TestDeleteTaskConcurrentWithStart(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	other := mustCreate(t, s, TaskInput{Title: ptr("Other")})

	for range 10 {
		doomed := mustCreate(t, s, TaskInput{Title: ptr("Doomed")})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.StartTracking(ctx, doomed.ID, "")
		}()
		go func() {
			defer wg.Done()
			if err := s.DeleteTask(ctx, doomed.ID); err != nil {
				t.Errorf("delete: %v", err)
			}
		}()
		wg.Wait()

		// Whichever order won, the tracker must still accept work.
		if _, err := s.StartTracking(ctx, other.ID, ""); err != nil {
			t.Fatalf("start after racing delete: %v", err)
		}
		if _, err := s.StopTracking(ctx, other.ID); err != nil {
			t.Fatalf("stop after racing delete: %v", err)
		}
	}
	if n := len(s.ActiveEntries()); n != 0 {
		t.Fatalf("expected nothing active, got %d", n)
	}
}

// ============================================================
// Derived fields
// ============================================================

func TestTaskNodeDerivedFields(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	root := mustCreate(t, s, TaskInput{Title: ptr("Thesis"), Deadline: ptr("2025-03-15")})
	mustCreate(t, s, TaskInput{Title: ptr("Intro"), ParentID: &root.ID, Status: ptr(store.StatusCompleted)})
	mustCreate(t, s, TaskInput{Title: ptr("Methods"), ParentID: &root.ID})
	mustCreate(t, s, TaskInput{Title: ptr("Results"), ParentID: &root.ID})
	late := mustCreate(t, s, TaskInput{Title: ptr("Late"), Deadline: ptr("2025-03-09")})

	n, err := s.GetTask(ctx, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(n.Children))
	}
	if n.Progress != 33 {
		t.Fatalf("expected progress 33, got %d", n.Progress)
	}
	if n.DaysUntilDeadline == nil || *n.DaysUntilDeadline != 5 {
		t.Fatalf("expected 5 days, got %v", n.DaysUntilDeadline)
	}
	if !n.IsDueSoon || n.IsOverdue {
		t.Fatalf("expected due soon and not overdue: %+v", n)
	}
	if n.Children[0].Progress != 100 || n.Children[1].Progress != 0 {
		t.Fatal("leaf progress should follow status")
	}

	l, _ := s.GetTask(ctx, late.ID)
	if !l.IsOverdue || l.IsDueSoon {
		t.Fatalf("expected overdue: %+v", l)
	}
}

func TestTotalTimeIncludesDescendants(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	root := mustCreate(t, s, TaskInput{Title: ptr("Root")})
	child := mustCreate(t, s, TaskInput{Title: ptr("Child"), ParentID: &root.ID})

	s.StartTracking(ctx, root.ID, "")
	c.Advance(10 * time.Minute)
	s.StartTracking(ctx, child.ID, "")
	c.Advance(15 * time.Minute)
	s.StopTracking(ctx, child.ID)

	n, _ := s.GetTask(ctx, root.ID)
	if n.TotalTime != 25 {
		t.Fatalf("expected 25, got %d", n.TotalTime)
	}
	if n.Children[0].TotalTime != 15 {
		t.Fatalf("expected child 15, got %d", n.Children[0].TotalTime)
	}
}

func TestFiltersCoverAllDepths(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	root := mustCreate(t, s, TaskInput{Title: ptr("Root"), Category: ptr("writing")})
	mustCreate(t, s, TaskInput{Title: ptr("Nested"), ParentID: &root.ID, Category: ptr("writing"), Status: ptr(store.StatusInProgress)})
	mustCreate(t, s, TaskInput{Title: ptr("Other"), Category: ptr("research")})

	writing, _ := s.TasksByCategory(ctx, "writing")
	if len(writing) != 2 {
		t.Fatalf("expected 2 writing tasks, got %d", len(writing))
	}
	inProgress, _ := s.TasksByStatus(ctx, store.StatusInProgress)
	if len(inProgress) != 1 || inProgress[0].Title != "Nested" {
		t.Fatalf("unexpected in-progress tasks: %+v", inProgress)
	}
	if _, err := s.TasksByStatus(ctx, "bogus"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	roots, _ := s.Hierarchy(ctx)
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	for _, r := range roots {
		if r.ID == root.ID && len(r.Children) != 1 {
			t.Fatalf("expected Root to carry its child, got %+v", r.Children)
		}
	}
}

// ============================================================
// Tracking
// ============================================================

func TestTrackingFlowAndObserver(t *testing.T) {
	s, c := newTestService(t)
	ctx := context.Background()
	n := mustCreate(t, s, TaskInput{Title: ptr("Write")})

	var got []tracker.Update
	s.OnTimeUpdate(func(u tracker.Update) { got = append(got, u) })

	if _, err := s.StartTracking(ctx, n.ID, "session"); err != nil {
		t.Fatal(err)
	}
	if id, ok := s.ActiveTaskID(); !ok || id != n.ID {
		t.Fatalf("expected %s active, got %q", n.ID, id)
	}
	c.Advance(20 * time.Minute)
	s.PauseTracking(ctx, n.ID)
	c.Advance(5 * time.Minute)
	s.ResumeTracking(ctx, n.ID)
	c.Advance(10 * time.Minute)
	e, err := s.StopTracking(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Duration != 30 {
		t.Fatalf("expected 30, got %d", e.Duration)
	}
	if diff := cmp.Diff([]tracker.Update{{TaskID: n.ID, Minutes: 30, Closed: true}}, got); diff != "" {
		t.Fatalf("updates mismatch (-want +got):\n%s", diff)
	}

	entries, _ := s.EntriesByTask(ctx, n.ID)
	if len(entries) != 1 || entries[0].Description != "session" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if _, err := s.EntriesByTask(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}

	rows, _ := s.Entries(ctx, store.EntryFilter{})
	if len(rows) != 1 || rows[0].TaskTitle != "Write" || rows[0].Category != store.DefaultCategory {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestStartTrackingUnknownTask(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.StartTracking(context.Background(), "missing", ""); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

// ============================================================
// Daily logs
// ============================================================

func TestDailyLogRange(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	logs, err := s.DailyLogRange(ctx, "2025-03-08", "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 || logs[0].Date != "2025-03-08" || logs[2].Date != "2025-03-10" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
	if _, err := s.DailyLogRange(ctx, "2025-03-10", "2025-03-08"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for reversed range, got %v", err)
	}
	if _, err := s.DailyLog(ctx, "yesterday"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestSetNotes(t *testing.T) {
	s, _ := newTestService(t)
	v, err := s.SetNotes(context.Background(), "2025-03-10", "finished outline")
	if err != nil {
		t.Fatal(err)
	}
	if v.Notes != "finished outline" {
		t.Fatalf("unexpected notes %q", v.Notes)
	}
}

// ============================================================
// Categories
// ============================================================

func TestCategoryErrors(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	if _, err := s.CreateCategory(ctx, CategoryInput{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, err := s.CreateCategory(ctx, CategoryInput{Name: ptr("Research")}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected duplicate rejected, got %v", err)
	}
	if err := s.DeleteCategory(ctx, "general"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected default category protected, got %v", err)
	}
	if _, err := s.Category(ctx, "missing"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	c, err := s.CreateCategory(ctx, CategoryInput{Name: ptr("Admin"), Color: ptr("#111111")})
	if err != nil {
		t.Fatal(err)
	}
	updated, err := s.UpdateCategory(ctx, c.ID, CategoryInput{Description: ptr("paperwork")})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Admin" || updated.Description != "paperwork" {
		t.Fatalf("unexpected category: %+v", updated)
	}
	if err := s.DeleteCategory(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
}
