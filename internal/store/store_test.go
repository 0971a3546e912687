package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var t0 = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	s.SetClock(func() time.Time { return t0 })
	t.Cleanup(func() { s.Close() })
	return s
}

func mustTask(t *testing.T, s *Store, title string, parent *Task) *Task {
	t.Helper()
	task := &Task{Title: title}
	if parent != nil {
		task.ParentID = &parent.ID
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}

// closedEntry persists an open entry for task and closes it after d.
func closedEntry(t *testing.T, s *Store, task *Task, start time.Time, d time.Duration) *TimeEntry {
	t.Helper()
	ctx := context.Background()
	e := NewEntry(task.ID+start.Format(time.RFC3339), task.ID, "", start)
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	e.Close(start.Add(d))
	if err := s.CloseEntry(ctx, e); err != nil {
		t.Fatalf("close entry: %v", err)
	}
	return e
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != currentVersion {
		t.Fatalf("expected user_version %d, got %d", currentVersion, version)
	}
}

func TestNewWithPath(t *testing.T) {
	path := t.TempDir() + "/sub/worklog.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: should succeed and not re-migrate.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestDefaultDataDir(t *testing.T) {
	dir, err := DefaultDataDir()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(dir) != "worklog" {
		t.Fatalf("data dir = %q", dir)
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)
	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestMigrationCarriesPausedMinutes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worklog.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	task := mustTask(t, s, "Legacy", nil)
	// Rewind to the v1 layout and insert a row the way v1 stored it.
	for _, q := range []string{
		`ALTER TABLE time_entries DROP COLUMN paused_ms`,
		`PRAGMA user_version = 1`,
	} {
		if _, err := s.db.Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	_, err = s.db.Exec(`INSERT INTO time_entries
		(id, task_id, start_time, end_time, duration, date, paused_duration, created_at, updated_at)
		VALUES ('old', ?, '2025-03-10T10:00:00Z', '2025-03-10T10:30:00Z', 25, '2025-03-10', 5,
		        '2025-03-10T10:00:00Z', '2025-03-10T10:30:00Z')`, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	e, err := s.GetEntry(context.Background(), "old")
	if err != nil {
		t.Fatal(err)
	}
	if e.PausedTime != 5*time.Minute || e.PausedDuration != 5 {
		t.Fatalf("expected 5 paused minutes, got %s (%d)", e.PausedTime, e.PausedDuration)
	}
}

// ============================================================
// Tasks
// ============================================================

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	est := int64(120)
	deadline := "2025-03-20"
	task := &Task{Title: "Chapter 2", EstimatedTime: &est, Deadline: &deadline, Tags: []string{"draft"}}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	if task.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := &Task{
		ID: task.ID, Title: "Chapter 2", Category: DefaultCategory, Priority: PriorityMedium,
		Status: StatusTodo, EstimatedTime: &est, Deadline: &deadline, Tags: []string{"draft"},
		CreatedAt: t0, UpdatedAt: t0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("task mismatch (-want +got):\n%s", diff)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTasksByParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root := mustTask(t, s, "Thesis", nil)
	mustTask(t, s, "Intro", root)
	mustTask(t, s, "Methods", root)
	mustTask(t, s, "Side project", nil)

	roots, err := s.ListTasks(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(roots))
	}
	children, err := s.ListTasks(ctx, &root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestUpdateTaskKeepsActualTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, "Write", nil)

	if _, err := s.ApplyDelta(ctx, task.ID, 40); err != nil {
		t.Fatal(err)
	}
	// task still carries the stale ActualTime of 0.
	task.Title = "Write more"
	if err := s.UpdateTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTask(ctx, task.ID)
	if got.ActualTime != 40 {
		t.Fatalf("expected actual time 40 to survive the edit, got %d", got.ActualTime)
	}
	if got.Title != "Write more" {
		t.Fatalf("expected title update, got %q", got.Title)
	}
}

func TestCheckParentRejectsCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustTask(t, s, "A", nil)
	b := mustTask(t, s, "B", a)
	c := mustTask(t, s, "C", b)

	if err := s.CheckParent(ctx, a.ID, c.ID); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle for A under C, got %v", err)
	}
	if err := s.CheckParent(ctx, a.ID, a.ID); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle for self parent, got %v", err)
	}
	if err := s.CheckParent(ctx, c.ID, a.ID); err != nil {
		t.Fatalf("expected C under A to be allowed, got %v", err)
	}
	if err := s.CheckParent(ctx, c.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown parent, got %v", err)
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	root := mustTask(t, s, "Root", nil)
	child := mustTask(t, s, "Child", root)
	grandchild := mustTask(t, s, "Grandchild", child)
	closedEntry(t, s, grandchild, t0, 10*time.Minute)

	ids, err := s.SubtreeIDs(ctx, root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{root.ID, child.ID, grandchild.ID}, ids); diff != "" {
		t.Fatalf("subtree mismatch (-want +got):\n%s", diff)
	}

	if err := s.DeleteTask(ctx, root.ID); err != nil {
		t.Fatal(err)
	}
	all, _ := s.ListAllTasks(ctx)
	if len(all) != 0 {
		t.Fatalf("expected no tasks, got %d", len(all))
	}
	entries, _ := s.ListEntries(ctx, EntryFilter{})
	if len(entries) != 0 {
		t.Fatalf("expected entries to cascade, got %d", len(entries))
	}
	if err := s.DeleteTask(ctx, root.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

// ============================================================
// Time entries
// ============================================================

func TestCreateEntryForeignKey(t *testing.T) {
	s := newTestStore(t)
	e := NewEntry("e1", "missing-task", "", t0)
	if err := s.CreateEntry(context.Background(), e); err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestOpenEntryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, "Read", nil)

	e := NewEntry("e1", task.ID, "papers", t0)
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Pause(t0.Add(20 * time.Minute))
	e.UpdatedAt = t0.Add(20 * time.Minute)
	if err := s.UpdateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := s.LatestOpenEntry(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(e, got); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
	if got.State() != EntryPaused {
		t.Fatalf("expected paused, got %s", got.State())
	}
}

func TestPausedTimeSurvivesReload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, "Read", nil)

	e := NewEntry("e1", task.ID, "", t0)
	if err := s.CreateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		start := t0.Add(time.Duration(i) * time.Minute)
		e.Pause(start)
		e.Resume(start.Add(40 * time.Second))
	}
	if err := s.UpdateEntry(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PausedTime != 2*time.Minute || got.PausedDuration != 2 {
		t.Fatalf("expected 2m paused, got %s (%d)", got.PausedTime, got.PausedDuration)
	}
	got.Close(t0.Add(10 * time.Minute))
	if got.Duration != 8 {
		t.Fatalf("expected 8 minutes after reload, got %d", got.Duration)
	}
}

func TestLatestOpenEntryNone(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, "Idle", nil)
	e, err := s.LatestOpenEntry(context.Background(), task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e != nil {
		t.Fatalf("expected nil, got %+v", e)
	}
}

func TestOpenEntriesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustTask(t, s, "A", nil)
	b := mustTask(t, s, "B", nil)
	s.CreateEntry(ctx, NewEntry("old", a.ID, "", t0))
	s.CreateEntry(ctx, NewEntry("new", b.ID, "", t0.Add(time.Hour)))
	closedEntry(t, s, a, t0.Add(2*time.Hour), 5*time.Minute)

	open, err := s.OpenEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 2 || open[0].ID != "new" || open[1].ID != "old" {
		t.Fatalf("unexpected open entries: %+v", open)
	}
}

func TestListEntriesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustTask(t, s, "A", nil)
	b := mustTask(t, s, "B", nil)
	closedEntry(t, s, a, t0, 10*time.Minute)
	closedEntry(t, s, a, t0.Add(24*time.Hour), 10*time.Minute)
	closedEntry(t, s, b, t0.Add(time.Hour), 10*time.Minute)
	s.CreateEntry(ctx, NewEntry("running", b.ID, "", t0.Add(2*time.Hour)))

	byTask, _ := s.EntriesByTask(ctx, a.ID)
	if len(byTask) != 2 {
		t.Fatalf("expected 2 entries for A, got %d", len(byTask))
	}

	from, to := t0, t0.Add(24*time.Hour)
	day, _ := s.ListEntries(ctx, EntryFilter{From: &from, To: &to})
	if len(day) != 3 {
		t.Fatalf("expected 3 entries on day one, got %d", len(day))
	}
	closed, _ := s.ListEntries(ctx, EntryFilter{From: &from, To: &to, Closed: true})
	if len(closed) != 2 {
		t.Fatalf("expected 2 closed entries on day one, got %d", len(closed))
	}
	limited, _ := s.ListEntries(ctx, EntryFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}

	total, err := s.TrackedTotal(ctx, t0.Format(DateLayout))
	if err != nil {
		t.Fatal(err)
	}
	if total != 20 {
		t.Fatalf("expected 20 tracked minutes, got %d", total)
	}
}

// ============================================================
// Ledger
// ============================================================

func TestApplyDeltaPropagatesToAncestors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const depth = 5
	chain := []*Task{mustTask(t, s, "level 0", nil)}
	for i := 1; i <= depth; i++ {
		chain = append(chain, mustTask(t, s, "level", chain[i-1]))
	}
	bystander := mustTask(t, s, "bystander", nil)
	sibling := mustTask(t, s, "sibling", chain[2])

	leaf := chain[depth]
	updated, err := s.ApplyDelta(ctx, leaf.ID, 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != depth+1 || updated[0] != leaf.ID {
		t.Fatalf("unexpected update order: %v", updated)
	}
	for _, task := range chain {
		got, _ := s.GetTask(ctx, task.ID)
		if got.ActualTime != 25 {
			t.Fatalf("task %s: expected 25, got %d", task.ID, got.ActualTime)
		}
	}
	for _, task := range []*Task{bystander, sibling} {
		got, _ := s.GetTask(ctx, task.ID)
		if got.ActualTime != 0 {
			t.Fatalf("task %s should be untouched, got %d", task.Title, got.ActualTime)
		}
	}
}

func TestApplyDeltaAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	parent := mustTask(t, s, "P", nil)
	a := mustTask(t, s, "A", parent)
	b := mustTask(t, s, "B", parent)

	s.ApplyDelta(ctx, a.ID, 10)
	s.ApplyDelta(ctx, b.ID, 15)
	s.ApplyDelta(ctx, a.ID, 5)

	got, _ := s.GetTask(ctx, parent.ID)
	if got.ActualTime != 30 {
		t.Fatalf("expected parent 30, got %d", got.ActualTime)
	}
}

func TestApplyDeltaMissingTask(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ApplyDelta(context.Background(), "missing", 10)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestApplyDeltaStopsOnCorruptCycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := mustTask(t, s, "A", nil)
	b := mustTask(t, s, "B", a)
	// Bypass CheckParent to simulate a corrupted chain.
	if _, err := s.db.Exec(`UPDATE tasks SET parent_id = ? WHERE id = ?`, b.ID, a.ID); err != nil {
		t.Fatal(err)
	}

	updated, err := s.ApplyDelta(ctx, b.ID, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected each task updated once, got %v", updated)
	}
	got, _ := s.GetTask(ctx, a.ID)
	if got.ActualTime != 7 {
		t.Fatalf("expected 7, got %d", got.ActualTime)
	}
}

func TestApplyDeltaConcurrentNoLostUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	parent := mustTask(t, s, "P", nil)
	children := []*Task{mustTask(t, s, "A", parent), mustTask(t, s, "B", parent), mustTask(t, s, "C", parent)}

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, rounds*len(children))
	for i := range rounds {
		for j, child := range children {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.ApplyDelta(ctx, child.ID, int64(i%5+j+1)); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	var sum int64
	for _, child := range children {
		got, _ := s.GetTask(ctx, child.ID)
		sum += got.ActualTime
	}
	p, _ := s.GetTask(ctx, parent.ID)
	if p.ActualTime != sum {
		t.Fatalf("parent %d != sum of children %d", p.ActualTime, sum)
	}
	// Each child j receives sum over i of (i%5 + j + 1).
	var want int64
	for i := range rounds {
		for j := range children {
			want += int64(i%5 + j + 1)
		}
	}
	if sum != want {
		t.Fatalf("expected %d in total, got %d", want, sum)
	}
}

func TestCloseEntryConcurrentSameDay(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	parent := mustTask(t, s, "Thesis", nil)
	a := mustTask(t, s, "A", parent)
	b := mustTask(t, s, "B", parent)

	const n = 12
	var entries []*TimeEntry
	for i := range n {
		task := a
		if i%2 == 1 {
			task = b
		}
		start := t0.Add(time.Duration(i) * time.Minute)
		e := NewEntry(fmt.Sprintf("e%d", i), task.ID, "", start)
		if err := s.CreateEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		e.Close(start.Add(time.Duration(i+1) * time.Minute))
		entries = append(entries, e)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CloseEntry(ctx, e); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	var want int64
	for _, e := range entries {
		want += e.Duration
	}
	p, _ := s.GetTask(ctx, parent.ID)
	if p.ActualTime != want {
		t.Fatalf("parent: expected %d, got %d", want, p.ActualTime)
	}
	log, err := s.GetDailyLog(ctx, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if log.TotalTime != want {
		t.Fatalf("daily total: expected %d, got %d", want, log.TotalTime)
	}
	var perTask int64
	for _, w := range log.TasksWorkedOn {
		perTask += w.TimeSpent
	}
	if perTask != want {
		t.Fatalf("worked-on sum: expected %d, got %d", want, perTask)
	}
}

func TestSetActualTimeDoesNotPropagate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	parent := mustTask(t, s, "P", nil)
	child := mustTask(t, s, "C", parent)

	if err := s.SetActualTime(ctx, child.ID, 90); err != nil {
		t.Fatal(err)
	}
	p, _ := s.GetTask(ctx, parent.ID)
	if p.ActualTime != 0 {
		t.Fatalf("expected parent untouched, got %d", p.ActualTime)
	}
	if err := s.SetActualTime(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseEntryCommitsAllSideEffects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	parent := mustTask(t, s, "Thesis", nil)
	task := mustTask(t, s, "Chapter", parent)

	e := closedEntry(t, s, task, t0, 35*time.Minute)

	stored, _ := s.GetEntry(ctx, e.ID)
	if stored.EndTime == nil || stored.Duration != 35 {
		t.Fatalf("expected closed entry of 35 minutes, got %+v", stored)
	}
	for _, id := range []string{task.ID, parent.ID} {
		got, _ := s.GetTask(ctx, id)
		if got.ActualTime != 35 {
			t.Fatalf("task %s: expected 35, got %d", id, got.ActualTime)
		}
	}
	log, err := s.GetDailyLog(ctx, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	want := []WorkedTask{{ID: task.ID, Title: "Chapter", TimeSpent: 35}}
	if diff := cmp.Diff(want, log.TasksWorkedOn); diff != "" {
		t.Fatalf("worked-on mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseEntryRequiresEndTime(t *testing.T) {
	s := newTestStore(t)
	task := mustTask(t, s, "T", nil)
	e := NewEntry("e1", task.ID, "", t0)
	s.CreateEntry(context.Background(), e)
	if err := s.CloseEntry(context.Background(), e); err == nil {
		t.Fatal("expected error for open entry")
	}
}

func TestCloseEntryRollsBackOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, "T", nil)

	// Never inserted, so UpdateEntry fails before any ledger write.
	e := NewEntry("ghost", task.ID, "", t0)
	e.Close(t0.Add(30 * time.Minute))
	if err := s.CloseEntry(ctx, e); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.GetTask(ctx, task.ID)
	if got.ActualTime != 0 {
		t.Fatalf("expected no ledger change, got %d", got.ActualTime)
	}
	if _, err := s.GetDailyLog(ctx, "2025-03-10"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no daily log, got %v", err)
	}
}

// ============================================================
// Daily logs
// ============================================================

func TestDailyLogAccumulatesPerTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := mustTask(t, s, "Analysis", nil)

	closedEntry(t, s, task, t0, 30*time.Minute)
	closedEntry(t, s, task, t0.Add(time.Hour), 45*time.Minute)

	log, err := s.GetDailyLog(ctx, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(log.TasksWorkedOn) != 1 || log.TasksWorkedOn[0].TimeSpent != 75 {
		t.Fatalf("expected one worked-on entry of 75, got %+v", log.TasksWorkedOn)
	}
	if log.TotalTime != 75 {
		t.Fatalf("expected total 75, got %d", log.TotalTime)
	}
}

func TestRecordCompletionDedupes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.RecordCompletion(ctx, "2025-03-10", "t1", "One")
	s.RecordCompletion(ctx, "2025-03-10", "t2", "Two")
	log, err := s.RecordCompletion(ctx, "2025-03-10", "t1", "One again")
	if err != nil {
		t.Fatal(err)
	}
	want := []CompletedTask{{ID: "t1", Title: "One"}, {ID: "t2", Title: "Two"}}
	if diff := cmp.Diff(want, log.TasksCompleted); diff != "" {
		t.Fatalf("completed mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOrCreateDailyLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetDailyLog(ctx, "2025-03-11"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	first, err := s.GetOrCreateDailyLog(ctx, "2025-03-11")
	if err != nil {
		t.Fatal(err)
	}
	second, _ := s.GetOrCreateDailyLog(ctx, "2025-03-11")
	if first.ID != second.ID {
		t.Fatalf("expected same log, got %s and %s", first.ID, second.ID)
	}
	if second.TasksCompleted == nil || second.TasksWorkedOn == nil {
		t.Fatal("expected empty, non-nil lists")
	}
}

func TestSetNotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.RecordTimeWorked(ctx, "2025-03-10", "t1", "One", 20)

	if _, err := s.SetNotes(ctx, "2025-03-10", "good day"); err != nil {
		t.Fatal(err)
	}
	log, _ := s.GetDailyLog(ctx, "2025-03-10")
	if log.Notes != "good day" || log.TotalTime != 20 {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestDailyLogsBetween(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []string{"2025-03-09", "2025-03-10", "2025-03-12", "2025-03-14"} {
		s.RecordTimeWorked(ctx, d, "t1", "One", 10)
	}
	logs, err := s.DailyLogsBetween(ctx, "2025-03-10", "2025-03-12")
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].Date != "2025-03-10" || logs[1].Date != "2025-03-12" {
		t.Fatalf("unexpected range: %+v", logs)
	}
}

func TestProductivityScore(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int64
		want      int
	}{
		{"empty", 0, 0, 0},
		{"one hour", 0, 60, 5},
		{"capped hours", 0, 600, 40},
		{"completed and time", 2, 90, 28},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := DailyLog{TotalTime: tt.total}
			for i := 0; i < tt.completed; i++ {
				l.TasksCompleted = append(l.TasksCompleted, CompletedTask{})
			}
			if got := l.ProductivityScore(); got != tt.want {
				t.Fatalf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

// ============================================================
// Categories
// ============================================================

func TestDefaultCategoriesSeeded(t *testing.T) {
	s := newTestStore(t)
	cats, err := s.ListCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 6 {
		t.Fatalf("expected 6 default categories, got %d", len(cats))
	}
	for _, c := range cats {
		if !c.IsDefault {
			t.Fatalf("category %s should be default", c.ID)
		}
	}
}

func TestCategoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := &Category{Name: "Teaching Prep"}
	if err := s.CreateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	if cat.ID != "teaching-prep" {
		t.Fatalf("expected slug id, got %q", cat.ID)
	}
	cat.Color = "#000000"
	if err := s.UpdateCategory(ctx, cat); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetCategory(ctx, cat.ID)
	if got.Color != "#000000" {
		t.Fatalf("expected updated color, got %s", got.Color)
	}
	if err := s.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetCategory(ctx, cat.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateCategoryDuplicate(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateCategory(context.Background(), &Category{Name: "Writing"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDeleteDefaultCategoryRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteCategory(context.Background(), "writing")
	if !errors.Is(err, ErrDefaultCategory) {
		t.Fatalf("expected ErrDefaultCategory, got %v", err)
	}
}

func TestDeleteCategoryInUseRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := &Category{Name: "Grading"}
	s.CreateCategory(ctx, cat)
	if err := s.CreateTask(ctx, &Task{Title: "Essays", Category: cat.ID}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCategory(ctx, cat.ID); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	defaults := map[string]string{
		"idle_timeout":     "300",
		"idle_action":      "pause",
		"daily_goal":       "480",
		"week_start":       "monday",
		"default_category": "general",
	}
	for k, expected := range defaults {
		val, err := s.GetSetting(ctx, k)
		if err != nil {
			t.Fatalf("GetSetting(%q): %v", k, err)
		}
		if val != expected {
			t.Fatalf("GetSetting(%q) = %q, want %q", k, val, expected)
		}
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetSetting(ctx, "key", "v1")
	s.SetSetting(ctx, "key", "v2")
	val, _ := s.GetSetting(ctx, "key")
	if val != "v2" {
		t.Fatalf("expected v2, got %s", val)
	}
}

func TestSettingInt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SetSetting(ctx, "bad", "x")

	if got := s.SettingInt(ctx, "daily_goal", 1); got != 480 {
		t.Fatalf("expected 480, got %d", got)
	}
	if got := s.SettingInt(ctx, "bad", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
	if got := s.SettingInt(ctx, "missing", 9); got != 9 {
		t.Fatalf("expected fallback 9, got %d", got)
	}
}

func TestGetAllSettingsSorted(t *testing.T) {
	s := newTestStore(t)
	all, err := s.GetAllSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) < 5 {
		t.Fatalf("expected at least 5 default settings, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Key >= all[i].Key {
			t.Fatalf("settings not sorted: %s >= %s", all[i-1].Key, all[i].Key)
		}
	}
}
