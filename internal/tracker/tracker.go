// Package tracker owns live time tracking: at most one task accrues time at a
// time, pause and resume are reversible, and a stop commits the interval, the
// task time ledger and the daily log as one unit of work.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/worklog/internal/store"
)

// ErrTaskNotFound is returned by Start for an unknown task.
var ErrTaskNotFound = errors.New("task not found")

// Store is the durable storage the tracker needs. *store.Store satisfies it.
type Store interface {
	TaskExists(ctx context.Context, id string) (bool, error)
	CreateEntry(ctx context.Context, e *store.TimeEntry) error
	UpdateEntry(ctx context.Context, e *store.TimeEntry) error
	LatestOpenEntry(ctx context.Context, taskID string) (*store.TimeEntry, error)
	OpenEntries(ctx context.Context) ([]store.TimeEntry, error)
	CloseEntry(ctx context.Context, e *store.TimeEntry) error
}

// Update is delivered to the observer on every tick of an active session and
// on every stop.
type Update struct {
	TaskID  string
	Minutes int64
	Closed  bool
}

type UpdateFunc func(Update)

type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// WithTickInterval sets how often active sessions report their duration.
// A non-positive interval disables ticking.
func WithTickInterval(d time.Duration) Option {
	return func(t *Tracker) { t.tick = d }
}

type session struct {
	entry  *store.TimeEntry
	cancel context.CancelFunc
}

// Tracker is the per-user tracking coordinator. It is safe for concurrent
// use; every state transition and its persistence run under one lock.
type Tracker struct {
	store Store
	now   func() time.Time
	log   *slog.Logger
	tick  time.Duration

	mu       sync.Mutex
	live     map[string]*session
	onUpdate UpdateFunc

	wg sync.WaitGroup
}

func New(s Store, opts ...Option) *Tracker {
	t := &Tracker{
		store: s,
		now:   time.Now,
		log:   slog.Default(),
		tick:  time.Minute,
		live:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetTimeUpdateFunc registers the observer. It is called outside the lock, and
// a panicking observer is logged and otherwise ignored.
func (t *Tracker) SetTimeUpdateFunc(fn UpdateFunc) {
	t.mu.Lock()
	t.onUpdate = fn
	t.mu.Unlock()
}

// Start begins tracking taskID, force-stopping any other session first. The
// new entry is persisted before it becomes live.
func (t *Tracker) Start(ctx context.Context, taskID, description string) (*store.TimeEntry, error) {
	t.mu.Lock()
	ok, err := t.store.TaskExists(ctx, taskID)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("start %s: %w", taskID, ErrTaskNotFound)
	}

	updates, err := t.stopAllLocked(ctx, false)
	if err != nil {
		t.mu.Unlock()
		t.notify(updates...)
		return nil, err
	}

	e := store.NewEntry(uuid.NewString(), taskID, description, t.clock())
	if err := t.store.CreateEntry(ctx, e); err != nil {
		t.mu.Unlock()
		t.notify(updates...)
		return nil, err
	}
	s := &session{entry: e}
	t.live[taskID] = s
	t.startTickerLocked(taskID, s)
	out := copyEntry(e)
	t.mu.Unlock()

	t.notify(updates...)
	t.log.Info("tracking started", "task", taskID, "entry", e.ID)
	return out, nil
}

// Pause freezes an active session. It returns nil when taskID is not active.
func (t *Tracker) Pause(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.live[taskID]
	if s == nil || s.entry.State() != store.EntryOpen {
		return nil, nil
	}
	next := copyEntry(s.entry)
	next.Pause(t.clock())
	if err := t.store.UpdateEntry(ctx, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.dropLocked(s.entry)
			return nil, nil
		}
		return nil, err
	}
	s.entry = next
	t.stopTickerLocked(s)
	return copyEntry(next), nil
}

// Resume restarts a paused session. It returns nil when taskID is not paused.
func (t *Tracker) Resume(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.live[taskID]
	if s == nil || s.entry.State() != store.EntryPaused {
		return nil, nil
	}
	next := copyEntry(s.entry)
	next.Resume(t.clock())
	if err := t.store.UpdateEntry(ctx, next); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.dropLocked(s.entry)
			return nil, nil
		}
		return nil, err
	}
	s.entry = next
	t.startTickerLocked(taskID, s)
	return copyEntry(next), nil
}

// Stop closes the session for taskID. When no live session exists, the latest
// open entry in the store is closed instead, so an interval started before a
// restart is still stopped correctly. It returns nil when nothing is open.
func (t *Tracker) Stop(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	t.mu.Lock()
	e, err := t.openEntryLocked(ctx, taskID)
	if err != nil || e == nil {
		t.mu.Unlock()
		return nil, err
	}

	closed, err := t.closeLocked(ctx, e)
	t.mu.Unlock()
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.notify(Update{TaskID: taskID, Minutes: closed.Duration, Closed: true})
	return copyEntry(closed), nil
}

// StopTasks closes the live session or latest open entry of every task in
// taskIDs and calls then while still holding the lock, so no Start lands
// between the stops and the callback. then must not call back into t.
func (t *Tracker) StopTasks(ctx context.Context, taskIDs []string, then func(context.Context) error) error {
	t.mu.Lock()
	var updates []Update
	err := func() error {
		for _, id := range taskIDs {
			e, err := t.openEntryLocked(ctx, id)
			if err != nil {
				return err
			}
			if e == nil {
				continue
			}
			closed, err := t.closeLocked(ctx, e)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("stop %s: %w", id, err)
			}
			updates = append(updates, Update{TaskID: id, Minutes: closed.Duration, Closed: true})
		}
		if then == nil {
			return nil
		}
		return then(ctx)
	}()
	t.mu.Unlock()

	t.notify(updates...)
	return err
}

// GetActive returns the live entry for taskID, active or paused, or nil.
func (t *Tracker) GetActive(taskID string) *store.TimeEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.live[taskID]; s != nil {
		return copyEntry(s.entry)
	}
	return nil
}

// GetAllActive returns every live entry, oldest first.
func (t *Tracker) GetAllActive() []store.TimeEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]store.TimeEntry, 0, len(t.live))
	for _, s := range t.live {
		out = append(out, *copyEntry(s.entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// GetActiveTaskID reports the task that is currently accruing time. A paused
// session does not count.
func (t *Tracker) GetActiveTaskID() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.live {
		if s.entry.State() == store.EntryOpen {
			return id, true
		}
	}
	return "", false
}

// CurrentDuration is the live duration of taskID in minutes, or 0.
func (t *Tracker) CurrentDuration(taskID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s := t.live[taskID]; s != nil {
		return s.entry.CurrentDuration(t.clock())
	}
	return 0
}

// Recover adopts the newest open entry in the store as the live session and
// closes every older one, restoring the single-session rule after a crash.
func (t *Tracker) Recover(ctx context.Context) error {
	t.mu.Lock()
	open, err := t.store.OpenEntries(ctx)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	liveIDs := make(map[string]bool, len(t.live))
	for _, s := range t.live {
		liveIDs[s.entry.ID] = true
	}

	var updates []Update
	var errs []error
	for i := range open {
		e := &open[i]
		if liveIDs[e.ID] {
			continue
		}
		if len(t.live) == 0 {
			s := &session{entry: e}
			t.live[e.TaskID] = s
			if e.State() == store.EntryOpen {
				t.startTickerLocked(e.TaskID, s)
			}
			t.log.Info("adopted open entry", "task", e.TaskID, "entry", e.ID, "state", e.State())
			continue
		}
		closed, err := t.closeLocked(ctx, e)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			t.log.Error("close stale entry", "task", e.TaskID, "entry", e.ID, "err", err)
			errs = append(errs, err)
			continue
		}
		t.log.Warn("closed stale open entry", "task", e.TaskID, "entry", e.ID, "minutes", closed.Duration)
		updates = append(updates, Update{TaskID: e.TaskID, Minutes: closed.Duration, Closed: true})
	}
	t.mu.Unlock()

	t.notify(updates...)
	return errors.Join(errs...)
}

// Shutdown force-stops every live session and every open entry left in the
// store, then waits for tick goroutines to exit. Each failure is logged and
// the remaining stops are still attempted.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	updates, err := t.stopAllLocked(ctx, true)
	t.mu.Unlock()

	t.wg.Wait()
	t.notify(updates...)
	return err
}

// Detach stops every tick goroutine and forgets the live sessions without
// closing their entries. The open rows stay in the store for a later Recover,
// which is how a short-lived process hands a session to the next one.
func (t *Tracker) Detach() {
	t.mu.Lock()
	for id, s := range t.live {
		t.stopTickerLocked(s)
		delete(t.live, id)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

// stopAllLocked force-stops live sessions, then any open rows the store still
// holds. With keepGoing unset it returns at the first failure.
func (t *Tracker) stopAllLocked(ctx context.Context, keepGoing bool) ([]Update, error) {
	var updates []Update
	var errs []error

	stop := func(e *store.TimeEntry) bool {
		closed, err := t.closeLocked(ctx, e)
		if errors.Is(err, store.ErrNotFound) {
			t.log.Warn("entry vanished before stop", "task", e.TaskID, "entry", e.ID)
			return true
		}
		if err != nil {
			t.log.Error("force-stop failed", "task", e.TaskID, "entry", e.ID, "err", err)
			errs = append(errs, fmt.Errorf("force-stop %s: %w", e.TaskID, err))
			return keepGoing
		}
		t.log.Info("force-stopped", "task", e.TaskID, "entry", e.ID, "minutes", closed.Duration)
		updates = append(updates, Update{TaskID: e.TaskID, Minutes: closed.Duration, Closed: true})
		return true
	}

	for _, id := range t.liveTaskIDsLocked() {
		if !stop(t.live[id].entry) {
			return updates, errors.Join(errs...)
		}
	}

	open, err := t.store.OpenEntries(ctx)
	if err != nil {
		t.log.Error("list open entries", "err", err)
		return updates, errors.Join(append(errs, err)...)
	}
	for i := range open {
		if !stop(&open[i]) {
			break
		}
	}
	return updates, errors.Join(errs...)
}

// openEntryLocked returns the live entry for taskID or, failing that, the
// latest open row in the store.
func (t *Tracker) openEntryLocked(ctx context.Context, taskID string) (*store.TimeEntry, error) {
	if s := t.live[taskID]; s != nil {
		return s.entry, nil
	}
	open, err := t.store.LatestOpenEntry(ctx, taskID)
	if err != nil || open == nil {
		return nil, err
	}
	t.log.Info("recovered open entry", "task", taskID, "entry", open.ID)
	return open, nil
}

// closeLocked closes a copy of e and commits it. Live state for the task is
// dropped only after the commit succeeds, or when the row has been deleted
// underneath the session, in which case store.ErrNotFound is returned.
func (t *Tracker) closeLocked(ctx context.Context, e *store.TimeEntry) (*store.TimeEntry, error) {
	closed := copyEntry(e)
	if !closed.Close(t.clock()) {
		return nil, fmt.Errorf("close entry %s: already closed", e.ID)
	}
	if err := t.store.CloseEntry(ctx, closed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			t.dropLocked(e)
		}
		return nil, err
	}
	t.dropLocked(e)
	return closed, nil
}

// dropLocked forgets the live session holding e, if any.
func (t *Tracker) dropLocked(e *store.TimeEntry) {
	if s := t.live[e.TaskID]; s != nil && s.entry.ID == e.ID {
		t.stopTickerLocked(s)
		delete(t.live, e.TaskID)
	}
}

func (t *Tracker) liveTaskIDsLocked() []string {
	ids := make([]string, 0, len(t.live))
	for id := range t.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (t *Tracker) startTickerLocked(taskID string, s *session) {
	t.stopTickerLocked(s)
	if t.tick <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(t.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.tickOnce(ctx, taskID)
			}
		}
	}()
}

func (t *Tracker) stopTickerLocked(s *session) {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (t *Tracker) tickOnce(ctx context.Context, taskID string) {
	t.mu.Lock()
	s := t.live[taskID]
	if ctx.Err() != nil || s == nil || s.entry.State() != store.EntryOpen {
		t.mu.Unlock()
		return
	}
	minutes := s.entry.CurrentDuration(t.clock())
	t.mu.Unlock()
	t.notify(Update{TaskID: taskID, Minutes: minutes})
}

func (t *Tracker) notify(updates ...Update) {
	if len(updates) == 0 {
		return
	}
	t.mu.Lock()
	fn := t.onUpdate
	t.mu.Unlock()
	if fn == nil {
		return
	}
	for _, u := range updates {
		t.safeCall(fn, u)
	}
}

func (t *Tracker) safeCall(fn UpdateFunc, u Update) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("time update observer panicked", "task", u.TaskID, "panic", r)
		}
	}()
	fn(u)
}

// clock truncates to whole seconds, the resolution timestamps are stored at,
// so a live stop and a stop after reload compute the same duration.
func (t *Tracker) clock() time.Time {
	return t.now().UTC().Truncate(time.Second)
}

func copyEntry(e *store.TimeEntry) *store.TimeEntry {
	c := *e
	if e.EndTime != nil {
		end := *e.EndTime
		c.EndTime = &end
	}
	if e.PausedAt != nil {
		at := *e.PausedAt
		c.PausedAt = &at
	}
	return &c
}
