package tui

import (
	"context"
	"time"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

const (
	idlePause = "pause"
	idleStop  = "stop"
)

// timerModel mirrors the tracker's session for display and adds idle
// detection on top of it. The tracker remains the source of truth.
type timerModel struct {
	svc *service.Service
	now func() time.Time

	entry     *store.TimeEntry
	taskTitle string
	elapsed   time.Duration

	lastActivity time.Time
	idleTimeout  time.Duration
	idleAction   string
	isIdle       bool
}

func newTimerModel(svc *service.Service) timerModel {
	return timerModel{
		svc:          svc,
		now:          time.Now,
		lastActivity: time.Now(),
		idleTimeout:  5 * time.Minute,
		idleAction:   idlePause,
	}
}

// loadSettings reads the idle preferences from the user's settings.
func (t *timerModel) loadSettings(ctx context.Context) {
	st := t.svc.Store()
	if secs := st.SettingInt(ctx, "idle_timeout", 300); secs > 0 {
		t.idleTimeout = time.Duration(secs) * time.Second
	}
	if v, err := st.GetSetting(ctx, "idle_action"); err == nil && (v == idlePause || v == idleStop) {
		t.idleAction = v
	}
}

// sync adopts whatever session the tracker holds, such as one recovered
// after a restart or started from another view.
func (t *timerModel) sync(ctx context.Context) {
	active := t.svc.ActiveEntries()
	if len(active) == 0 {
		t.entry = nil
		t.elapsed = 0
		return
	}
	e := active[len(active)-1]
	if t.entry == nil || t.entry.TaskID != e.TaskID {
		t.taskTitle = ""
		if n, err := t.svc.GetTask(ctx, e.TaskID); err == nil {
			t.taskTitle = n.Title
		}
	}
	t.entry = &e
	t.elapsed = e.Elapsed(t.now())
}

func (t *timerModel) adopt(e *store.TimeEntry, title string) {
	t.entry = e
	t.taskTitle = title
	t.elapsed = 0
	t.isIdle = false
	t.lastActivity = t.now()
}

func (t *timerModel) start(ctx context.Context, taskID, title string) error {
	e, err := t.svc.StartTracking(ctx, taskID, "")
	if err != nil {
		return err
	}
	t.adopt(e, title)
	return nil
}

func (t *timerModel) stop(ctx context.Context) (*store.TimeEntry, error) {
	if t.entry == nil {
		return nil, nil
	}
	e, err := t.svc.StopTracking(ctx, t.entry.TaskID)
	if err != nil {
		return nil, err
	}
	t.entry = nil
	t.elapsed = 0
	t.isIdle = false
	return e, nil
}

func (t *timerModel) pause(ctx context.Context) error {
	if !t.running() || t.paused() {
		return nil
	}
	e, err := t.svc.PauseTracking(ctx, t.entry.TaskID)
	if err != nil {
		return err
	}
	if e != nil {
		t.entry = e
	}
	return nil
}

func (t *timerModel) resume(ctx context.Context) error {
	if !t.paused() {
		return nil
	}
	e, err := t.svc.ResumeTracking(ctx, t.entry.TaskID)
	if err != nil {
		return err
	}
	if e != nil {
		t.entry = e
	}
	t.isIdle = false
	t.lastActivity = t.now()
	return nil
}

func (t *timerModel) toggle(ctx context.Context) error {
	if t.paused() {
		return t.resume(ctx)
	}
	return t.pause(ctx)
}

// tick refreshes the display and applies the idle action once the user has
// been inactive for longer than the idle timeout.
func (t *timerModel) tick(ctx context.Context) error {
	if !t.running() {
		return nil
	}
	now := t.now()
	t.elapsed = t.entry.Elapsed(now)
	if t.paused() || t.isIdle || now.Sub(t.lastActivity) <= t.idleTimeout {
		return nil
	}
	if t.idleAction == idleStop {
		_, err := t.stop(ctx)
		return err
	}
	if err := t.pause(ctx); err != nil {
		return err
	}
	t.isIdle = true
	return nil
}

func (t *timerModel) recordActivity(ctx context.Context) error {
	t.lastActivity = t.now()
	if t.isIdle && t.paused() {
		return t.resume(ctx)
	}
	return nil
}

func (t timerModel) running() bool {
	return t.entry != nil
}

func (t timerModel) paused() bool {
	return t.entry != nil && t.entry.Paused
}

func (t timerModel) currentElapsed() time.Duration {
	if t.entry == nil {
		return 0
	}
	return t.entry.Elapsed(t.now())
}
