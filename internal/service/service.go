// Package service is the task-facing orchestration layer. It turns task
// lifecycle events into ledger, daily log and tracker calls, and builds the
// derived views (hierarchy, deadlines, analytics) the front-ends render.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

var (
	// ErrTaskNotFound is the tracker's sentinel, so callers can test either.
	ErrTaskNotFound     = tracker.ErrTaskNotFound
	ErrCategoryNotFound = errors.New("category not found")
	ErrInvalidParent    = errors.New("invalid parent")
	ErrInvalid          = errors.New("invalid input")
)

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

type Service struct {
	store   *store.Store
	tracker *tracker.Tracker
	now     func() time.Time
	log     *slog.Logger

	mu        sync.Mutex
	listeners []tracker.UpdateFunc
}

// New wires a service over one user's store and tracker and registers itself
// as the tracker's observer.
func New(st *store.Store, tr *tracker.Tracker, opts ...Option) *Service {
	s := &Service{
		store:   st,
		tracker: tr,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	tr.SetTimeUpdateFunc(s.handleTimeUpdate)
	return s
}

// OnTimeUpdate adds a listener for tracker ticks and stops.
func (s *Service) OnTimeUpdate(fn tracker.UpdateFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Service) handleTimeUpdate(u tracker.Update) {
	if u.Closed {
		s.log.Info("time entry closed", "task", u.TaskID, "minutes", u.Minutes)
	} else {
		s.log.Debug("tracking tick", "task", u.TaskID, "minutes", u.Minutes)
	}
	s.mu.Lock()
	listeners := append([]tracker.UpdateFunc(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(u)
	}
}

func (s *Service) Store() *store.Store { return s.store }

func (s *Service) Tracker() *tracker.Tracker { return s.tracker }

// Today is the current calendar day key.
func (s *Service) Today() string {
	return s.now().UTC().Format(store.DateLayout)
}

func parseDate(v string) (time.Time, error) {
	d, err := time.Parse(store.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalid, v)
	}
	return d, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrTaskNotFound, err)
	}
	return err
}
