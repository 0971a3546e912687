// Package tenant keeps one store, tracker and service per user. Users are
// opened lazily on first use and share nothing.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
	"github.com/sadopc/worklog/internal/tracker"
)

var (
	ErrInvalidUser = errors.New("invalid user id")
	ErrClosed      = errors.New("registry closed")
)

var userID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidUserID reports whether id is usable as a database file name.
func ValidUserID(id string) bool {
	return userID.MatchString(id)
}

type Options struct {
	// Dir holds <id>.db per user. Empty keeps every user in memory.
	Dir          string
	TickInterval time.Duration
	Logger       *slog.Logger
	Clock        func() time.Time
	// Observer, when set, is attached to every user's time updates.
	Observer func(user string) tracker.UpdateFunc
}

type user struct {
	store   *store.Store
	tracker *tracker.Tracker
	service *service.Service
}

type Registry struct {
	opts  Options
	group singleflight.Group

	mu     sync.Mutex
	users  map[string]*user
	closed bool
}

func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Registry{opts: opts, users: make(map[string]*user)}
}

// Get returns the service for id, opening the user's store and recovering
// any session left open by a previous process on first use.
func (r *Registry) Get(ctx context.Context, id string) (*service.Service, error) {
	if !ValidUserID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUser, id)
	}
	u, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u.service, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if u, err := r.lookup(id); u != nil || err != nil {
			return u, err
		}
		// Callers waiting on this open share it, so the first caller's
		// cancellation must not fail them all.
		u, err := r.open(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			u.tracker.Shutdown(context.Background())
			u.store.Close()
			return nil, ErrClosed
		}
		r.users[id] = u
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*user).service, nil
}

func (r *Registry) lookup(id string) (*user, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	return r.users[id], nil
}

func (r *Registry) open(ctx context.Context, id string) (*user, error) {
	log := r.opts.Logger.With("user", id)

	var (
		st  *store.Store
		err error
	)
	if r.opts.Dir == "" {
		st, err = store.NewMemory()
	} else {
		st, err = store.New(filepath.Join(r.opts.Dir, id+".db"))
	}
	if err != nil {
		return nil, fmt.Errorf("open store for %s: %w", id, err)
	}
	st.SetClock(r.opts.Clock)

	tr := tracker.New(st,
		tracker.WithClock(r.opts.Clock),
		tracker.WithLogger(log),
		tracker.WithTickInterval(r.opts.TickInterval),
	)
	svc := service.New(st, tr, service.WithClock(r.opts.Clock), service.WithLogger(log))
	if r.opts.Observer != nil {
		svc.OnTimeUpdate(r.opts.Observer(id))
	}

	if err := tr.Recover(ctx); err != nil {
		tr.Shutdown(context.Background())
		st.Close()
		return nil, fmt.Errorf("recover sessions for %s: %w", id, err)
	}
	log.Info("user opened")
	return &user{store: st, tracker: tr, service: svc}, nil
}

// Users lists the ids opened so far.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll force-stops every user's sessions and closes their stores. Later
// calls to Get fail with ErrClosed.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	users := r.users
	r.users = make(map[string]*user)
	r.mu.Unlock()

	var errs []error
	for id, u := range users {
		if err := u.tracker.Shutdown(ctx); err != nil {
			r.opts.Logger.Error("shutdown tracker", "user", id, "err", err)
			errs = append(errs, fmt.Errorf("user %s: %w", id, err))
		}
		if err := u.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Detach closes every store and leaves open sessions in place for the next
// process to recover. Later calls to Get fail with ErrClosed.
func (r *Registry) Detach() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	users := r.users
	r.users = make(map[string]*user)
	r.mu.Unlock()

	var errs []error
	for id, u := range users {
		u.tracker.Detach()
		if err := u.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
