// Package api serves the task service as a JSON HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sadopc/worklog/internal/service"
)

// UserHeader selects which user's data a request reads and writes.
const UserHeader = "X-Worklog-User"

// Users resolves a user id to that user's service. *tenant.Registry
// satisfies it.
type Users interface {
	Get(ctx context.Context, id string) (*service.Service, error)
}

type Config struct {
	Addr string
}

type Server struct {
	users       Users
	defaultUser string
	log         *slog.Logger
}

// NewRouter builds the routes over users.
func NewRouter(users Users, defaultUser string, log *slog.Logger) http.Handler {
	s := &Server{users: users, defaultUser: defaultUser, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withUser)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/category/{category}", s.handleTasksByCategory)
			r.Get("/status/{status}", s.handleTasksByStatus)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Put("/", s.handleUpdateTask)
				r.Delete("/", s.handleDeleteTask)
				r.Post("/start", s.handleStart)
				r.Post("/pause", s.handlePause)
				r.Post("/resume", s.handleResume)
				r.Post("/stop", s.handleStop)
				r.Get("/time-entries", s.handleTaskEntries)
			})
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/range/{start}/{end}", s.handleLogRange)
			r.Get("/{date}", s.handleGetLog)
			r.Put("/{date}/notes", s.handleSetNotes)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/active", s.handleActive)
			r.Get("/productivity/{start}/{end}", s.handleProductivity)
			r.Get("/hierarchy", s.handleHierarchy)
			r.Get("/summary", s.handleSummary)
			r.Get("/time-trends/{days}", s.handleTimeTrends)
			r.Get("/deadlines", s.handleDeadlines)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Get("/{id}", s.handleGetCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})
	})
	return r
}

func NewHTTPServer(cfg Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type ctxKey struct{}

// withUser resolves the request's user and stores their service in the
// context.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(UserHeader)
		if id == "" {
			id = s.defaultUser
		}
		svc, err := s.users.Get(r.Context(), id)
		if err != nil {
			s.error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, svc)))
	})
}

func userService(r *http.Request) *service.Service {
	return r.Context().Value(ctxKey{}).(*service.Service)
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
