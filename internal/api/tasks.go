package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var parent *string
	if p := r.URL.Query().Get("parent"); p != "" {
		parent = &p
	}
	tasks, err := userService(r).ListTasks(r.Context(), parent)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decode(w, r, &in); err != nil {
		s.error(w, r, err)
		return
	}
	task, err := userService(r).CreateTask(r.Context(), in)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := userService(r).GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := decode(w, r, &in); err != nil {
		s.error(w, r, err)
		return
	}
	task, err := userService(r).UpdateTask(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := userService(r).DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTasksByCategory(w http.ResponseWriter, r *http.Request) {
	tasks, err := userService(r).TasksByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTasksByStatus(w http.ResponseWriter, r *http.Request) {
	tasks, err := userService(r).TasksByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

type startRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeOptional(w, r, &req); err != nil {
		s.error(w, r, err)
		return
	}
	entry, err := userService(r).StartTracking(r.Context(), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "no running session for task", (*service.Service).PauseTracking)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "no paused session for task", (*service.Service).ResumeTracking)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "no open session for task", (*service.Service).StopTracking)
}

type transitionFunc func(*service.Service, context.Context, string) (*store.TimeEntry, error)

// transition runs a pause, resume or stop. A nil entry means the task had no
// session in the required state.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, missing string, fn transitionFunc) {
	entry, err := fn(userService(r), r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	if entry == nil {
		notFound(w, missing)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleTaskEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := userService(r).EntriesByTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
