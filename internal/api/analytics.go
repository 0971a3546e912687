package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sadopc/worklog/internal/service"
	"github.com/sadopc/worklog/internal/store"
)

type activeEntry struct {
	store.TimeEntry
	CurrentDuration int64 `json:"currentDuration"`
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	svc := userService(r)
	active := svc.ActiveEntries()
	out := make([]activeEntry, 0, len(active))
	for _, e := range active {
		out = append(out, activeEntry{TimeEntry: e, CurrentDuration: svc.Tracker().CurrentDuration(e.TaskID)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleProductivity(w http.ResponseWriter, r *http.Request) {
	st, err := userService(r).ProductivityStats(r.Context(), chi.URLParam(r, "start"), chi.URLParam(r, "end"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	tasks, err := userService(r).Hierarchy(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := userService(r).Summary(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTimeTrends(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(chi.URLParam(r, "days"))
	if err != nil {
		s.error(w, r, fmt.Errorf("%w: days must be a number", service.ErrInvalid))
		return
	}
	trends, err := userService(r).TimeTrends(r.Context(), days)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

func (s *Server) handleDeadlines(w http.ResponseWriter, r *http.Request) {
	d, err := userService(r).Deadlines(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
