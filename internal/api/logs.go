package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	l, err := userService(r).DailyLog(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleSetNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decode(w, r, &req); err != nil {
		s.error(w, r, err)
		return
	}
	l, err := userService(r).SetNotes(r.Context(), chi.URLParam(r, "date"), req.Notes)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleLogRange(w http.ResponseWriter, r *http.Request) {
	logs, err := userService(r).DailyLogRange(r.Context(), chi.URLParam(r, "start"), chi.URLParam(r, "end"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
