package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sadopc/worklog/internal/service"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := userService(r).Categories(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := userService(r).Category(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in service.CategoryInput
	if err := decode(w, r, &in); err != nil {
		s.error(w, r, err)
		return
	}
	c, err := userService(r).CreateCategory(r.Context(), in)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in service.CategoryInput
	if err := decode(w, r, &in); err != nil {
		s.error(w, r, err)
		return
	}
	c, err := userService(r).UpdateCategory(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := userService(r).DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
