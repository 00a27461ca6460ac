package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"tally/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListCategories(r.Context(), callerFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", list)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		fail(w, r, fmt.Errorf("malformed request body: %w", core.ErrInvalidArgument))
		return
	}

	c, err := s.service.CreateCategory(r.Context(), callerFrom(r.Context()), payload.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "category created", c)
}
