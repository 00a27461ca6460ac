package http

import (
	"errors"
	"net/http"

	"tally/internal/core"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListExpenses(r.Context(), callerFrom(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", list)
}

// handleGetExpense returns one expense. A miss is not an error here: the
// response succeeds with null data, matching how clients probe for existence.
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := expenseID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	e, err := s.service.GetExpense(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			ok(w, "", nil)
			return
		}
		fail(w, r, err)
		return
	}
	ok(w, "", e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := decodeExpense(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	e, err := s.service.CreateExpense(r.Context(), callerFrom(r.Context()), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "expense created", e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := expenseID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	in, err := decodeExpense(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	e, err := s.service.UpdateExpense(r.Context(), callerFrom(r.Context()), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "expense updated", e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := expenseID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	e, err := s.service.DeleteExpense(r.Context(), callerFrom(r.Context()), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "expense deleted", e)
}
