package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/team"
)

func (h *handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}

	members, err := h.team.List(r.Context(), principalID)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}
	if members == nil {
		members = []team.Member{}
	}
	h.respond(w, r, http.StatusOK, listResponse[team.Member]{Data: members})
}

func (h *handlers) addMember(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in team.Input
	if err := decodeJSON(w, r, &in); err != nil {
		h.gate.Error(w, r, err)
		return
	}

	m, err := h.team.Add(r.Context(), principalID, in)
	if err != nil {
		h.gate.Error(w, r, teamError(err))
		return
	}
	h.respond(w, r, http.StatusCreated, m)
}

func (h *handlers) removeMember(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}

	if err := h.team.Remove(r.Context(), principalID, id); err != nil {
		h.gate.Error(w, r, teamError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func teamError(err error) error {
	switch {
	case errors.Is(err, team.ErrNotFound):
		return gate.NewHTTPError(gate.ErrNotFound.Code, gate.ErrNotFound.Key, "Team member not found.")
	case errors.Is(err, team.ErrAlreadyInvited):
		return gate.NewHTTPError(gate.ErrConflict.Code, "already_invited", "This email is already on the team.")
	}
	return err
}
