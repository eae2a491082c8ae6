package api

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/snippet"
)

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (h *handlers) listSnippets(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}

	items, err := h.snippets.List(r.Context(), principalID, limit)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}
	if items == nil {
		items = []snippet.Snippet{}
	}
	h.respond(w, r, http.StatusOK, listResponse[snippet.Snippet]{Data: items})
}

func (h *handlers) createSnippet(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in snippet.Input
	if err := decodeJSON(w, r, &in); err != nil {
		h.gate.Error(w, r, err)
		return
	}

	sn, err := h.snippets.Create(r.Context(), principalID, in)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, sn)
}

func (h *handlers) getSnippet(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}

	sn, err := h.snippets.Get(r.Context(), principalID, id)
	if err != nil {
		h.gate.Error(w, r, snippetError(err))
		return
	}
	h.respond(w, r, http.StatusOK, sn)
}

func (h *handlers) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	principalID, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.gate.Error(w, r, err)
		return
	}

	if err := h.snippets.Delete(r.Context(), principalID, id); err != nil {
		h.gate.Error(w, r, snippetError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func snippetError(err error) error {
	if errors.Is(err, snippet.ErrNotFound) {
		return gate.NewHTTPError(gate.ErrNotFound.Code, gate.ErrNotFound.Key, "Snippet not found.")
	}
	return err
}
