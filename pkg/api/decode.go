package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/gate"
)

// maxBodySize bounds JSON request bodies. Snippet content is the largest
// field at 256 KiB.
const maxBodySize = 512 << 10

// decodeJSON reads a single strict JSON object into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return gate.NewHTTPError(gate.ErrUnsupportedBody.Code, gate.ErrUnsupportedBody.Key, "Content-Type must be application/json.")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return gate.NewHTTPError(gate.ErrTooLarge.Code, gate.ErrTooLarge.Key, "Request body is too large.")
		case errors.Is(err, io.EOF):
			return gate.NewHTTPError(gate.ErrBadRequest.Code, gate.ErrBadRequest.Key, "Request body is empty.")
		default:
			return gate.NewHTTPError(gate.ErrBadRequest.Code, gate.ErrBadRequest.Key, "Request body is not valid JSON: "+err.Error())
		}
	}
	if dec.More() {
		return gate.NewHTTPError(gate.ErrBadRequest.Code, gate.ErrBadRequest.Key, "Request body must contain a single JSON object.")
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, gate.NewHTTPError(gate.ErrNotFound.Code, gate.ErrNotFound.Key, "Resource not found.")
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, gate.NewHTTPError(gate.ErrBadRequest.Code, gate.ErrBadRequest.Key, name+" must be a non-negative integer.")
	}
	return n, nil
}
