package gate

import (
	"errors"
	"net/http"
)

// ErrUnauthenticated is returned when a protected route is called without
// any credential.
var ErrUnauthenticated = errors.New("gate: no credential presented")

// HTTPError is an error with a status code and a machine-readable key.
type HTTPError struct {
	Code    int
	Key     string
	Message string
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

var (
	ErrBadRequest      = HTTPError{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrNotFound        = HTTPError{Code: http.StatusNotFound, Key: "not_found"}
	ErrConflict        = HTTPError{Code: http.StatusConflict, Key: "conflict"}
	ErrInternal        = HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
	ErrTooLarge        = HTTPError{Code: http.StatusRequestEntityTooLarge, Key: "request_entity_too_large"}
	ErrUnsupportedBody = HTTPError{Code: http.StatusUnsupportedMediaType, Key: "unsupported_media_type"}
)

// NewHTTPError returns an HTTPError carrying a custom message.
func NewHTTPError(code int, key, message string) HTTPError {
	return HTTPError{Code: code, Key: key, Message: message}
}
