package apikey

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredential = errors.New("apikey: invalid credential")
	ErrKeyNotFound       = errors.New("apikey: key not found")
	ErrInvalidName       = errors.New("apikey: name is required")
	ErrInvalidRateLimit  = errors.New("apikey: rate limit must be positive")
	ErrDuplicateHash     = errors.New("apikey: key hash already exists")
	ErrFailedToGenerate  = errors.New("apikey: failed to generate key")
)

// Reason classifies a rejected credential.
type Reason string

const (
	ReasonMalformed   Reason = "malformed"
	ReasonUnknown     Reason = "unknown"
	ReasonRevoked     Reason = "revoked"
	ReasonUnavailable Reason = "unavailable"
)

// InvalidError is returned by Verify for every rejected key. It wraps
// ErrInvalidCredential and, for ReasonUnavailable, the storage error.
type InvalidError struct {
	Reason Reason
	cause  error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("apikey: invalid credential (%s)", e.Reason)
}

func (e *InvalidError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrInvalidCredential, e.cause}
	}
	return []error{ErrInvalidCredential}
}

func invalid(reason Reason, cause error) error {
	return &InvalidError{Reason: reason, cause: cause}
}
