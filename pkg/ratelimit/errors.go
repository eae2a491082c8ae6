package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrRateLimited  = errors.New("ratelimit: rate limit exceeded")
	ErrInvalidLimit = errors.New("ratelimit: limit must be positive")
)

// Exceeded is returned when the principal used its whole allowance. It wraps
// ErrRateLimited.
type Exceeded struct {
	Result
}

func (e *Exceeded) Error() string {
	return fmt.Sprintf("ratelimit: %d requests per hour exceeded, resets at %s", e.Limit, e.ResetAt.Format(time.RFC3339))
}

func (e *Exceeded) Unwrap() error { return ErrRateLimited }
