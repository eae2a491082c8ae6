package quota

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/snipflow/pkg/plan"
)

var (
	ErrQuotaExceeded   = errors.New("quota: limit exceeded")
	ErrUnavailable     = errors.New("quota: usage state unavailable")
	ErrUnknownResource = errors.New("quota: unknown resource")
)

// Exceeded is returned when a reservation is refused because the principal
// already holds Max units of Resource. It wraps ErrQuotaExceeded.
type Exceeded struct {
	Resource plan.Resource
	Current  int64
	Max      plan.Limit
	Tier     plan.Tier
	// Recommended is the cheapest tier whose limit would admit one more unit.
	// Empty when no tier would.
	Recommended plan.Tier
}

func (e *Exceeded) Error() string {
	return fmt.Sprintf("quota: %s limit reached (%d/%d)", e.Resource, e.Current, e.Max)
}

func (e *Exceeded) Unwrap() error { return ErrQuotaExceeded }
