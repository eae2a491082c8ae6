package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/usage"
)

// Window is the trailing interval requests are counted over.
const Window = time.Hour

// Result describes the allowance after a check.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long until ResetAt, at least one second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d
}

// Limiter checks API calls against an hourly allowance, counting the api
// usage events recorded for the principal.
type Limiter struct {
	counter usage.Counter
	now     func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter panics if counter is nil.
func NewLimiter(counter usage.Counter, opts ...Option) *Limiter {
	if counter == nil {
		panic("ratelimit: counter cannot be nil")
	}

	l := &Limiter{counter: counter, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts api events created strictly after now-Window. When the count
// has reached limitPerHour it returns *Exceeded. Counter errors are returned
// as is; the caller decides whether to admit the request.
func (l *Limiter) Check(ctx context.Context, principalID uuid.UUID, limitPerHour int) (*Result, error) {
	if limitPerHour <= 0 {
		return nil, ErrInvalidLimit
	}

	now := l.now()
	count, err := l.counter.CountSince(ctx, principalID, usage.FeatureAPI, now.Add(-Window))
	if err != nil {
		return nil, err
	}

	res := Result{
		Limit:     limitPerHour,
		Remaining: max(limitPerHour-int(count), 0),
		ResetAt:   now.Add(Window),
	}
	if count >= int64(limitPerHour) {
		return nil, &Exceeded{Result: res}
	}
	// This request consumes one slot once it is recorded.
	res.Remaining--
	return &res, nil
}
