package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store appends events. A batch is written entirely or not at all.
type Store interface {
	AppendBatch(ctx context.Context, events []Event) error
}

// Counter counts a principal's events of one feature created strictly after
// since.
type Counter interface {
	CountSince(ctx context.Context, principalID uuid.UUID, f Feature, since time.Time) (int64, error)
}

// Summarizer totals event quantities per feature for a principal since a
// point in time.
type Summarizer interface {
	Totals(ctx context.Context, principalID uuid.UUID, since time.Time) (map[Feature]int64, error)
}

// ErrMirrorFailed marks a Tee batch that reached the primary store but not
// every mirror. The batch is persisted.
var ErrMirrorFailed = errors.New("usage: mirror write failed")

// Tee writes each batch to primary and then to every mirror. Mirrors are
// written even when primary fails. A primary failure is returned as is;
// mirror failures after a successful primary write are wrapped with
// ErrMirrorFailed.
func Tee(primary Store, mirrors ...Store) Store {
	return teeStore{primary: primary, mirrors: mirrors}
}

type teeStore struct {
	primary Store
	mirrors []Store
}

func (t teeStore) AppendBatch(ctx context.Context, events []Event) error {
	primaryErr := t.primary.AppendBatch(ctx, events)

	var errs []error
	for _, s := range t.mirrors {
		if err := s.AppendBatch(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}

	if primaryErr != nil {
		return errors.Join(append([]error{primaryErr}, errs...)...)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrMirrorFailed}, errs...)...)
	}
	return nil
}
