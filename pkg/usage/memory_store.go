package usage

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an append-only in-process ledger.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendBatch(ctx context.Context, events []Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		e.Metadata = maps.Clone(e.Metadata)
		s.events = append(s.events, e)
	}
	return nil
}

func (s *MemoryStore) CountSince(ctx context.Context, principalID uuid.UUID, f Feature, since time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if e.PrincipalID == principalID && e.Feature == f && e.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Totals(ctx context.Context, principalID uuid.UUID, since time.Time) (map[Feature]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[Feature]int64)
	for _, e := range s.events {
		if e.PrincipalID == principalID && e.CreatedAt.After(since) {
			out[e.Feature] += e.Quantity
		}
	}
	return out, nil
}

// Events returns a copy of everything recorded.
func (s *MemoryStore) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
