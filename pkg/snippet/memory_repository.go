package snippet

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/quota"
)

// MemoryRepository keeps snippets in memory. The claim hands the slot back
// when the insert does not happen.
type MemoryRepository struct {
	qs quota.Store

	mu       sync.RWMutex
	snippets map[uuid.UUID]Snippet
}

// NewMemoryRepository uses qs for quota slots, normally the in-memory
// principal store.
func NewMemoryRepository(qs quota.Store) *MemoryRepository {
	return &MemoryRepository{qs: qs, snippets: make(map[uuid.UUID]Snippet)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *Snippet, claim ClaimFunc) error {
	return claim(ctx, r.qs, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.mu.Lock()
		r.snippets[s.ID] = *s
		r.mu.Unlock()
		return nil
	})
}

func (r *MemoryRepository) Delete(ctx context.Context, principalID, id uuid.UUID, release ReleaseFunc) error {
	r.mu.Lock()
	s, ok := r.snippets[id]
	if !ok || s.PrincipalID != principalID {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.snippets, id)
	r.mu.Unlock()

	return release(context.WithoutCancel(ctx), r.qs)
}

func (r *MemoryRepository) Get(_ context.Context, principalID, id uuid.UUID) (*Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.snippets[id]
	if !ok || s.PrincipalID != principalID {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) List(_ context.Context, principalID uuid.UUID, limit int) ([]Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Snippet
	for _, s := range r.snippets {
		if s.PrincipalID == principalID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Snippet) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
