package team

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/quota"
)

// MemoryRepository keeps members in memory. The claim hands the seat back
// when the insert is refused.
type MemoryRepository struct {
	qs quota.Store

	mu      sync.Mutex
	members map[uuid.UUID]Member
}

func NewMemoryRepository(qs quota.Store) *MemoryRepository {
	return &MemoryRepository{qs: qs, members: make(map[uuid.UUID]Member)}
}

func (r *MemoryRepository) Add(ctx context.Context, m *Member, claim ClaimFunc) error {
	return claim(ctx, r.qs, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		for _, existing := range r.members {
			if existing.PrincipalID == m.PrincipalID && existing.Email == m.Email {
				return ErrAlreadyInvited
			}
		}
		r.members[m.ID] = *m
		return nil
	})
}

func (r *MemoryRepository) Remove(ctx context.Context, principalID, id uuid.UUID, release ReleaseFunc) error {
	r.mu.Lock()
	m, ok := r.members[id]
	if !ok || m.PrincipalID != principalID {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.members, id)
	r.mu.Unlock()

	return release(context.WithoutCancel(ctx), r.qs)
}

func (r *MemoryRepository) List(_ context.Context, principalID uuid.UUID) ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Member
	for _, m := range r.members {
		if m.PrincipalID == principalID {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b Member) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}
