package principal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/plan"
)

// MemoryStore keeps principals in process memory. A single mutex makes each
// Reserve linearizable; use it for tests and single-instance deployments.
type MemoryStore struct {
	mu         sync.Mutex
	principals map[uuid.UUID]Principal
	now        func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[uuid.UUID]Principal),
		now:        time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (s *MemoryStore) Create(ctx context.Context, p *Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.SnippetCount < 0 || p.TeamMemberCount < 0 {
		return ErrNegativeCounter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.principals[p.ID]; ok {
		return ErrAlreadyExists
	}
	s.principals[p.ID] = *clonePrincipal(*p)
	return nil
}

func (s *MemoryStore) ChangePlan(ctx context.Context, id uuid.UUID, tier plan.Tier, sub Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePlanChange(tier, sub); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return ErrNotFound
	}
	p.Plan = tier
	p.Subscription = cloneSubscription(sub)
	p.UpdatedAt = s.now().UTC()
	s.principals[id] = p
	return nil
}

func (s *MemoryStore) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, p := range s.principals {
		sub := p.Subscription
		if sub.Status != StatusActive && sub.Status != StatusPastDue {
			continue
		}
		if sub.ExpiresAt == nil || now.Before(*sub.ExpiresAt) {
			continue
		}
		p.Subscription.Status = StatusExpired
		p.UpdatedAt = now.UTC()
		s.principals[id] = p
		n++
	}
	return n, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, id uuid.UUID, res plan.Resource, max plan.Limit) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if !res.Valid() {
		return 0, false, ErrUnknownResource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return 0, false, ErrNotFound
	}

	counter := counterOf(&p, res)
	if !max.Allows(*counter) {
		return *counter, false, nil
	}
	*counter++
	p.UpdatedAt = s.now().UTC()
	s.principals[id] = p
	return *counter, true, nil
}

func (s *MemoryStore) Release(ctx context.Context, id uuid.UUID, res plan.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !res.Valid() {
		return ErrUnknownResource
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.principals[id]
	if !ok {
		return ErrNotFound
	}

	counter := counterOf(&p, res)
	if *counter > 0 {
		*counter--
	}
	p.UpdatedAt = s.now().UTC()
	s.principals[id] = p
	return nil
}

func counterOf(p *Principal, res plan.Resource) *int64 {
	if res == plan.ResourceTeamMembers {
		return &p.TeamMemberCount
	}
	return &p.SnippetCount
}

func clonePrincipal(p Principal) *Principal {
	p.Subscription = cloneSubscription(p.Subscription)
	return &p
}

func cloneSubscription(sub Subscription) Subscription {
	if sub.ExpiresAt != nil {
		t := *sub.ExpiresAt
		sub.ExpiresAt = &t
	}
	return sub
}
