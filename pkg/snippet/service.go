package snippet

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

// Recorder receives usage events for completed actions.
type Recorder interface {
	Record(ctx context.Context, e usage.Event)
}

// Service creates and deletes snippets under the snippet quota.
type Service struct {
	repo     Repository
	enforcer *quota.Enforcer
	recorder Recorder
	now      func() time.Time
}

// NewService panics if any dependency is nil.
func NewService(repo Repository, enforcer *quota.Enforcer, recorder Recorder) *Service {
	if repo == nil {
		panic("snippet: repository cannot be nil")
	}
	if enforcer == nil {
		panic("snippet: enforcer cannot be nil")
	}
	if recorder == nil {
		panic("snippet: recorder cannot be nil")
	}
	return &Service{repo: repo, enforcer: enforcer, recorder: recorder, now: time.Now}
}

// Create stores a snippet if the principal has a free snippet slot. A quota
// refusal is returned as *quota.Exceeded.
func (s *Service) Create(ctx context.Context, principalID uuid.UUID, in Input) (*Snippet, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	sn := &Snippet{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Title:       in.Title,
		Language:    in.Language,
		Content:     in.Content,
		CreatedAt:   s.now().UTC(),
	}

	err := s.repo.Create(ctx, sn, func(ctx context.Context, qs quota.Store, insert func(context.Context) error) error {
		return s.enforcer.DoIn(ctx, qs, principalID, plan.ResourceSnippets, func(ctx context.Context, _ *quota.Reservation) error {
			return insert(ctx)
		})
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, usage.NewEvent(principalID, usage.FeatureSnippets, usage.TypeCreate, sn.CreatedAt))
	return sn, nil
}

// Delete removes a snippet and frees its slot.
func (s *Service) Delete(ctx context.Context, principalID, id uuid.UUID) error {
	err := s.repo.Delete(ctx, principalID, id, func(ctx context.Context, qs quota.Store) error {
		return s.enforcer.ReleaseIn(ctx, qs, principalID, plan.ResourceSnippets)
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, usage.NewEvent(principalID, usage.FeatureSnippets, usage.TypeDelete, s.now()))
	return nil
}

func (s *Service) Get(ctx context.Context, principalID, id uuid.UUID) (*Snippet, error) {
	return s.repo.Get(ctx, principalID, id)
}

// List returns the newest snippets first.
func (s *Service) List(ctx context.Context, principalID uuid.UUID, limit int) ([]Snippet, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, principalID, limit)
}
