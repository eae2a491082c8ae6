package team

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

type Recorder interface {
	Record(ctx context.Context, e usage.Event)
}

// Service manages team seats under the team member quota.
type Service struct {
	repo     Repository
	enforcer *quota.Enforcer
	recorder Recorder
	now      func() time.Time
}

func NewService(repo Repository, enforcer *quota.Enforcer, recorder Recorder) *Service {
	if repo == nil {
		panic("team: repository cannot be nil")
	}
	if enforcer == nil {
		panic("team: enforcer cannot be nil")
	}
	if recorder == nil {
		panic("team: recorder cannot be nil")
	}
	return &Service{repo: repo, enforcer: enforcer, recorder: recorder, now: time.Now}
}

// Add seats a new member. A duplicate email does not consume a slot.
func (s *Service) Add(ctx context.Context, principalID uuid.UUID, in Input) (*Member, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	m := &Member{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Email:       in.Email,
		Role:        in.Role,
		CreatedAt:   s.now().UTC(),
	}

	err := s.repo.Add(ctx, m, func(ctx context.Context, qs quota.Store, insert func(context.Context) error) error {
		return s.enforcer.DoIn(ctx, qs, principalID, plan.ResourceTeamMembers, func(ctx context.Context, _ *quota.Reservation) error {
			return insert(ctx)
		})
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, usage.NewEvent(principalID, usage.FeatureTeamMembers, usage.TypeCreate, m.CreatedAt))
	return m, nil
}

// Remove deletes a member and frees the seat.
func (s *Service) Remove(ctx context.Context, principalID, id uuid.UUID) error {
	err := s.repo.Remove(ctx, principalID, id, func(ctx context.Context, qs quota.Store) error {
		return s.enforcer.ReleaseIn(ctx, qs, principalID, plan.ResourceTeamMembers)
	})
	if err != nil {
		return err
	}

	s.recorder.Record(ctx, usage.NewEvent(principalID, usage.FeatureTeamMembers, usage.TypeDelete, s.now()))
	return nil
}

func (s *Service) List(ctx context.Context, principalID uuid.UUID) ([]Member, error) {
	return s.repo.List(ctx, principalID)
}
