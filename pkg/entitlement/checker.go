package entitlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
)

// Principals resolves the principal whose plan is checked.
type Principals interface {
	Get(ctx context.Context, id uuid.UUID) (*principal.Principal, error)
}

// Decision describes a granted feature check.
type Decision struct {
	Feature       plan.Feature
	EffectiveTier plan.Tier
}

// Entitlements is the resolved access of a principal at a point in time.
type Entitlements struct {
	Plan          plan.Tier
	EffectiveTier plan.Tier
	Subscription  principal.Subscription
	Features      []plan.Feature
	Limits        map[plan.Resource]plan.Limit
}

// Checker answers whether a principal may use a feature. It has no side
// effects and refuses access whenever the plan cannot be resolved.
type Checker struct {
	registry   *plan.Registry
	principals Principals
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Checker)

func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChecker panics if reg or principals is nil.
func NewChecker(reg *plan.Registry, principals Principals, opts ...Option) *Checker {
	if reg == nil {
		panic("entitlement: registry cannot be nil")
	}
	if principals == nil {
		panic("entitlement: principals cannot be nil")
	}

	c := &Checker{
		registry:   reg,
		principals: principals,
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckFeature returns a Decision when the principal's effective plan grants
// f, and a *Denial otherwise.
func (c *Checker) CheckFeature(ctx context.Context, principalID uuid.UUID, f plan.Feature) (*Decision, error) {
	if !f.Valid() {
		return nil, &Denial{
			Feature:     f,
			FeatureName: string(f),
			Reason:      ReasonUnknownFeature,
			CurrentPlan: c.registry.Lowest(),
		}
	}

	p, err := c.principals.Get(ctx, principalID)
	if err != nil {
		c.logger.ErrorContext(ctx, "entitlement check failed closed",
			logger.PrincipalID(principalID),
			logger.Feature(string(f)),
			logger.Error(err),
		)
		return nil, &Denial{
			Feature:     f,
			FeatureName: f.DisplayName(),
			Reason:      ReasonUnavailable,
			CurrentPlan: c.registry.Lowest(),
			cause:       err,
		}
	}

	effective := p.EffectiveTier(c.registry, c.now())
	if c.registry.HasFeature(effective, f) {
		return &Decision{Feature: f, EffectiveTier: effective}, nil
	}

	d := &Denial{
		Feature:     f,
		FeatureName: f.DisplayName(),
		Reason:      ReasonNotInPlan,
		CurrentPlan: effective,
	}
	// The stored plan would grant it; only the lapsed subscription stands in
	// the way.
	if effective != p.Plan && c.registry.HasFeature(p.Plan, f) {
		d.Reason = ReasonSubscriptionInactive
		d.CurrentPlan = p.Plan
	}
	if t, ok := c.registry.CheapestWith(f); ok {
		d.RecommendedPlan = t
	}
	return nil, d
}

// Entitlements resolves the effective tier with its features and limits.
func (c *Checker) Entitlements(ctx context.Context, principalID uuid.UUID) (*Entitlements, error) {
	p, err := c.principals.Get(ctx, principalID)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	effective := p.EffectiveTier(c.registry, c.now())
	limits := make(map[plan.Resource]plan.Limit, len(plan.Resources()))
	for _, res := range plan.Resources() {
		limits[res] = c.registry.Limit(effective, res)
	}

	return &Entitlements{
		Plan:          p.Plan,
		EffectiveTier: effective,
		Subscription:  p.Subscription,
		Features:      c.registry.Features(effective),
		Limits:        limits,
	}, nil
}
