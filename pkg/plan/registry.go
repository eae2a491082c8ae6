package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Source loads plan definitions keyed by tier.
type Source interface {
	Load(ctx context.Context) (map[Tier]Plan, error)
}

// Registry is the immutable tier -> plan table. It is built once at startup
// and is safe for concurrent use because nothing mutates it afterwards.
type Registry struct {
	plans map[Tier]Plan
}

// NewRegistry loads and validates plans from src.
// Every tier must be defined; the registry never falls back to partial data.
func NewRegistry(ctx context.Context, src Source) (*Registry, error) {
	if src == nil {
		panic("plan: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	cp := make(map[Tier]Plan, len(plans))
	for tier, p := range plans {
		p.Tier = tier
		cp[tier] = p.clone()
	}

	return &Registry{plans: cp}, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for tests and
// static configuration known to be valid.
func MustRegistry(ctx context.Context, src Source) *Registry {
	r, err := NewRegistry(ctx, src)
	if err != nil {
		panic(err)
	}
	return r
}

// Lowest returns the most restrictive tier.
func (r *Registry) Lowest() Tier {
	return tiers[0]
}

// Plan returns a copy of the plan for tier. Unknown tiers resolve to the most
// restrictive plan.
func (r *Registry) Plan(tier Tier) Plan {
	p, ok := r.plans[tier]
	if !ok {
		p = r.plans[r.Lowest()]
	}
	return p.clone()
}

// Features returns the features granted by tier.
func (r *Registry) Features(tier Tier) []Feature {
	return r.Plan(tier).Features
}

// HasFeature reports whether tier grants f. Unknown features are never granted.
func (r *Registry) HasFeature(tier Tier, f Feature) bool {
	if !f.Valid() {
		return false
	}
	p, ok := r.plans[tier]
	if !ok {
		p = r.plans[r.Lowest()]
	}
	return p.HasFeature(f)
}

// Limit returns the ceiling for res on tier.
func (r *Registry) Limit(tier Tier, res Resource) Limit {
	p, ok := r.plans[tier]
	if !ok {
		p = r.plans[r.Lowest()]
	}
	return p.Limit(res)
}

// CheapestWith returns the lowest tier granting f.
func (r *Registry) CheapestWith(f Feature) (Tier, bool) {
	for _, t := range tiers {
		if r.plans[t].HasFeature(f) {
			return t, true
		}
	}
	return "", false
}

// CheapestAbove returns the lowest tier whose limit for res is greater than
// current, i.e. the tier a principal should upgrade to after hitting a quota.
func (r *Registry) CheapestAbove(res Resource, current int64) (Tier, bool) {
	for _, t := range tiers {
		if r.plans[t].Limit(res).Allows(current) {
			return t, true
		}
	}
	return "", false
}

func validatePlans(plans map[Tier]Plan) error {
	for _, t := range tiers {
		if _, ok := plans[t]; !ok {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("tier %q is not defined", t))
		}
	}

	for tier, p := range plans {
		if !tier.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration, ErrUnknownTier,
				fmt.Errorf("tier %q", tier))
		}
		for _, f := range p.Features {
			if !f.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration, ErrUnknownFeature,
					fmt.Errorf("tier %q lists feature %q", tier, f))
			}
		}
		for res, limit := range p.Limits {
			if !res.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration, ErrUnknownResource,
					fmt.Errorf("tier %q limits resource %q", tier, res))
			}
			if limit < 0 && !limit.IsUnlimited() {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("tier %q has negative limit %d for %q", tier, limit, res))
			}
		}
		if slices.ContainsFunc(Resources(), func(res Resource) bool {
			_, ok := p.Limits[res]
			return !ok
		}) {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("tier %q does not define a limit for every resource", tier))
		}
	}

	return nil
}
