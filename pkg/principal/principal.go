package principal

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/plan"
)

// Status is the billing state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPastDue, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// Subscription is the billing state attached to a paid plan.
// ExpiresAt is nil for subscriptions without a fixed end (and for the free tier).
type Subscription struct {
	Status    Status
	ExpiresAt *time.Time
}

// ActiveAt reports whether the subscription grants its plan at now.
// past_due keeps access during the provider's dunning period; canceled and
// expired do not, and neither does any status once ExpiresAt has passed.
func (s Subscription) ActiveAt(now time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusPastDue {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return true
}

// Principal is an account subject to entitlement and quota checks.
type Principal struct {
	ID              uuid.UUID
	Plan            plan.Tier
	SnippetCount    int64
	TeamMemberCount int64
	Subscription    Subscription
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New returns a principal on the lowest tier, as created at signup.
func New(id uuid.UUID, now time.Time) *Principal {
	return &Principal{
		ID:           id,
		Plan:         plan.TierFree,
		Subscription: Subscription{Status: StatusActive},
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// EffectiveTier returns the tier the principal is entitled to at now.
// A paid plan whose subscription is no longer active degrades to the lowest
// tier; the free tier has no real subscription and is always in effect.
func (p *Principal) EffectiveTier(reg *plan.Registry, now time.Time) plan.Tier {
	lowest := reg.Lowest()
	if !p.Plan.Valid() || p.Plan == lowest {
		return lowest
	}
	if !p.Subscription.ActiveAt(now) {
		return lowest
	}
	return p.Plan
}

// Count returns the live counter for res.
func (p *Principal) Count(res plan.Resource) int64 {
	switch res {
	case plan.ResourceSnippets:
		return p.SnippetCount
	case plan.ResourceTeamMembers:
		return p.TeamMemberCount
	}
	return 0
}
