package principal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/plan"
)

// Store persists principals. Implementations also own the live counters and
// therefore the atomic reserve/release primitive used for quota enforcement.
type Store interface {
	// Get returns ErrNotFound when no principal exists.
	Get(ctx context.Context, id uuid.UUID) (*Principal, error)

	// Create inserts a new principal. Returns ErrAlreadyExists on conflict.
	Create(ctx context.Context, p *Principal) error

	// ChangePlan sets the plan and subscription, as done by the billing webhook
	// on upgrade, downgrade or expiry. Counters are untouched.
	ChangePlan(ctx context.Context, id uuid.UUID, tier plan.Tier, sub Subscription) error

	// ExpireLapsed marks active or past_due subscriptions whose expiry is at or
	// before now as expired and returns how many were updated.
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)

	// Reserve increments the counter for res by one only if max is unlimited
	// or the current value is below max, as a single atomic step. It returns
	// the counter value after the operation and whether the slot was granted.
	Reserve(ctx context.Context, id uuid.UUID, res plan.Resource, max plan.Limit) (current int64, granted bool, err error)

	// Release decrements the counter for res by one, never below zero.
	Release(ctx context.Context, id uuid.UUID, res plan.Resource) error
}

func validatePlanChange(tier plan.Tier, sub Subscription) error {
	if !tier.Valid() {
		return ErrInvalidPlan
	}
	if !sub.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
