package entitlement

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/snipflow/pkg/plan"
)

var (
	ErrFeatureNotAvailable = errors.New("entitlement: feature not available")
	ErrUnavailable         = errors.New("entitlement: plan state unavailable")
)

// Reason says why a feature was denied.
type Reason string

const (
	ReasonNotInPlan            Reason = "not_in_plan"
	ReasonSubscriptionInactive Reason = "subscription_inactive"
	ReasonUnknownFeature       Reason = "unknown_feature"
	ReasonUnavailable          Reason = "unavailable"
)

// Denial is returned by CheckFeature when access is refused. It wraps
// ErrFeatureNotAvailable, or ErrUnavailable together with the underlying
// cause when the principal's plan could not be resolved.
type Denial struct {
	Feature     plan.Feature
	FeatureName string
	Reason      Reason
	CurrentPlan plan.Tier
	// RecommendedPlan is the cheapest tier granting Feature, empty if none.
	RecommendedPlan plan.Tier

	cause error
}

func (d *Denial) Error() string {
	if d.Reason == ReasonUnavailable {
		return fmt.Sprintf("entitlement: cannot verify access to %s", d.FeatureName)
	}
	return fmt.Sprintf("entitlement: %s is not available on the %s plan", d.FeatureName, d.CurrentPlan)
}

func (d *Denial) Unwrap() []error {
	if d.Reason == ReasonUnavailable {
		return []error{ErrUnavailable, d.cause}
	}
	return []error{ErrFeatureNotAvailable}
}
