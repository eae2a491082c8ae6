package plan

import "errors"

var (
	ErrUnknownTier              = errors.New("plan: unknown tier")
	ErrUnknownFeature           = errors.New("plan: unknown feature")
	ErrUnknownResource          = errors.New("plan: unknown resource")
	ErrInvalidPlanConfiguration = errors.New("plan: invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("plan: failed to load plans")
)
