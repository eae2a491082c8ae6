package principal

import "errors"

var (
	ErrNotFound        = errors.New("principal: not found")
	ErrAlreadyExists   = errors.New("principal: already exists")
	ErrUnknownResource = errors.New("principal: unknown resource")
	ErrInvalidPlan     = errors.New("principal: invalid plan")
	ErrInvalidStatus   = errors.New("principal: invalid subscription status")
	ErrNegativeCounter = errors.New("principal: counters cannot be negative")
)
