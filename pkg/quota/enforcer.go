package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/plan"
)

// Reservation is a granted slot. Current is the counter after the increment.
type Reservation struct {
	PrincipalID uuid.UUID
	Resource    plan.Resource
	Current     int64
	Max         plan.Limit
}

// UsageInfo is the counter and limit for one resource.
type UsageInfo struct {
	Current int64
	Max     plan.Limit
}

// Enforcer checks and reserves resource slots against the limits of the
// principal's effective plan.
type Enforcer struct {
	registry   *plan.Registry
	principals Principals
	store      Store
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Enforcer)

func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides the clock used to evaluate subscription expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Enforcer) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEnforcer panics if any dependency is nil.
func NewEnforcer(reg *plan.Registry, principals Principals, store Store, opts ...Option) *Enforcer {
	if reg == nil {
		panic("quota: registry cannot be nil")
	}
	if principals == nil {
		panic("quota: principals cannot be nil")
	}
	if store == nil {
		panic("quota: store cannot be nil")
	}

	e := &Enforcer{
		registry:   reg,
		principals: principals,
		store:      store,
		logger:     logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckAndReserve claims one unit of res for the principal using the
// enforcer's store.
func (e *Enforcer) CheckAndReserve(ctx context.Context, principalID uuid.UUID, res plan.Resource) (*Reservation, error) {
	return e.ReserveIn(ctx, e.store, principalID, res)
}

// ReserveIn is CheckAndReserve against an explicit store, typically one bound
// to the caller's transaction so the reservation commits with the insert.
func (e *Enforcer) ReserveIn(ctx context.Context, store Store, principalID uuid.UUID, res plan.Resource) (*Reservation, error) {
	if !res.Valid() {
		return nil, ErrUnknownResource
	}

	p, err := e.principals.Get(ctx, principalID)
	if err != nil {
		return nil, e.unavailable(ctx, principalID, res, err)
	}

	tier := p.EffectiveTier(e.registry, e.now())
	limit := e.registry.Limit(tier, res)

	current, granted, err := store.Reserve(ctx, principalID, res, limit)
	if err != nil {
		return nil, e.unavailable(ctx, principalID, res, err)
	}
	if !granted {
		exceeded := &Exceeded{Resource: res, Current: current, Max: limit, Tier: tier}
		if next, ok := e.registry.CheapestAbove(res, current); ok {
			exceeded.Recommended = next
		}
		return nil, exceeded
	}

	return &Reservation{PrincipalID: principalID, Resource: res, Current: current, Max: limit}, nil
}

// Release returns one unit of res to the principal.
func (e *Enforcer) Release(ctx context.Context, principalID uuid.UUID, res plan.Resource) error {
	return e.ReleaseIn(ctx, e.store, principalID, res)
}

func (e *Enforcer) ReleaseIn(ctx context.Context, store Store, principalID uuid.UUID, res plan.Resource) error {
	if !res.Valid() {
		return ErrUnknownResource
	}
	if err := store.Release(ctx, principalID, res); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}

// Do reserves a unit, runs fn, and gives the unit back when fn fails. fn must
// return an error if it gave up before persisting, for example on a cancelled
// ctx. The compensating release runs on a context detached from ctx's
// cancellation.
func (e *Enforcer) Do(ctx context.Context, principalID uuid.UUID, res plan.Resource, fn func(ctx context.Context, r *Reservation) error) error {
	return e.DoIn(ctx, e.store, principalID, res, fn)
}

// DoIn is Do against an explicit store. Reservation and compensation both go
// through store.
func (e *Enforcer) DoIn(ctx context.Context, store Store, principalID uuid.UUID, res plan.Resource, fn func(ctx context.Context, r *Reservation) error) error {
	r, err := e.ReserveIn(ctx, store, principalID, res)
	if err != nil {
		return err
	}

	fnErr := fn(ctx, r)
	if fnErr == nil {
		return nil
	}

	if relErr := e.ReleaseIn(context.WithoutCancel(ctx), store, principalID, res); relErr != nil {
		e.logger.ErrorContext(ctx, "failed to release quota reservation",
			logger.PrincipalID(principalID),
			logger.Resource(string(res)),
			logger.Error(relErr),
		)
		return errors.Join(fnErr, relErr)
	}
	return fnErr
}

// Usage reports the counter and the effective limit of every resource.
func (e *Enforcer) Usage(ctx context.Context, principalID uuid.UUID) (map[plan.Resource]UsageInfo, error) {
	p, err := e.principals.Get(ctx, principalID)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}

	tier := p.EffectiveTier(e.registry, e.now())
	out := make(map[plan.Resource]UsageInfo, len(plan.Resources()))
	for _, res := range plan.Resources() {
		out[res] = UsageInfo{Current: p.Count(res), Max: e.registry.Limit(tier, res)}
	}
	return out, nil
}

// unavailable converts any storage or lookup failure into a refusal.
func (e *Enforcer) unavailable(ctx context.Context, principalID uuid.UUID, res plan.Resource, err error) error {
	e.logger.ErrorContext(ctx, "quota check failed closed",
		logger.PrincipalID(principalID),
		logger.Resource(string(res)),
		logger.Error(err),
	)
	return errors.Join(ErrUnavailable, err)
}
