package apikey

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/logger"
)

// DefaultRateLimit is the hourly request allowance of a newly issued key.
const DefaultRateLimit = 1000

// Identity is the result of a successful verification.
type Identity struct {
	PrincipalID uuid.UUID
	KeyID       uuid.UUID
	KeyPrefix   string
	RateLimit   int
}

// Authenticator verifies and manages API keys.
type Authenticator struct {
	store        Store
	logger       *slog.Logger
	now          func() time.Time
	touchTimeout time.Duration
}

type Option func(*Authenticator)

func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTouchTimeout bounds the background last-used update.
func WithTouchTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.touchTimeout = d
		}
	}
}

// NewAuthenticator panics if store is nil.
func NewAuthenticator(store Store, opts ...Option) *Authenticator {
	if store == nil {
		panic("apikey: store cannot be nil")
	}

	a := &Authenticator{
		store:        store,
		logger:       logger.Nop(),
		now:          time.Now,
		touchTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Verify resolves a raw key to its identity. Malformed keys are rejected
// without touching storage. Any failure returns *InvalidError.
func (a *Authenticator) Verify(ctx context.Context, raw string) (*Identity, error) {
	if !ValidFormat(raw) {
		return nil, invalid(ReasonMalformed, nil)
	}

	k, err := a.store.FindByHash(ctx, Hash(raw))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, invalid(ReasonUnknown, nil)
		}
		a.logger.ErrorContext(ctx, "api key lookup failed",
			logger.KeyPrefix(DisplayPrefix(raw)),
			logger.Error(err),
		)
		return nil, invalid(ReasonUnavailable, err)
	}
	if !k.Active {
		return nil, invalid(ReasonRevoked, nil)
	}

	a.touch(ctx, k)

	return &Identity{
		PrincipalID: k.PrincipalID,
		KeyID:       k.ID,
		KeyPrefix:   k.Prefix,
		RateLimit:   k.RateLimit,
	}, nil
}

// touch records last use in the background; failures are only logged.
func (a *Authenticator) touch(ctx context.Context, k *Key) {
	at := a.now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.touchTimeout)
	go func() {
		defer cancel()
		if err := a.store.TouchLastUsed(ctx, k.ID, at); err != nil {
			a.logger.WarnContext(ctx, "failed to update api key last use",
				logger.KeyID(k.ID),
				logger.KeyPrefix(k.Prefix),
				logger.Error(err),
			)
		}
	}()
}

// Issue creates a key for principalID and returns it with the raw key. The
// raw key is not stored and cannot be recovered later.
func (a *Authenticator) Issue(ctx context.Context, principalID uuid.UUID, name string, limitPerHour int) (*Key, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrInvalidName
	}
	if limitPerHour == 0 {
		limitPerHour = DefaultRateLimit
	}
	if limitPerHour < 0 {
		return nil, "", ErrInvalidRateLimit
	}

	raw, hash, prefix, err := Generate()
	if err != nil {
		return nil, "", err
	}

	k := &Key{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Name:        name,
		Prefix:      prefix,
		Hash:        hash,
		RateLimit:   limitPerHour,
		Active:      true,
		CreatedAt:   a.now().UTC(),
	}
	if err := a.store.Create(ctx, k); err != nil {
		return nil, "", err
	}

	a.logger.InfoContext(ctx, "api key issued",
		logger.PrincipalID(principalID),
		logger.KeyID(k.ID),
		logger.KeyPrefix(k.Prefix),
	)
	return k, raw, nil
}

// Revoke deactivates a key. The record is kept.
func (a *Authenticator) Revoke(ctx context.Context, principalID, keyID uuid.UUID) error {
	if err := a.store.Revoke(ctx, principalID, keyID, a.now()); err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "api key revoked",
		logger.PrincipalID(principalID),
		logger.KeyID(keyID),
	)
	return nil
}

func (a *Authenticator) List(ctx context.Context, principalID uuid.UUID) ([]Key, error) {
	return a.store.ListByPrincipal(ctx, principalID)
}
