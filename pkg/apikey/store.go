package apikey

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists API keys. Keys are never deleted; revoking marks them
// inactive.
type Store interface {
	Create(ctx context.Context, k *Key) error

	// FindByHash returns ErrKeyNotFound when no key has the hash.
	FindByHash(ctx context.Context, hash string) (*Key, error)

	// ListByPrincipal returns the principal's keys, newest first.
	ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]Key, error)

	// Revoke deactivates a key owned by principalID. Returns ErrKeyNotFound
	// when the key does not exist or belongs to someone else.
	Revoke(ctx context.Context, principalID, keyID uuid.UUID, at time.Time) error

	TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error
}
