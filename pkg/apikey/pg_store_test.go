//go:build integration

package apikey_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/internal/pgtest"
	"github.com/dmitrymomot/snipflow/pkg/apikey"
	"github.com/dmitrymomot/snipflow/pkg/principal"
)

func TestPostgresStore(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()

	store := apikey.NewPostgresStore(pool)
	principals := principal.NewPostgresStore(pool)
	auth := apikey.NewAuthenticator(store)

	newPrincipal := func(t *testing.T) uuid.UUID {
		t.Helper()
		p := principal.New(uuid.New(), time.Now())
		require.NoError(t, principals.Create(ctx, p))
		return p.ID
	}

	t.Run("issued key verifies", func(t *testing.T) {
		owner := newPrincipal(t)

		k, raw, err := auth.Issue(ctx, owner, "ci", 500)
		require.NoError(t, err)

		id, err := auth.Verify(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, owner, id.PrincipalID)
		assert.Equal(t, k.ID, id.KeyID)
		assert.Equal(t, 500, id.RateLimit)

		stored, err := store.FindByHash(ctx, apikey.Hash(raw))
		require.NoError(t, err)
		assert.Equal(t, k.Prefix, stored.Prefix)
		assert.NotContains(t, stored.Hash, raw)
	})

	t.Run("hash is unique", func(t *testing.T) {
		owner := newPrincipal(t)

		k, _, err := auth.Issue(ctx, owner, "first", 0)
		require.NoError(t, err)

		dup := *k
		dup.ID = uuid.New()
		dup.Name = "second"
		assert.ErrorIs(t, store.Create(ctx, &dup), apikey.ErrDuplicateHash)

		keys, err := auth.List(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("revoke deactivates only the owner's key", func(t *testing.T) {
		owner := newPrincipal(t)
		k, raw, err := auth.Issue(ctx, owner, "deploy", 0)
		require.NoError(t, err)

		assert.ErrorIs(t, auth.Revoke(ctx, newPrincipal(t), k.ID), apikey.ErrKeyNotFound)
		assert.ErrorIs(t, auth.Revoke(ctx, owner, uuid.New()), apikey.ErrKeyNotFound)

		_, err = auth.Verify(ctx, raw)
		require.NoError(t, err)

		require.NoError(t, auth.Revoke(ctx, owner, k.ID))

		_, err = auth.Verify(ctx, raw)
		assert.Equal(t, apikey.ReasonRevoked, reasonOf(t, err))

		stored, err := store.FindByHash(ctx, k.Hash)
		require.NoError(t, err)
		assert.False(t, stored.Active)
		require.NotNil(t, stored.RevokedAt)

		// a second revoke keeps the first timestamp
		first := *stored.RevokedAt
		require.NoError(t, store.Revoke(ctx, owner, k.ID, time.Now().Add(time.Hour)))
		stored, err = store.FindByHash(ctx, k.Hash)
		require.NoError(t, err)
		assert.True(t, first.Equal(*stored.RevokedAt))
	})

	t.Run("unknown hash", func(t *testing.T) {
		_, err := store.FindByHash(ctx, apikey.Hash("sf_missing"))
		assert.ErrorIs(t, err, apikey.ErrKeyNotFound)

		assert.ErrorIs(t, store.TouchLastUsed(ctx, uuid.New(), time.Now()), apikey.ErrKeyNotFound)
	})

	t.Run("touch records last use", func(t *testing.T) {
		owner := newPrincipal(t)
		k, _, err := auth.Issue(ctx, owner, "touch", 0)
		require.NoError(t, err)

		at := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, store.TouchLastUsed(ctx, k.ID, at))

		stored, err := store.FindByHash(ctx, k.Hash)
		require.NoError(t, err)
		require.NotNil(t, stored.LastUsedAt)
		assert.True(t, at.Equal(*stored.LastUsedAt))
	})
}
