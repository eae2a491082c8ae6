//go:build integration

package snippet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/internal/pgtest"
	"github.com/dmitrymomot/snipflow/pkg/pg"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/snippet"
)

func TestPostgresRepository(t *testing.T) {
	pool := pgtest.Start(t)
	ctx := context.Background()

	reg := plan.MustRegistry(ctx, plan.Defaults())
	principals := principal.NewPostgresStore(pool)
	enforcer := quota.NewEnforcer(reg, principals, principals)
	repo := snippet.NewPostgresRepository(pool)
	svc := snippet.NewService(repo, enforcer, &eventSink{})

	newPrincipal := func(t *testing.T, tier plan.Tier, snippets int64) uuid.UUID {
		t.Helper()
		p := principal.New(uuid.New(), time.Now())
		p.Plan = tier
		p.SnippetCount = snippets
		require.NoError(t, principals.Create(ctx, p))
		return p.ID
	}
	counter := func(t *testing.T, id uuid.UUID) int64 {
		t.Helper()
		p, err := principals.Get(ctx, id)
		require.NoError(t, err)
		return p.SnippetCount
	}
	claimFor := func(id uuid.UUID) snippet.ClaimFunc {
		return func(ctx context.Context, qs quota.Store, insert func(context.Context) error) error {
			return enforcer.DoIn(ctx, qs, id, plan.ResourceSnippets, func(ctx context.Context, _ *quota.Reservation) error {
				return insert(ctx)
			})
		}
	}

	t.Run("create commits the slot with the row", func(t *testing.T) {
		id := newPrincipal(t, plan.TierFree, 0)

		sn, err := svc.Create(ctx, id, validInput)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counter(t, id))
		assert.Equal(t, int64(1), rowCount(t, pool, id))

		got, err := svc.Get(ctx, id, sn.ID)
		require.NoError(t, err)
		assert.Equal(t, sn.Title, got.Title)
	})

	t.Run("failed insert gives the slot back", func(t *testing.T) {
		id := newPrincipal(t, plan.TierFree, 0)

		sn, err := svc.Create(ctx, id, validInput)
		require.NoError(t, err)

		dup := *sn
		err = repo.Create(ctx, &dup, claimFor(id))
		require.Error(t, err)
		assert.True(t, pg.IsDuplicateKeyError(err))
		assert.Equal(t, int64(1), counter(t, id))
		assert.Equal(t, int64(1), rowCount(t, pool, id))
	})

	t.Run("reservation rolls back with the transaction", func(t *testing.T) {
		id := newPrincipal(t, plan.TierFree, 7)
		boom := errors.New("boom")

		sn := &snippet.Snippet{ID: uuid.New(), PrincipalID: id, Title: "t", Content: "c", CreatedAt: time.Now()}
		err := repo.Create(ctx, sn, func(ctx context.Context, qs quota.Store, _ func(context.Context) error) error {
			if _, err := enforcer.ReserveIn(ctx, qs, id, plan.ResourceSnippets); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, int64(7), counter(t, id))
		assert.Zero(t, rowCount(t, pool, id))
	})

	t.Run("free plan at 50 of 50 is denied until upgrade", func(t *testing.T) {
		id := newPrincipal(t, plan.TierFree, 50)

		_, err := svc.Create(ctx, id, validInput)
		var ex *quota.Exceeded
		require.ErrorAs(t, err, &ex)
		assert.Equal(t, int64(50), ex.Current)
		assert.Equal(t, plan.Limit(50), ex.Max)
		assert.Zero(t, rowCount(t, pool, id))

		require.NoError(t, principals.ChangePlan(ctx, id, plan.TierPro, principal.Subscription{Status: principal.StatusActive}))

		_, err = svc.Create(ctx, id, validInput)
		require.NoError(t, err)
		assert.Equal(t, int64(51), counter(t, id))
	})

	t.Run("delete frees the slot", func(t *testing.T) {
		id := newPrincipal(t, plan.TierFree, 0)

		sn, err := svc.Create(ctx, id, validInput)
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Delete(ctx, uuid.New(), sn.ID), snippet.ErrNotFound)
		assert.Equal(t, int64(1), counter(t, id))

		require.NoError(t, svc.Delete(ctx, id, sn.ID))
		assert.Zero(t, counter(t, id))
		assert.Zero(t, rowCount(t, pool, id))
	})

	t.Run("list is newest first", func(t *testing.T) {
		id := newPrincipal(t, plan.TierBasic, 0)

		var last *snippet.Snippet
		for range 3 {
			sn, err := svc.Create(ctx, id, validInput)
			require.NoError(t, err)
			last = sn
		}

		list, err := svc.List(ctx, id, 2)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, last.ID, list[0].ID)
	})
}

func rowCount(t *testing.T, pool *pgxpool.Pool, principalID uuid.UUID) int64 {
	t.Helper()

	var n int64
	err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM snippets WHERE principal_id = $1`, principalID).Scan(&n)
	require.NoError(t, err)
	return n
}
