package quota_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
	"github.com/dmitrymomot/snipflow/pkg/quota"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Reserve(ctx context.Context, id uuid.UUID, res plan.Resource, max plan.Limit) (int64, bool, error) {
	args := m.Called(ctx, id, res, max)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockStore) Release(ctx context.Context, id uuid.UUID, res plan.Resource) error {
	args := m.Called(ctx, id, res)
	return args.Error(0)
}

type failingPrincipals struct{ err error }

func (f failingPrincipals) Get(context.Context, uuid.UUID) (*principal.Principal, error) {
	return nil, f.err
}

func newFixture(t *testing.T) (*quota.Enforcer, *principal.MemoryStore) {
	t.Helper()

	reg := plan.MustRegistry(context.Background(), plan.Defaults())
	store := principal.NewMemoryStore()
	return quota.NewEnforcer(reg, store, store), store
}

func seed(t *testing.T, store *principal.MemoryStore, tier plan.Tier, snippets int64) uuid.UUID {
	t.Helper()

	p := principal.New(uuid.New(), time.Now())
	p.Plan = tier
	p.SnippetCount = snippets
	require.NoError(t, store.Create(context.Background(), p))
	return p.ID
}

func TestEnforcer_CheckAndReserve(t *testing.T) {
	t.Parallel()

	t.Run("below max is granted", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 49)

		r, err := e.CheckAndReserve(context.Background(), id, plan.ResourceSnippets)
		require.NoError(t, err)
		assert.Equal(t, int64(50), r.Current)
		assert.Equal(t, plan.Limit(50), r.Max)
	})

	t.Run("at max is denied", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 50)

		_, err := e.CheckAndReserve(context.Background(), id, plan.ResourceSnippets)
		require.ErrorIs(t, err, quota.ErrQuotaExceeded)

		var ex *quota.Exceeded
		require.ErrorAs(t, err, &ex)
		assert.Equal(t, int64(50), ex.Current)
		assert.Equal(t, plan.Limit(50), ex.Max)
		assert.Equal(t, plan.TierFree, ex.Tier)
		assert.Equal(t, plan.TierBasic, ex.Recommended)
	})

	t.Run("above max is denied", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 75)

		_, err := e.CheckAndReserve(context.Background(), id, plan.ResourceSnippets)
		assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
	})

	t.Run("unlimited is always granted", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		for _, count := range []int64{0, 1, 50, 1_000_000} {
			id := seed(t, store, plan.TierPro, count)
			r, err := e.CheckAndReserve(context.Background(), id, plan.ResourceSnippets)
			require.NoError(t, err)
			assert.True(t, r.Max.IsUnlimited())
			assert.Equal(t, count+1, r.Current)
		}
	})

	t.Run("zero limit denies team members on free", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 0)

		_, err := e.CheckAndReserve(context.Background(), id, plan.ResourceTeamMembers)
		var ex *quota.Exceeded
		require.ErrorAs(t, err, &ex)
		assert.Equal(t, plan.Limit(0), ex.Max)
		assert.Equal(t, plan.TierBasic, ex.Recommended)
	})

	t.Run("lapsed paid plan is capped at free", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		p := principal.New(uuid.New(), time.Now())
		p.Plan = plan.TierPro
		p.SnippetCount = 50
		p.Subscription.Status = principal.StatusCanceled
		require.NoError(t, store.Create(context.Background(), p))

		_, err := e.CheckAndReserve(context.Background(), p.ID, plan.ResourceSnippets)
		assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
	})

	t.Run("unknown resource", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 0)

		_, err := e.CheckAndReserve(context.Background(), id, plan.Resource("projects"))
		assert.ErrorIs(t, err, quota.ErrUnknownResource)
	})

	t.Run("missing principal fails closed", func(t *testing.T) {
		t.Parallel()

		e, _ := newFixture(t)
		_, err := e.CheckAndReserve(context.Background(), uuid.New(), plan.ResourceSnippets)
		assert.ErrorIs(t, err, quota.ErrUnavailable)
		assert.ErrorIs(t, err, principal.ErrNotFound)
	})

	t.Run("store error fails closed", func(t *testing.T) {
		t.Parallel()

		reg := plan.MustRegistry(context.Background(), plan.Defaults())
		principals := principal.NewMemoryStore()
		id := seed(t, principals, plan.TierFree, 0)

		store := &MockStore{}
		store.On("Reserve", mock.Anything, id, plan.ResourceSnippets, plan.Limit(50)).
			Return(int64(0), false, errors.New("connection reset"))

		e := quota.NewEnforcer(reg, principals, store)
		_, err := e.CheckAndReserve(context.Background(), id, plan.ResourceSnippets)
		assert.ErrorIs(t, err, quota.ErrUnavailable)
		assert.NotErrorIs(t, err, quota.ErrQuotaExceeded)
		store.AssertExpectations(t)
	})

	t.Run("principal lookup error fails closed", func(t *testing.T) {
		t.Parallel()

		reg := plan.MustRegistry(context.Background(), plan.Defaults())
		e := quota.NewEnforcer(reg, failingPrincipals{err: context.DeadlineExceeded}, &MockStore{})

		_, err := e.CheckAndReserve(context.Background(), uuid.New(), plan.ResourceSnippets)
		assert.ErrorIs(t, err, quota.ErrUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestEnforcer_ConcurrentReservations(t *testing.T) {
	t.Parallel()

	const (
		workers = 32
		free    = 7
	)

	e, store := newFixture(t)
	id := seed(t, store, plan.TierFree, 50-free)

	var (
		wg      sync.WaitGroup
		granted atomic.Int64
		denied  atomic.Int64
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CheckAndReserve(context.Background(), id, plan.ResourceSnippets)
			switch {
			case err == nil:
				granted.Add(1)
			case errors.Is(err, quota.ErrQuotaExceeded):
				denied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(free), granted.Load())
	assert.Equal(t, int64(workers-free), denied.Load())

	p, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.SnippetCount)
}

func TestEnforcer_UpgradeLiftsQuota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, store := newFixture(t)
	id := seed(t, store, plan.TierFree, 50)

	_, err := e.CheckAndReserve(ctx, id, plan.ResourceSnippets)
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)

	require.NoError(t, store.ChangePlan(ctx, id, plan.TierPro, principal.Subscription{Status: principal.StatusActive}))

	r, err := e.CheckAndReserve(ctx, id, plan.ResourceSnippets)
	require.NoError(t, err)
	assert.Equal(t, int64(51), r.Current)
	assert.True(t, r.Max.IsUnlimited())
}

func TestEnforcer_Do(t *testing.T) {
	t.Parallel()

	t.Run("success keeps the reservation", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 10)

		err := e.Do(context.Background(), id, plan.ResourceSnippets, func(context.Context, *quota.Reservation) error {
			return nil
		})
		require.NoError(t, err)

		p, _ := store.Get(context.Background(), id)
		assert.Equal(t, int64(11), p.SnippetCount)
	})

	t.Run("failure releases the reservation", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 10)
		boom := errors.New("insert failed")

		err := e.Do(context.Background(), id, plan.ResourceSnippets, func(context.Context, *quota.Reservation) error {
			return boom
		})
		require.ErrorIs(t, err, boom)

		p, _ := store.Get(context.Background(), id)
		assert.Equal(t, int64(10), p.SnippetCount)
	})

	t.Run("cancellation before persisting releases the reservation", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 10)

		ctx, cancel := context.WithCancel(context.Background())
		err := e.Do(ctx, id, plan.ResourceSnippets, func(ctx context.Context, _ *quota.Reservation) error {
			cancel()
			return ctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)

		p, _ := store.Get(context.Background(), id)
		assert.Equal(t, int64(10), p.SnippetCount)
	})

	t.Run("cancellation after persisting keeps the reservation", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 10)

		ctx, cancel := context.WithCancel(context.Background())
		err := e.Do(ctx, id, plan.ResourceSnippets, func(context.Context, *quota.Reservation) error {
			cancel()
			return nil
		})
		require.NoError(t, err)

		p, _ := store.Get(context.Background(), id)
		assert.Equal(t, int64(11), p.SnippetCount)
	})

	t.Run("DoIn compensates against the given store", func(t *testing.T) {
		t.Parallel()

		reg := plan.MustRegistry(context.Background(), plan.Defaults())
		other := principal.NewMemoryStore()
		unused := &MockStore{}
		e := quota.NewEnforcer(reg, other, unused)
		id := seed(t, other, plan.TierFree, 3)
		boom := errors.New("insert failed")

		var during int64
		err := e.DoIn(context.Background(), other, id, plan.ResourceSnippets, func(_ context.Context, r *quota.Reservation) error {
			during = r.Current
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, int64(4), during)

		p, _ := other.Get(context.Background(), id)
		assert.Equal(t, int64(3), p.SnippetCount)
		unused.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("denied reservation never runs fn", func(t *testing.T) {
		t.Parallel()

		e, store := newFixture(t)
		id := seed(t, store, plan.TierFree, 50)

		called := false
		err := e.Do(context.Background(), id, plan.ResourceSnippets, func(context.Context, *quota.Reservation) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
		assert.False(t, called)
	})
}

func TestEnforcer_ReleaseAndUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e, store := newFixture(t)
	id := seed(t, store, plan.TierBasic, 3)

	require.NoError(t, e.Release(ctx, id, plan.ResourceSnippets))

	usage, err := e.Usage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, quota.UsageInfo{Current: 2, Max: 500}, usage[plan.ResourceSnippets])
	assert.Equal(t, quota.UsageInfo{Current: 0, Max: 3}, usage[plan.ResourceTeamMembers])

	_, err = e.Usage(ctx, uuid.New())
	assert.ErrorIs(t, err, quota.ErrUnavailable)

	assert.ErrorIs(t, e.Release(ctx, id, plan.Resource("nope")), quota.ErrUnknownResource)
}

func TestNewEnforcer_PanicsOnNilDeps(t *testing.T) {
	t.Parallel()

	reg := plan.MustRegistry(context.Background(), plan.Defaults())
	store := principal.NewMemoryStore()

	assert.Panics(t, func() { quota.NewEnforcer(nil, store, store) })
	assert.Panics(t, func() { quota.NewEnforcer(reg, nil, store) })
	assert.Panics(t, func() { quota.NewEnforcer(reg, store, nil) })
}
