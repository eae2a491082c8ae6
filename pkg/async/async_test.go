package async_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snipflow/pkg/async"
)

func TestGo_Await(t *testing.T) {
	t.Parallel()

	t.Run("result", func(t *testing.T) {
		t.Parallel()
		f := async.Go(context.Background(), func(context.Context) (int, error) { return 42, nil })
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		f := async.Go(context.Background(), func(context.Context) (string, error) { return "", boom })
		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("panic becomes error", func(t *testing.T) {
		t.Parallel()
		f := async.Go(context.Background(), func(context.Context) (int, error) { panic("oops") })
		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, async.ErrPanic)
		assert.Contains(t, err.Error(), "oops")
	})

	t.Run("cancelled before start", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		f := async.Go(ctx, func(context.Context) (int, error) { called = true; return 1, nil })
		<-f.Done()
		_, err := f.Await(context.Background())
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("await honours context", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		defer close(release)
		f := async.Go(context.Background(), func(context.Context) (int, error) {
			<-release
			return 1, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := f.Await(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestWaitAll(t *testing.T) {
	t.Parallel()

	t.Run("collects in order", func(t *testing.T) {
		t.Parallel()
		slow := async.Go(context.Background(), func(context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 1, nil
		})
		fast := async.Go(context.Background(), func(context.Context) (int, error) { return 2, nil })

		got, err := async.WaitAll(context.Background(), slow, fast)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("first error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		ok := async.Go(context.Background(), func(context.Context) (int, error) { return 1, nil })
		bad := async.Go(context.Background(), func(context.Context) (int, error) { return 0, boom })

		got, err := async.WaitAll(context.Background(), ok, bad)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, got)
	})
}
