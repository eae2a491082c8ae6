package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisWindow mirrors recent events into one sorted set per principal and
// feature, scored by creation time in milliseconds. It answers window counts
// without scanning the ledger and forgets events older than the window.
type RedisWindow struct {
	client redis.Cmdable
	prefix string
	window time.Duration
}

type RedisWindowOption func(*RedisWindow)

// WithKeyPrefix sets the namespace of the sorted set keys. Default "usage".
func WithKeyPrefix(prefix string) RedisWindowOption {
	return func(w *RedisWindow) {
		if prefix != "" {
			w.prefix = prefix
		}
	}
}

// NewRedisWindow retains events for window. It panics if client is nil.
func NewRedisWindow(client redis.Cmdable, window time.Duration, opts ...RedisWindowOption) *RedisWindow {
	if client == nil {
		panic("usage: redis client cannot be nil")
	}
	if window <= 0 {
		window = time.Hour
	}

	w := &RedisWindow{client: client, prefix: "usage", window: window}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *RedisWindow) key(principalID uuid.UUID, f Feature) string {
	return fmt.Sprintf("%s:%s:%s", w.prefix, principalID, f)
}

// AppendBatch adds the events and trims expired members in one pipeline.
func (w *RedisWindow) AppendBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	latest := make(map[string]time.Time)
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range events {
			k := w.key(e.PrincipalID, e.Feature)
			pipe.ZAdd(ctx, k, redis.Z{Score: float64(e.CreatedAt.UnixMilli()), Member: e.ID.String()})
			if e.CreatedAt.After(latest[k]) {
				latest[k] = e.CreatedAt
			}
		}
		for k, at := range latest {
			cutoff := at.Add(-w.window).UnixMilli()
			pipe.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10))
			pipe.Expire(ctx, k, w.window+time.Minute)
		}
		return nil
	})
	return err
}

// CountSince counts members scored strictly after since.
func (w *RedisWindow) CountSince(ctx context.Context, principalID uuid.UUID, f Feature, since time.Time) (int64, error) {
	minScore := "(" + strconv.FormatInt(since.UnixMilli(), 10)
	return w.client.ZCount(ctx, w.key(principalID, f), minScore, "+inf").Result()
}
