package usage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/snipflow/pkg/logger"
)

// Config tunes the recorder's buffering.
type Config struct {
	BufferSize     int           `env:"USAGE_BUFFER_SIZE" envDefault:"1024"`    // Events queued before new ones are dropped.
	BatchSize      int           `env:"USAGE_BATCH_SIZE" envDefault:"100"`      // Events per AppendBatch call.
	BatchTimeout   time.Duration `env:"USAGE_BATCH_TIMEOUT" envDefault:"200ms"` // Max time a partial batch waits.
	StorageTimeout time.Duration `env:"USAGE_STORAGE_TIMEOUT" envDefault:"5s"`  // Deadline for one AppendBatch call.
}

// Observer is notified of recorder outcomes, typically to export metrics.
type Observer interface {
	UsageRecorded(n int)
	UsageDropped(n int)
	UsageFailed(n int)
	// UsageMirrorFailed reports events persisted by the primary store that
	// did not reach a mirror. They are also reported as recorded.
	UsageMirrorFailed(n int)
}

type nopObserver struct{}

func (nopObserver) UsageRecorded(int)     {}
func (nopObserver) UsageDropped(int)      {}
func (nopObserver) UsageFailed(int)       {}
func (nopObserver) UsageMirrorFailed(int) {}

// Recorder writes events to a Store in the background. Record never blocks
// and never reports failure to the caller: when the buffer is full the event
// is dropped and logged, and failed batches are logged.
type Recorder struct {
	store    Store
	cfg      Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	events chan Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type RecorderOption func(*Recorder)

func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o Observer) RecorderOption {
	return func(r *Recorder) {
		if o != nil {
			r.observer = o
		}
	}
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder starts the background writer. Zero config values get defaults.
// It panics if store is nil.
func NewRecorder(store Store, cfg Config, opts ...RecorderOption) *Recorder {
	if store == nil {
		panic("usage: store cannot be nil")
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 200 * time.Millisecond
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:    store,
		cfg:      cfg,
		logger:   logger.Nop(),
		observer: nopObserver{},
		now:      time.Now,
		events:   make(chan Event, cfg.BufferSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()
	return r
}

// Record enqueues e. Missing ID, quantity and timestamp are filled in.
func (r *Recorder) Record(ctx context.Context, e Event) {
	e.normalize(r.now())

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(ctx, e, "recorder closed")
		return
	}

	select {
	case r.events <- e:
	default:
		r.drop(ctx, e, "buffer full")
	}
}

func (r *Recorder) drop(ctx context.Context, e Event, reason string) {
	r.observer.UsageDropped(1)
	r.logger.WarnContext(ctx, "usage event dropped",
		logger.Reason(reason),
		logger.PrincipalID(e.PrincipalID),
		logger.Feature(string(e.Feature)),
	)
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Event, 0, r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.StorageTimeout)
		defer cancel()

		err := r.store.AppendBatch(ctx, batch)
		switch {
		case err == nil:
			r.observer.UsageRecorded(len(batch))
		case errors.Is(err, ErrMirrorFailed):
			r.observer.UsageRecorded(len(batch))
			r.observer.UsageMirrorFailed(len(batch))
			r.logger.WarnContext(ctx, "usage batch persisted but not mirrored",
				logger.Count("events", len(batch)),
				logger.Error(err),
			)
		default:
			r.observer.UsageFailed(len(batch))
			r.logger.ErrorContext(ctx, "failed to write usage batch",
				logger.Count("events", len(batch)),
				logger.Error(err),
			)
		}

		clear(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e := <-r.events:
			batch = append(batch, e)
			if len(batch) >= r.cfg.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-r.done:
			for {
				select {
				case e := <-r.events:
					batch = append(batch, e)
					if len(batch) >= r.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and waits for queued ones to be written or for
// ctx to end. It is safe to call more than once.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	r.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
