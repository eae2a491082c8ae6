package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/snipflow/pkg/logger"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Expirer marks lapsed subscriptions as expired. Implemented by the
// principal stores.
type Expirer interface {
	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
}

// Observer receives the number of subscriptions expired by each sweep.
type Observer interface {
	ObserveSwept(n int64)
}

// Config controls the sweep schedule.
type Config struct {
	Schedule string        `env:"SWEEPER_SCHEDULE" envDefault:"0 * * * *"`
	Timeout  time.Duration `env:"SWEEPER_TIMEOUT" envDefault:"1m"`
}

// Sweeper periodically normalizes stored subscription status. Access checks
// already treat an expired timestamp as lapsed, so a missed sweep only
// delays the stored status change.
type Sweeper struct {
	expirer  Expirer
	cfg      Config
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
	cron     *cron.Cron
}

type Option func(*Sweeper)

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Sweeper) { s.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// New validates the schedule. It panics if expirer is nil.
func New(expirer Expirer, cfg Config, opts ...Option) (*Sweeper, error) {
	if expirer == nil {
		panic("sweeper: expirer cannot be nil")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	s := &Sweeper{
		expirer: expirer,
		cfg:     cfg,
		logger:  logger.Nop(),
		now:     time.Now,
		cron:    cron.New(cron.WithLocation(time.UTC)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() { _, _ = s.Sweep(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Sweep runs one pass and returns how many subscriptions were expired.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	n, err := s.expirer.ExpireLapsed(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "subscription sweep failed", logger.Error(err))
		return 0, err
	}

	if s.observer != nil {
		s.observer.ObserveSwept(n)
	}
	s.logger.InfoContext(ctx, "subscription sweep finished",
		slog.Int64("expired", n),
		logger.Duration(time.Since(start)),
	)
	return n, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.InfoContext(ctx, "subscription sweeper started", slog.String("schedule", s.cfg.Schedule))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
