package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/snipflow/migrations"
	"github.com/dmitrymomot/snipflow/pkg/config"
	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/httpserver"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/pg"
	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
	"github.com/dmitrymomot/snipflow/pkg/redis"
	"github.com/dmitrymomot/snipflow/pkg/requestid"
	"github.com/dmitrymomot/snipflow/pkg/sweeper"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

// Config is the whole process configuration, read from the environment.
type Config struct {
	Logger   logger.Config
	Postgres pg.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	Usage    usage.Config
	Sweeper  sweeper.Config
	Gate     gate.Config

	// PlansFile overrides the built-in plan table with a YAML document.
	PlansFile string `env:"PLANS_FILE"`
}

// app holds the dependencies every command needs.
type app struct {
	cfg        Config
	log        *slog.Logger
	pool       *pgxpool.Pool
	registry   *plan.Registry
	principals *principal.PostgresStore
}

func loadConfig() (Config, error) {
	if err := config.LoadEnv(); err != nil {
		return Config{}, err
	}
	return config.Load[Config]()
}

func newLogger(cfg logger.Config) *slog.Logger {
	opts := append(logger.FromConfig(cfg), logger.WithContextExtractors(requestid.LoggerExtractor()))
	return logger.New(opts...)
}

func planSource(cfg Config) plan.Source {
	if cfg.PlansFile != "" {
		return plan.NewFileSource(cfg.PlansFile)
	}
	return plan.Defaults()
}

// bootstrap loads configuration, connects to PostgreSQL and loads the plan
// table. The caller must call close.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg.Logger)

	registry, err := plan.NewRegistry(ctx, planSource(cfg))
	if err != nil {
		return nil, err
	}

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:        cfg,
		log:        log,
		pool:       pool,
		registry:   registry,
		principals: principal.NewPostgresStore(pool),
	}, nil
}

func (a *app) migrate(ctx context.Context) error {
	if err := pg.Migrate(ctx, a.pool, migrations.FS, a.cfg.Postgres, a.log); err != nil {
		return err
	}
	a.log.InfoContext(ctx, "migrations applied")
	return nil
}

func (a *app) close() {
	a.pool.Close()
}
