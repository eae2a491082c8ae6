package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/snipflow/pkg/api"
	"github.com/dmitrymomot/snipflow/pkg/apikey"
	"github.com/dmitrymomot/snipflow/pkg/entitlement"
	"github.com/dmitrymomot/snipflow/pkg/gate"
	"github.com/dmitrymomot/snipflow/pkg/httpserver"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/metrics"
	"github.com/dmitrymomot/snipflow/pkg/pg"
	"github.com/dmitrymomot/snipflow/pkg/quota"
	"github.com/dmitrymomot/snipflow/pkg/ratelimit"
	"github.com/dmitrymomot/snipflow/pkg/redis"
	"github.com/dmitrymomot/snipflow/pkg/snippet"
	"github.com/dmitrymomot/snipflow/pkg/sweeper"
	"github.com/dmitrymomot/snipflow/pkg/team"
	"github.com/dmitrymomot/snipflow/pkg/usage"
)

const recorderDrainTimeout = 10 * time.Second

func serveCommand() *command {
	return &command{
		name:        "serve",
		description: "Run the HTTP API and the subscription sweeper",
		run: func(ctx context.Context, args []string, out io.Writer) error {
			fs := newFlagSet("serve", out)
			migrate := fs.Bool("migrate", false, "apply migrations before serving")
			if err := fs.Parse(args); err != nil {
				return err
			}

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if *migrate {
				if err := a.migrate(ctx); err != nil {
					return err
				}
			}
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := a.log

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	ledger := usage.NewPostgresStore(a.pool)
	var sink usage.Store = ledger
	var counter usage.Counter = ledger
	checks := []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(a.pool)}}

	if a.cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.WarnContext(ctx, "failed to close redis client", logger.Error(err))
			}
		}()

		window := usage.NewRedisWindow(client, ratelimit.Window)
		sink = usage.Tee(ledger, window)
		counter = window
		checks = append(checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		log.InfoContext(ctx, "rate limiting counts from redis")
	}

	recorder := usage.NewRecorder(sink, a.cfg.Usage,
		usage.WithLogger(log),
		usage.WithObserver(m),
	)

	enforcer := quota.NewEnforcer(a.registry, a.principals, a.principals, quota.WithLogger(log))
	checker := entitlement.NewChecker(a.registry, a.principals, entitlement.WithLogger(log))
	auth := apikey.NewAuthenticator(apikey.NewPostgresStore(a.pool), apikey.WithLogger(log))

	g := gate.New(a.cfg.Gate, auth, ratelimit.NewLimiter(counter), checker, recorder,
		gate.WithLogger(log),
		gate.WithObserver(m),
	)

	router := api.NewRouter(api.Deps{
		Gate:         g,
		Snippets:     snippet.NewService(snippet.NewPostgresRepository(a.pool), enforcer, recorder),
		Team:         team.NewService(team.NewPostgresRepository(a.pool), enforcer, recorder),
		Entitlements: checker,
		Usage:        enforcer,
		Analytics:    ledger,
		Metrics:      m,
		Gatherer:     promRegistry,
		HealthChecks: checks,
		Logger:       log,
	})

	sw, err := sweeper.New(a.principals, a.cfg.Sweeper,
		sweeper.WithLogger(log),
		sweeper.WithObserver(m),
	)
	if err != nil {
		return err
	}

	srv := httpserver.New(a.cfg.HTTP, router, log)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.Run(egCtx) })
	eg.Go(func() error { return sw.Run(egCtx) })
	runErr := eg.Wait()

	// The server has stopped accepting requests, so no more events arrive.
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recorderDrainTimeout)
	defer cancel()
	if err := recorder.Close(drainCtx); err != nil {
		log.ErrorContext(drainCtx, "usage recorder did not drain", logger.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
