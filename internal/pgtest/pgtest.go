//go:build integration

// Package pgtest starts a disposable PostgreSQL container with the schema
// migrated, for integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/snipflow/migrations"
	"github.com/dmitrymomot/snipflow/pkg/logger"
	"github.com/dmitrymomot/snipflow/pkg/pg"
)

// Start runs a postgres:16-alpine container, applies migrations and returns a
// pool. The container is terminated when the test finishes.
func Start(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("snipflow_test"),
		postgres.WithUsername("snipflow"),
		postgres.WithPassword("snipflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := pg.Config{
		ConnectionString:  connStr,
		MaxOpenConns:      20,
		MaxIdleConns:      2,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   10 * time.Minute,
		RetryAttempts:     3,
		RetryInterval:     time.Second,
		MigrationsTable:   "schema_migrations",
	}

	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, logger.Nop()))
	return pool
}
