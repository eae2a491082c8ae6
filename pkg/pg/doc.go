// Package pg wires PostgreSQL through pgx/v5: pool construction with retry,
// goose migrations from an embedded filesystem, a health probe, and helpers to
// classify driver errors.
//
// Stores take a Querier so that a statement can run against the pool or join a
// caller's transaction:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, log); err != nil {
//	    return err
//	}
//
//	err = pg.InTx(ctx, pool, func(tx pgx.Tx) error {
//	    // both statements commit or neither does
//	    return nil
//	})
package pg
