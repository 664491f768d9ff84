// Package pg bootstraps a PostgreSQL connection pool (pgx/v5), applies goose
// migrations from an embedded filesystem, and provides a context-scoped
// transaction helper so repositories can join a caller's transaction without
// threading a pgx.Tx through every signature.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil { ... }
//
//	tx := pg.NewTransactor(pool)
//	err = tx.WithinTx(ctx, func(ctx context.Context) error {
//		q := tx.Querier(ctx) // the open pgx.Tx
//		...
//	})
package pg
