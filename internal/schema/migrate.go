// Package schema owns the destination DDL and applies it as ordered migrations.
package schema

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/db"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrationLockID keys the advisory lock held while migrating.
const migrationLockID = 4207331

// Migrate applies every embedded migration not yet recorded in
// public.etl_schema_migrations, in lexicographic order. It returns the names
// of the files it applied. All migrations run in one transaction holding a
// transaction-scoped advisory lock, so a failure applies none of them.
func Migrate(ctx context.Context, pool db.Pool) ([]string, error) {
	log := zap.L().With(zap.String("component", "schema.migrate"))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "schema: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(migrationLockID)); err != nil {
		return nil, eris.Wrap(err, "schema: acquire migration advisory lock")
	}

	if err := ensureMigrationTable(ctx, tx); err != nil {
		return nil, err
	}

	names, err := migrationNames()
	if err != nil {
		return nil, err
	}

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, name := range names {
		if applied[name] {
			continue
		}

		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, eris.Wrapf(err, "schema: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))

		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return nil, eris.Wrapf(err, "schema: apply migration %s", name)
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO public.etl_schema_migrations (filename, applied_at) VALUES ($1, now())",
			name,
		); err != nil {
			return nil, eris.Wrapf(err, "schema: record migration %s", name)
		}
		ran = append(ran, name)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "schema: commit migrations")
	}

	log.Info("migrations complete", zap.Int("applied", len(ran)), zap.Int("total", len(names)))
	return ran, nil
}

// migrationNames lists the embedded migration files in apply order.
func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, eris.Wrap(err, "schema: read migration dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func ensureMigrationTable(ctx context.Context, pool db.Pool) error {
	sql := `
		CREATE TABLE IF NOT EXISTS public.etl_schema_migrations (
			id         SERIAL PRIMARY KEY,
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := pool.Exec(ctx, sql); err != nil {
		return eris.Wrap(err, "schema: ensure migration table")
	}
	return nil
}

func appliedMigrations(ctx context.Context, pool db.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT filename FROM public.etl_schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "schema: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "schema: scan migration row")
		}
		applied[name] = true
	}
	return applied, rows.Err()
}
