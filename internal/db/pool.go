package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool used by the ETL. pgx.Tx and
// pgxmock.PgxPoolIface satisfy it as well.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PoolOptions holds connection pool sizing.
type PoolOptions struct {
	// PoolSize is the steady number of connections the run expects to use.
	PoolSize int32
	// MaxOverflow is how many connections may be opened beyond PoolSize.
	MaxOverflow int32
	// Recycle is the maximum lifetime of a pooled connection.
	Recycle time.Duration
}

// Connect opens a pgx pool for connString and verifies it with a ping.
// Connections are opened lazily; MaxConns is PoolSize + MaxOverflow.
func Connect(ctx context.Context, connString string, opts PoolOptions) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse config")
	}

	maxConns := opts.PoolSize + opts.MaxOverflow
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	if opts.Recycle > 0 {
		pgxCfg.MaxConnLifetime = opts.Recycle
	}
	pgxCfg.MinConns = 0
	pgxCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "db: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "db: ping")
	}
	return pool, nil
}

// QualifiedTable joins an optional schema and a table into a pgx identifier.
func QualifiedTable(schema, table string) pgx.Identifier {
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}
