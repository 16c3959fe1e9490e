// Package db provides shared database helpers for pooling and bulk copy operations.
package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultChunkSize is the number of rows sent per COPY when the caller passes 0.
const DefaultChunkSize = 2000

// CopyFrom bulk-inserts rows into a table using PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table pgx.Identifier, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", strings.Join(table, "."))
	}

	return n, nil
}

// CopyFromChunked appends rows in chunks of chunkSize (0 = DefaultChunkSize),
// one COPY per chunk. Rows written by earlier chunks stay written when a later
// chunk fails; the returned count reflects them.
func CopyFromChunked(ctx context.Context, pool Pool, table pgx.Identifier, columns []string, rows [][]any, chunkSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	name := strings.Join(table, ".")
	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", name),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += chunkSize {
		end := i + chunkSize
		if end > len(rows) {
			end = len(rows)
		}

		n, err := pool.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s (rows %d-%d)", name, i, end)
		}
		total += n

		log.Debug("chunk loaded",
			zap.Int("chunk_start", i),
			zap.Int("chunk_end", end),
			zap.Int64("chunk_rows", n),
		)
	}

	return total, nil
}
