package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ColumnDef is one column of a table created by ReplaceTable.
type ColumnDef struct {
	Name string
	Type string
}

// ReplaceTable drops table, recreates it with defs and COPYs rows into it,
// all inside one transaction. A failure leaves the previous table in place.
func ReplaceTable(ctx context.Context, pool Pool, table pgx.Identifier, defs []ColumnDef, rows [][]any) (int64, error) {
	if len(defs) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	name := table.Sanitize()
	columns := make([]string, len(defs))
	colSQL := make([]string, len(defs))
	for i, d := range defs {
		columns[i] = d.Name
		colSQL[i] = fmt.Sprintf("%s %s", pgx.Identifier{d.Name}.Sanitize(), d.Type)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return 0, eris.Wrapf(err, "db: replace: drop %s", name)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(colSQL, ", "))
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: replace: create %s", name)
	}

	n, err := CopyFrom(ctx, tx, table, columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: copy rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

// QuoteIdentifiers quotes each name and joins them with commas.
func QuoteIdentifiers(names []string) string {
	quoted := make([]string, len(names))
	for i, c := range names {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
