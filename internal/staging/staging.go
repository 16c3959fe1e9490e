// Package staging reads and replaces the raw legacy table (mi_tabla) that
// holds a DBF snapshot verbatim.
package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/appraisal"
	"github.com/sells-group/appraisal-etl/internal/db"
	"github.com/sells-group/appraisal-etl/internal/dbf"
	"go.uber.org/zap"
)

// ErrTableNotFound is returned when the staging table does not exist.
var ErrTableNotFound = eris.New("staging: table not found")

// Table is a staging table in a schema.
type Table struct {
	pool   db.Pool
	schema string
	name   string
}

// New returns the staging table schema.name.
func New(pool db.Pool, schema, name string) *Table {
	return &Table{pool: pool, schema: schema, name: name}
}

func (t *Table) ident() pgx.Identifier {
	return db.QualifiedTable(t.schema, t.name)
}

// Columns returns the set of column names the table currently has.
func (t *Table) Columns(ctx context.Context) (map[string]bool, error) {
	rows, err := t.pool.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2`,
		t.schema, t.name,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: list columns of %s", t.ident().Sanitize())
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "staging: scan column name")
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// EnsureIDColumn adds the id_unico SERIAL column when the table lacks it.
// Existing rows are numbered in physical order. It reports whether the
// column was added.
func (t *Table) EnsureIDColumn(ctx context.Context) (bool, error) {
	cols, err := t.Columns(ctx)
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, eris.Wrapf(ErrTableNotFound, "staging: %s", t.ident().Sanitize())
	}
	if cols[appraisal.ReferenceColumn] {
		return false, nil
	}

	sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s SERIAL",
		t.ident().Sanitize(), pgx.Identifier{appraisal.ReferenceColumn}.Sanitize())
	if _, err := t.pool.Exec(ctx, sql); err != nil {
		return false, eris.Wrapf(err, "staging: add %s to %s", appraisal.ReferenceColumn, t.ident().Sanitize())
	}

	zap.L().Info("staging id column added",
		zap.String("component", "staging"),
		zap.String("table", t.ident().Sanitize()),
	)
	return true, nil
}

// Extract reads every staging row with a non-null id_unico, ordered by it.
// Source columns the table lacks are logged and left out of the rows, which
// the transformer treats as null.
func (t *Table) Extract(ctx context.Context) ([]appraisal.SourceRow, error) {
	log := zap.L().With(zap.String("component", "staging"), zap.String("table", t.ident().Sanitize()))

	cols, err := t.Columns(ctx)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, eris.Wrapf(ErrTableNotFound, "staging: %s", t.ident().Sanitize())
	}
	if !cols[appraisal.ReferenceColumn] {
		return nil, eris.Errorf("staging: %s has no %s column", t.ident().Sanitize(), appraisal.ReferenceColumn)
	}

	selected := make([]string, 0, len(appraisal.SourceColumns))
	var missing []string
	for _, c := range appraisal.SourceColumns {
		if cols[c] {
			selected = append(selected, c)
		} else {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		log.Warn("staging table is missing source columns", zap.Strings("columns", missing))
	}

	id := pgx.Identifier{appraisal.ReferenceColumn}.Sanitize()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
		db.QuoteIdentifiers(selected), t.ident().Sanitize(), id, id)

	start := time.Now()
	rows, err := t.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrapf(err, "staging: extract from %s", t.ident().Sanitize())
	}
	defer rows.Close()

	var out []appraisal.SourceRow
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "staging: read row values")
		}
		row := make(appraisal.SourceRow, len(selected))
		for i, c := range selected {
			if i < len(vals) {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "staging: extract from %s", t.ident().Sanitize())
	}

	log.Info("rows extracted",
		zap.Int("rows", len(out)),
		zap.Int("columns", len(selected)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// LoadDBF replaces the staging table with the contents of tbl and numbers
// the rows with id_unico. It returns the number of rows written.
func (t *Table) LoadDBF(ctx context.Context, tbl *dbf.Table) (int64, error) {
	defs := ColumnDefs(tbl)

	n, err := db.ReplaceTable(ctx, t.pool, t.ident(), defs, coerceRows(defs, tbl.Records))
	if err != nil {
		return 0, eris.Wrap(err, "staging: load dbf")
	}

	if _, err := t.EnsureIDColumn(ctx); err != nil {
		return n, err
	}

	zap.L().Info("dbf staged",
		zap.String("component", "staging"),
		zap.String("table", t.ident().Sanitize()),
		zap.Int64("rows", n),
		zap.Int("deleted_skipped", tbl.Deleted),
		zap.Int("fields", len(tbl.Fields)),
	)
	return n, nil
}

// ColumnDefs derives PostgreSQL column types from DBF field descriptors.
// An N field without decimals becomes bigint only when every value decoded
// as an integer.
func ColumnDefs(tbl *dbf.Table) []db.ColumnDef {
	defs := make([]db.ColumnDef, len(tbl.Fields))
	for i, f := range tbl.Fields {
		defs[i] = db.ColumnDef{Name: f.Name, Type: columnType(f, tbl.Records, i)}
	}
	return defs
}

func columnType(f dbf.Field, records [][]any, idx int) string {
	switch f.Type {
	case 'N':
		if f.Decimals == 0 && allIntegers(records, idx) {
			return "bigint"
		}
		return "double precision"
	case 'F', 'O':
		return "double precision"
	case 'I':
		return "bigint"
	case 'D':
		return "date"
	case 'L':
		return "boolean"
	default:
		return "text"
	}
}

func allIntegers(records [][]any, idx int) bool {
	for _, r := range records {
		switch r[idx].(type) {
		case nil, int64:
		default:
			return false
		}
	}
	return true
}

// coerceRows widens integer values in double precision columns to float64.
func coerceRows(defs []db.ColumnDef, records [][]any) [][]any {
	out := make([][]any, len(records))
	for i, r := range records {
		row := make([]any, len(r))
		copy(row, r)
		for j, d := range defs {
			if n, ok := row[j].(int64); ok && d.Type == "double precision" {
				row[j] = float64(n)
			}
		}
		out[i] = row
	}
	return out
}
