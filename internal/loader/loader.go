// Package loader appends cleaned appraisal data to the destination tables.
package loader

import (
	"context"

	"github.com/sells-group/appraisal-etl/internal/appraisal"
	"github.com/sells-group/appraisal-etl/internal/db"
	"go.uber.org/zap"
)

// Destination table names.
const (
	AppraisalTable = "vehicle_appraisal"
	DeductionTable = "appraisal_deductions"
)

// Loader writes records with chunked COPY. It never updates existing rows.
type Loader struct {
	pool      db.Pool
	schema    string
	chunkSize int
}

// New returns a Loader writing into schema. chunkSize 0 means db.DefaultChunkSize.
func New(pool db.Pool, schema string, chunkSize int) *Loader {
	return &Loader{pool: pool, schema: schema, chunkSize: chunkSize}
}

// LoadAppraisals appends records to vehicle_appraisal and returns the number
// of rows written.
func (l *Loader) LoadAppraisals(ctx context.Context, records []appraisal.Record) (int64, error) {
	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = r.CopyRow()
	}
	return l.load(ctx, AppraisalTable, appraisal.AppraisalColumns, rows)
}

// LoadDeductions appends deductions to appraisal_deductions and returns the
// number of rows written.
func (l *Loader) LoadDeductions(ctx context.Context, deductions []appraisal.Deduction) (int64, error) {
	rows := make([][]any, len(deductions))
	for i, d := range deductions {
		rows[i] = d.CopyRow()
	}
	return l.load(ctx, DeductionTable, appraisal.DeductionColumns, rows)
}

func (l *Loader) load(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	log := zap.L().With(zap.String("component", "loader"), zap.String("table", table))

	if len(rows) == 0 {
		log.Info("nothing to load")
		return 0, nil
	}

	n, err := db.CopyFromChunked(ctx, l.pool, db.QualifiedTable(l.schema, table), columns, rows, l.chunkSize)
	if err != nil {
		return n, err
	}

	log.Info("rows loaded", zap.Int64("rows", n))
	return n, nil
}
