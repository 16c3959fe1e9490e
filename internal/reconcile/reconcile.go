// Package reconcile recovers the vehicle_appraisal_id generated for each
// loaded record by looking it up through its legacy reference.
//
// Parents are written with COPY, which returns no identifiers, so the run
// re-reads them by referencia_original before writing deductions.
package reconcile

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/db"
	"go.uber.org/zap"
)

// Defaults for Reconciler.
const (
	DefaultBatchSize     = 100
	DefaultFallbackLimit = 1000
)

// Reconciler maps legacy references to vehicle_appraisal_id.
type Reconciler struct {
	pool db.Pool
	// BatchSize is the number of references per lookup query.
	BatchSize int
	// FallbackLimit caps the recent-rows scan used when no reference matched.
	// Zero disables the fallback.
	FallbackLimit int
	table         string
}

// New returns a Reconciler over schema.vehicle_appraisal with default sizes.
func New(pool db.Pool, schema string) *Reconciler {
	return &Reconciler{
		pool:          pool,
		BatchSize:     DefaultBatchSize,
		FallbackLimit: DefaultFallbackLimit,
		table:         db.QualifiedTable(schema, "vehicle_appraisal").Sanitize(),
	}
}

// Resolve returns reference → vehicle_appraisal_id for the given references.
// When a reference was loaded more than once the highest id wins. Lookup
// errors are logged and produce an empty map; they never fail the run.
func (r *Reconciler) Resolve(ctx context.Context, refs []int64) map[int64]int64 {
	log := zap.L().With(zap.String("component", "reconcile"))

	wanted := unique(refs)
	if len(wanted) == 0 {
		return map[int64]int64{}
	}

	ids, err := r.lookup(ctx, wanted)
	if err != nil {
		log.Warn("reference lookup failed, deductions will be skipped", zap.Error(err))
		return map[int64]int64{}
	}

	if len(ids) == 0 && r.FallbackLimit > 0 {
		log.Warn("no references matched, scanning recent rows",
			zap.Int("references", len(wanted)),
			zap.Int("limit", r.FallbackLimit),
		)
		ids, err = r.fallback(ctx, wanted)
		if err != nil {
			log.Warn("fallback lookup failed, deductions will be skipped", zap.Error(err))
			return map[int64]int64{}
		}
	}

	log.Info("references resolved",
		zap.Int("references", len(wanted)),
		zap.Int("resolved", len(ids)),
	)
	return ids
}

func (r *Reconciler) lookup(ctx context.Context, refs []int64) (map[int64]int64, error) {
	size := r.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	sql := fmt.Sprintf(
		`SELECT vehicle_appraisal_id, referencia_original FROM %s
		 WHERE referencia_original = ANY($1) ORDER BY vehicle_appraisal_id`, r.table)

	ids := make(map[int64]int64, len(refs))
	for i := 0; i < len(refs); i += size {
		end := i + size
		if end > len(refs) {
			end = len(refs)
		}

		batch := make([]float64, 0, end-i)
		for _, ref := range refs[i:end] {
			batch = append(batch, float64(ref))
		}

		if err := r.scan(ctx, ids, nil, true, sql, batch); err != nil {
			return nil, eris.Wrapf(err, "reconcile: lookup batch %d-%d", i, end)
		}
	}
	return ids, nil
}

// fallback reads the most recent rows carrying a reference. Rows come newest
// first, so the first id seen for a reference is kept.
func (r *Reconciler) fallback(ctx context.Context, refs []int64) (map[int64]int64, error) {
	sql := fmt.Sprintf(
		`SELECT vehicle_appraisal_id, referencia_original FROM %s
		 WHERE referencia_original IS NOT NULL ORDER BY vehicle_appraisal_id DESC LIMIT $1`, r.table)

	wanted := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		wanted[ref] = true
	}

	ids := make(map[int64]int64)
	if err := r.scan(ctx, ids, wanted, false, sql, r.FallbackLimit); err != nil {
		return nil, eris.Wrap(err, "reconcile: fallback scan")
	}
	return ids, nil
}

// scan runs sql and records each (id, reference) pair in ids. overwrite
// selects whether a later row replaces an earlier one for the same reference.
// A nil wanted accepts every reference.
func (r *Reconciler) scan(ctx context.Context, ids map[int64]int64, wanted map[int64]bool, overwrite bool, sql string, args ...any) error {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int64
			ref float64
		)
		if err := rows.Scan(&id, &ref); err != nil {
			return err
		}
		key := int64(ref)
		if wanted != nil && !wanted[key] {
			continue
		}
		if _, seen := ids[key]; seen && !overwrite {
			continue
		}
		ids[key] = id
	}
	return rows.Err()
}

func unique(refs []int64) []int64 {
	seen := make(map[int64]bool, len(refs))
	out := make([]int64, 0, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}
