// Package etl runs the staging → vehicle_appraisal → appraisal_deductions
// migration.
//
// Parents are written first with COPY, which returns no identifiers. The
// generated ids are then read back by referencia_original and used to link
// the deduction rows.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/appraisal"
	"github.com/sells-group/appraisal-etl/internal/db"
	"github.com/sells-group/appraisal-etl/internal/loader"
	"github.com/sells-group/appraisal-etl/internal/reconcile"
	"github.com/sells-group/appraisal-etl/internal/staging"
	"go.uber.org/zap"
)

// Sentinel errors for runs that have nothing to load.
var (
	ErrNoSourceRows   = eris.New("etl: no source rows")
	ErrNoValidRecords = eris.New("etl: no valid records after transform")
)

// Options configures a Pipeline.
type Options struct {
	Schema          string
	SourceTable     string
	ChunkSize       int
	LookupBatchSize int
	FallbackLimit   int
	// RunID tags every log line; a new UUID is generated when empty.
	RunID string
}

// Result summarizes a run. DeductionError and VerifyError carry non-fatal
// failures; the run still succeeded when they are set.
type Result struct {
	RunID              string                   `json:"run_id"`
	SourceRows         int                      `json:"source_rows"`
	Transform          appraisal.TransformStats `json:"transform"`
	AppraisalsLoaded   int64                    `json:"appraisals_loaded"`
	ReferencesResolved int                      `json:"references_resolved"`
	Deductions         int                      `json:"deductions"`
	DeductionsLoaded   int64                    `json:"deductions_loaded"`
	DeductionError     string                   `json:"deduction_error,omitempty"`
	TotalAppraisals    int64                    `json:"total_appraisals"`
	VerifyError        string                   `json:"verify_error,omitempty"`
	Duration           time.Duration            `json:"duration"`
}

// Metadata flattens the result for the run log.
func (r *Result) Metadata() map[string]any {
	m := map[string]any{
		"source_rows":         r.SourceRows,
		"valid":               r.Transform.Valid,
		"rejected":            r.Transform.Rejected,
		"references_resolved": r.ReferencesResolved,
		"deductions":          r.Deductions,
		"deductions_loaded":   r.DeductionsLoaded,
		"total_appraisals":    r.TotalAppraisals,
		"duration_ms":         r.Duration.Milliseconds(),
	}
	if r.DeductionError != "" {
		m["deduction_error"] = r.DeductionError
	}
	if r.VerifyError != "" {
		m["verify_error"] = r.VerifyError
	}
	return m
}

// Pipeline wires the staging reader, transformer, loader and reconciler.
type Pipeline struct {
	pool        db.Pool
	opts        Options
	stage       *staging.Table
	transformer *appraisal.Transformer
	loader      *loader.Loader
	reconciler  *reconcile.Reconciler
}

// New returns a Pipeline over pool.
func New(pool db.Pool, opts Options) *Pipeline {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.SourceTable == "" {
		opts.SourceTable = "mi_tabla"
	}

	rec := reconcile.New(pool, opts.Schema)
	if opts.LookupBatchSize > 0 {
		rec.BatchSize = opts.LookupBatchSize
	}
	rec.FallbackLimit = opts.FallbackLimit

	return &Pipeline{
		pool:        pool,
		opts:        opts,
		stage:       staging.New(pool, opts.Schema, opts.SourceTable),
		transformer: appraisal.NewTransformer(),
		loader:      loader.New(pool, opts.Schema, opts.ChunkSize),
		reconciler:  rec,
	}
}

// Run executes one migration. Extraction, an empty source, an empty
// transform and the parent load are fatal. Reconciliation, the deduction
// load and the final count only produce warnings.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: p.opts.RunID}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	log := zap.L().With(zap.String("component", "etl"), zap.String("run_id", res.RunID))
	defer func() { res.Duration = time.Since(start) }()

	log.Info("etl run starting",
		zap.String("source", p.opts.Schema+"."+p.opts.SourceTable),
		zap.Int("chunk_size", p.opts.ChunkSize),
	)

	// Extract
	if _, err := p.stage.EnsureIDColumn(ctx); err != nil {
		return res, eris.Wrap(err, "etl: prepare staging table")
	}
	rows, err := p.stage.Extract(ctx)
	if err != nil {
		return res, eris.Wrap(err, "etl: extract")
	}
	res.SourceRows = len(rows)
	if len(rows) == 0 {
		return res, ErrNoSourceRows
	}

	// Transform
	records, stats := p.transformer.Transform(rows)
	res.Transform = stats
	if len(records) == 0 {
		return res, ErrNoValidRecords
	}

	// Phase 1: parents
	n, err := p.loader.LoadAppraisals(ctx, records)
	res.AppraisalsLoaded = n
	if err != nil {
		return res, eris.Wrap(err, "etl: load appraisals")
	}

	// Phase 2: relink and children
	refs := make([]int64, len(records))
	for i, r := range records {
		refs[i] = r.Reference
	}
	ids := p.reconciler.Resolve(ctx, refs)
	res.ReferencesResolved = len(ids)

	deductions := appraisal.ExtractDeductions(rows, ids)
	res.Deductions = len(deductions)
	if len(deductions) > 0 {
		loaded, err := p.loader.LoadDeductions(ctx, deductions)
		res.DeductionsLoaded = loaded
		if err != nil {
			res.DeductionError = err.Error()
			log.Warn("deduction load failed, appraisals were kept", zap.Error(err))
		}
	} else {
		log.Warn("no deductions to load", zap.Int("references_resolved", len(ids)))
	}

	// Verify
	total, err := p.count(ctx)
	if err != nil {
		res.VerifyError = err.Error()
		log.Warn("row count verification failed", zap.Error(err))
	} else {
		res.TotalAppraisals = total
	}

	log.Info("etl run complete",
		zap.Int("source_rows", res.SourceRows),
		zap.Int("valid", stats.Valid),
		zap.Int("rejected", stats.Rejected),
		zap.Int64("appraisals_loaded", res.AppraisalsLoaded),
		zap.Int("references_resolved", res.ReferencesResolved),
		zap.Int64("deductions_loaded", res.DeductionsLoaded),
		zap.Int64("total_appraisals", res.TotalAppraisals),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (p *Pipeline) count(ctx context.Context) (int64, error) {
	table := db.QualifiedTable(p.opts.Schema, loader.AppraisalTable).Sanitize()
	var n int64
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, eris.Wrapf(err, "etl: count %s", table)
	}
	return n, nil
}
