package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sells-group/appraisal-etl/internal/config"
	"github.com/sells-group/appraisal-etl/internal/db"
	"github.com/sells-group/appraisal-etl/internal/etl"
	"github.com/sells-group/appraisal-etl/internal/runlog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Migrate staging rows into vehicle_appraisal and appraisal_deductions",
	Long: `Extracts every staging row, cleans it, bulk loads vehicle_appraisal,
resolves the new parent ids by legacy reference and loads appraisal_deductions.
A failed deduction load or final count is reported as a warning; the run still succeeds.`,
	RunE: runETL,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runETL(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()

	pool, err := openPool(ctx, "run")
	if err != nil {
		zap.L().Error("etl failed", zap.Error(err))
		fmt.Fprintln(out, "ETL failed")
		return err
	}
	defer pool.Close()

	res, err := executeRun(ctx, pool, cfg.ETL)
	if err != nil {
		fmt.Fprintln(out, "ETL failed")
		return err
	}

	fmt.Fprintf(out, "Appraisals loaded: %d (rejected %d)\n", res.AppraisalsLoaded, res.Transform.Rejected)
	fmt.Fprintf(out, "Deductions loaded: %d\n", res.DeductionsLoaded)
	fmt.Fprintln(out, "ETL completed successfully")
	return nil
}

// executeRun runs the pipeline and records it in the run log. Run-log writes
// only warn.
func executeRun(ctx context.Context, pool db.Pool, c config.ETLConfig) (*etl.Result, error) {
	log := zap.L().With(zap.String("command", "run"))
	runs := runlog.New(pool)

	runID, err := runs.Start(ctx, c.SourceTable)
	if err != nil {
		log.Warn("run log unavailable", zap.Error(err))
	}

	res, err := etl.New(pool, etl.Options{
		Schema:          c.Schema,
		SourceTable:     c.SourceTable,
		ChunkSize:       c.ChunkSize,
		LookupBatchSize: c.LookupBatchSize,
		FallbackLimit:   c.FallbackLimit,
		RunID:           runID,
	}).Run(ctx)
	if err != nil {
		log.Error("etl failed", zap.String("run_id", runID), zap.Error(err))
		if runID != "" {
			if ferr := runs.Fail(ctx, runID, err.Error()); ferr != nil {
				log.Warn("failed to record run failure", zap.Error(ferr))
			}
		}
		return nil, err
	}

	if runID != "" {
		summary := &runlog.Summary{
			RowsLoaded: res.AppraisalsLoaded,
			Metadata:   res.Metadata(),
		}
		if cerr := runs.Complete(ctx, runID, summary); cerr != nil {
			log.Warn("failed to record run completion", zap.Error(cerr))
		}
	}
	return res, nil
}
