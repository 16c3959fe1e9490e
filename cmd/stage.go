package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/dbf"
	"github.com/sells-group/appraisal-etl/internal/staging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Load a legacy DBF file into the staging table",
	Long: `Reads a dBASE file and replaces the staging table (mi_tabla by default)
with its contents, then numbers the rows with id_unico. Deleted records are skipped.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		path, _ := cmd.Flags().GetString("file")
		encName, _ := cmd.Flags().GetString("encoding")
		if encName == "" {
			encName = cfg.Stage.Encoding
		}

		enc, err := dbf.LookupEncoding(encName)
		if err != nil {
			return err
		}

		tbl, err := dbf.Open(path, enc)
		if err != nil {
			return eris.Wrap(err, "stage")
		}
		zap.L().Info("dbf read",
			zap.String("file", path),
			zap.String("encoding", encName),
			zap.Int("records", len(tbl.Records)),
			zap.Int("fields", len(tbl.Fields)),
		)

		pool, err := openPool(ctx, "stage")
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := staging.New(pool, cfg.ETL.Schema, cfg.ETL.SourceTable).LoadDBF(ctx, tbl)
		if err != nil {
			return eris.Wrap(err, "stage")
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Staged %d rows into %s.%s\n", n, cfg.ETL.Schema, cfg.ETL.SourceTable)
		return nil
	},
}

func init() {
	stageCmd.Flags().String("file", "", "path to the legacy .dbf file")
	stageCmd.Flags().String("encoding", "", "character encoding of the DBF text fields (default stage.encoding)")
	_ = stageCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(stageCmd)
}
