package main

import (
	"fmt"
	"os"

	"github.com/sells-group/appraisal-etl/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "appraisal-etl",
	Short: "Legacy vehicle appraisal migration",
	Long: `Moves legacy appraisal rows from the staging table (mi_tabla) into
vehicle_appraisal and derives appraisal_deductions from the legacy
amount/description columns. Running without a subcommand is the same as "run".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	RunE: runETL,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
