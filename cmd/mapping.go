package main

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/sells-group/appraisal-etl/internal/appraisal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Print the staging-to-destination column mapping as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeMapping(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(mappingCmd)
}

type mappingDoc struct {
	Columns    []appraisal.FieldMapping  `yaml:"columns"`
	Deductions []appraisal.DeductionRule `yaml:"deductions"`
	Constants  map[string]int64          `yaml:"constants"`
}

// writeMapping renders the mapping table, the deduction triples and the
// constant columns.
func writeMapping(w io.Writer) error {
	doc := mappingDoc{
		Columns:    appraisal.Mappings(),
		Deductions: appraisal.DeductionRules(),
		Constants: map[string]int64{
			"validity_days": appraisal.DefaultValidityDays,
			"validity_kms":  appraisal.DefaultValidityKms,
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "mapping: encode")
	}
	return enc.Close()
}
