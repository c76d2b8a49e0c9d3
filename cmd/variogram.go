package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/parking-stats/internal/analysis"
	"github.com/sells-group/parking-stats/internal/variogram"
)

var (
	variogramInput  string
	variogramOutput string
	variogramFormat string
	variogramFamily string
)

var variogramCmd = &cobra.Command{
	Use:   "variogram",
	Short: "Compute and fit the empirical semivariogram only",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var family variogram.Family
		if variogramFamily != "" {
			f, err := variogram.ParseFamily(variogramFamily)
			if err != nil {
				return err
			}
			family = f
		}

		r, err := runStages(cmd.Context(), variogramInput, analysis.StageVariogram, func(o *analysis.Options) {
			if variogramFamily != "" {
				o.Family = family
			}
		})
		if err != nil {
			return err
		}
		return writeReport(r, variogramOutput, variogramFormat)
	},
}

func init() {
	variogramCmd.Flags().StringVar(&variogramInput, "input", "", "path to CSV or XLSX observations (required)")
	variogramCmd.Flags().StringVar(&variogramOutput, "output", "", "report path (default stdout)")
	variogramCmd.Flags().StringVar(&variogramFormat, "format", "", "report format: json or yaml (default from config)")
	variogramCmd.Flags().StringVar(&variogramFamily, "family", "", "model family override: exponential, spherical or gaussian")
	_ = variogramCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(variogramCmd)
}
