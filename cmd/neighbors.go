package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/parking-stats/internal/analysis"
	"github.com/sells-group/parking-stats/internal/weights"
)

var (
	neighborsInput      string
	neighborsOutput     string
	neighborsFormat     string
	neighborsStyle      string
	neighborsZeroPolicy bool
)

var neighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Build the neighbour graph and weights only",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var style weights.Style
		if neighborsStyle != "" {
			s, err := weights.ParseStyle(neighborsStyle)
			if err != nil {
				return err
			}
			style = s
		}
		zeroPolicySet := cmd.Flags().Changed("zero-policy")

		r, err := runStages(cmd.Context(), neighborsInput, analysis.StageGraph, func(o *analysis.Options) {
			if neighborsStyle != "" {
				o.Weights.Style = style
			}
			if zeroPolicySet {
				o.Weights.ZeroPolicy = neighborsZeroPolicy
			}
		})
		if err != nil {
			return err
		}
		return writeReport(r, neighborsOutput, neighborsFormat)
	},
}

func init() {
	neighborsCmd.Flags().StringVar(&neighborsInput, "input", "", "path to CSV or XLSX observations (required)")
	neighborsCmd.Flags().StringVar(&neighborsOutput, "output", "", "report path (default stdout)")
	neighborsCmd.Flags().StringVar(&neighborsFormat, "format", "", "report format: json or yaml (default from config)")
	neighborsCmd.Flags().StringVar(&neighborsStyle, "style", "", "weights style override: W, B or C")
	neighborsCmd.Flags().BoolVar(&neighborsZeroPolicy, "zero-policy", false, "allow isolated points")
	_ = neighborsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(neighborsCmd)
}
