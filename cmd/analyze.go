package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parking-stats/internal/analysis"
	"github.com/sells-group/parking-stats/internal/export"
	"github.com/sells-group/parking-stats/internal/ingest"
)

var (
	analyzeInput     string
	analyzeOutput    string
	analyzeFormat    string
	analyzeGeoJSON   string
	analyzeShapefile string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full analysis and write the report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := runStages(cmd.Context(), analyzeInput, analysis.AllStages, nil)
		if err != nil {
			return err
		}
		if err := writeReport(r, analyzeOutput, analyzeFormat); err != nil {
			return err
		}

		if analyzeGeoJSON != "" {
			if err := export.WriteGeoJSONFile(analyzeGeoJSON, r); err != nil {
				return eris.Wrap(err, "write geojson")
			}
			zap.L().Info("wrote geojson", zap.String("path", analyzeGeoJSON), zap.Int("features", len(r.Features)))
		}

		if analyzeShapefile != "" {
			if !r.Kriging.Available() {
				zap.L().Warn("kriging surface unavailable, shapefile not written",
					zap.String("path", analyzeShapefile),
					zap.String("reason", r.Kriging.Error),
				)
				return nil
			}
			if err := export.WriteSurfaceShapefile(analyzeShapefile, r.Kriging.Surface); err != nil {
				return eris.Wrap(err, "write shapefile")
			}
			zap.L().Info("wrote shapefile",
				zap.String("path", analyzeShapefile),
				zap.Int("predictions", len(r.Kriging.Surface.Predictions)),
			)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "path to CSV or XLSX observations (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "report path (default stdout)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "", "report format: json or yaml (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeGeoJSON, "geojson", "", "write analysed points with local |Z| as GeoJSON")
	analyzeCmd.Flags().StringVar(&analyzeShapefile, "shapefile", "", "write the kriging surface as an ESRI shapefile")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

// runStages loads the input file and runs the selected stages. tune, when
// non-nil, adjusts the parsed options before the run.
func runStages(ctx context.Context, input string, stages analysis.StageSet, tune func(*analysis.Options)) (*analysis.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts, err := analysis.ParseOptions(cfg.Analysis)
	if err != nil {
		return nil, eris.Wrap(err, "parse analysis options")
	}
	opts.Stages = stages
	if tune != nil {
		tune(&opts)
	}

	loaded, err := ingest.Load(ctx, input, ingest.OptionsFromConfig(cfg.Ingest))
	if err != nil {
		return nil, eris.Wrap(err, "load observations")
	}
	for _, s := range loaded.Skipped {
		zap.L().Warn("skipped input row", zap.Int("row", s.Row), zap.String("reason", s.Reason))
	}

	r, err := analysis.Run(ctx, loaded.Observations, opts)
	if err != nil {
		return nil, eris.Wrap(err, "analysis run")
	}
	for _, se := range r.StageErrors() {
		zap.L().Warn("stage unavailable", zap.String("stage", se.Stage), zap.Error(se.Err))
	}
	return r, nil
}

func writeReport(r *analysis.Report, path, format string) error {
	if format == "" {
		format = cfg.Output.Format
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	if err := export.WriteReportFile(path, r, f); err != nil {
		return eris.Wrap(err, "write report")
	}
	return nil
}
