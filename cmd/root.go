package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parking-stats/internal/config"
)

var (
	cfg        *config.Config
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Spatial statistics for parking-search observations",
	Long:  "Loads point observations of time-to-park, tests them for spatial autocorrelation (Moran's I, Geary's C, Local Moran's I) and interpolates a kriging surface.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("config", configPath),
			zap.String("distance", cfg.Analysis.Distance),
			zap.String("weights_style", cfg.Analysis.Weights.Style),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn or error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
