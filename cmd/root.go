package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/weather-etl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "weather-etl",
	Short: "Weather observation ETL pipeline",
	Long:  "Fetches current weather for configured cities from Open-Meteo, normalizes it into a fixed tabular schema, and persists it to CSV and a relational store.",
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
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
