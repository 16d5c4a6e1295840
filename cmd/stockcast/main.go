package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StockCast/pkg/config"
)

var configPath string

// rootCmd is the base command for the StockCast CLI
var rootCmd = &cobra.Command{
	Use:   "stockcast",
	Short: "StockCast LSTM stock price forecasting service",
	Long: `StockCast serves next-day and multi-day closing price forecasts from
pre-trained per-symbol LSTM models, historical closes and AI analysis reports.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path (empty for defaults and environment only)")
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			// fall back to defaults so the binary runs outside the repo
			path = ""
		}
	}
	return config.Load(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
