package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"StockCast/internal/di"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the forecasting HTTP API",
	Long: `Load the model artifacts and serve the HTTP and WebSocket API until
SIGINT or SIGTERM. Redis, Kafka and ClickHouse are used when enabled in config.

Examples:
  stockcast serve
  stockcast serve --config config/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx)
}
