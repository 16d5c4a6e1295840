package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"StockCast/internal/di"
	"StockCast/internal/usecase"
	"StockCast/pkg/logger"
)

// artifactsCmd loads the artifact directory and reports what resolved
var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Validate the model artifact directory",
	Long: `Load every configured model and scaler pair and print the registry status.
Exits non-zero when a present artifact fails to parse.`,
	RunE: runArtifacts,
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	uc := usecase.NewForecastUseCase(di.ProvideRegistry(cfg, logger.Nop()), di.ProvideForecaster(cfg))
	stats, err := uc.LoadArtifacts(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(uc.Artifacts()); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d artifact pair(s) failed to load", stats.Failed)
	}
	return nil
}
