package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"StockCast/internal/di"
	"StockCast/internal/forecast"
	"StockCast/internal/usecase"
	"StockCast/pkg/logger"
)

// forecastCmd runs one forecast offline against the local artifacts
var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast closing prices without starting the server",
	Long: `Load the model artifacts and roll the model forward from the last 100 prices.
Prices come from --prices-file (a JSON array or one number per line); without it
the latest closes are fetched from the market data provider.

Examples:
  stockcast forecast --symbol AAPL --days 5
  stockcast forecast --symbol AAPL --days 30 --prices-file closes.json`,
	RunE: runForecast,
}

var (
	forecastSymbol     string
	forecastDays       int
	forecastPricesFile string
)

func init() {
	rootCmd.AddCommand(forecastCmd)

	forecastCmd.Flags().StringVar(&forecastSymbol, "symbol", "", "ticker symbol (empty uses the generic model)")
	forecastCmd.Flags().IntVar(&forecastDays, "days", 1, "number of days to forecast")
	forecastCmd.Flags().StringVar(&forecastPricesFile, "prices-file", "", "file holding at least 100 closing prices, oldest first")
}

func runForecast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	l := logger.Nop()

	reg := di.ProvideRegistry(cfg, l)
	uc := usecase.NewForecastUseCase(reg, di.ProvideForecaster(cfg))
	if _, err := uc.LoadArtifacts(ctx); err != nil {
		return err
	}

	var prices []float64
	if forecastPricesFile != "" {
		prices, err = readPrices(forecastPricesFile)
	} else {
		if forecastSymbol == "" {
			return fmt.Errorf("--symbol is required when --prices-file is not set")
		}
		hist := usecase.NewHistoricalUseCase(di.ProvideMarketData(cfg, l), nil, 0, nil, l)
		prices, err = hist.Closes(ctx, forecastSymbol, forecast.TimeStep)
	}
	if err != nil {
		return err
	}
	if len(prices) > forecast.TimeStep {
		prices = prices[len(prices)-forecast.TimeStep:]
	}

	rec, err := uc.Forecast(ctx, forecastSymbol, prices, forecastDays)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

// readPrices accepts a JSON array of numbers or whitespace separated numbers.
func readPrices(path string) ([]float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	text := strings.TrimSpace(string(b))
	if strings.HasPrefix(text, "[") {
		var out []float64
		if err := json.Unmarshal(b, &out); err != nil {
			return nil, fmt.Errorf("parse prices: %w", err)
		}
		return out, nil
	}
	fields := strings.Fields(text)
	out := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("parse prices: value %d: %w", i+1, err)
		}
		out = append(out, v)
	}
	return out, nil
}
