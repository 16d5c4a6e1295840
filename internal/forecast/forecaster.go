package forecast

import (
	"fmt"

	"StockCast/internal/domain/errs"
)

// Forecaster rolls PredictNext forward, feeding each prediction back into the window.
type Forecaster struct {
	maxHorizon int
}

// NewForecaster returns a forecaster that refuses horizons above maxHorizon.
// A non-positive maxHorizon falls back to DefaultMaxHorizon.
func NewForecaster(maxHorizon int) *Forecaster {
	if maxHorizon <= 0 {
		maxHorizon = DefaultMaxHorizon
	}
	return &Forecaster{maxHorizon: maxHorizon}
}

// MaxHorizon returns the largest accepted number of days.
func (f *Forecaster) MaxHorizon() int { return f.maxHorizon }

// Forecast returns exactly days predictions. Prediction i is made from the window
// initial[i:] followed by predictions[:i]. Either every step succeeds or nothing is returned.
func (f *Forecaster) Forecast(initial []float64, days int, model Model, scaler Scaler) ([]float64, error) {
	const op = "forecast.Forecaster.Forecast"

	if len(initial) != TimeStep {
		return nil, errs.InvalidArgument(op, "initial prices must contain exactly %d values, got %d", TimeStep, len(initial))
	}
	if days <= 0 {
		return nil, errs.InvalidArgument(op, "forecast days must be positive, got %d", days)
	}
	if days > f.maxHorizon {
		return nil, errs.InvalidArgument(op, "forecast days must be at most %d, got %d", f.maxHorizon, days)
	}
	if model == nil || scaler == nil {
		return nil, errs.Unavailable(op, "model artifacts are not loaded")
	}

	// buf holds the seed followed by predictions; window i is buf[i : i+TimeStep]
	buf := make([]float64, TimeStep+days)
	copy(buf, initial)

	for i := 0; i < days; i++ {
		window := buf[i : i+TimeStep : i+TimeStep]
		next, err := PredictNext(window, model, scaler)
		if err != nil {
			return nil, fmt.Errorf("day %d: %w", i+1, err)
		}
		buf[TimeStep+i] = next
	}

	out := make([]float64, days)
	copy(out, buf[TimeStep:])
	return out, nil
}
