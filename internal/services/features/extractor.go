// Package features derives summary statistics from closing-price series.
package features

import (
	"math"

	"StockCast/internal/domain/models"
)

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// Closes extracts the close column from bars.
func Closes(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over the last `window` returns
// using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// Summarize computes the statistics handed to the finance agent. Empty input yields a zero value.
func Summarize(symbol string, closes []float64) models.PriceStats {
	st := models.PriceStats{Symbol: symbol, Days: len(closes)}
	if len(closes) == 0 {
		return st
	}
	st.LastClose = closes[len(closes)-1]
	st.High, st.Low = closes[0], closes[0]
	for _, c := range closes[1:] {
		st.High = math.Max(st.High, c)
		st.Low = math.Min(st.Low, c)
	}
	if closes[0] > 0 {
		st.PeriodReturn = st.LastClose/closes[0] - 1
	}
	rets := ComputeLogReturns(closes)
	st.Volatility = RealizedVolatility(rets, len(rets), TradingDaysPerYear)
	return st
}
