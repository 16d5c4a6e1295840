// Package forecast is the inference core: the per-symbol model/scaler registry, the single-step
// predictor and the autoregressive multi-step forecaster.
//
// Nothing in this package knows about HTTP, caches or brokers. Inputs are validated primitives and
// failures are reported through the errs taxonomy.
package forecast

import "strings"

const (
	// TimeStep is the fixed number of prices in a window fed to a model.
	TimeStep = 100

	// DefaultMaxHorizon bounds the number of days a single forecast may roll out.
	DefaultMaxHorizon = 365
)

// Source tells which resolution strategy produced a pair.
type Source string

const (
	SourceSpecific Source = "specific"
	SourceGeneric  Source = "generic"
)

// Pair is the unit of resolution: the model and the scaler it was trained with.
type Pair struct {
	Symbol string
	Source Source
	Model  Model
	Scaler Scaler
}

// NormalizeSymbol uppercases and trims a ticker so lookups are case-insensitive.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
