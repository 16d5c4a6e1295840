package models

import "time"

// ForecastRecord is one completed multi-step forecast. It is cached, published as an event and
// stored in the forecast history.
type ForecastRecord struct {
	ID              string    `json:"id"`
	Symbol          string    `json:"symbol"`
	Source          string    `json:"source"` // "specific" | "generic"
	Days            int       `json:"days"`
	LastPrice       float64   `json:"last_price"`
	Predictions     []float64 `json:"predictions"`
	SnapshotVersion uint64    `json:"snapshot_version"`
	CreatedAt       time.Time `json:"created_at"`
}

// PriceBar is one daily close from the market-data provider.
type PriceBar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceStats summarizes a closing-price series for the finance agent.
type PriceStats struct {
	Symbol       string  `json:"symbol"`
	Days         int     `json:"days"`
	LastClose    float64 `json:"last_close"`
	PeriodReturn float64 `json:"period_return"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	Volatility   float64 `json:"annualized_volatility"`
}

// ArtifactStatus describes the current registry snapshot without exposing file paths.
type ArtifactStatus struct {
	Version  uint64    `json:"version"`
	LoadedAt time.Time `json:"loaded_at"`
	Symbols  []string  `json:"symbols"`
	Generic  bool      `json:"generic"`
	Failed   []string  `json:"failed"`
}

// ArtifactNotice is the message accepted on the artifacts topic.
type ArtifactNotice struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}
