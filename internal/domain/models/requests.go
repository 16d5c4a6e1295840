package models

// Request and response bodies of the HTTP API.

type PredictRequest struct {
	Past100Prices []float64 `json:"past_100_prices" validate:"required,len=100"`
	Symbol        string    `json:"symbol" validate:"omitempty,max=16"`
}

type PredictResponse struct {
	PredictedPrice float64 `json:"predicted_price"`
	Message        string  `json:"message"`
}

type MultiPredictRequest struct {
	InitialPrices []float64 `json:"initial_prices" validate:"required,len=100"`
	ForecastDays  int       `json:"forecast_days" validate:"required,gt=0,lte=365"`
	Symbol        string    `json:"symbol" validate:"omitempty,max=16"`
}

type MultiPredictResponse struct {
	PredictedPrices []float64 `json:"predicted_prices"`
	Message         string    `json:"message"`
}

type HistoricalRequest struct {
	Symbol       string `query:"symbol" validate:"required,max=16"`
	LookbackDays int    `query:"lookback_days" default:"250" validate:"gte=1,lte=5000"`
}

type ReportRequest struct {
	StockName string `json:"stock_name" validate:"required,max=64"`
}

type ReportResponse struct {
	Content string `json:"content"`
}

type ForecastHistoryRequest struct {
	Symbol string `query:"symbol" validate:"required,max=16"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

type JobIDRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
