// Package marketdata fetches daily closing prices from the Yahoo Finance chart API.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"StockCast/internal/domain/errs"
	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/service/ratelimit"
	xhttp "StockCast/pkg/http"
	"StockCast/pkg/logger"

	"github.com/sony/gobreaker"
)

const userAgent = "Mozilla/5.0 (compatible; stockcast/1.0)"

// Config tunes the client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Breaker       BreakerConfig
}

// BreakerConfig configures the circuit breaker around the upstream.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *xhttp.Client) Option {
	return func(y *Client) { y.http = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(y *Client) { y.log = l }
}

// Client implements domain MarketData against Yahoo Finance.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

var _ domrepo.MarketData = (*Client)(nil)

// NewClient builds a rate limited, circuit broken Yahoo client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	y := &Client{
		baseURL: cfg.BaseURL,
		limiter: ratelimit.New(cfg.RatePerSecond, cfg.Burst),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(y)
	}
	if y.http == nil {
		y.http = xhttp.NewClient(
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithHeader("User-Agent", userAgent),
		)
	}

	bc := cfg.Breaker
	if bc.FailureRatio <= 0 {
		bc.FailureRatio = 0.6
	}
	y.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < bc.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= bc.FailureRatio
		},
		// caller mistakes are not upstream failures
		IsSuccessful: func(err error) bool {
			k := errs.KindOf(err)
			return err == nil || k == errs.KindNotFound || k == errs.KindInvalidArgument
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			y.log.Warn("market data breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return y
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCloses returns the daily closes in [from, to], oldest first. Null or NaN closes are dropped.
func (y *Client) DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	const op = "marketdata.DailyCloses"
	if symbol == "" {
		return nil, errs.InvalidArgument(op, "symbol is required")
	}
	if err := y.limiter.Wait(ctx, "yahoo"); err != nil {
		return nil, errs.Wrap(errs.KindUnavailable, op, err, "market data request cancelled")
	}

	start := time.Now()
	out, err := y.breaker.Execute(func() (interface{}, error) {
		return y.fetch(ctx, op, symbol, from, to)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errs.Wrap(errs.KindUnavailable, op, err, "market data provider unavailable")
		}
		return nil, err
	}
	bars := out.([]models.PriceBar)
	y.log.Debug("market data fetched",
		logger.String("symbol", symbol),
		logger.Int("bars", len(bars)),
		logger.Duration("duration_ms", time.Since(start)),
	)
	return bars, nil
}

func (y *Client) fetch(ctx context.Context, op, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	var resp chartResponse
	err := y.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    y.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"period1":  {strconv.FormatInt(from.Unix(), 10)},
			"period2":  {strconv.FormatInt(to.Unix(), 10)},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, errs.NotFound(op, "no data found for symbol %s", symbol)
		}
		return nil, errs.Wrap(errs.KindUnavailable, op, err, "market data provider error")
	}
	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return nil, errs.NotFound(op, "no data found for symbol %s", symbol)
		}
		return nil, errs.Wrap(errs.KindUnavailable, op, fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description), "market data provider error")
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, errs.NotFound(op, "no data found for symbol %s", symbol)
	}

	r := resp.Chart.Result[0]
	closes := r.Indicators.Quote[0].Close
	bars := make([]models.PriceBar, 0, len(closes))
	for i, c := range closes {
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) || i >= len(r.Timestamp) {
			continue
		}
		bars = append(bars, models.PriceBar{Date: time.Unix(r.Timestamp[i], 0).UTC(), Close: *c})
	}
	if len(bars) == 0 {
		return nil, errs.NotFound(op, "no data found for symbol %s", symbol)
	}
	return bars, nil
}
