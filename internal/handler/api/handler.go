package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"StockCast/internal/usecase"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
)

// Options tunes request handling.
type Options struct {
	ForecastTimeout time.Duration
	WS              WSConfig
	AllowOrigins    []string
}

// Handler serves the StockCast HTTP API.
type Handler struct {
	logger     *xlogger.Logger
	forecast   *usecase.ForecastUseCase
	historical *usecase.HistoricalUseCase
	report     *usecase.ReportUseCase
	timeout    time.Duration
	ws         WSConfig
	upgrader   websocket.Upgrader
}

var _ xhttp.Handler = (*Handler)(nil)

func NewHandler(
	logger *xlogger.Logger,
	forecast *usecase.ForecastUseCase,
	historical *usecase.HistoricalUseCase,
	report *usecase.ReportUseCase,
	opts Options,
) *Handler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if opts.ForecastTimeout <= 0 {
		opts.ForecastTimeout = 30 * time.Second
	}
	return &Handler{
		logger:     logger,
		forecast:   forecast,
		historical: historical,
		report:     report,
		timeout:    opts.ForecastTimeout,
		ws:         opts.WS.withDefaults(),
		upgrader:   newUpgrader(opts.AllowOrigins),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)

	e.POST("/lstm/predict", h.Predict)
	e.POST("/lstm/multi-predict", h.MultiPredict)
	e.GET("/historical_prices", h.HistoricalPrices)
	e.POST("/predict/", h.Report)
	e.GET("/ws/forecast", h.ForecastStream)

	g := e.Group("/api/v1")
	g.POST("/reports", h.SubmitReport)
	g.GET("/reports/:id", h.GetReport)
	g.GET("/forecasts", h.Forecasts)
	g.GET("/artifacts", h.Artifacts)
	g.POST("/artifacts/reload", h.ReloadArtifacts)
}

func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Backend is running!"})
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports 503 until the registry can resolve at least one pair.
func (h *Handler) Readyz(c echo.Context) error {
	if !h.forecast.Ready() {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("model artifacts are not loaded"))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
