package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"StockCast/internal/domain/models"
	xhttp "StockCast/pkg/http"
	pkgkafka "StockCast/pkg/kafka"
)

func (h *Handler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	price, err := h.forecast.PredictNext(c.Request().Context(), req.Symbol, req.Past100Prices)
	if err != nil {
		return h.fail(c, "predict", err)
	}
	return c.JSON(http.StatusOK, models.PredictResponse{
		PredictedPrice: price,
		Message:        "Prediction successful",
	})
}

func (h *Handler) MultiPredict(c echo.Context) error {
	req := &models.MultiPredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx, cancel := context.WithTimeout(h.eventContext(c), h.timeout)
	defer cancel()
	rec, err := h.forecast.Forecast(ctx, req.Symbol, req.InitialPrices, req.ForecastDays)
	if err != nil {
		return h.fail(c, "multi_predict", err)
	}
	return c.JSON(http.StatusOK, models.MultiPredictResponse{
		PredictedPrices: rec.Predictions,
		Message:         fmt.Sprintf("Successfully predicted %d days.", req.ForecastDays),
	})
}

// eventContext carries the request id into published forecast events.
func (h *Handler) eventContext(c echo.Context) context.Context {
	ctx := c.Request().Context()
	if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
		ctx = context.WithValue(ctx, pkgkafka.CtxRequestID, rid)
	}
	return ctx
}

func (h *Handler) Forecasts(c echo.Context) error {
	req := &models.ForecastHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	recs, err := h.forecast.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "forecast_history", err)
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *Handler) Artifacts(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.forecast.Artifacts())
}

func (h *Handler) ReloadArtifacts(c echo.Context) error {
	status, err := h.forecast.Reload(c.Request().Context())
	if err != nil {
		return h.fail(c, "reload_artifacts", err)
	}
	h.logger.Info("artifacts reloaded over http")
	return xhttp.SuccessResponse(c, status)
}
