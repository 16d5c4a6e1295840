package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"StockCast/internal/domain/models"
	xhttp "StockCast/pkg/http"
)

func (h *Handler) HistoricalPrices(c echo.Context) error {
	req := &models.HistoricalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	closes, err := h.historical.Closes(c.Request().Context(), req.Symbol, req.LookbackDays)
	if err != nil {
		return h.fail(c, "historical_prices", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return c.JSON(http.StatusOK, closes)
}

// Report generates the analysis synchronously.
func (h *Handler) Report(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	content, err := h.report.Generate(c.Request().Context(), req.StockName)
	if err != nil {
		return h.fail(c, "report", err)
	}
	return c.JSON(http.StatusOK, models.ReportResponse{Content: content})
}

func (h *Handler) SubmitReport(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	job, err := h.report.Submit(c.Request().Context(), req.StockName)
	if err != nil {
		return h.fail(c, "submit_report", err)
	}
	return xhttp.AcceptedResponse(c, job)
}

func (h *Handler) GetReport(c echo.Context) error {
	req := &models.JobIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	job, err := h.report.Job(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "get_report", err)
	}
	return xhttp.SuccessResponse(c, job)
}
