package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"StockCast/internal/domain/errs"
	"StockCast/internal/domain/models"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
)

// WSConfig bounds one forecast stream connection.
type WSConfig struct {
	MaxMessageBytes int64
	PingInterval    time.Duration
	WriteTimeout    time.Duration
}

func (c WSConfig) withDefaults() WSConfig {
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 << 10
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

func newUpgrader(origins []string) websocket.Upgrader {
	u := websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		u.CheckOrigin = func(*http.Request) bool { return true }
		return u
	}
	u.CheckOrigin = func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || slices.Contains(origins, o)
	}
	return u
}

// streamReply is one frame sent back on /ws/forecast.
type streamReply struct {
	Type            string    `json:"type"` // "forecast" | "error"
	ID              string    `json:"id,omitempty"`
	Symbol          string    `json:"symbol,omitempty"`
	Source          string    `json:"source,omitempty"`
	PredictedPrices []float64 `json:"predicted_prices,omitempty"`
	Code            string    `json:"code,omitempty"`
	Message         string    `json:"message,omitempty"`
}

// ForecastStream answers every multi-predict request frame with a forecast frame, in order.
func (h *Handler) ForecastStream(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.logger.Debug("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	pongWait := 2 * h.ws.PingInterval
	conn.SetReadLimit(h.ws.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pinger(conn, done)

	ctx := h.eventContext(c)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket closed", xlogger.Error(err))
			}
			return nil
		}

		reply := h.streamForecast(ctx, data)
		_ = conn.SetWriteDeadline(time.Now().Add(h.ws.WriteTimeout))
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Debug("websocket write failed", xlogger.Error(err))
			return nil
		}
	}
}

func (h *Handler) streamForecast(ctx context.Context, data []byte) streamReply {
	req := &models.MultiPredictRequest{}
	if err := json.Unmarshal(data, req); err != nil {
		return streamReply{Type: "error", Code: "ERR_BAD_REQUEST", Message: "malformed JSON"}
	}
	if err := xhttp.Validate(req); err != nil {
		return streamReply{Type: "error", Code: "ERR_BAD_REQUEST", Message: err.Error()}
	}

	rec, err := h.forecast.Forecast(ctx, req.Symbol, req.InitialPrices, req.ForecastDays)
	if err != nil {
		appErr := toAppError(err)
		if errs.KindOf(err) == errs.KindInternal {
			h.logger.Error("stream forecast failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		}
		return streamReply{Type: "error", Code: appErr.Code, Message: appErr.Message}
	}
	return streamReply{
		Type:            "forecast",
		ID:              rec.ID,
		Symbol:          rec.Symbol,
		Source:          rec.Source,
		PredictedPrices: rec.Predictions,
	}
}

func (h *Handler) pinger(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(h.ws.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.ws.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
