package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	pkgkafka "StockCast/pkg/kafka"
	"StockCast/pkg/logger"
)

// ArtifactsHandler consumes artifact notices published by the training pipeline.
type ArtifactsHandler struct {
	topic    string
	forecast *ForecastUseCase
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewArtifactsHandler(topic string, uc *ForecastUseCase, metrics domrepo.Metrics, l *logger.Logger) *ArtifactsHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &ArtifactsHandler{topic: topic, forecast: uc, metrics: metrics, log: l}
}

func (h *ArtifactsHandler) Topic() string { return h.topic }

// incoming message schema: {action, reason}
func (h *ArtifactsHandler) Handle(ctx context.Context, b []byte) error {
	var n models.ArtifactNotice
	if err := json.Unmarshal(b, &n); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode artifact notice: %w", err)
	}

	switch strings.ToLower(n.Action) {
	case "reload":
		status, err := h.forecast.Reload(ctx)
		if err != nil {
			h.metrics.RecordError("consumer_reload")
			return err
		}
		h.log.Info("artifact notice handled",
			logger.String("reason", n.Reason),
			logger.String("request_id", pkgkafka.RequestIDFromContext(ctx)),
			logger.Int64("version", int64(status.Version)),
			logger.Int("symbols", len(status.Symbols)))
	default:
		// unknown actions are acknowledged so they do not end up in the DLQ
		h.log.Warn("artifact notice ignored", logger.String("action", n.Action))
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ArtifactsHandler)(nil)
