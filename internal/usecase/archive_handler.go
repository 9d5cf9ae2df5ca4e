package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	pkgkafka "github.com/Yoitsuro/mySkripsiWebsite/pkg/kafka"
)

// ForecastArchiveHandler consumes forecast events from Kafka and writes them
// to the archive.
type ForecastArchiveHandler struct {
	topic   string
	archive domrepo.ForecastArchive
	metrics domrepo.Metrics
}

func NewForecastArchiveHandler(topic string, archive domrepo.ForecastArchive, metrics domrepo.Metrics) *ForecastArchiveHandler {
	return &ForecastArchiveHandler{topic: topic, archive: archive, metrics: metrics}
}

func (h *ForecastArchiveHandler) Topic() string { return h.topic }

func (h *ForecastArchiveHandler) Handle(ctx context.Context, b []byte) error {
	var e models.ForecastEvent
	if err := json.Unmarshal(b, &e); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if !e.GeneratedAt.IsZero() {
		h.metrics.RecordLatency("archive_e2e", time.Since(e.GeneratedAt).Seconds())
	}

	start := time.Now()
	err := h.archive.Store(ctx, &e)
	h.metrics.RecordLatency("archive_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*ForecastArchiveHandler)(nil)
