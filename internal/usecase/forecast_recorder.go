package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	drepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
)

// ForecastRecorder routes served forecasts to the configured backend:
// "kafka" publishes events, "clickhouse" stores them directly.
type ForecastRecorder struct {
	pub     drepo.ForecastPublisher
	store   drepo.ForecastArchive
	metrics drepo.Metrics
	backend string
}

func NewForecastRecorder(
	pub drepo.ForecastPublisher,
	store drepo.ForecastArchive,
	metrics drepo.Metrics,
	backend string,
) *ForecastRecorder {
	return &ForecastRecorder{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Record archives every horizon of report.
func (p *ForecastRecorder) Record(ctx context.Context, report *models.ForecastReport, lastClose float64) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	events := report.Events(lastClose)
	if len(events) == 0 {
		return nil
	}
	batch := make([]*models.ForecastEvent, len(events))
	for i := range events {
		batch[i] = &events[i]
	}

	start := time.Now()
	var err error
	switch p.backend {
	case "kafka":
		if p.pub == nil {
			return fmt.Errorf("kafka backend has no publisher")
		}
		err = p.pub.PublishBatch(ctx, batch)
	case "clickhouse":
		if p.store == nil {
			return fmt.Errorf("clickhouse backend has no archive")
		}
		err = p.store.StoreBatch(ctx, batch)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}
	if err != nil {
		p.metrics.RecordError("archive")
		return fmt.Errorf("record forecast: %w", err)
	}
	p.metrics.RecordLatency("archive", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available. Safe on a nil recorder.
func (p *ForecastRecorder) Close() {
	if p == nil {
		return
	}
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
