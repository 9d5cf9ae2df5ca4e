package repository

import (
	"context"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

// CandleSource returns the most recent candles of a market, oldest first,
// at most limit rows. A failed fetch returns no partial series.
type CandleSource interface {
	FetchRecentCandles(ctx context.Context, symbol string, tf Timeframe, limit int) (models.Series, error)
}

// CandleStream delivers live kline updates for one market.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ReferenceStore serves the offline evaluation files.
type ReferenceStore interface {
	Metrics(ctx context.Context) (models.MetricsTable, error)
	EvalSeries(ctx context.Context, limit int) ([]models.EvalPoint, error)
}

// ForecastPublisher ships forecast events to a message broker.
type ForecastPublisher interface {
	Publish(ctx context.Context, e *models.ForecastEvent) error
	PublishBatch(ctx context.Context, events []*models.ForecastEvent) error
	Close() error
}

// ForecastArchive persists forecast events.
type ForecastArchive interface {
	Store(ctx context.Context, e *models.ForecastEvent) error
	StoreBatch(ctx context.Context, events []*models.ForecastEvent) error
	Health(ctx context.Context) error
	Close() error
}

// Metrics records forecasting telemetry.
type Metrics interface {
	RecordForecast(symbol string, horizons int)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordSteps(steps int)
}
