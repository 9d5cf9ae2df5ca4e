package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	pkgkafka "github.com/Yoitsuro/mySkripsiWebsite/pkg/kafka"
)

// ForecastSchema returns the DDL for the forecast archive table.
func ForecastSchema(table string) string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            generated_at DateTime64(3, 'UTC'),
            symbol       LowCardinality(String),
            timeframe    LowCardinality(String),
            last_candle  DateTime64(3, 'UTC'),
            last_close   Float64,
            hours        UInt32,
            steps_used   UInt32,
            prediction   Float64,
            target_time  DateTime64(3, 'UTC')
        )
        ENGINE = MergeTree
        ORDER BY (symbol, generated_at, hours)
    `, table)
}

const forecastColumns = "generated_at, symbol, timeframe, last_candle, last_close, hours, steps_used, prediction, target_time"

// ClickHouseForecastArchive stores forecast events in ClickHouse.
type ClickHouseForecastArchive struct {
	db    *sql.DB
	table string
}

func NewClickHouseForecastArchive(db *sql.DB, table string) *ClickHouseForecastArchive {
	return &ClickHouseForecastArchive{db: db, table: table}
}

func (s *ClickHouseForecastArchive) Store(ctx context.Context, e *models.ForecastEvent) error {
	return s.StoreBatch(ctx, []*models.ForecastEvent{e})
}

// StoreBatch inserts events in chunks of multi-row VALUES.
func (s *ClickHouseForecastArchive) StoreBatch(ctx context.Context, events []*models.ForecastEvent) error {
	const chunkSize = 2000
	for start := 0; start < len(events); start += chunkSize {
		end := min(start+chunkSize, len(events))
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*9)
		for _, e := range events[start:end] {
			if e == nil || e.Symbol == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				e.GeneratedAt.UTC(),
				e.Symbol,
				e.Timeframe,
				e.LastCandle.UTC(),
				e.LastClose,
				uint32(e.Hours),
				uint32(e.StepsUsed),
				e.Prediction,
				e.TargetTime.UTC(),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, forecastColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert forecasts: %w", err)
		}
	}
	return nil
}

// Health pings the ClickHouse connection pool.
func (s *ClickHouseForecastArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseForecastArchive) Close() error { return nil }

// KafkaForecastPublisher publishes forecast events keyed by symbol.
type KafkaForecastPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaForecastPublisher(producer *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: producer, topic: topic}
}

func (p *KafkaForecastPublisher) Publish(ctx context.Context, e *models.ForecastEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.Symbol), e)
}

func (p *KafkaForecastPublisher) PublishBatch(ctx context.Context, events []*models.ForecastEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(e.Symbol), Value: e})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// Close is a no-op; the producer is shared with the log collector.
func (p *KafkaForecastPublisher) Close() error { return nil }

var (
	_ domrepo.ForecastArchive   = (*ClickHouseForecastArchive)(nil)
	_ domrepo.ForecastPublisher = (*KafkaForecastPublisher)(nil)
)
