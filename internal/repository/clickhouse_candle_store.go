package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	pkgch "github.com/Yoitsuro/mySkripsiWebsite/pkg/clickhouse"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

// CandleSchema returns the DDL for the candle table.
func CandleSchema(table string) string {
	return fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol    LowCardinality(String),
            timeframe LowCardinality(String),
            open_time DateTime64(3, 'UTC'),
            open      Float64,
            high      Float64,
            low       Float64,
            close     Float64,
            volume    Float64
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (symbol, timeframe, open_time)
    `, table)
}

// ClickHouseCandleStore serves candles persisted in ClickHouse and stores
// exchange candles for later replay.
type ClickHouseCandleStore struct {
	db    *sql.DB
	table string
	l     *xlogger.Logger
}

func NewClickHouseCandleStore(ch *pkgch.Client, table string, l *xlogger.Logger) *ClickHouseCandleStore {
	if l == nil {
		l = xlogger.NewNop()
	}
	return &ClickHouseCandleStore{db: ch.DB(), table: table, l: l}
}

// FetchRecentCandles returns the newest limit candles, oldest first.
func (s *ClickHouseCandleStore) FetchRecentCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) (models.Series, error) {
	start := time.Now()
	// FINAL collapses rows rewritten by later upserts
	q := fmt.Sprintf(`
        SELECT open_time, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND timeframe = ?
        ORDER BY open_time DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, strings.ToUpper(symbol), string(tf), limit)
	if err != nil {
		s.l.Error("clickhouse recent_candles query error",
			xlogger.String("symbol", symbol),
			xlogger.String("tf", string(tf)),
			xlogger.Error(err))
		return nil, fmt.Errorf("%w: query candles: %w", models.ErrUpstreamData, err)
	}
	defer rows.Close()

	out := make(models.Series, 0, limit)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scan candle: %w", models.ErrUpstreamData, err)
		}
		c.Time = c.Time.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %w", models.ErrUpstreamData, err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse recent_candles ok",
		xlogger.String("symbol", symbol),
		xlogger.String("tf", string(tf)),
		xlogger.Int("rows", len(out)),
		xlogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

// StoreCandles upserts candles in one multi-row insert.
func (s *ClickHouseCandleStore) StoreCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, candles models.Series) error {
	if len(candles) == 0 {
		return nil
	}
	values := make([]string, 0, len(candles))
	args := make([]any, 0, len(candles)*8)
	for _, c := range candles {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, strings.ToUpper(symbol), string(tf), c.Time.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, timeframe, open_time, open, high, low, close, volume) VALUES %s",
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store candles: %w", err)
	}
	return nil
}

var _ domrepo.CandleSource = (*ClickHouseCandleStore)(nil)
