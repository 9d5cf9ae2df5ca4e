package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel)
	l.With(String("symbol", "ETH/USDT")).Info("forecast served",
		Int("horizons", 3), Float64("last_close", 3012.5), Duration("took", 1500*time.Millisecond))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "forecast served", entry["message"])
	assert.Equal(t, "ETH/USDT", entry["symbol"])
	assert.EqualValues(t, 3, entry["horizons"])
	assert.EqualValues(t, 3012.5, entry["last_close"])
	assert.EqualValues(t, 1500, entry["took"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	l.Warn("shown", Error(errors.New("boom")))
	assert.Contains(t, buf.String(), "boom")
}

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	l := NewNop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", String("symbol", "ETH/USDT"))
	}
	l.Warn("slow request")
	l.Info("not collected")
	require.Equal(t, 2, l.collector.Pending())

	l.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Message] = e.Count
	}
	assert.Equal(t, map[string]int{"fetch failed": 3, "slow request": 1}, counts)
}
