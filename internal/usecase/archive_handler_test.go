package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/metrics"
)

func TestForecastArchiveHandler(t *testing.T) {
	archive := &captureArchive{}
	h := NewForecastArchiveHandler("forecasts", archive, metrics.Nop{})
	assert.Equal(t, "forecasts", h.Topic())

	ev := models.ForecastEvent{Symbol: "ETH/USDT", Timeframe: "1h", Hours: 24, StepsUsed: 24, Prediction: 3050.5,
		GeneratedAt: fixedNow, TargetTime: fixedNow.Add(24 * time.Hour)}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), b))
	require.Len(t, archive.events, 1)
	assert.Equal(t, 3050.5, archive.events[0].Prediction)
	assert.True(t, archive.events[0].TargetTime.Equal(ev.TargetTime))

	assert.Error(t, h.Handle(context.Background(), []byte("{")))
}

func TestForecastRecorderUnknownBackend(t *testing.T) {
	rec := NewForecastRecorder(nil, nil, metrics.Nop{}, "s3")
	err := rec.Record(context.Background(), &models.ForecastReport{Horizons: []models.HorizonResult{{RequestedHours: 1}}}, 1)
	assert.Error(t, err)
}

type capturePublisher struct {
	events []*models.ForecastEvent
	closed int
}

func (p *capturePublisher) Publish(_ context.Context, e *models.ForecastEvent) error {
	p.events = append(p.events, e)
	return nil
}
func (p *capturePublisher) PublishBatch(_ context.Context, es []*models.ForecastEvent) error {
	p.events = append(p.events, es...)
	return nil
}
func (p *capturePublisher) Close() error { p.closed++; return nil }

func TestForecastRecorderKafkaAndClose(t *testing.T) {
	pub := &capturePublisher{}
	archive := &captureArchive{}
	rec := NewForecastRecorder(pub, archive, metrics.Nop{}, "kafka")

	report := &models.ForecastReport{Symbol: "ETH/USDT", Horizons: []models.HorizonResult{{RequestedHours: 1}, {RequestedHours: 24}}}
	require.NoError(t, rec.Record(context.Background(), report, 3000))
	assert.Len(t, pub.events, 2)
	assert.Empty(t, archive.events)

	rec.Close()
	assert.Equal(t, 1, pub.closed)
	assert.Equal(t, 1, archive.closed)

	var nilRec *ForecastRecorder
	assert.NotPanics(t, nilRec.Close)
}
