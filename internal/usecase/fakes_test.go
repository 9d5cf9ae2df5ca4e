package usecase

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/services/features"
)

var base = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(n int, step time.Duration) models.Series {
	s := make(models.Series, n)
	for i := range s {
		c := 100 + 5*math.Sin(float64(i)/4) + float64(i)*0.05
		s[i] = models.Candle{
			Time:   base.Add(time.Duration(i) * step),
			Open:   c - 0.2,
			High:   c + 0.7,
			Low:    c - 0.9,
			Close:  c,
			Volume: 1000 + float64(i%7),
		}
	}
	return s
}

// lastClosePlus predicts the newest close in the window plus a delta.
type lastClosePlus struct {
	delta float64
	calls atomic.Int64
	err   error
}

func (m *lastClosePlus) Predict(_ context.Context, batch [][]float64) ([]float64, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(batch))
	for i, x := range batch {
		out[i] = x[len(x)-features.NumFeatures+features.CloseColumn] + m.delta
	}
	return out, nil
}

// scaledSum predicts the sum of the newest standardized row.
type scaledSum struct {
	calls atomic.Int64
}

func (m *scaledSum) PredictSequences(_ context.Context, batch [][][]float64) ([]float64, error) {
	m.calls.Add(1)
	out := make([]float64, len(batch))
	for i, w := range batch {
		for _, v := range w[len(w)-1] {
			out[i] += v
		}
	}
	return out, nil
}

// weighted fuses (a, b) as wa*a + wb*b.
type weighted struct {
	wa, wb float64
}

func (m weighted) Predict(_ context.Context, batch [][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, x := range batch {
		out[i] = m.wa*x[0] + m.wb*x[1]
	}
	return out, nil
}

func plusOneModels() (*domsvc.ModelSet, *lastClosePlus, *scaledSum) {
	tab := &lastClosePlus{delta: 1}
	seq := &scaledSum{}
	ms, _ := domsvc.NewModelSet(tab, seq, weighted{wa: 1})
	return ms, tab, seq
}

func mixedModels() *domsvc.ModelSet {
	ms, _ := domsvc.NewModelSet(&lastClosePlus{delta: 0.3}, &scaledSum{}, weighted{wa: 0.9, wb: 0.4})
	return ms
}

var errModelDown = errors.New("model down")
