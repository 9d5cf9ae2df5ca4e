package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesFromCloses(closes ...float64) models.Series {
	s := make(models.Series, len(closes))
	for i, c := range closes {
		s[i] = models.Candle{
			Time:   t0.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100 + float64(i),
		}
	}
	return s
}

func rampSeries(n int) models.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3) + float64(i)*0.1
	}
	return seriesFromCloses(closes...)
}

func TestPctReturns(t *testing.T) {
	r := PctReturns([]float64{10, 11, 12, 11, 13})
	require.Len(t, r, 5)
	assert.True(t, math.IsNaN(r[0]))
	assert.InDelta(t, 0.1, r[1], 1e-4)
	assert.InDelta(t, 0.0909, r[2], 1e-4)
	assert.InDelta(t, -0.0833, r[3], 1e-4)
	assert.InDelta(t, 0.1818, r[4], 1e-4)
}

func TestMakeSingleWindow(t *testing.T) {
	s := seriesFromCloses(10, 11, 12, 11, 13)
	w, err := Make(s, 3, 1)
	require.NoError(t, err)
	require.Equal(t, 1, w.Len())

	// reduced rows are candles 1..4; the window covers candles 1..3
	assert.Equal(t, 13.0, w.Labels[0])
	assert.Equal(t, s[4].Time, w.Times[0])
	require.Len(t, w.Tabular[0], 3*NumFeatures)
	assert.Equal(t, []float64{s[1].Open, s[1].High, s[1].Low, 11, s[1].Volume}, w.Tabular[0][:5])
	assert.InDelta(t, 0.1, w.Tabular[0][5], 1e-12)
	assert.Equal(t, 11.0, w.Tabular[0][2*NumFeatures+CloseColumn])
}

func TestMakeCounts(t *testing.T) {
	for _, tc := range []struct{ length, seqLen, horizon int }{
		{40, 5, 1},
		{40, 5, 3},
		{60, 24, 1},
		{26, 24, 1},
		{30, 10, 0},
	} {
		w, err := Make(rampSeries(tc.length), tc.seqLen, tc.horizon)
		require.NoError(t, err)
		want := tc.length - 1 - tc.seqLen - tc.horizon + 1
		assert.Equal(t, want, w.Len(), "%+v", tc)
		assert.Len(t, w.Tabular, want)
		assert.Len(t, w.Sequence, want)
		assert.Len(t, w.Times, want)
		for i := range w.Sequence {
			assert.Len(t, w.Sequence[i], tc.seqLen)
			assert.Len(t, w.Tabular[i], tc.seqLen*NumFeatures)
		}
	}
}

func TestMakeTabularAndSequenceAligned(t *testing.T) {
	s := rampSeries(50)
	w, err := Make(s, 8, 2)
	require.NoError(t, err)
	m, err := DeriveRows(s)
	require.NoError(t, err)
	sc := FitStandardScaler(m.Rows)

	for i := 0; i < w.Len(); i++ {
		for step := 0; step < 8; step++ {
			raw := w.Tabular[i][step*NumFeatures : (step+1)*NumFeatures]
			assert.InDeltaSlice(t, sc.Transform(raw), w.Sequence[i][step], 1e-12)
		}
	}
}

func TestMakeInsufficientHistoryIsEmpty(t *testing.T) {
	w, err := Make(rampSeries(10), 9, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())

	w, err = Make(models.Series{}, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
}

func TestMakeRejectsBadParams(t *testing.T) {
	_, err := Make(rampSeries(10), 0, 1)
	assert.ErrorIs(t, err, models.ErrComputation)
	_, err = Make(rampSeries(10), 3, -1)
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestDeriveRowsZeroClose(t *testing.T) {
	_, err := DeriveRows(seriesFromCloses(10, 0, 12))
	assert.ErrorIs(t, err, models.ErrComputation)
}

func TestLatestMatchesLastWindow(t *testing.T) {
	s := rampSeries(60)
	w, err := Make(s, 12, 0)
	require.NoError(t, err)
	last, err := Latest(s, 12)
	require.NoError(t, err)

	n := w.Len() - 1
	assert.Equal(t, w.Tabular[n], last.Tabular)
	assert.Equal(t, w.Sequence[n], last.Sequence)
	assert.Equal(t, s.Last().Time, last.End)
	assert.Equal(t, s.Last().Close, last.Tabular[11*NumFeatures+CloseColumn])
}

func TestLatestIncludesNewestRow(t *testing.T) {
	s := rampSeries(60)
	train, err := Make(s, 12, 1)
	require.NoError(t, err)
	last, err := Latest(s, 12)
	require.NoError(t, err)

	n := train.Len() - 1
	assert.NotEqual(t, train.Tabular[n], last.Tabular)
	assert.Equal(t, train.Tabular[n][NumFeatures:], last.Tabular[:11*NumFeatures])
	assert.Equal(t, train.Labels[n], last.Tabular[11*NumFeatures+CloseColumn])
}

func TestLatestInsufficientHistory(t *testing.T) {
	_, err := Latest(rampSeries(5), 5)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestStandardScaler(t *testing.T) {
	sc := FitStandardScaler([][]float64{{1, 5}, {3, 5}})
	assert.Equal(t, []float64{2, 5}, sc.Mean)
	assert.Equal(t, []float64{1, 1}, sc.Scale)
	assert.Equal(t, []float64{-1, 0}, sc.Transform([]float64{1, 5}))
}
