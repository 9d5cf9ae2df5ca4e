package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
)

func TestStepsForHorizon(t *testing.T) {
	cases := []struct {
		hours, candle float64
		want          int
	}{
		{10, 1, 10},
		{10, 4, 2}, // 2.5 rounds to even
		{6, 4, 2},  // 1.5 rounds to even
		{14, 4, 4}, // 3.5 rounds to even
		{11, 4, 3},
		{1, 4, 1},
		{1, 24, 1},
		{0.1, 1, 1},
		{1, 0.25, 4},
		{72, 1, 72},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StepsForHorizon(tc.hours, tc.candle), "%v/%v", tc.hours, tc.candle)
	}
}

func TestForecastHorizonsTerminalValues(t *testing.T) {
	ms, _, _ := plusOneModels()
	f, err := NewForecaster(ms, 12, domrepo.TF1h)
	require.NoError(t, err)
	s := makeSeries(40, time.Hour)

	got, err := f.ForecastHorizons(context.Background(), s, []int{1, 3, 5}, false)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, h := range []int{1, 3, 5} {
		assert.Equal(t, h, got[i].RequestedHours)
		assert.Equal(t, h, got[i].StepsUsed)
		assert.InDelta(t, s.Last().Close+float64(h), got[i].Prediction, 1e-9)
	}
}

func TestForecastHorizonsReuseMatchesIndependent(t *testing.T) {
	f, err := NewForecaster(mixedModels(), 24, domrepo.TF1h)
	require.NoError(t, err)
	s := makeSeries(150, time.Hour)
	hours := []int{1, 10, 24, 5}

	independent, err := f.ForecastHorizons(context.Background(), s, hours, false)
	require.NoError(t, err)
	reused, err := f.ForecastHorizons(context.Background(), s, hours, true)
	require.NoError(t, err)
	assert.Equal(t, independent, reused)
}

func TestForecastHorizonsRunsEachHorizon(t *testing.T) {
	ms, tab, _ := plusOneModels()
	f, err := NewForecaster(ms, 12, domrepo.TF1h)
	require.NoError(t, err)

	_, err = f.ForecastHorizons(context.Background(), makeSeries(40, time.Hour), []int{2, 3}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, tab.calls.Load())
}

func TestForecastHorizonsFailsWhole(t *testing.T) {
	tab := &lastClosePlus{err: errModelDown}
	ms, err := domsvc.NewModelSet(tab, &scaledSum{}, weighted{wa: 1})
	require.NoError(t, err)
	f, err := NewForecaster(ms, 12, domrepo.TF1h)
	require.NoError(t, err)

	got, err := f.ForecastHorizons(context.Background(), makeSeries(40, time.Hour), []int{1, 2, 3}, false)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, models.ErrComputation)
	assert.EqualValues(t, 3, tab.calls.Load(), "every horizon is attempted")
}

func TestForecastHorizonsRejectsBadInput(t *testing.T) {
	ms, _, _ := plusOneModels()
	f, err := NewForecaster(ms, 12, domrepo.TF1h)
	require.NoError(t, err)
	_, err = f.ForecastHorizons(context.Background(), makeSeries(40, time.Hour), nil, false)
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	_, err = f.ForecastHorizons(context.Background(), makeSeries(40, time.Hour), []int{1, 0}, false)
	assert.ErrorIs(t, err, models.ErrMalformedInput)
}
