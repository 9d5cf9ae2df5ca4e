package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

func testSeries() models.Series {
	t0 := time.Unix(1700000000, 0).UTC()
	return models.Series{
		{Time: t0, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Time: t0.Add(time.Hour), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 12},
	}
}

func TestForecastKey(t *testing.T) {
	s := testSeries()
	key := ForecastKey("eth/usdt", "1h", s, []int{1, 10, 24})
	assert.True(t, strings.HasPrefix(key, "forecast:ETH/USDT:1h:1700003600:"), key)
	assert.True(t, strings.HasSuffix(key, ":1,10,24"), key)
	assert.Equal(t, key, ForecastKey("ETH/USDT", "1h", testSeries(), []int{1, 10, 24}))
}

func TestForecastKeyTracksFormingCandle(t *testing.T) {
	s := testSeries()
	before := ForecastKey("ETH/USDT", "1h", s, []int{1})

	moved := testSeries()
	moved[1].Close += 50
	require.Equal(t, s.Last().Time, moved.Last().Time)
	assert.NotEqual(t, before, ForecastKey("ETH/USDT", "1h", moved, []int{1}))

	vol := testSeries()
	vol[1].Volume++
	assert.NotEqual(t, before, ForecastKey("ETH/USDT", "1h", vol, []int{1}))

	older := testSeries()
	older[0].Low = 0.4
	assert.NotEqual(t, SeriesDigest(s), SeriesDigest(older))
}
