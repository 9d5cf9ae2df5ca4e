package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

func TestTimeframeHours(t *testing.T) {
	cases := []struct {
		tf   Timeframe
		want float64
	}{
		{"1h", 1},
		{"4h", 4},
		{"15m", 0.25},
		{"30m", 0.5},
		{"1d", 24},
		{"2d", 48},
		{"1H", 1},
		{" 15M ", 0.25},
		{"1D", 24},
	}
	for _, tc := range cases {
		got, err := tc.tf.Hours()
		require.NoError(t, err, tc.tf)
		assert.InDelta(t, tc.want, got, 1e-12, tc.tf)
	}
}

func TestTimeframeHoursRejectsUnknownUnit(t *testing.T) {
	for _, tf := range []Timeframe{"1x", "", "h", "-1h", "0h", "abch", "1w"} {
		_, err := tf.Hours()
		assert.ErrorIs(t, err, models.ErrUnknownTimeframe, string(tf))
	}
}

func TestTimeframeDuration(t *testing.T) {
	d, err := Timeframe("15m").Duration()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)
}

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TF1h, NormalizeTimeframe(""))
	assert.Equal(t, TF4h, NormalizeTimeframe(" 4h "))
	assert.Equal(t, TF1h, NormalizeTimeframe("1x"))
	assert.Equal(t, TF4h, NormalizeTimeframe("4H"))
}
