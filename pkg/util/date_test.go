package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, s := range []string{
		"2024-10-10T10:10:10Z",
		"2024-10-10T17:10:10+07:00",
		"2024-10-10 10:10:10",
		"2024-10-10 10:10:10+00:00",
		"2024-10-10T10:10:10",
		strconv.FormatInt(want.Unix(), 10),
		strconv.FormatInt(want.UnixMilli(), 10),
	} {
		got, ok := ParseTime(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), s)
		assert.Equal(t, time.UTC, got.Location(), s)
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "2024-13-01"} {
		_, ok := ParseTime(s)
		assert.False(t, ok, s)
	}
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 8080, ParseIntDefault("8080", 1))
	assert.Equal(t, 1, ParseIntDefault("", 1))
	assert.Equal(t, 1, ParseIntDefault("80a", 1))
}

func TestExchangeSymbol(t *testing.T) {
	assert.Equal(t, "ETHUSDT", ExchangeSymbol("ETH/USDT"))
	assert.Equal(t, "BTCUSDT", ExchangeSymbol("btc-usdt"))
}
