package cache

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

// BytesCache stores raw bytes with a TTL. TryLock/Unlock guard a key so
// only one caller computes a missing entry.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// ForecastKey identifies a forecast computed from the same inputs: market,
// timeframe, the exact candle series and the horizon list. The newest candle
// may still be forming, so its open time alone does not identify the input.
func ForecastKey(symbol, timeframe string, series models.Series, horizons []int) string {
	hs := make([]string, len(horizons))
	for i, h := range horizons {
		hs[i] = strconv.Itoa(h)
	}
	var last int64
	if len(series) > 0 {
		last = series.Last().Time.Unix()
	}
	return fmt.Sprintf("forecast:%s:%s:%d:%016x:%s",
		strings.ToUpper(symbol), timeframe, last, SeriesDigest(series), strings.Join(hs, ","))
}

// SeriesDigest hashes every timestamp and OHLCV value of s.
func SeriesDigest(s models.Series) uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	for _, c := range s {
		put(uint64(c.Time.UnixNano()))
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			put(math.Float64bits(v))
		}
	}
	return d.Sum64()
}
