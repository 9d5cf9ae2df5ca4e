package models

import (
	"fmt"
	"math"
	"time"
)

// Candle is one OHLCV bar of a fixed timeframe.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Finite reports whether every numeric field is a finite number and volume is non-negative.
func (c Candle) Finite() bool {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return c.Volume >= 0
}

// Series is an ordered run of candles, oldest first.
type Series []Candle

// Validate checks the series invariants: strictly increasing timestamps and finite fields.
func (s Series) Validate() error {
	for i, c := range s {
		if !c.Finite() {
			return fmt.Errorf("candle %d at %s has non-finite fields", i, c.Time.UTC().Format(time.RFC3339))
		}
		if i > 0 && !c.Time.After(s[i-1].Time) {
			return fmt.Errorf("candle %d at %s is not after %s", i,
				c.Time.UTC().Format(time.RFC3339), s[i-1].Time.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

// Clone returns a private copy with spare capacity for extra appended candles.
func (s Series) Clone(extra int) Series {
	if extra < 0 {
		extra = 0
	}
	out := make(Series, len(s), len(s)+extra)
	copy(out, s)
	return out
}

// Last returns the newest candle. The series must not be empty.
func (s Series) Last() Candle { return s[len(s)-1] }

// Closes returns the close column.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Tail returns at most the newest n candles without copying.
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}
