package features

import (
	"fmt"
	"math"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

// NumFeatures is the width of a derived feature row:
// open, high, low, close, volume, return.
const NumFeatures = 6

// CloseColumn is the index of close inside a derived row.
const CloseColumn = 3

// Matrix is the derived feature matrix of a series. Row i describes
// candle i+1 of the source series; the first candle has no return and is dropped.
type Matrix struct {
	Times []time.Time
	Rows  [][]float64
}

// Len returns the number of derived rows.
func (m *Matrix) Len() int { return len(m.Rows) }

// PctReturns computes close[t]/close[t-1]-1. The first element is NaN.
func PctReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

// DeriveRows builds the derived feature matrix. A non-finite value in any
// kept row (for example a return after a zero close) is a computation error.
func DeriveRows(s models.Series) (*Matrix, error) {
	if len(s) < 2 {
		return &Matrix{}, nil
	}
	returns := PctReturns(s.Closes())
	m := &Matrix{
		Times: make([]time.Time, 0, len(s)-1),
		Rows:  make([][]float64, 0, len(s)-1),
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		row := []float64{c.Open, c.High, c.Low, c.Close, c.Volume, returns[i]}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite feature at %s", models.ErrComputation, c.Time.UTC().Format(time.RFC3339))
			}
		}
		m.Times = append(m.Times, c.Time)
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}
