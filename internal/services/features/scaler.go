package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each column and divides it by its population
// standard deviation. Near-constant columns keep a scale of 1.
//
// The scaler is fit on whatever history is passed to the windowing call, so
// parameters move as new candles arrive. Models trained with a frozen scaler
// will see a slowly drifting input distribution at serving time.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitStandardScaler fits a scaler over rows (all of equal width).
func FitStandardScaler(rows [][]float64) *StandardScaler {
	if len(rows) == 0 {
		return &StandardScaler{}
	}
	width := len(rows[0])
	sc := &StandardScaler{Mean: make([]float64, width), Scale: make([]float64, width)}
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if std < 10*epsilon {
			std = 1
		}
		sc.Mean[j] = mean
		sc.Scale[j] = std
	}
	return sc
}

const epsilon = 2.220446049250313e-16

// Transform returns a scaled copy of row.
func (s *StandardScaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}
