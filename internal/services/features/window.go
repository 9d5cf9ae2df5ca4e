package features

import (
	"fmt"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

// Windows holds every supervised example of a series in both forms.
// All slices are aligned by position.
type Windows struct {
	Tabular  [][]float64   // seq_len*NumFeatures, time-major
	Sequence [][][]float64 // seq_len x NumFeatures, standardized
	Labels   []float64     // unscaled close horizon steps after the window
	Times    []time.Time   // timestamp of the labelled row
}

// Len returns the number of examples.
func (w *Windows) Len() int { return len(w.Labels) }

// Window is a single example used at inference time.
type Window struct {
	Tabular  []float64
	Sequence [][]float64
	End      time.Time // timestamp of the newest row in the window
}

func checkParams(seqLen, horizon int) error {
	if seqLen <= 0 {
		return fmt.Errorf("%w: seq_len must be positive, got %d", models.ErrComputation, seqLen)
	}
	if horizon < 0 {
		return fmt.Errorf("%w: horizon must not be negative, got %d", models.ErrComputation, horizon)
	}
	return nil
}

// Make builds all windows of seqLen derived rows whose label lies horizon
// steps after the window. Window i covers rows [i-seqLen, i) and is labelled
// with the close of row i+horizon-1, for i in [seqLen, N-horizon].
// Too little history yields an empty set, not an error.
func Make(s models.Series, seqLen, horizon int) (*Windows, error) {
	if err := checkParams(seqLen, horizon); err != nil {
		return nil, err
	}
	m, err := DeriveRows(s)
	if err != nil {
		return nil, err
	}
	n := m.Len()
	w := &Windows{}
	if n-horizon < seqLen {
		return w, nil
	}

	scaler := FitStandardScaler(m.Rows)
	scaled := make([][]float64, n)
	for i, r := range m.Rows {
		scaled[i] = scaler.Transform(r)
	}

	count := n - horizon - seqLen + 1
	w.Tabular = make([][]float64, 0, count)
	w.Sequence = make([][][]float64, 0, count)
	w.Labels = make([]float64, 0, count)
	w.Times = make([]time.Time, 0, count)
	for i := seqLen; i <= n-horizon; i++ {
		w.Tabular = append(w.Tabular, flatten(m.Rows[i-seqLen:i]))
		w.Sequence = append(w.Sequence, scaled[i-seqLen:i])
		label := i + horizon - 1
		w.Labels = append(w.Labels, m.Rows[label][CloseColumn])
		w.Times = append(w.Times, m.Times[label])
	}
	return w, nil
}

// Latest returns the window made of the newest seqLen derived rows, with the
// scaler fit over the whole derived matrix. It equals the last example of
// Make(s, seqLen, 0) without building the others.
//
// The newest row is always included, so this is not the last training
// window: the last example of Make(s, seqLen, 1) stops one row earlier
// because its label is the newest close.
func Latest(s models.Series, seqLen int) (*Window, error) {
	if err := checkParams(seqLen, 0); err != nil {
		return nil, err
	}
	m, err := DeriveRows(s)
	if err != nil {
		return nil, err
	}
	n := m.Len()
	if n < seqLen {
		return nil, fmt.Errorf("%w: %d derived rows, window needs %d", models.ErrInsufficientHistory, n, seqLen)
	}
	rows := m.Rows[n-seqLen:]
	scaler := FitStandardScaler(m.Rows)
	seq := make([][]float64, len(rows))
	for i, r := range rows {
		seq[i] = scaler.Transform(r)
	}
	return &Window{Tabular: flatten(rows), Sequence: seq, End: m.Times[n-1]}, nil
}

func flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, len(rows)*NumFeatures)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
