package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
)

// GRURegressor runs stacked GRU layers over a window and maps the final
// hidden state through dense layers to one value. Weights follow the Keras
// layout: kernel is input x 3*units and recurrent kernel units x 3*units,
// with gates ordered update, reset, candidate.
type GRURegressor struct {
	inputSize int
	layers    []gruLayer
	dense     []denseLayer
}

type gruLayer struct {
	units      int
	kernel     *mat.Dense // input x 3u
	recurrent  *mat.Dense // u x 3u
	inBias     *mat.VecDense
	recBias    *mat.VecDense
	resetAfter bool
}

type denseLayer struct {
	weights    *mat.Dense // in x out
	bias       *mat.VecDense
	activation func(float64) float64
}

type gruFile struct {
	InputSize int `json:"input_size"`
	Layers    []struct {
		Units           int         `json:"units"`
		Kernel          [][]float64 `json:"kernel"`
		RecurrentKernel [][]float64 `json:"recurrent_kernel"`
		Bias            [][]float64 `json:"bias"`
		ResetAfter      *bool       `json:"reset_after"`
	} `json:"layers"`
	Dense []struct {
		Weights    [][]float64 `json:"weights"`
		Bias       []float64   `json:"bias"`
		Activation string      `json:"activation"`
	} `json:"dense"`
}

// LoadGRURegressor reads GRU weights from a JSON file.
func LoadGRURegressor(path string) (*GRURegressor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence model: %w", err)
	}
	return ParseGRURegressor(b)
}

// ParseGRURegressor decodes and shape-checks GRU weights.
func ParseGRURegressor(b []byte) (*GRURegressor, error) {
	var f gruFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode sequence model: %w", err)
	}
	if len(f.Layers) == 0 {
		return nil, fmt.Errorf("sequence model has no recurrent layers")
	}
	if f.InputSize <= 0 {
		return nil, fmt.Errorf("sequence model input_size must be positive")
	}
	g := &GRURegressor{inputSize: f.InputSize}
	in := f.InputSize
	for i, l := range f.Layers {
		u := l.Units
		if u <= 0 {
			return nil, fmt.Errorf("layer %d: units must be positive", i)
		}
		kernel, err := denseFrom(l.Kernel, in, 3*u)
		if err != nil {
			return nil, fmt.Errorf("layer %d kernel: %w", i, err)
		}
		rec, err := denseFrom(l.RecurrentKernel, u, 3*u)
		if err != nil {
			return nil, fmt.Errorf("layer %d recurrent kernel: %w", i, err)
		}
		layer := gruLayer{units: u, kernel: kernel, recurrent: rec, resetAfter: l.ResetAfter == nil || *l.ResetAfter}
		switch len(l.Bias) {
		case 1:
			layer.inBias = vecFrom(l.Bias[0], 3*u)
			layer.recBias = mat.NewVecDense(3*u, nil)
		case 2:
			layer.inBias = vecFrom(l.Bias[0], 3*u)
			layer.recBias = vecFrom(l.Bias[1], 3*u)
		default:
			return nil, fmt.Errorf("layer %d: bias must have 1 or 2 rows, got %d", i, len(l.Bias))
		}
		if layer.inBias == nil || layer.recBias == nil {
			return nil, fmt.Errorf("layer %d: bias width must be %d", i, 3*u)
		}
		g.layers = append(g.layers, layer)
		in = u
	}
	for i, d := range f.Dense {
		if len(d.Weights) != in || len(d.Weights[0]) == 0 {
			return nil, fmt.Errorf("dense %d: weights must have %d rows", i, in)
		}
		out := len(d.Weights[0])
		w, err := denseFrom(d.Weights, in, out)
		if err != nil {
			return nil, fmt.Errorf("dense %d: %w", i, err)
		}
		bias := vecFrom(d.Bias, out)
		if bias == nil {
			return nil, fmt.Errorf("dense %d: bias width must be %d", i, out)
		}
		act, err := activation(d.Activation)
		if err != nil {
			return nil, fmt.Errorf("dense %d: %w", i, err)
		}
		g.dense = append(g.dense, denseLayer{weights: w, bias: bias, activation: act})
		in = out
	}
	if in != 1 {
		return nil, fmt.Errorf("sequence model output width is %d, want 1", in)
	}
	return g, nil
}

func denseFrom(rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("want %d rows, got %d", r, len(rows))
	}
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("row %d: want %d columns, got %d", i, c, len(row))
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}

func vecFrom(v []float64, n int) *mat.VecDense {
	if len(v) != n {
		return nil
	}
	return mat.NewVecDense(n, append([]float64(nil), v...))
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func activation(name string) (func(float64) float64, error) {
	switch name {
	case "", "linear":
		return func(x float64) float64 { return x }, nil
	case "relu":
		return func(x float64) float64 { return math.Max(0, x) }, nil
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return sigmoid, nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}

// step advances the hidden state h by one input x. Nothing is shared
// between calls so concurrent predictions are safe.
func (l *gruLayer) step(x, h *mat.VecDense) *mat.VecDense {
	u := l.units
	xg := mat.NewVecDense(3*u, nil)
	xg.MulVec(l.kernel.T(), x)
	xg.AddVec(xg, l.inBias)

	hg := mat.NewVecDense(3*u, nil)
	hg.MulVec(l.recurrent.T(), h)
	hg.AddVec(hg, l.recBias)

	z := make([]float64, u)
	r := make([]float64, u)
	for j := 0; j < u; j++ {
		z[j] = sigmoid(xg.AtVec(j) + hg.AtVec(j))
		r[j] = sigmoid(xg.AtVec(u+j) + hg.AtVec(u+j))
	}

	var cand []float64
	if l.resetAfter {
		cand = make([]float64, u)
		for j := 0; j < u; j++ {
			cand[j] = math.Tanh(xg.AtVec(2*u+j) + r[j]*hg.AtVec(2*u+j))
		}
	} else {
		rh := mat.NewVecDense(u, nil)
		for j := 0; j < u; j++ {
			rh.SetVec(j, r[j]*h.AtVec(j))
		}
		uh := l.recurrent.Slice(0, u, 2*u, 3*u)
		rec := mat.NewVecDense(u, nil)
		rec.MulVec(uh.T(), rh)
		cand = make([]float64, u)
		for j := 0; j < u; j++ {
			cand[j] = math.Tanh(xg.AtVec(2*u+j) + rec.AtVec(j) + l.recBias.AtVec(2*u+j))
		}
	}

	next := mat.NewVecDense(u, nil)
	for j := 0; j < u; j++ {
		next.SetVec(j, z[j]*h.AtVec(j)+(1-z[j])*cand[j])
	}
	return next
}

func (g *GRURegressor) predictOne(window [][]float64) (float64, error) {
	if len(window) == 0 {
		return 0, fmt.Errorf("%w: empty window", models.ErrComputation)
	}
	inputs := make([]*mat.VecDense, len(window))
	for t, row := range window {
		if len(row) != g.inputSize {
			return 0, fmt.Errorf("%w: sequence model expects %d features, step %d has %d",
				models.ErrComputation, g.inputSize, t, len(row))
		}
		inputs[t] = mat.NewVecDense(len(row), append([]float64(nil), row...))
	}
	for _, l := range g.layers {
		h := mat.NewVecDense(l.units, nil)
		outputs := make([]*mat.VecDense, len(inputs))
		for t, x := range inputs {
			h = l.step(x, h)
			outputs[t] = h
		}
		inputs = outputs
	}
	v := inputs[len(inputs)-1]
	for _, d := range g.dense {
		_, out := d.weights.Dims()
		next := mat.NewVecDense(out, nil)
		next.MulVec(d.weights.T(), v)
		next.AddVec(next, d.bias)
		for j := 0; j < out; j++ {
			next.SetVec(j, d.activation(next.AtVec(j)))
		}
		v = next
	}
	y := v.AtVec(0)
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("%w: sequence model produced %v", models.ErrComputation, y)
	}
	return y, nil
}

// PredictSequences returns one prediction per window.
func (g *GRURegressor) PredictSequences(ctx context.Context, batch [][][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, w := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		y, err := g.predictOne(w)
		if err != nil {
			return nil, err
		}
		out[i] = y
	}
	return out, nil
}

var _ domsvc.SequenceRegressor = (*GRURegressor)(nil)
