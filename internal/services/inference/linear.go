package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
)

// LinearRegressor is a fitted linear model: y = coef . x + intercept.
// It backs the stacking step that fuses the two base predictions.
type LinearRegressor struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// LoadLinearRegressor reads {"coef":[...],"intercept":x} from disk.
func LoadLinearRegressor(path string) (*LinearRegressor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read linear model: %w", err)
	}
	var lr LinearRegressor
	if err := json.Unmarshal(b, &lr); err != nil {
		return nil, fmt.Errorf("decode linear model: %w", err)
	}
	if len(lr.Coef) == 0 {
		return nil, fmt.Errorf("linear model has no coefficients")
	}
	return &lr, nil
}

func (lr *LinearRegressor) Predict(ctx context.Context, batch [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(batch))
	for i, x := range batch {
		if len(x) != len(lr.Coef) {
			return nil, fmt.Errorf("%w: linear model expects %d features, row %d has %d",
				models.ErrComputation, len(lr.Coef), i, len(x))
		}
		y := lr.Intercept
		for j, c := range lr.Coef {
			y += c * x[j]
		}
		out[i] = y
	}
	return out, nil
}

var _ domsvc.TabularRegressor = (*LinearRegressor)(nil)
