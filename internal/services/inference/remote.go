package inference

import (
	"context"
	"fmt"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
)

// RemoteRegressor delegates prediction to a model server speaking
// {"model":name,"inputs":batch} -> {"predictions":[...]}.
type RemoteRegressor struct {
	name string
	base *HTTPServiceBase
}

func NewRemoteRegressor(name, url string, timeout time.Duration) *RemoteRegressor {
	return &RemoteRegressor{name: name, base: NewHTTPServiceBase(url, timeout)}
}

type predictRequest struct {
	Model  string      `json:"model"`
	Inputs interface{} `json:"inputs"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

func (r *RemoteRegressor) call(ctx context.Context, inputs interface{}, n int) ([]float64, error) {
	var resp predictResponse
	if err := r.base.PostJSON(ctx, predictRequest{Model: r.name, Inputs: inputs}, &resp); err != nil {
		return nil, fmt.Errorf("%w: remote %s: %w", models.ErrComputation, r.name, err)
	}
	if len(resp.Predictions) != n {
		return nil, fmt.Errorf("%w: remote %s returned %d predictions for %d inputs",
			models.ErrComputation, r.name, len(resp.Predictions), n)
	}
	return resp.Predictions, nil
}

func (r *RemoteRegressor) Predict(ctx context.Context, batch [][]float64) ([]float64, error) {
	return r.call(ctx, batch, len(batch))
}

func (r *RemoteRegressor) PredictSequences(ctx context.Context, batch [][][]float64) ([]float64, error) {
	return r.call(ctx, batch, len(batch))
}

var (
	_ domsvc.TabularRegressor  = (*RemoteRegressor)(nil)
	_ domsvc.SequenceRegressor = (*RemoteRegressor)(nil)
)
