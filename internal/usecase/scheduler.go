package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

// StepsForHorizon converts a horizon in hours into recursive steps of
// candleHours each. Halves round to the even neighbour (4h candles, 10h
// horizon -> 2 steps) and the result is never below one.
func StepsForHorizon(hours, candleHours float64) int {
	steps := int(math.RoundToEven(hours / candleHours))
	if steps < 1 {
		return 1
	}
	return steps
}

// StepsFor converts a horizon using the forecaster's timeframe.
func (f *Forecaster) StepsFor(hours int) int {
	return StepsForHorizon(float64(hours), f.candleHours)
}

// ForecastHorizons returns the terminal fused prediction for each horizon.
// Every horizon runs its own recursion from s unless reuse is set, in which
// case one recursion to the longest horizon serves all of them; both give
// the same numbers since each step only depends on the steps before it.
// All horizons are attempted; if any fails no result is returned.
func (f *Forecaster) ForecastHorizons(ctx context.Context, s models.Series, hours []int, reuse bool) ([]models.HorizonResult, error) {
	if len(hours) == 0 {
		return nil, fmt.Errorf("%w: no horizons requested", models.ErrMalformedInput)
	}
	out := make([]models.HorizonResult, len(hours))
	for i, h := range hours {
		if h <= 0 {
			return nil, fmt.Errorf("%w: horizon must be positive, got %d", models.ErrMalformedInput, h)
		}
		out[i] = models.HorizonResult{RequestedHours: h, StepsUsed: f.StepsFor(h)}
	}

	if reuse {
		maxSteps := 0
		for _, r := range out {
			maxSteps = max(maxSteps, r.StepsUsed)
		}
		path, _, err := f.MultiStep(ctx, s, maxSteps)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Prediction = path[out[i].StepsUsed-1].Fused
		}
		return out, nil
	}

	var errs []error
	for i := range out {
		path, _, err := f.MultiStep(ctx, s, out[i].StepsUsed)
		if err != nil {
			errs = append(errs, fmt.Errorf("horizon %dh: %w", out[i].RequestedHours, err))
			continue
		}
		out[i].Prediction = path[len(path)-1].Fused
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
