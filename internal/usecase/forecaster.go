package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/services/features"
)

// CandleSynthesizer builds the candle appended after a recursive step.
type CandleSynthesizer interface {
	Next(last models.Candle, step time.Duration, predictedClose float64) models.Candle
}

// CarryForward copies open, high, low and volume from the previous candle
// and sets close to the prediction. Only close is propagated, so multi-step
// paths understate volatility.
type CarryForward struct{}

func (CarryForward) Next(last models.Candle, step time.Duration, predictedClose float64) models.Candle {
	next := last
	next.Time = last.Time.Add(step)
	next.Close = predictedClose
	return next
}

// Forecaster runs the windowing, dual inference and stacking pipeline and
// feeds its output back for multi-step forecasts. It holds no per-call
// state and is safe for concurrent use.
type Forecaster struct {
	models      *domsvc.ModelSet
	seqLen      int
	timeframe   domrepo.Timeframe
	step        time.Duration
	candleHours float64
	synth       CandleSynthesizer
}

// ForecasterOption configures a Forecaster.
type ForecasterOption func(*Forecaster)

// WithSynthesizer replaces the carry-forward candle policy.
func WithSynthesizer(s CandleSynthesizer) ForecasterOption {
	return func(f *Forecaster) { f.synth = s }
}

func NewForecaster(ms *domsvc.ModelSet, seqLen int, tf domrepo.Timeframe, opts ...ForecasterOption) (*Forecaster, error) {
	if ms == nil {
		return nil, fmt.Errorf("model set is required")
	}
	if seqLen <= 0 {
		return nil, fmt.Errorf("seq_len must be positive, got %d", seqLen)
	}
	hours, err := tf.Hours()
	if err != nil {
		return nil, err
	}
	step, _ := tf.Duration()
	f := &Forecaster{
		models:      ms,
		seqLen:      seqLen,
		timeframe:   tf,
		step:        step,
		candleHours: hours,
		synth:       CarryForward{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SeqLen returns the window length.
func (f *Forecaster) SeqLen() int { return f.seqLen }

// Timeframe returns the native candle timeframe.
func (f *Forecaster) Timeframe() domrepo.Timeframe { return f.timeframe }

// NextStep predicts the close that follows the newest candle of s.
func (f *Forecaster) NextStep(ctx context.Context, s models.Series) (models.StepForecast, error) {
	var out models.StepForecast
	w, err := features.Latest(s, f.seqLen)
	if err != nil {
		return out, err
	}

	predA, err := f.models.Tabular.Predict(ctx, [][]float64{w.Tabular})
	if err != nil {
		return out, computeErr("tabular model", err)
	}
	predB, err := f.models.Sequence.PredictSequences(ctx, [][][]float64{w.Sequence})
	if err != nil {
		return out, computeErr("sequence model", err)
	}
	if len(predA) != 1 || len(predB) != 1 {
		return out, fmt.Errorf("%w: base models returned %d and %d predictions for one window",
			models.ErrComputation, len(predA), len(predB))
	}
	fused, err := f.models.Meta.Predict(ctx, [][]float64{{predA[0], predB[0]}})
	if err != nil {
		return out, computeErr("meta model", err)
	}
	if len(fused) != 1 || math.IsNaN(fused[0]) || math.IsInf(fused[0], 0) {
		return out, fmt.Errorf("%w: meta model returned %v", models.ErrComputation, fused)
	}

	out.Time = s.Last().Time.Add(f.step)
	out.PredA = predA[0]
	out.PredB = predB[0]
	out.Fused = fused[0]
	return out, nil
}

// MultiStep forecasts steps candles ahead. Each fused prediction becomes
// the close of a synthesized candle appended to a private copy of s, which
// is returned alongside the per-step forecasts. s itself is not modified.
func (f *Forecaster) MultiStep(ctx context.Context, s models.Series, steps int) ([]models.StepForecast, models.Series, error) {
	if steps <= 0 {
		return nil, nil, fmt.Errorf("%w: steps must be positive, got %d", models.ErrMalformedInput, steps)
	}
	if len(s) == 0 {
		return nil, nil, fmt.Errorf("%w: empty series", models.ErrInsufficientHistory)
	}
	work := s.Clone(steps)
	out := make([]models.StepForecast, 0, steps)
	for k := 0; k < steps; k++ {
		sf, err := f.NextStep(ctx, work)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d/%d: %w", k+1, steps, err)
		}
		out = append(out, sf)
		work = append(work, f.synth.Next(work.Last(), f.step, sf.Fused))
	}
	return out, work, nil
}

func computeErr(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrComputation, stage, err)
}
