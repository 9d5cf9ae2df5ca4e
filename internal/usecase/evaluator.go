package usecase

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/services/features"
)

// Evaluator replays every historical one-step window through the models
// and scores each prediction column against the realised close.
type Evaluator struct {
	models *domsvc.ModelSet
	seqLen int
}

func NewEvaluator(ms *domsvc.ModelSet, seqLen int) *Evaluator {
	return &Evaluator{models: ms, seqLen: seqLen}
}

// Evaluate returns the aligned evaluation series and per-column scores for
// lgbm, tcn, mean, wmean and stack. wmean weights the two base models by
// the inverse of their mean absolute error over the same series.
func (e *Evaluator) Evaluate(ctx context.Context, s models.Series) ([]models.EvalPoint, []models.ModelScore, error) {
	w, err := features.Make(s, e.seqLen, 1)
	if err != nil {
		return nil, nil, err
	}
	if w.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: %d candles give no window of %d", models.ErrInsufficientHistory, len(s), e.seqLen)
	}

	predA, err := e.models.Tabular.Predict(ctx, w.Tabular)
	if err != nil {
		return nil, nil, computeErr("tabular model", err)
	}
	predB, err := e.models.Sequence.PredictSequences(ctx, w.Sequence)
	if err != nil {
		return nil, nil, computeErr("sequence model", err)
	}
	if len(predA) != w.Len() || len(predB) != w.Len() {
		return nil, nil, fmt.Errorf("%w: %d windows but %d/%d predictions", models.ErrComputation, w.Len(), len(predA), len(predB))
	}
	pairs := make([][]float64, w.Len())
	for i := range pairs {
		pairs[i] = []float64{predA[i], predB[i]}
	}
	stack, err := e.models.Meta.Predict(ctx, pairs)
	if err != nil {
		return nil, nil, computeErr("meta model", err)
	}
	if len(stack) != w.Len() {
		return nil, nil, fmt.Errorf("%w: meta model returned %d predictions for %d pairs", models.ErrComputation, len(stack), w.Len())
	}

	wa := inverseErrorWeight(MAE(w.Labels, predA), MAE(w.Labels, predB))
	points := make([]models.EvalPoint, w.Len())
	mean := make([]float64, w.Len())
	wmean := make([]float64, w.Len())
	for i := range points {
		mean[i] = (predA[i] + predB[i]) / 2
		wmean[i] = wa*predA[i] + (1-wa)*predB[i]
		points[i] = models.EvalPoint{
			Time:   w.Times[i],
			YTrue:  w.Labels[i],
			YLGBM:  predA[i],
			YTCN:   predB[i],
			YMean:  mean[i],
			YWMean: wmean[i],
			YStack: stack[i],
		}
	}

	scores := []models.ModelScore{
		Score("lgbm", w.Labels, predA),
		Score("tcn", w.Labels, predB),
		Score("mean", w.Labels, mean),
		Score("wmean", w.Labels, wmean),
		Score("stack", w.Labels, stack),
	}
	return points, scores, nil
}

// inverseErrorWeight returns the weight of model A when A and B are
// weighted by 1/MAE.
func inverseErrorWeight(maeA, maeB float64) float64 {
	switch {
	case maeA == 0 && maeB == 0:
		return 0.5
	case maeA == 0:
		return 1
	case maeB == 0:
		return 0
	}
	ia, ib := 1/maeA, 1/maeB
	return ia / (ia + ib)
}

// MAE is the mean absolute error.
func MAE(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	sum := 0.0
	for i := range truth {
		sum += math.Abs(truth[i] - pred[i])
	}
	return sum / float64(len(truth))
}

// Score computes MAE, RMSE, MAPE (percent) and R2 of pred against truth.
func Score(name string, truth, pred []float64) models.ModelScore {
	sc := models.ModelScore{Model: name, MAE: MAE(truth, pred)}
	if len(truth) == 0 {
		return sc
	}
	var sq, pct float64
	var nPct int
	for i := range truth {
		d := truth[i] - pred[i]
		sq += d * d
		if truth[i] != 0 {
			pct += math.Abs(d / truth[i])
			nPct++
		}
	}
	sc.RMSE = math.Sqrt(sq / float64(len(truth)))
	if nPct > 0 {
		sc.MAPE = 100 * pct / float64(nPct)
	}
	sc.R2 = stat.RSquaredFrom(pred, truth, nil)
	return sc
}
