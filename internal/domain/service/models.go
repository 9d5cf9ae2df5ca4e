package service

import (
	"context"
	"errors"
)

// TabularRegressor predicts one value per flattened feature vector.
type TabularRegressor interface {
	Predict(ctx context.Context, batch [][]float64) ([]float64, error)
}

// SequenceRegressor predicts one value per window of time steps x features.
type SequenceRegressor interface {
	PredictSequences(ctx context.Context, batch [][][]float64) ([]float64, error)
}

// ModelSet bundles the pretrained models loaded at startup.
// It is read-only after construction and shared by all requests.
type ModelSet struct {
	Tabular  TabularRegressor
	Sequence SequenceRegressor
	Meta     TabularRegressor
}

// NewModelSet validates that every model is present.
func NewModelSet(tab TabularRegressor, seq SequenceRegressor, meta TabularRegressor) (*ModelSet, error) {
	if tab == nil || seq == nil || meta == nil {
		return nil, errors.New("model set requires tabular, sequence and meta models")
	}
	return &ModelSet{Tabular: tab, Sequence: seq, Meta: meta}, nil
}
