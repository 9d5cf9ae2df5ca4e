package models

import "time"

// MetricsTable is the offline evaluation table keyed by row label then column.
// Cells that parse as numbers are float64, the rest stay strings.
type MetricsTable map[string]map[string]any

// EvalPoint is one row of the actual-vs-predicted evaluation series.
type EvalPoint struct {
	Time   time.Time
	YTrue  float64
	YLGBM  float64
	YTCN   float64
	YMean  float64
	YWMean float64
	YStack float64
}

// ModelScore aggregates evaluation metrics for one prediction column.
type ModelScore struct {
	Model string
	MAE   float64
	RMSE  float64
	MAPE  float64
	R2    float64
}
