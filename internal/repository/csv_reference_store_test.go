package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestMetricsTable(t *testing.T) {
	p := writeFile(t, "metrics.csv", ",MAE,RMSE,note\nLightGBM,12.5,20.1,ok\nStacking,9.75,,best\n")
	store := NewCSVReferenceStore(p, "")

	table, err := store.Metrics(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, 12.5, table["LightGBM"]["MAE"])
	assert.Equal(t, "ok", table["LightGBM"]["note"])
	assert.Nil(t, table["Stacking"]["RMSE"])
}

func TestReferenceFilesMissing(t *testing.T) {
	store := NewCSVReferenceStore(filepath.Join(t.TempDir(), "nope.csv"), filepath.Join(t.TempDir(), "nope.csv"))
	_, err := store.Metrics(context.Background())
	assert.ErrorIs(t, err, models.ErrReferenceMissing)
	_, err = store.EvalSeries(context.Background(), 10)
	assert.ErrorIs(t, err, models.ErrReferenceMissing)

	empty := writeFile(t, "empty.csv", ",MAE\n")
	_, err = NewCSVReferenceStore(empty, "").Metrics(context.Background())
	assert.ErrorIs(t, err, models.ErrReferenceMissing)
}

func TestEvalSeriesSortedTail(t *testing.T) {
	content := "timestamp,y_true,y_lgbm,y_tcn,y_mean,y_wmean,y_stack\n" +
		"2025-01-01 02:00:00,3,3.1,2.9,3,3,3.05\n" +
		"2025-01-01 00:00:00,1,1.1,0.9,1,1,1.05\n" +
		"2025-01-01 01:00:00,2,2.1,1.9,2,2,2.05\n"
	store := NewCSVReferenceStore("", writeFile(t, "eval.csv", content))

	all, err := store.EvalSeries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 1.0, all[0].YTrue)
	assert.Equal(t, time.Date(2025, 1, 1, 2, 0, 0, 0, time.UTC), all[2].Time)

	tail, err := store.EvalSeries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, 2.0, tail[0].YTrue)
	assert.Equal(t, 3.05, tail[1].YStack)
}

func TestEvalSeriesMissingColumn(t *testing.T) {
	store := NewCSVReferenceStore("", writeFile(t, "eval.csv", "timestamp,y_true\n2025-01-01,1\n"))
	_, err := store.EvalSeries(context.Background(), 0)
	assert.ErrorIs(t, err, models.ErrReferenceMissing)
}

func TestWritersRoundTripThroughStore(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2025, 2, 1, 5, 0, 0, 0, time.UTC)

	var evalBuf, metricsBuf bytes.Buffer
	require.NoError(t, WriteEvalSeriesCSV(&evalBuf, []models.EvalPoint{{Time: ts, YTrue: 1, YLGBM: 2, YTCN: 3, YMean: 2.5, YWMean: 2.4, YStack: 1.2}}))
	require.NoError(t, WriteMetricsCSV(&metricsBuf, []models.ModelScore{{Model: "Stacking", MAE: 1.5, RMSE: 2, MAPE: 0.3, R2: 0.9}}))

	evalPath := filepath.Join(dir, "eval.csv")
	metricsPath := filepath.Join(dir, "metrics.csv")
	require.NoError(t, os.WriteFile(evalPath, evalBuf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(metricsPath, metricsBuf.Bytes(), 0o644))

	store := NewCSVReferenceStore(metricsPath, evalPath)
	pts, err := store.EvalSeries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, ts, pts[0].Time)
	assert.Equal(t, 1.2, pts[0].YStack)

	table, err := store.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.9, table["Stacking"]["R2"])
}

func TestEvalSeriesShortRow(t *testing.T) {
	content := "timestamp,y_true,y_lgbm,y_tcn,y_mean,y_wmean,y_stack\n" +
		"2025-01-01T00:00:00Z,1,2\n"
	store := NewCSVReferenceStore("", writeFile(t, "eval.csv", content))

	var err error
	require.NotPanics(t, func() { _, err = store.EvalSeries(context.Background(), 0) })
	assert.ErrorIs(t, err, models.ErrReferenceMissing)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReferenceFilesLoadedOnce(t *testing.T) {
	metricsPath := writeFile(t, "metrics.csv", ",MAE\nStacking,1.5\n")
	evalPath := writeFile(t, "eval.csv", "timestamp,y_true,y_lgbm,y_tcn,y_mean,y_wmean,y_stack\n"+
		"2025-01-01T00:00:00Z,1,1,1,1,1,1\n")
	store := NewCSVReferenceStore(metricsPath, evalPath)

	require.NoError(t, os.WriteFile(metricsPath, []byte(",MAE\nStacking,99\n"), 0o644))
	require.NoError(t, os.Remove(evalPath))

	table, err := store.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.5, table["Stacking"]["MAE"])
	pts, err := store.EvalSeries(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pts, 1)
}

func TestBrokenEvalFileKeepsMetrics(t *testing.T) {
	metricsPath := writeFile(t, "metrics.csv", ",MAE\nStacking,1.5\n")
	store := NewCSVReferenceStore(metricsPath, filepath.Join(t.TempDir(), "nope.csv"))

	_, err := store.Metrics(context.Background())
	require.NoError(t, err)
	_, err = store.EvalSeries(context.Background(), 0)
	assert.ErrorIs(t, err, models.ErrReferenceMissing)
}
