package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/util"
)

// EvalSeriesHeader is the column layout of the evaluation series file.
var EvalSeriesHeader = []string{"timestamp", "y_true", "y_lgbm", "y_tcn", "y_mean", "y_wmean", "y_stack"}

// MetricsColumns is the column layout written for the metrics file.
var MetricsColumns = []string{"MAE", "RMSE", "MAPE", "R2"}

// CSVReferenceStore holds the offline evaluation files, parsed once when the
// store is built. A missing or broken file fails only the matching reader.
type CSVReferenceStore struct {
	metrics    models.MetricsTable
	metricsErr error
	points     []models.EvalPoint
	evalErr    error
}

func NewCSVReferenceStore(metricsPath, evalPath string) *CSVReferenceStore {
	s := &CSVReferenceStore{}
	s.metrics, s.metricsErr = loadMetrics(metricsPath)
	s.points, s.evalErr = loadEvalSeries(evalPath)
	return s
}

// Metrics returns the table keyed by the first column of each row.
func (s *CSVReferenceStore) Metrics(ctx context.Context) (models.MetricsTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.metricsErr != nil {
		return nil, s.metricsErr
	}
	return s.metrics, nil
}

// EvalSeries returns the newest limit points sorted by time; limit <= 0 returns all.
func (s *CSVReferenceStore) EvalSeries(ctx context.Context, limit int) ([]models.EvalPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.evalErr != nil {
		return nil, s.evalErr
	}
	points := s.points
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	out := make([]models.EvalPoint, len(points))
	copy(out, points)
	return out, nil
}

func loadMetrics(path string) (models.MetricsTable, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no rows", models.ErrReferenceMissing, path)
	}
	header := records[0]
	table := make(models.MetricsTable, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		row := make(map[string]any, len(header)-1)
		for j := 1; j < len(header) && j < len(rec); j++ {
			row[header[j]] = cell(rec[j])
		}
		table[rec[0]] = row
	}
	return table, nil
}

func loadEvalSeries(path string) ([]models.EvalPoint, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: %s has no rows", models.ErrReferenceMissing, path)
	}
	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[strings.TrimSpace(name)] = i
	}
	width := 0
	for _, name := range EvalSeriesHeader {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s lacks column %q", models.ErrReferenceMissing, path, name)
		}
		width = max(width, i+1)
	}

	points := make([]models.EvalPoint, 0, len(records)-1)
	for line, rec := range records[1:] {
		if len(rec) < width {
			return nil, fmt.Errorf("%w: %s line %d: %d fields, need %d",
				models.ErrReferenceMissing, path, line+2, len(rec), width)
		}
		p, err := evalPoint(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", models.ErrReferenceMissing, path, line+2, err)
		}
		points = append(points, p)
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

func evalPoint(rec []string, idx map[string]int) (models.EvalPoint, error) {
	var p models.EvalPoint
	ts, ok := util.ParseTime(strings.TrimSpace(rec[idx["timestamp"]]))
	if !ok {
		return p, fmt.Errorf("bad timestamp %q", rec[idx["timestamp"]])
	}
	p.Time = ts
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"y_true", &p.YTrue},
		{"y_lgbm", &p.YLGBM},
		{"y_tcn", &p.YTCN},
		{"y_mean", &p.YMean},
		{"y_wmean", &p.YWMean},
		{"y_stack", &p.YStack},
	} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[f.name]]), 64)
		if err != nil {
			return p, fmt.Errorf("column %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

// cell keeps numbers numeric; empty cells become null.
func cell(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	return raw
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", models.ErrReferenceMissing, path)
		}
		return nil, fmt.Errorf("%w: %w", models.ErrReferenceMissing, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", models.ErrReferenceMissing, path, err)
	}
	return records, nil
}

// WriteEvalSeriesCSV writes points in the layout EvalSeries reads.
func WriteEvalSeriesCSV(w io.Writer, points []models.EvalPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EvalSeriesHeader); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{p.Time.UTC().Format(time.RFC3339)}
		for _, v := range []float64{p.YTrue, p.YLGBM, p.YTCN, p.YMean, p.YWMean, p.YStack} {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMetricsCSV writes one row per model with an unnamed index column.
func WriteMetricsCSV(w io.Writer, scores []models.ModelScore) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, MetricsColumns...)); err != nil {
		return err
	}
	for _, s := range scores {
		rec := []string{s.Model}
		for _, v := range []float64{s.MAE, s.RMSE, s.MAPE, s.R2} {
			rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var _ domrepo.ReferenceStore = (*CSVReferenceStore)(nil)
