// Command evaluate replays recent history through the models and writes the
// metrics table and evaluation series served by the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/di"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	internalrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/repository"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/usecase"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/config"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	days := flag.Int("days", 90, "days of history to replay")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	l, err := xlogger.New(&xlogger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *days, l); err != nil {
		l.Error("evaluation failed", xlogger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, days int, l *xlogger.Logger) error {
	tf := domrepo.Timeframe(cfg.Forecast.Timeframe)
	n, err := usecase.CandlesForDays(days, tf)
	if err != nil {
		return err
	}

	ch, closeCH, err := di.ProvideClickHouseClient(cfg)
	if err != nil {
		return err
	}
	defer closeCH()
	source, err := di.ProvideRESTSource(cfg, ch, l)
	if err != nil {
		return err
	}
	ms, err := di.ProvideModelSet(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	series, err := source.FetchRecentCandles(ctx, cfg.Forecast.Symbol, tf, n+cfg.Forecast.SeqLen)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	l.Info("history fetched", xlogger.Int("candles", len(series)), xlogger.Duration("took", time.Since(start)))

	points, scores, err := usecase.NewEvaluator(ms, cfg.Forecast.SeqLen).Evaluate(ctx, series)
	if err != nil {
		return err
	}
	for _, s := range scores {
		l.Info("model score",
			xlogger.String("model", s.Model),
			xlogger.Float64("mae", s.MAE),
			xlogger.Float64("rmse", s.RMSE),
			xlogger.Float64("mape", s.MAPE),
			xlogger.Float64("r2", s.R2))
	}

	if err := writeFile(cfg.Reference.EvalSeriesPath, func(f *os.File) error {
		return internalrepo.WriteEvalSeriesCSV(f, points)
	}); err != nil {
		return err
	}
	if err := writeFile(cfg.Reference.MetricsPath, func(f *os.File) error {
		return internalrepo.WriteMetricsCSV(f, scores)
	}); err != nil {
		return err
	}
	l.Info("reference files written",
		xlogger.String("metrics", cfg.Reference.MetricsPath),
		xlogger.String("eval_series", cfg.Reference.EvalSeriesPath),
		xlogger.Int("points", len(points)))
	return nil
}

// writeFile writes through a temp file so the API never reads a partial file.
func writeFile(path string, write func(f *os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
