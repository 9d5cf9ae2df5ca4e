package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
)

// Recorder implements the domain Metrics port on Prometheus.
type Recorder struct {
	forecasts *prometheus.CounterVec
	horizons  prometheus.Counter
	errors    *prometheus.CounterVec
	lastPrice *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
	steps     prometheus.Histogram
}

// New registers the forecasting metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forecaster_forecasts_total",
			Help: "Forecast requests served",
		}, []string{"symbol"}),
		horizons: f.NewCounter(prometheus.CounterOpts{
			Name: "forecaster_horizons_total",
			Help: "Horizons forecast across all requests",
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forecaster_errors_total",
			Help: "Errors by kind",
		}, []string{"kind"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "forecaster_last_close",
			Help: "Last observed close per symbol",
		}, []string{"symbol"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forecaster_latency_seconds",
			Help:    "Latency per operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		steps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "forecaster_recursive_steps",
			Help:    "Recursive steps run per horizon",
			Buckets: []float64{1, 2, 4, 8, 16, 24, 48, 72, 168, 336, 720},
		}),
	}
}

func (r *Recorder) RecordForecast(symbol string, horizons int) {
	r.forecasts.WithLabelValues(symbol).Inc()
	r.horizons.Add(float64(horizons))
}

func (r *Recorder) RecordError(kind string) { r.errors.WithLabelValues(kind).Inc() }

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordSteps(steps int) { r.steps.Observe(float64(steps)) }

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordForecast(string, int)      {}
func (Nop) RecordError(string)              {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64)   {}
func (Nop) RecordSteps(int)                 {}

var (
	_ domrepo.Metrics = (*Recorder)(nil)
	_ domrepo.Metrics = Nop{}
)
