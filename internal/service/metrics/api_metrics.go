package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forecaster",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecasting endpoints",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecaster",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by forecasting endpoint and error code",
		},
		[]string{"endpoint", "code"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forecaster",
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Forecast cache lookups by result",
		},
		[]string{"result"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, CacheLookups)
	})
}
