package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records forecasting metrics into Prometheus.
type Recorder struct {
	forecasts      *prometheus.CounterVec
	predictorSteps prometheus.Counter
	latency        *prometheus.HistogramVec
	registryPairs  *prometheus.GaugeVec
	cacheLookups   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a recorder registered into reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_forecasts_total",
				Help: "Forecast requests by kind, resolved artifact source and result",
			},
			[]string{"kind", "source", "result"},
		),
		predictorSteps: f.NewCounter(prometheus.CounterOpts{
			Name: "stockcast_predictor_steps_total",
			Help: "Single-step model invocations",
		}),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		registryPairs: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_registry_pairs",
				Help: "Model/scaler pairs in the current registry snapshot by state",
			},
			[]string{"state"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_cache_lookups_total",
				Help: "Cache lookups by namespace and outcome",
			},
			[]string{"namespace", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordForecast counts a forecast call. kind is "single" or "multi"; steps is the number of model invocations.
func (r *Recorder) RecordForecast(kind, source, result string, steps int) {
	r.forecasts.WithLabelValues(kind, source, result).Inc()
	if steps > 0 {
		r.predictorSteps.Add(float64(steps))
	}
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordRegistry publishes the pair counts of a freshly loaded snapshot.
func (r *Recorder) RecordRegistry(loaded, failed int, generic bool) {
	r.registryPairs.WithLabelValues("loaded").Set(float64(loaded))
	r.registryPairs.WithLabelValues("failed").Set(float64(failed))
	g := 0.0
	if generic {
		g = 1
	}
	r.registryPairs.WithLabelValues("generic").Set(g)
}

// RecordCache counts a cache hit or miss.
func (r *Recorder) RecordCache(namespace string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheLookups.WithLabelValues(namespace, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
