package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus collectors for ingestion, inference and forecasting.
type Metrics struct {
	IngestionRuns     *prometheus.CounterVec // labels: outcome={success,error}
	IngestionDuration prometheus.Histogram
	RecordsStored     prometheus.Counter

	InferenceRequests *prometheus.CounterVec   // labels: model={occurrence,severity}, outcome={success,error}
	InferenceDuration *prometheus.HistogramVec // labels: model

	Forecasts *prometheus.CounterVec // labels: outcome={success,not_found,error}

	HistoricalCache *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		IngestionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought",
			Name:      "ingestion_runs_total",
			Help:      "Ingestion pipeline runs by outcome.",
		}, []string{"outcome"}),
		IngestionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drought",
			Name:      "ingestion_duration_seconds",
			Help:      "Duration of a complete ingestion run.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drought",
			Name:      "records_stored_total",
			Help:      "Weather records persisted.",
		}),
		InferenceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought",
			Name:      "inference_requests_total",
			Help:      "Model inference calls by model and outcome.",
		}, []string{"model", "outcome"}),
		InferenceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drought",
			Name:      "inference_duration_seconds",
			Help:      "Model inference latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"model"}),
		Forecasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought",
			Name:      "forecasts_total",
			Help:      "Forecast requests by outcome.",
		}, []string{"outcome"}),
		HistoricalCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought",
			Name:      "historical_cache_total",
			Help:      "Historical rainfall cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.IngestionRuns,
		m.IngestionDuration,
		m.RecordsStored,
		m.InferenceRequests,
		m.InferenceDuration,
		m.Forecasts,
		m.HistoricalCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build as many as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// CounterValue reads the current value of c.
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
