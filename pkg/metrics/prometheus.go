package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auto_eye"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	elementsActive *prometheus.GaugeVec
	elementsTotal  *prometheus.GaugeVec
	scenarios      *prometheus.CounterVec
	documentWrites *prometheus.CounterVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg, so tests can use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		elementsActive: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "elements_active",
				Help:      "Active elements per timeframe and kind after the last refresh",
			},
			[]string{"timeframe", "kind"},
		),
		elementsTotal: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "elements_total",
				Help:      "Stored elements per timeframe and kind after the last refresh",
			},
			[]string{"timeframe", "kind"},
		),
		scenarios: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scenarios_total",
				Help:      "Scenario transitions per symbol",
			},
			[]string{"symbol", "transition"},
		),
		documentWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_writes_total",
				Help:      "Document save attempts by result",
			},
			[]string{"document", "result"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordElements(timeframe, kind string, active, total int) {
	r.elementsActive.WithLabelValues(timeframe, kind).Set(float64(active))
	r.elementsTotal.WithLabelValues(timeframe, kind).Set(float64(total))
}

func (r *Recorder) RecordScenarios(symbol string, created, expired int) {
	if created > 0 {
		r.scenarios.WithLabelValues(symbol, "created").Add(float64(created))
	}
	if expired > 0 {
		r.scenarios.WithLabelValues(symbol, "expired").Add(float64(expired))
	}
}

func (r *Recorder) RecordDocumentWrite(doc string, written bool) {
	result := "unchanged"
	if written {
		result = "written"
	}
	r.documentWrites.WithLabelValues(doc, result).Inc()
}
