package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	passesTotal   *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	ticksIngested *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		passesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptofactors_processing_passes_total",
				Help: "Total number of processing stage runs",
			},
			[]string{"stage", "status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptofactors_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptofactors_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ticksIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptofactors_ticks_ingested_total",
				Help: "Total number of price ticks ingested",
			},
			[]string{"symbol"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cryptofactors_date_queue_depth",
				Help: "Number of dates waiting to be processed",
			},
		),
	}
}

// RecordPass records a processing stage run with its status.
func (r *Recorder) RecordPass(stage, status string) {
	r.passesTotal.WithLabelValues(stage, status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTicksIngested records ticks accepted for a symbol.
func (r *Recorder) RecordTicksIngested(symbol string, n int) {
	r.ticksIngested.WithLabelValues(symbol).Add(float64(n))
}

// SetQueueDepth sets the pending date queue depth.
func (r *Recorder) SetQueueDepth(n int) {
	r.queueDepth.Set(float64(n))
}
