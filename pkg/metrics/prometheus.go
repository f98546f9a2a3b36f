package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	eventsApplied   *prometheus.CounterVec
	eventsDiscarded *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	openPositions   prometheus.Gauge
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		eventsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedeck_events_applied_total",
				Help: "Total number of push events applied to the store",
			},
			[]string{"type"},
		),
		eventsDiscarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedeck_events_discarded_total",
				Help: "Total number of push events discarded and why",
			},
			[]string{"type", "reason"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedeck_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradedeck_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		openPositions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradedeck_open_positions",
				Help: "Number of open positions in the store",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradedeck_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordEventApplied records a push event applied to the store.
func (r *Recorder) RecordEventApplied(eventType string) {
	r.eventsApplied.WithLabelValues(eventType).Inc()
}

// RecordEventDiscarded records a push event discarded with the reason.
func (r *Recorder) RecordEventDiscarded(eventType, reason string) {
	r.eventsDiscarded.WithLabelValues(eventType, reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordOpenPositions records the open position count.
func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
