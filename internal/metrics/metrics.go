// Package metrics instruments service operations with Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/voyago/tripledger/internal/errs"
)

// Metrics holds the engine's instrumentation. A nil *Metrics is valid and
// records nothing, so tests and embedded callers can skip registration.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New registers the engine metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripledger_operations_total",
			Help: "Budget service operations by outcome.",
		}, []string{"op", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripledger_operation_duration_seconds",
			Help:    "Budget service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// Observe records one completed operation. The status label is "ok" for
// success and the error kind otherwise.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		if kind := errs.KindOf(err); kind != 0 {
			status = kind.String()
		} else {
			status = "error"
		}
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
