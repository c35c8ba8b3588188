// Package metrics exposes ledger counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "loan_ledger"

// Recorder collects ledger operation metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations         *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	paymentsAmount     prometheus.Counter
	penaltiesAmount    prometheus.Counter
	overdueTransitions prometheus.Counter
	eventPublishErrors prometheus.Counter
}

// New builds a Recorder on its own registry, with the Go and process
// collectors attached.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations by name and result.",
		}, []string{"operation", "result"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including the database transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		paymentsAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_total",
			Help:      "Sum of recorded payment amounts.",
		}),
		penaltiesAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "penalties_amount_total",
			Help:      "Sum of late penalties charged.",
		}),
		overdueTransitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overdue_transitions_total",
			Help:      "Loans moved from active to overdue.",
		}),
		eventPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_errors_total",
			Help:      "Ledger events that could not be published after commit.",
		}),
	}
}

// Observe records one finished operation.
func (r *Recorder) Observe(operation string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (r *Recorder) PaymentRecorded(amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.paymentsAmount.Add(amount.InexactFloat64())
}

func (r *Recorder) PenaltyCharged(amount decimal.Decimal) {
	if r == nil {
		return
	}
	r.penaltiesAmount.Add(amount.InexactFloat64())
}

func (r *Recorder) LoanOverdue() {
	if r == nil {
		return
	}
	r.overdueTransitions.Inc()
}

func (r *Recorder) PublishFailed(count int) {
	if r == nil {
		return
	}
	r.eventPublishErrors.Add(float64(count))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
