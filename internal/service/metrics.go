package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	FinesIssued        prometheus.Counter
	FinesPaid          prometheus.Counter
	FineAmounts        *prometheus.CounterVec
	MutationsTotal     *prometheus.CounterVec
	MutationErrors     *prometheus.CounterVec
	MutationDuration   *prometheus.HistogramVec
	BalanceDriftChecks *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		FinesIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fines_issued_total",
				Help: "Total fines issued.",
			},
		),
		FinesPaid: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fines_paid_total",
				Help: "Total fines marked paid.",
			},
		),
		FineAmounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fines_amount_minor_total",
				Help: "Sum of fine amounts in minor units, by transition.",
			},
			[]string{"transition"},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fines_mutations_total",
				Help: "Total audited mutations.",
			},
			[]string{"entity", "action"},
		),
		MutationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fines_mutation_errors_total",
				Help: "Total failed operations by error code.",
			},
			[]string{"operation", "code"},
		),
		MutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fines_operation_duration_seconds",
				Help:    "Operation duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		BalanceDriftChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fines_balance_checks_total",
				Help: "Total balance verifications.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.FinesIssued,
		m.FinesPaid,
		m.FineAmounts,
		m.MutationsTotal,
		m.MutationErrors,
		m.MutationDuration,
		m.BalanceDriftChecks,
	)
	return m
}

func (m *Metrics) ObserveIssued(amount int64) {
	if m == nil {
		return
	}
	m.FinesIssued.Inc()
	m.FineAmounts.WithLabelValues("issued").Add(float64(amount))
}

func (m *Metrics) ObservePaid(amount int64) {
	if m == nil {
		return
	}
	m.FinesPaid.Inc()
	m.FineAmounts.WithLabelValues("paid").Add(float64(amount))
}

func (m *Metrics) IncMutation(entity, action string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(entity, action).Inc()
}

func (m *Metrics) IncError(operation, code string) {
	if m == nil {
		return
	}
	m.MutationErrors.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) ObserveDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MutationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) IncBalanceCheck(drifted bool) {
	if m == nil {
		return
	}
	result := "ok"
	if drifted {
		result = "drift"
	}
	m.BalanceDriftChecks.WithLabelValues(result).Inc()
}
