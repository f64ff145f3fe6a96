// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escrow_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_agreement_transitions_total",
		Help: "Agreement status transitions.",
	}, []string{"from", "to"})

	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_reconcile_runs_total",
		Help: "Completed reconciliation passes.",
	})

	// outcome: released, released_out_of_band, not_matured, failed, skipped_locked
	ReconcileInstallments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_reconcile_installments_total",
		Help: "Installments examined by the reconciliation loop, by outcome.",
	}, []string{"outcome"})

	// outcome: applied, duplicate, ignored, not_repaying, party_mismatch, failed
	RepaymentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escrow_repayment_events_total",
		Help: "Ledger payment events seen by the repayment listener, by outcome.",
	}, []string{"outcome"})

	ListenerSubscriptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escrow_listener_subscriptions_total",
		Help: "Payment subscriptions opened, including reconnects.",
	})

	WatchedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "escrow_listener_watched_accounts",
		Help: "Student accounts currently watched for repayments.",
	})
)
