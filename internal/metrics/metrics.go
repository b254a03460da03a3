package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkout"

// Outcome label values for reconciliation counters.
const (
	OutcomePaid      = "paid"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})

	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// PaymentMetrics counts how external payment signals were reconciled.
type PaymentMetrics struct {
	MarkPaid           *prometheus.CounterVec
	Webhooks           *prometheus.CounterVec
	PostCommitFailures *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	markPaid := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payment",
		Name:      "mark_paid_total",
		Help:      "Paid transitions attempted, by source and outcome.",
	}, []string{"source", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payment",
		Name:      "webhook_events_total",
		Help:      "Card processor webhook deliveries, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	postCommit := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payment",
		Name:      "post_commit_failures_total",
		Help:      "Failed best-effort tasks run after a payment commits.",
	}, []string{"task"})

	reg.MustRegister(markPaid, webhooks, postCommit)
	return &PaymentMetrics{MarkPaid: markPaid, Webhooks: webhooks, PostCommitFailures: postCommit}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
