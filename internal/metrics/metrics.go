// Package metrics exposes Prometheus collectors for settlement and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Settlement outcomes.
const (
	OutcomeSettled  = "settled"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

type Metrics struct {
	Settlements      *prometheus.CounterVec
	SettleDuration   prometheus.Histogram
	SettleRetries    prometheus.Counter
	SettledCents     *prometheus.CounterVec
	PublishErrors    prometheus.Counter
	ReceiptsRendered *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_settlements_total",
			Help: "Settlement attempts by final outcome",
		}, []string{"outcome"}),
		SettleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_settle_duration_seconds",
			Help:    "Time from confirm request to outcome",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		}),
		SettleRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "pos_settle_retries_total",
			Help: "Reserve/commit attempts repeated after a concurrency error",
		}),
		SettledCents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_settled_amount_cents_total",
			Help: "Settled amount in centavos by payment method",
		}, []string{"payment_method"}),
		PublishErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "pos_event_publish_errors_total",
			Help: "Settlement events that could not be published",
		}),
		ReceiptsRendered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_receipts_total",
			Help: "Receipt requests by cache result",
		}, []string{"cache"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewNop returns collectors registered on a private registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
