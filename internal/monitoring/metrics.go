package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchaseOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teerex_purchase_outcomes_total",
			Help: "Purchase orchestrator outcomes by path",
		},
		[]string{"path", "status"},
	)

	gaslessFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teerex_gasless_fallbacks_total",
			Help: "Gasless attempts that fell back to the wallet path",
		},
		[]string{"reason"},
	)

	webhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teerex_paystack_webhooks_total",
			Help: "Paystack webhook deliveries by event and result",
		},
		[]string{"event", "result"},
	)

	pollOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teerex_reconcile_poll_outcomes_total",
			Help: "Terminal states of payment reconciliation polls",
		},
		[]string{"state"},
	)

	chainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teerex_chain_call_duration_seconds",
			Help:    "Latency of lock contract RPC calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"method"},
	)
)

func RecordPurchaseOutcome(path, status string) {
	purchaseOutcomes.WithLabelValues(path, status).Inc()
}

func RecordGaslessFallback(reason string) {
	gaslessFallbacks.WithLabelValues(reason).Inc()
}

func RecordWebhook(event, result string) {
	webhookEvents.WithLabelValues(event, result).Inc()
}

func RecordPollOutcome(state string) {
	pollOutcomes.WithLabelValues(state).Inc()
}

func ObserveChainCall(method string, seconds float64) {
	chainCallDuration.WithLabelValues(method).Observe(seconds)
}
