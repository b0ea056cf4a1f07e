package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Quotes
	// ============================================
	QuoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "near_intents_quote_request_duration_seconds",
			Help:    "Duration of a single solver relay quote request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	QuoteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "near_intents_quote_outcomes_total",
			Help: "Aggregated quote results by kind (ok, NO_QUOTES, INSUFFICIENT_AMOUNT, error)",
		},
		[]string{"kind"},
	)

	PollerUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "near_intents_poller_updates_total",
			Help: "Background quote poller updates by disposition",
		},
		[]string{"disposition"},
	)

	// ============================================
	// Intent lifecycle
	// ============================================
	IntentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "near_intents_intent_outcomes_total",
			Help: "Terminal intent lifecycle outcomes",
		},
		[]string{"result"},
	)

	PublishAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "near_intents_publish_attempts_total",
		Help: "Number of publish_intent calls sent to the relay",
	})

	SettlementPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "near_intents_settlement_polls_total",
			Help: "Settlement status responses by status",
		},
		[]string{"status"},
	)

	// ============================================
	// Balances
	// ============================================
	BalanceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "near_intents_balance_fetches_total",
			Help: "Balance reads by chain and result",
		},
		[]string{"chain", "result"},
	)
)
