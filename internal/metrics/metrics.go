package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "o1bot_commands_total",
			Help: "Commands handled, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	TokensConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "o1bot_tokens_consumed_total",
			Help: "Tokens charged to user quotas, by mode.",
		},
		[]string{"mode"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "o1bot_provider_request_duration_seconds",
			Help:    "Completion provider latency in seconds.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	LedgerResetsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "o1bot_ledger_resets_total",
			Help: "Scheduled usage ledger resets, by result.",
		},
		[]string{"result"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "o1bot_ops_http_requests_total",
			Help: "Total number of ops HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "o1bot_ops_http_request_duration_seconds",
			Help:    "Ops HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		CommandsTotal,
		TokensConsumedTotal,
		ProviderRequestDuration,
		LedgerResetsTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
