package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every metric exported by the service.
const Namespace = "metalquote"

// Fetch outcomes.
const (
	OutcomeHit          = "hit"
	OutcomeMiss         = "miss"
	OutcomeStale        = "stale"
	OutcomeQuotaBlocked = "quota_blocked"
	OutcomeError        = "error"
)

// Fetcher, upstream and quota Prometheus metrics.
var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fetch_total",
			Help:      "Quota-aware fetches by outcome",
		},
		[]string{"outcome"},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of requests to the price API",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Price API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_errors_total",
			Help:      "Price API errors by type",
		},
		[]string{"endpoint", "error_type"},
	)

	QuotaCalls = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "quota_calls",
			Help:      "Billed API calls in the current period",
		},
		[]string{"period"}, // "daily" / "monthly"
	)

	QuotaMonthlyEstimate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "quota_monthly_estimate",
			Help:      "Projected API calls for a full month at today's rate",
		},
	)

	QuotaLevel = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "quota_level",
			Help:      "Quota warning level (0=safe, 1=caution, 2=warning, 3=critical)",
		},
	)

	PollerCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "poller_cycles_total",
			Help:      "Refresh cycles by result",
		},
		[]string{"result"}, // "ok" / "partial" / "market_closed"
	)
)

var quoteMetricsRegistered bool

// RegisterQuoteMetrics registers fetcher, upstream and quota metrics. Must be called once from main.
func RegisterQuoteMetrics() {
	if quoteMetricsRegistered {
		return
	}
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamErrorsTotal)
	prometheus.MustRegister(QuotaCalls)
	prometheus.MustRegister(QuotaMonthlyEstimate)
	prometheus.MustRegister(QuotaLevel)
	prometheus.MustRegister(PollerCyclesTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsTotal)
	quoteMetricsRegistered = true
}
