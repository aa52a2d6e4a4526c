package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsComputedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_computed_total",
		Help: "Total number of settlement computations",
	}, []string{"tier", "window"})

	SettlementComputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "settlement_compute_latency_seconds",
		Help:    "Latency of settlement computations",
		Buckets: prometheus.DefBuckets,
	})

	SettlementCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_cache_hits_total",
		Help: "Total number of settlement cache hits",
	})

	SettlementCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_cache_misses_total",
		Help: "Total number of settlement cache misses",
	})

	CacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_cache_invalidations_total",
		Help: "Total number of settlement cache invalidations",
	})

	CurrencyMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "currency_mismatches_total",
		Help: "Total number of orders rejected for an unknown payment method",
	})

	OrphanedSecondariesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orphaned_secondaries_total",
		Help: "Total number of secondaries reported with an unresolvable parent link",
	})

	DefaultRateSubstitutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "default_rate_substitutions_total",
		Help: "Total number of settlements computed with a substituted default rate",
	})

	StaleAggregatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stale_stored_aggregates_total",
		Help: "Total number of stored aggregates that disagreed with a fresh recomputation",
	})

	PayoutsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payouts_recorded_total",
		Help: "Total number of administrator-entered payouts",
	})

	RateUpdatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rate_updates_total",
		Help: "Total number of commission rate updates",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
