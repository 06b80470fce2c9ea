// Package telemetry collects pipeline metrics and click events.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the search pipeline's Prometheus collectors on a private
// registry, so tests can create as many instances as they need.
type Metrics struct {
	registry *prometheus.Registry

	searchesTotal       *prometheus.CounterVec
	typoCorrections     prometheus.Counter
	strategyEscalations *prometheus.CounterVec
	strategyFailures    *prometheus.CounterVec
	zeroResults         prometheus.Counter
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	searchDuration      prometheus.Histogram
}

// NewMetrics creates and registers all pipeline collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "searches_total",
			Help:      "Total search requests by query type.",
		},
		[]string{"query_type"},
	)
	typoCorrections := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "typo_corrections_total",
			Help:      "Queries where the spell corrector changed at least one token.",
		},
	)
	strategyEscalations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "strategy_results_total",
			Help:      "Requests answered per contributing strategy.",
		},
		[]string{"strategy"},
	)
	strategyFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "strategy_failures_total",
			Help:      "Strategy calls that errored or timed out.",
		},
		[]string{"strategy"},
	)
	zeroResults := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "zero_results_total",
			Help:      "Searches that returned no products.",
		},
	)
	cacheHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "result_cache_hits_total",
			Help:      "Result cache hits.",
		},
	)
	cacheMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smartsearch",
			Name:      "result_cache_misses_total",
			Help:      "Result cache misses.",
		},
	)
	searchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smartsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.15, 0.25, 0.5, 1},
		},
	)

	registry.MustRegister(searchesTotal, typoCorrections, strategyEscalations,
		strategyFailures, zeroResults, cacheHits, cacheMisses, searchDuration)

	return &Metrics{
		registry:            registry,
		searchesTotal:       searchesTotal,
		typoCorrections:     typoCorrections,
		strategyEscalations: strategyEscalations,
		strategyFailures:    strategyFailures,
		zeroResults:         zeroResults,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		searchDuration:      searchDuration,
	}
}

// Handler exposes the registry for scraping. The CLI runs one-shot
// commands and never serves it; it exists for callers embedding the
// engine in a long-running service.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSearch records one completed search.
func (m *Metrics) RecordSearch(queryType string, resultCount int, corrected bool, durationSeconds float64) {
	m.searchesTotal.WithLabelValues(queryType).Inc()
	m.searchDuration.Observe(durationSeconds)
	if corrected {
		m.typoCorrections.Inc()
	}
	if resultCount == 0 {
		m.zeroResults.Inc()
	}
}

// RecordStrategyResult counts a strategy that contributed candidates.
func (m *Metrics) RecordStrategyResult(strategy string) {
	m.strategyEscalations.WithLabelValues(strategy).Inc()
}

// RecordStrategyFailure counts a strategy error or timeout.
func (m *Metrics) RecordStrategyFailure(strategy string) {
	m.strategyFailures.WithLabelValues(strategy).Inc()
}

// RecordCacheHit counts a result cache hit or miss.
func (m *Metrics) RecordCacheHit(hit bool) {
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
