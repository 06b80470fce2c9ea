package telemetry

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndScrape(t *testing.T) {
	m := NewMetrics()

	m.RecordSearch("brand_category", 12, true, 0.042)
	m.RecordSearch("exact", 0, false, 0.003)
	m.RecordStrategyResult("lexical")
	m.RecordStrategyFailure("semantic")
	m.RecordCacheHit(true)
	m.RecordCacheHit(false)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `smartsearch_searches_total{query_type="brand_category"} 1`)
	assert.Contains(t, body, "smartsearch_typo_corrections_total 1")
	assert.Contains(t, body, "smartsearch_zero_results_total 1")
	assert.Contains(t, body, `smartsearch_strategy_failures_total{strategy="semantic"} 1`)
	assert.Contains(t, body, "smartsearch_result_cache_hits_total 1")
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.RecordCacheHit(true)

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), "smartsearch_result_cache_hits_total 1")
}
