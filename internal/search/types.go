// Package search runs the retrieval pipeline: multi-strategy candidate
// retrieval with escalating fallback, score fusion, business-signal
// boosting and deterministic ranking.
package search

import (
	"errors"
	"strings"

	"github.com/quickkart/smartsearch/internal/query"
	"github.com/quickkart/smartsearch/internal/store"
)

// StrategyName identifies a retrieval strategy.
type StrategyName string

const (
	StrategyLexical    StrategyName = "lexical"
	StrategySemantic   StrategyName = "semantic"
	StrategyStructured StrategyName = "structured"
	StrategyEmergency  StrategyName = "emergency"

	// StrategyNone marks a response where no strategy yielded candidates.
	StrategyNone StrategyName = "none"
)

// Sentinel errors for strategy-level failures. Both are recovered by the
// orchestrator (fall through to the next strategy) and recorded in
// response metadata; they never surface to the caller.
var (
	ErrStrategyTimeout     = errors.New("strategy timed out")
	ErrStrategyUnavailable = errors.New("strategy unavailable")
)

// Candidate is a single strategy hit before fusion.
type Candidate struct {
	ID            string
	Strategy      StrategyName
	Score         float64
	MatchedFields []string
}

// Request is the retrieval input shared by all strategies: the expanded
// term set plus the structured interpretation of the query.
type Request struct {
	// Terms is the deduplicated expanded term list, original terms first.
	Terms []string

	// Analyzed is the structured query interpretation.
	Analyzed query.AnalyzedQuery

	// Filters are the caller-supplied attribute constraints, already
	// merged with analyzer-derived constraints.
	Filters Filters
}

// QueryText joins the expanded terms for full-text strategies.
func (r *Request) QueryText() string {
	return strings.Join(r.Terms, " ")
}

// Filters narrows retrieval by product attributes. Zero values mean no
// constraint.
type Filters struct {
	Category string   `json:"category,omitempty"`
	Brand    string   `json:"brand,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// SortBy selects the response ordering. Relevance uses the fused ranking;
// all other values re-sort the retrieved candidate set by the named field.
// Fusion still decides which candidates are retrieved.
type SortBy string

const (
	SortRelevance    SortBy = "relevance"
	SortPriceLowHigh SortBy = "price_low_high"
	SortPriceHighLow SortBy = "price_high_low"
	SortRating       SortBy = "rating"
	SortNewest       SortBy = "newest"
)

// Options controls a single search call.
type Options struct {
	Filters  Filters
	Page     int
	PageSize int
	SortBy   SortBy
}

// Result is one ranked product in a response.
type Result struct {
	Product *store.Product `json:"product"`

	// FusedScore is the normalized, weighted relevance score.
	FusedScore float64 `json:"fused_score"`

	// BusinessScore is the query-independent quality signal in [0,1].
	BusinessScore float64 `json:"business_score"`

	// FinalScore is FusedScore boosted by the business signal; the
	// relevance sort key.
	FinalScore float64 `json:"final_score"`

	// Strategies lists the strategies that surfaced this product.
	Strategies []StrategyName `json:"strategies"`

	// MatchedFields are the lexical fields that matched, when known.
	MatchedFields []string `json:"matched_fields,omitempty"`
}

// RankedResponse is the outcome of one search call.
type RankedResponse struct {
	Results []*Result `json:"results"`

	// Query is the raw input; CorrectedQuery the spell-corrected form.
	Query          string `json:"query"`
	CorrectedQuery string `json:"corrected_query"`
	Corrected      bool   `json:"corrected"`

	// StrategyUsed is the highest-priority strategy that contributed
	// candidates, or "none" for an empty result.
	StrategyUsed StrategyName `json:"strategy_used"`

	// FailedStrategies records strategies that errored or timed out.
	// The request still succeeded; this is observability metadata.
	FailedStrategies []StrategyName `json:"failed_strategies,omitempty"`

	// Degraded is true when any strategy failed or the emergency scan
	// had to run.
	Degraded bool `json:"degraded"`

	// Total is the candidate count before pagination.
	Total  int   `json:"total"`
	Page   int   `json:"page"`
	TookMs int64 `json:"took_ms"`
}
