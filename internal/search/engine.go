package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/quickkart/smartsearch/internal/config"
	"github.com/quickkart/smartsearch/internal/embed"
	"github.com/quickkart/smartsearch/internal/query"
	"github.com/quickkart/smartsearch/internal/spell"
	"github.com/quickkart/smartsearch/internal/store"
	"github.com/quickkart/smartsearch/internal/telemetry"
)

// DefaultPageSize is used when Options.PageSize is zero.
const DefaultPageSize = 10

// Engine runs the full pipeline: spell correction, query analysis, term
// expansion, multi-strategy retrieval, score fusion and pagination.
// Safe for concurrent use; all shared tables are read-only after start.
type Engine struct {
	corrector    *spell.Corrector
	analyzer     *query.Analyzer
	expander     *query.Expander
	orchestrator *Orchestrator
	fusion       *Fusion
	cache        *ResultCache
	catalog      store.Catalog
	lexical      store.LexicalIndex
	vector       store.VectorIndex
	embedder     embed.Embedder
	metrics      *telemetry.Metrics
	clicks       *telemetry.ClickSink
	logger       *slog.Logger
}

// EngineDeps bundles the collaborators the engine is built from.
type EngineDeps struct {
	Corrector *spell.Corrector
	Analyzer  *query.Analyzer
	Expander  *query.Expander
	Catalog   store.Catalog
	Lexical   store.LexicalIndex
	Vector    store.VectorIndex
	Embedder  embed.Embedder
	Metrics   *telemetry.Metrics
	Clicks    *telemetry.ClickSink
	Logger    *slog.Logger
}

// NewEngine assembles the pipeline from configuration and collaborators.
func NewEngine(cfg *config.Config, deps EngineDeps) (*Engine, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	orchestrator := NewOrchestrator(
		NewLexicalStrategy(deps.Lexical),
		NewSemanticStrategy(deps.Embedder, deps.Vector),
		NewStructuredStrategy(deps.Catalog),
		NewEmergencyStrategy(deps.Catalog),
		cfg.Retrieval,
		logger,
	)

	var cache *ResultCache
	if cfg.Cache.Enabled {
		var err error
		cache, err = NewResultCache(cfg.Cache.Size, cfg.Cache.TTL, nil)
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		corrector:    deps.Corrector,
		analyzer:     deps.Analyzer,
		expander:     deps.Expander,
		orchestrator: orchestrator,
		fusion:       NewFusion(cfg.Fusion, nil),
		cache:        cache,
		catalog:      deps.Catalog,
		lexical:      deps.Lexical,
		vector:       deps.Vector,
		embedder:     deps.Embedder,
		metrics:      deps.Metrics,
		clicks:       deps.Clicks,
		logger:       logger,
	}, nil
}

// Search answers one query. Any syntactically valid query string yields
// a response; the worst case is zero results, never an error page.
func (e *Engine) Search(ctx context.Context, rawQuery string, opts Options) (*RankedResponse, error) {
	start := time.Now()
	opts = applyOptionDefaults(opts)

	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return emptyResponse(rawQuery, opts, start), nil
	}

	var cacheKey string
	if e.cache != nil {
		cacheKey = e.cache.Key(rawQuery, opts)
		if cached := e.cache.Get(cacheKey); cached != nil {
			if e.metrics != nil {
				e.metrics.RecordCacheHit(true)
			}
			return cached, nil
		}
		if e.metrics != nil {
			e.metrics.RecordCacheHit(false)
		}
	}

	// Understand the query.
	corrected := e.corrector.Correct(rawQuery)
	analyzed := e.analyzer.Analyze(corrected)
	expanded := e.expander.Expand(analyzed)

	req := &Request{
		Terms:    expanded.Flatten(),
		Analyzed: analyzed,
		Filters:  mergeFilters(opts.Filters, analyzed),
	}

	e.logger.Debug("query_analyzed",
		slog.String("raw", rawQuery),
		slog.String("corrected", corrected.String()),
		slog.String("query_type", string(analyzed.Type)),
		slog.Int("expanded_terms", len(req.Terms)))

	// Retrieve and rank.
	outcome := e.orchestrator.Retrieve(ctx, req)
	results, err := e.rankOutcome(ctx, outcome, req)
	if err != nil {
		// A catalog failure during enrichment degrades like a failed
		// strategy: an empty response, never an error page. Not cached,
		// so recovery is picked up on the next request.
		e.logger.Error("candidate_enrichment_failed", slog.String("error", err.Error()))
		resp := &RankedResponse{
			Results:          []*Result{},
			Query:            rawQuery,
			CorrectedQuery:   corrected.String(),
			Corrected:        corrected.HasAnyCorrection,
			StrategyUsed:     StrategyNone,
			FailedStrategies: outcome.Failed,
			Degraded:         true,
			Page:             opts.Page,
			TookMs:           time.Since(start).Milliseconds(),
		}
		e.record(resp, analyzed, outcome, start)
		return resp, nil
	}

	if opts.SortBy != SortRelevance {
		resortResults(results, opts.SortBy)
	}

	total := len(results)
	resp := &RankedResponse{
		Results:          paginate(results, opts.Page, opts.PageSize),
		Query:            rawQuery,
		CorrectedQuery:   corrected.String(),
		Corrected:        corrected.HasAnyCorrection,
		StrategyUsed:     outcome.StrategyUsed,
		FailedStrategies: outcome.Failed,
		Degraded:         outcome.Degraded(),
		Total:            total,
		Page:             opts.Page,
		TookMs:           time.Since(start).Milliseconds(),
	}

	e.record(resp, analyzed, outcome, start)

	if e.cache != nil {
		e.cache.Put(cacheKey, resp)
	}
	return resp, nil
}

// rankOutcome enriches candidates with product records, applies the
// request's hard filters and fuses scores into the final order.
func (e *Engine) rankOutcome(ctx context.Context, outcome *RetrievalOutcome, req *Request) ([]*Result, error) {
	if len(outcome.ByStrategy) == 0 {
		return []*Result{}, nil
	}

	idSet := make(map[string]struct{})
	for _, candidates := range outcome.ByStrategy {
		for _, c := range candidates {
			idSet[c.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	products, err := e.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich candidates: %w", err)
	}

	// Hard price/attribute filters apply to every strategy's output;
	// lexical and semantic retrieval do not filter on their own.
	for id, p := range products {
		if !matchesFilters(p, req.Filters) {
			delete(products, id)
		}
	}

	return e.fusion.Rank(outcome.ByStrategy, products), nil
}

func (e *Engine) record(resp *RankedResponse, analyzed query.AnalyzedQuery, outcome *RetrievalOutcome, start time.Time) {
	e.logger.Info("search_completed",
		slog.String("query", resp.Query),
		slog.String("strategy", string(resp.StrategyUsed)),
		slog.Int("results", resp.Total),
		slog.Bool("degraded", resp.Degraded),
		slog.Duration("took", time.Since(start)))

	if e.metrics == nil {
		return
	}
	e.metrics.RecordSearch(string(analyzed.Type), resp.Total, resp.Corrected, time.Since(start).Seconds())
	for name := range outcome.ByStrategy {
		e.metrics.RecordStrategyResult(string(name))
	}
	for _, name := range outcome.Failed {
		e.metrics.RecordStrategyFailure(string(name))
	}
}

// RecordClick forwards a result click to the tracking sink. Fire and
// forget; never blocks.
func (e *Engine) RecordClick(query, productID string, position int) {
	if e.clicks != nil {
		e.clicks.Record(query, productID, position)
	}
}

// Index ingests products into all three stores: catalog, lexical index
// and vector index.
func (e *Engine) Index(ctx context.Context, products []*store.Product) error {
	if len(products) == 0 {
		return nil
	}

	if err := e.catalog.SaveProducts(ctx, products); err != nil {
		return fmt.Errorf("index catalog: %w", err)
	}
	if err := e.lexical.Index(ctx, products); err != nil {
		return fmt.Errorf("index lexical: %w", err)
	}

	texts := make([]string, len(products))
	ids := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.SearchText()
		ids[i] = p.ID
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("index embeddings: %w", err)
	}
	if err := e.vector.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index vectors: %w", err)
	}

	e.logger.Info("products_indexed", slog.Int("count", len(products)))
	return nil
}

// SaveVectors persists the vector index to disk. The catalog and the
// lexical index persist themselves; the HNSW graph is memory-resident
// and must be saved explicitly after indexing.
func (e *Engine) SaveVectors(path string) error {
	return e.vector.Save(path)
}

// Close releases the engine's stores and sinks.
func (e *Engine) Close() error {
	if e.clicks != nil {
		e.clicks.Close()
	}
	return errors.Join(
		e.lexical.Close(),
		e.vector.Close(),
		e.catalog.Close(),
		e.embedder.Close(),
	)
}

func applyOptionDefaults(opts Options) Options {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.SortBy == "" {
		opts.SortBy = SortRelevance
	}
	return opts
}

// mergeFilters folds analyzer-derived constraints into the explicit
// filters. Explicit filters always win.
func mergeFilters(explicit Filters, analyzed query.AnalyzedQuery) Filters {
	merged := explicit
	if merged.MinPrice == nil && analyzed.Price != nil {
		merged.MinPrice = analyzed.Price.Min
	}
	if merged.MaxPrice == nil && analyzed.Price != nil {
		merged.MaxPrice = analyzed.Price.Max
	}
	return merged
}

func matchesFilters(p *store.Product, f Filters) bool {
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.Brand != "" && !strings.EqualFold(p.Brand, f.Brand) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

// resortResults re-orders the retrieved candidate set by the named field.
// Ties fall back to the fused relevance order, then product id, so the
// order stays total.
func resortResults(results []*Result, sortBy SortBy) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch sortBy {
		case SortPriceLowHigh:
			if a.Product.Price != b.Product.Price {
				return a.Product.Price < b.Product.Price
			}
		case SortPriceHighLow:
			if a.Product.Price != b.Product.Price {
				return a.Product.Price > b.Product.Price
			}
		case SortRating:
			if a.Product.Rating != b.Product.Rating {
				return a.Product.Rating > b.Product.Rating
			}
		case SortNewest:
			if !a.Product.CreatedAt.Equal(b.Product.CreatedAt) {
				return a.Product.CreatedAt.After(b.Product.CreatedAt)
			}
		}
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.Product.ID < b.Product.ID
	})
}

func paginate(results []*Result, page, pageSize int) []*Result {
	start := (page - 1) * pageSize
	if start >= len(results) {
		return []*Result{}
	}
	end := start + pageSize
	if end > len(results) {
		end = len(results)
	}
	return results[start:end]
}

func emptyResponse(rawQuery string, opts Options, start time.Time) *RankedResponse {
	return &RankedResponse{
		Results:      []*Result{},
		Query:        rawQuery,
		StrategyUsed: StrategyNone,
		Page:         opts.Page,
		TookMs:       time.Since(start).Milliseconds(),
	}
}
