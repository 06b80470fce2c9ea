package search

import (
	"context"
	"fmt"

	"github.com/quickkart/smartsearch/internal/embed"
	"github.com/quickkart/smartsearch/internal/store"
)

// Strategy is one retrieval source. Implementations are pure functions of
// the request: the orchestrator owns timeouts, escalation and failure
// handling.
type Strategy interface {
	Name() StrategyName
	Retrieve(ctx context.Context, req *Request, limit int) ([]*Candidate, error)
}

// LexicalStrategy retrieves via the BM25 keyword index.
type LexicalStrategy struct {
	index store.LexicalIndex
}

func NewLexicalStrategy(index store.LexicalIndex) *LexicalStrategy {
	return &LexicalStrategy{index: index}
}

func (s *LexicalStrategy) Name() StrategyName { return StrategyLexical }

func (s *LexicalStrategy) Retrieve(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	hits, err := s.index.Search(ctx, req.QueryText(), limit)
	if err != nil {
		return nil, fmt.Errorf("lexical retrieval: %w", err)
	}

	candidates := make([]*Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, &Candidate{
			ID:            h.ID,
			Strategy:      StrategyLexical,
			Score:         h.Score,
			MatchedFields: h.MatchedFields,
		})
	}
	return candidates, nil
}

// SemanticStrategy retrieves via embedding similarity. The corrected
// query is embedded as-is; expansion terms are left to the lexical path,
// the embedding space handles vocabulary mismatch itself.
type SemanticStrategy struct {
	embedder embed.Embedder
	index    store.VectorIndex
}

func NewSemanticStrategy(embedder embed.Embedder, index store.VectorIndex) *SemanticStrategy {
	return &SemanticStrategy{embedder: embedder, index: index}
}

func (s *SemanticStrategy) Name() StrategyName { return StrategySemantic }

func (s *SemanticStrategy) Retrieve(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	vector, err := s.embedder.Embed(ctx, req.Analyzed.Raw)
	if err != nil {
		return nil, fmt.Errorf("semantic retrieval: embed: %w", err)
	}

	hits, err := s.index.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic retrieval: %w", err)
	}

	candidates := make([]*Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, &Candidate{
			ID:       h.ID,
			Strategy: StrategySemantic,
			Score:    float64(h.Score),
		})
	}
	return candidates, nil
}

// StructuredStrategy scans the catalog by recognized attributes: the
// analyzer's brand/category entities plus any explicit filters.
type StructuredStrategy struct {
	catalog store.Catalog
}

func NewStructuredStrategy(catalog store.Catalog) *StructuredStrategy {
	return &StructuredStrategy{catalog: catalog}
}

func (s *StructuredStrategy) Name() StrategyName { return StrategyStructured }

func (s *StructuredStrategy) Retrieve(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	filter := store.AttributeFilter{
		Category: req.Filters.Category,
		Brand:    req.Filters.Brand,
		MinPrice: req.Filters.MinPrice,
		MaxPrice: req.Filters.MaxPrice,
	}
	if filter.Category == "" && len(req.Analyzed.Categories) > 0 {
		filter.Category = req.Analyzed.Categories[0]
	}
	if filter.Brand == "" && len(req.Analyzed.Brands) > 0 {
		filter.Brand = req.Analyzed.Brands[0]
	}

	// A fully unconstrained scan would return the whole catalog by
	// popularity; that is the emergency strategy's job, not ours.
	if filter.Category == "" && filter.Brand == "" && filter.MinPrice == nil && filter.MaxPrice == nil {
		return []*Candidate{}, nil
	}

	products, err := s.catalog.AttributeScan(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("structured retrieval: %w", err)
	}
	return rankDecayCandidates(products, StrategyStructured), nil
}

// EmergencyStrategy is the last resort: a broad substring scan over the
// catalog favoring popular in-stock products. It exists so a degraded
// request still shows something sellable instead of an empty page.
type EmergencyStrategy struct {
	catalog store.Catalog
}

func NewEmergencyStrategy(catalog store.Catalog) *EmergencyStrategy {
	return &EmergencyStrategy{catalog: catalog}
}

func (s *EmergencyStrategy) Name() StrategyName { return StrategyEmergency }

func (s *EmergencyStrategy) Retrieve(ctx context.Context, req *Request, limit int) ([]*Candidate, error) {
	products, err := s.catalog.EmergencyScan(ctx, req.Terms, limit)
	if err != nil {
		return nil, fmt.Errorf("emergency retrieval: %w", err)
	}
	return rankDecayCandidates(products, StrategyEmergency), nil
}

// rankDecayCandidates converts an ordered product list into candidates
// with a 1/(1+rank) score, preserving the scan's popularity order through
// fusion normalization.
func rankDecayCandidates(products []*store.Product, name StrategyName) []*Candidate {
	candidates := make([]*Candidate, 0, len(products))
	for i, p := range products {
		candidates = append(candidates, &Candidate{
			ID:       p.ID,
			Strategy: name,
			Score:    1.0 / float64(1+i),
		})
	}
	return candidates
}
