package search

import (
	"math"
	"sort"
	"time"

	"github.com/quickkart/smartsearch/internal/config"
	"github.com/quickkart/smartsearch/internal/store"
)

// ratingCeiling and ratingsVolumeCeiling bound the business-score inputs
// so the boost stays in [0,1] and cannot override a relevance gap.
const (
	ratingCeiling        = 5.0
	ratingsVolumeCeiling = 1_000_000
)

// Fusion combines per-strategy candidate scores into one deterministic
// ranking. It is a pure function of its inputs; fusion never fails.
type Fusion struct {
	cfg config.FusionConfig
	now func() time.Time
}

// NewFusion creates a fusion ranker. The clock feeds the freshness
// component of the business score; pass nil for time.Now.
func NewFusion(cfg config.FusionConfig, now func() time.Time) *Fusion {
	if now == nil {
		now = time.Now
	}
	return &Fusion{cfg: cfg, now: now}
}

// strategyWeight maps each strategy to its configured fusion weight.
// Structured and emergency scans both score from catalog statistics, so
// they share the statistical weight.
func (f *Fusion) strategyWeight(name StrategyName) float64 {
	switch name {
	case StrategyLexical:
		return f.cfg.LexicalWeight
	case StrategySemantic:
		return f.cfg.SemanticWeight
	case StrategyStructured, StrategyEmergency:
		return f.cfg.StatisticalWeight
	default:
		return 0
	}
}

// Rank fuses candidates and orders them. Products must contain an entry
// for every candidate ID that should appear in the output; candidates
// without a product record are dropped.
func (f *Fusion) Rank(byStrategy map[StrategyName][]*Candidate, products map[string]*store.Product) []*Result {
	if len(byStrategy) == 0 {
		return []*Result{}
	}

	type partial struct {
		fused         float64
		strategies    []StrategyName
		matchedFields []string
	}
	merged := make(map[string]*partial)

	for name, candidates := range byStrategy {
		weight := f.strategyWeight(name)
		normalized := normalizeScores(candidates)
		for i, c := range candidates {
			p, ok := merged[c.ID]
			if !ok {
				p = &partial{}
				merged[c.ID] = p
			}
			p.fused += weight * normalized[i]
			p.strategies = append(p.strategies, name)
			if len(c.MatchedFields) > 0 {
				p.matchedFields = c.MatchedFields
			}
		}
	}

	now := f.now()
	results := make([]*Result, 0, len(merged))
	for id, p := range merged {
		product, ok := products[id]
		if !ok {
			continue
		}

		business := businessScore(product, now)
		sort.Slice(p.strategies, func(a, b int) bool {
			return strategyPriority(p.strategies[a]) < strategyPriority(p.strategies[b])
		})

		results = append(results, &Result{
			Product:       product,
			FusedScore:    p.fused,
			BusinessScore: business,
			FinalScore:    p.fused * (1 + f.cfg.BusinessBoostFactor*business),
			Strategies:    p.strategies,
			MatchedFields: p.matchedFields,
		})
	}

	sortByFinalScore(results)
	return results
}

// sortByFinalScore applies the total order: finalScore descending,
// numRatings descending, product id ascending. Every pair of distinct
// products has a strict order, so pagination is reproducible.
func sortByFinalScore(results []*Result) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if a.Product.NumRatings != b.Product.NumRatings {
			return a.Product.NumRatings > b.Product.NumRatings
		}
		return a.Product.ID < b.Product.ID
	})
}

// normalizeScores min-max normalizes one strategy's raw scores within the
// request. The lower bound is clamped at zero: strategy scores are
// non-negative and a candidate absent from a strategy contributes zero,
// so the observed minimum would otherwise inflate weak hits and let a
// single-strategy outlier outrank multi-strategy corroboration.
func normalizeScores(candidates []*Candidate) []float64 {
	normalized := make([]float64, len(candidates))
	if len(candidates) == 0 {
		return normalized
	}

	min, max := 0.0, candidates[0].Score
	for _, c := range candidates {
		if c.Score > max {
			max = c.Score
		}
		if c.Score < min {
			min = c.Score
		}
	}

	if max == min {
		for i := range normalized {
			normalized[i] = 1.0
		}
		return normalized
	}

	for i, c := range candidates {
		normalized[i] = (c.Score - min) / (max - min)
	}
	return normalized
}

// businessScore computes the query-independent quality signal in [0,1]:
// rating weighted by review volume, discounted for out-of-stock and
// stale listings.
func businessScore(p *store.Product, now time.Time) float64 {
	rating := p.Rating / ratingCeiling
	if rating > 1 {
		rating = 1
	}
	if rating < 0 {
		rating = 0
	}

	volume := math.Log1p(float64(p.NumRatings)) / math.Log1p(ratingsVolumeCeiling)
	if volume > 1 {
		volume = 1
	}

	score := rating * volume

	if !p.InStock {
		score *= 0.5
	}

	score *= freshnessFactor(p.CreatedAt, now)
	return score
}

// freshnessFactor discounts listings by age. Recent products keep full
// weight; the discount floors at 0.7 so age never buries a well-reviewed
// product on its own.
func freshnessFactor(createdAt, now time.Time) float64 {
	if createdAt.IsZero() {
		return 1.0
	}
	age := now.Sub(createdAt)
	switch {
	case age < 90*24*time.Hour:
		return 1.0
	case age < 365*24*time.Hour:
		return 0.85
	default:
		return 0.7
	}
}

func strategyPriority(name StrategyName) int {
	switch name {
	case StrategyLexical:
		return 0
	case StrategySemantic:
		return 1
	case StrategyStructured:
		return 2
	case StrategyEmergency:
		return 3
	default:
		return 4
	}
}
