// Package query provides query understanding for the search pipeline:
// price and entity extraction, query-type classification, and synonym
// expansion of the analyzed terms.
package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/quickkart/smartsearch/internal/lexicon"
	"github.com/quickkart/smartsearch/internal/spell"
)

// Type classifies what kind of query the analyzer saw.
type Type string

const (
	TypeExact         Type = "exact"
	TypeCategory      Type = "category"
	TypeBrand         Type = "brand"
	TypePriceRange    Type = "price_range"
	TypeBrandCategory Type = "brand_category"
)

// Sentiment is the coarse tone of the query.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// PriceRange holds extracted price bounds. A nil bound is open.
type PriceRange struct {
	Min *float64
	Max *float64
}

// AnalyzedQuery is the structured interpretation of a corrected query.
type AnalyzedQuery struct {
	// Raw is the corrected query string the analysis was derived from.
	Raw string

	// Tokens are the corrected tokens in input order.
	Tokens []string

	// Price is the extracted price constraint, or nil.
	Price *PriceRange

	// Categories and Brands are gazetteer matches in first-seen order.
	Categories []string
	Brands     []string

	// Modifiers are matched quality words ("best", "budget", ...).
	Modifiers []string

	Type      Type
	Sentiment Sentiment
}

// numberPattern parses a price number with optional unit suffix.
var numberPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(k|l|lakh)?$`)

// rangePattern matches a compact "10k-20k" style token.
var rangePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?(?:k|l|lakh)?)-(\d+(?:\.\d+)?(?:k|l|lakh)?)$`)

// Analyzer extracts structure from corrected queries.
type Analyzer struct {
	tables *lexicon.Tables
}

// NewAnalyzer creates an analyzer over the given tables.
func NewAnalyzer(tables *lexicon.Tables) *Analyzer {
	return &Analyzer{tables: tables}
}

// Analyze derives the structured query from a corrected one.
// The classification precedence is fixed: brand_category when both
// entity sets are non-empty, then price_range (price with no entities),
// then brand, then category, then exact. Tests depend on this order.
func (a *Analyzer) Analyze(corrected spell.CorrectedQuery) AnalyzedQuery {
	tokens := make([]string, len(corrected.Tokens))
	for i, t := range corrected.Tokens {
		tokens[i] = t.Corrected
	}

	result := AnalyzedQuery{
		Raw:       corrected.String(),
		Tokens:    tokens,
		Sentiment: SentimentNeutral,
	}

	result.Price = a.extractPrice(tokens)

	seenCat := make(map[string]bool)
	seenBrand := make(map[string]bool)
	seenMod := make(map[string]bool)
	positive, negative := 0, 0

	for _, tok := range tokens {
		if a.tables.IsBrand(tok) && !seenBrand[tok] {
			seenBrand[tok] = true
			result.Brands = append(result.Brands, tok)
		}
		if a.tables.IsCategory(tok) && !seenCat[tok] {
			seenCat[tok] = true
			result.Categories = append(result.Categories, tok)
		}
		switch a.tables.ModifierClass(tok) {
		case "positive":
			positive++
			if !seenMod[tok] {
				seenMod[tok] = true
				result.Modifiers = append(result.Modifiers, tok)
			}
		case "neutral":
			if !seenMod[tok] {
				seenMod[tok] = true
				result.Modifiers = append(result.Modifiers, tok)
			}
		case "negative":
			negative++
			if !seenMod[tok] {
				seenMod[tok] = true
				result.Modifiers = append(result.Modifiers, tok)
			}
		}
	}

	if positive > negative {
		result.Sentiment = SentimentPositive
	} else if negative > positive {
		result.Sentiment = SentimentNegative
	}

	result.Type = classify(&result)
	return result
}

// classify applies the fixed precedence order.
func classify(q *AnalyzedQuery) Type {
	hasBrand := len(q.Brands) > 0
	hasCategory := len(q.Categories) > 0
	hasPrice := q.Price != nil

	switch {
	case hasBrand && hasCategory:
		return TypeBrandCategory
	case hasPrice && !hasBrand && !hasCategory:
		return TypePriceRange
	case hasBrand:
		return TypeBrand
	case hasCategory:
		return TypeCategory
	default:
		return TypeExact
	}
}

// extractPrice returns the query's price constraint. Explicit price
// patterns always win; the static "budget <category>" band applies only
// when the query states no price of its own.
func (a *Analyzer) extractPrice(tokens []string) *PriceRange {
	if r := explicitPrice(tokens); r != nil {
		return r
	}
	for i, tok := range tokens {
		if tok == "budget" {
			if r, ok := a.tables.BudgetRange(peek(tokens, i+1)); ok {
				return budgetToRange(r)
			}
		}
	}
	return nil
}

// explicitPrice scans tokens left to right and returns the first price
// pattern found. Only one range is ever extracted per query.
func explicitPrice(tokens []string) *PriceRange {
	for i, tok := range tokens {
		switch tok {
		case "under", "below":
			if v, ok := parsePrice(peek(tokens, i+1)); ok {
				return &PriceRange{Max: &v}
			}
		case "above", "over":
			if v, ok := parsePrice(peek(tokens, i+1)); ok {
				return &PriceRange{Min: &v}
			}
		case "less", "more":
			if peek(tokens, i+1) != "than" {
				continue
			}
			if v, ok := parsePrice(peek(tokens, i+2)); ok {
				if tok == "less" {
					return &PriceRange{Max: &v}
				}
				return &PriceRange{Min: &v}
			}
		default:
			// "10k to 20k" spelled across tokens
			if lo, ok := parsePrice(tok); ok && peek(tokens, i+1) == "to" {
				if hi, ok2 := parsePrice(peek(tokens, i+2)); ok2 {
					return &PriceRange{Min: &lo, Max: &hi}
				}
			}
			// Compact "10k-20k"
			if m := rangePattern.FindStringSubmatch(tok); m != nil {
				lo, okLo := parsePrice(m[1])
				hi, okHi := parsePrice(m[2])
				if okLo && okHi {
					return &PriceRange{Min: &lo, Max: &hi}
				}
			}
		}
	}
	return nil
}

func budgetToRange(r lexicon.PriceRange) *PriceRange {
	pr := &PriceRange{}
	min := r.Min
	pr.Min = &min
	if r.Max > 0 {
		max := r.Max
		pr.Max = &max
	}
	return pr
}

// parsePrice converts "30k" to 30000, "1l"/"1lakh" to 100000, and plain
// numbers to themselves.
func parsePrice(tok string) (float64, bool) {
	m := numberPattern.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "k":
		v *= 1000
	case "l", "lakh":
		v *= 100000
	}
	return v, true
}

func peek(tokens []string, i int) string {
	if i < 0 || i >= len(tokens) {
		return ""
	}
	return tokens[i]
}

// HasPriceBound reports whether either bound is set.
func (p *PriceRange) HasPriceBound() bool {
	return p != nil && (p.Min != nil || p.Max != nil)
}

// String renders the range for logs and response metadata.
func (p *PriceRange) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	if p.Min != nil {
		b.WriteString(strconv.FormatFloat(*p.Min, 'f', -1, 64))
	}
	b.WriteString("..")
	if p.Max != nil {
		b.WriteString(strconv.FormatFloat(*p.Max, 'f', -1, 64))
	}
	return b.String()
}
