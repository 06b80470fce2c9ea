// Package spell corrects product query tokens against the lexicon.
//
// Correction is a total function: no input string can make it fail.
// Tokens the corrector cannot improve pass through unchanged.
package spell

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/quickkart/smartsearch/internal/lexicon"
)

// numericPattern matches purely numeric tokens including unit-suffixed
// forms like "40k", "2.5k", "1l", "3lakh". These carry price semantics
// and must never be rewritten.
var numericPattern = regexp.MustCompile(`^\d+(\.\d+)?(k|l|lakh)?$`)

// Config holds corrector tuning knobs.
type Config struct {
	// MaxEditDistance bounds the lexicon candidate scan (default: 2).
	MaxEditDistance int

	// MinFrequency is the observed-frequency floor a candidate needs
	// before it is accepted as a correction (default: 2).
	MinFrequency int
}

// DefaultConfig returns the default corrector configuration.
func DefaultConfig() Config {
	return Config{
		MaxEditDistance: 2,
		MinFrequency:    2,
	}
}

// Token is one corrected query token.
type Token struct {
	Original     string
	Corrected    string
	WasCorrected bool
}

// CorrectedQuery is the ordered result of correcting a raw query.
// Token order always matches the input order.
type CorrectedQuery struct {
	Tokens           []Token
	HasAnyCorrection bool
}

// String returns the corrected query as a single string.
func (q CorrectedQuery) String() string {
	parts := make([]string, len(q.Tokens))
	for i, t := range q.Tokens {
		parts[i] = t.Corrected
	}
	return strings.Join(parts, " ")
}

// Corrector corrects query tokens using the lexicon tables.
type Corrector struct {
	tables *lexicon.Tables
	cfg    Config
}

// New creates a corrector over the given tables.
func New(tables *lexicon.Tables, cfg Config) *Corrector {
	if cfg.MaxEditDistance <= 0 {
		cfg.MaxEditDistance = DefaultConfig().MaxEditDistance
	}
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = DefaultConfig().MinFrequency
	}
	return &Corrector{tables: tables, cfg: cfg}
}

// Correct corrects each token of the raw query independently.
// Stop words and numeric tokens are never altered.
func (c *Corrector) Correct(raw string) CorrectedQuery {
	fields := strings.Fields(raw)
	result := CorrectedQuery{Tokens: make([]Token, 0, len(fields))}

	for _, f := range fields {
		tok := c.correctToken(f)
		if tok.WasCorrected {
			result.HasAnyCorrection = true
		}
		result.Tokens = append(result.Tokens, tok)
	}

	return result
}

func (c *Corrector) correctToken(original string) Token {
	lower := strings.ToLower(original)
	passthrough := Token{Original: original, Corrected: lower}

	// Stop words and numeric tokens (incl. "40k") pass through untouched.
	if c.tables.IsStopWord(lower) || numericPattern.MatchString(lower) {
		return passthrough
	}

	// Very short tokens are left alone; a 1-2 character edit would
	// rewrite most of the token.
	if len(lower) < 3 {
		return passthrough
	}

	// Known vocabulary and quality modifiers need no correction.
	if c.tables.Frequency(lower) > 0 || c.tables.ModifierClass(lower) != "" {
		return passthrough
	}

	// Curated misspelling map has the highest precedence.
	if canonical, ok := c.tables.Canonical(lower); ok {
		return Token{Original: original, Corrected: canonical, WasCorrected: true}
	}

	// Edit-distance scan over the lexicon, gated by frequency.
	if best := c.nearestTerm(lower); best != "" {
		return Token{Original: original, Corrected: best, WasCorrected: true}
	}

	// Plural normalization: singularize when the singular form is known.
	if strings.HasSuffix(lower, "s") {
		singular := strings.TrimSuffix(lower, "s")
		if c.tables.Frequency(singular) > 0 {
			return Token{Original: original, Corrected: singular, WasCorrected: true}
		}
	}

	return passthrough
}

// nearestTerm finds the lexicon term within MaxEditDistance of token with
// the highest frequency at or above MinFrequency. Ties on frequency break
// toward the smaller edit distance, then the lexicographically smaller
// term, keeping corrections deterministic.
func (c *Corrector) nearestTerm(token string) string {
	var (
		best     string
		bestFreq int
		bestDist int
	)

	c.tables.Terms(func(term string, freq int) bool {
		if term == token || freq < c.cfg.MinFrequency {
			return true
		}
		// Length difference is a lower bound on edit distance.
		if diff := len(term) - len(token); diff > c.cfg.MaxEditDistance || -diff > c.cfg.MaxEditDistance {
			return true
		}
		dist := levenshtein.ComputeDistance(token, term)
		if dist > c.cfg.MaxEditDistance {
			return true
		}
		switch {
		case freq > bestFreq:
			best, bestFreq, bestDist = term, freq, dist
		case freq == bestFreq && dist < bestDist:
			best, bestDist = term, dist
		case freq == bestFreq && dist == bestDist && term < best:
			best = term
		}
		return true
	})

	return best
}
