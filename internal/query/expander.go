package query

import (
	"github.com/quickkart/smartsearch/internal/lexicon"
)

// ExpandedTermSet maps each content term of the query to its expansion
// set. Every expansion set contains the original term; expansion never
// removes vocabulary, it only adds.
type ExpandedTermSet struct {
	// Terms maps content token -> expansions (original first).
	Terms map[string][]string

	// order preserves first-seen token order for deterministic flattening.
	order []string
}

// Flatten returns all expansion terms, deduplicated, in first-seen order.
// This is what retrieval strategies consume.
func (e *ExpandedTermSet) Flatten() []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range e.order {
		for _, term := range e.Terms[tok] {
			if !seen[term] {
				seen[term] = true
				out = append(out, term)
			}
		}
	}
	return out
}

// Expander widens analyzed query terms with synonyms and category aliases.
// This trades precision for recall: it bridges the vocabulary gap between
// user language and catalog taxonomy.
type Expander struct {
	tables *lexicon.Tables
}

// NewExpander creates an expander over the given tables.
func NewExpander(tables *lexicon.Tables) *Expander {
	return &Expander{tables: tables}
}

// Expand maps each content token of the analyzed query to its synonym
// set. Stop words and short tokens are skipped entirely; tokens with no
// table entry expand to the singleton set of themselves.
func (x *Expander) Expand(analyzed AnalyzedQuery) *ExpandedTermSet {
	result := &ExpandedTermSet{Terms: make(map[string][]string)}

	for _, tok := range analyzed.Tokens {
		if len(tok) <= 2 || x.tables.IsStopWord(tok) {
			continue
		}
		if _, done := result.Terms[tok]; done {
			continue
		}

		expansion := []string{tok}
		for _, syn := range x.tables.Expansions(tok) {
			if syn != tok {
				expansion = append(expansion, syn)
			}
		}

		result.Terms[tok] = expansion
		result.order = append(result.order, tok)
	}

	return result
}
