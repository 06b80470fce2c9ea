// Package lexicon holds the static vocabulary tables the pipeline depends
// on: the frequency-weighted term lexicon, the curated misspelling map,
// brand and category gazetteers, the synonym table, stop words, quality
// modifiers, and category budget ranges.
//
// All tables are plain data loaded once at startup, either from the
// embedded defaults or from YAML files in a user-supplied directory.
// They are never mutated afterwards, so unsynchronized concurrent reads
// are safe.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// PriceRange is an inclusive price band. A zero Max means unbounded.
type PriceRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// tablesFile is the YAML schema for a table file.
type tablesFile struct {
	Lexicon      map[string]int      `yaml:"lexicon"`
	Misspellings map[string]string   `yaml:"misspellings"`
	Brands       []string            `yaml:"brands"`
	Categories   []string            `yaml:"categories"`
	Synonyms     map[string][]string `yaml:"synonyms"`
	StopWords    []string            `yaml:"stop_words"`
	Modifiers    struct {
		Positive []string `yaml:"positive"`
		Neutral  []string `yaml:"neutral"`
		Negative []string `yaml:"negative"`
	} `yaml:"modifiers"`
	BudgetRanges map[string]PriceRange `yaml:"budget_ranges"`
}

// Tables is the loaded, read-only vocabulary set.
type Tables struct {
	lexicon      map[string]int
	misspellings map[string]string
	brands       map[string]struct{}
	categories   map[string]struct{}
	synonyms     map[string][]string
	stopWords    map[string]struct{}
	positive     map[string]struct{}
	neutral      map[string]struct{}
	negative     map[string]struct{}
	budgetRanges map[string]PriceRange
}

// Load builds the tables from the embedded defaults, then overlays any
// tables.yaml found in dir (empty dir skips the overlay). Overlay entries
// are additive; they extend rather than replace the defaults.
func Load(dir string) (*Tables, error) {
	t := newTables()

	var base tablesFile
	if err := yaml.Unmarshal(defaultTables, &base); err != nil {
		return nil, fmt.Errorf("failed to parse embedded tables: %w", err)
	}
	t.merge(&base)

	if dir != "" {
		path := filepath.Join(dir, "tables.yaml")
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var overlay tablesFile
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		t.merge(&overlay)
	}

	return t, nil
}

// MustLoadDefaults loads the embedded tables only, panicking on error.
// The embedded tables are part of the binary, so a parse failure is a
// build defect, not a runtime condition.
func MustLoadDefaults() *Tables {
	t, err := Load("")
	if err != nil {
		panic("lexicon: " + err.Error())
	}
	return t
}

func newTables() *Tables {
	return &Tables{
		lexicon:      make(map[string]int),
		misspellings: make(map[string]string),
		brands:       make(map[string]struct{}),
		categories:   make(map[string]struct{}),
		synonyms:     make(map[string][]string),
		stopWords:    make(map[string]struct{}),
		positive:     make(map[string]struct{}),
		neutral:      make(map[string]struct{}),
		negative:     make(map[string]struct{}),
		budgetRanges: make(map[string]PriceRange),
	}
}

func (t *Tables) merge(f *tablesFile) {
	for term, freq := range f.Lexicon {
		if freq > t.lexicon[term] {
			t.lexicon[term] = freq
		}
	}
	for typo, canonical := range f.Misspellings {
		t.misspellings[typo] = canonical
	}
	for _, b := range f.Brands {
		t.brands[b] = struct{}{}
		if t.lexicon[b] == 0 {
			// Brands are valid vocabulary even when rare in the catalog;
			// a frequency of 1 keeps them below the correction-acceptance
			// threshold so they are never chosen over an exact typo entry.
			t.lexicon[b] = 1
		}
	}
	for _, c := range f.Categories {
		t.categories[c] = struct{}{}
	}
	for term, syns := range f.Synonyms {
		t.synonyms[term] = append(t.synonyms[term], syns...)
	}
	for _, w := range f.StopWords {
		t.stopWords[w] = struct{}{}
	}
	for _, m := range f.Modifiers.Positive {
		t.positive[m] = struct{}{}
	}
	for _, m := range f.Modifiers.Neutral {
		t.neutral[m] = struct{}{}
	}
	for _, m := range f.Modifiers.Negative {
		t.negative[m] = struct{}{}
	}
	for cat, r := range f.BudgetRanges {
		t.budgetRanges[cat] = r
	}
}

// Frequency returns the observed frequency weight for a term,
// or 0 if the term is unknown.
func (t *Tables) Frequency(term string) int {
	return t.lexicon[term]
}

// Canonical returns the canonical spelling for a known misspelling.
// The second return is false when the token is not in the curated map.
func (t *Tables) Canonical(typo string) (string, bool) {
	c, ok := t.misspellings[typo]
	return c, ok
}

// IsStopWord reports whether the token is on the closed stop-word list.
func (t *Tables) IsStopWord(token string) bool {
	_, ok := t.stopWords[token]
	return ok
}

// IsBrand reports whether the token is in the brand gazetteer.
func (t *Tables) IsBrand(token string) bool {
	_, ok := t.brands[token]
	return ok
}

// IsCategory reports whether the token is in the category gazetteer.
func (t *Tables) IsCategory(token string) bool {
	_, ok := t.categories[token]
	return ok
}

// Expansions returns the synonym set for a term, or nil if none exists.
// The returned slice never contains the term itself; callers add it.
func (t *Tables) Expansions(term string) []string {
	return t.synonyms[term]
}

// ModifierClass classifies a quality modifier token.
// Returns "positive", "neutral", "negative", or "" for non-modifiers.
func (t *Tables) ModifierClass(token string) string {
	if _, ok := t.positive[token]; ok {
		return "positive"
	}
	if _, ok := t.neutral[token]; ok {
		return "neutral"
	}
	if _, ok := t.negative[token]; ok {
		return "negative"
	}
	return ""
}

// BudgetRange resolves a "budget <category>" phrase to a price band.
func (t *Tables) BudgetRange(category string) (PriceRange, bool) {
	r, ok := t.budgetRanges[category]
	return r, ok
}

// Terms iterates all lexicon terms with their frequencies.
// Used by the spell corrector for edit-distance candidate scans.
func (t *Tables) Terms(fn func(term string, freq int) bool) {
	for term, freq := range t.lexicon {
		if !fn(term, freq) {
			return
		}
	}
}

// Size returns the number of lexicon terms.
func (t *Tables) Size() int {
	return len(t.lexicon)
}
