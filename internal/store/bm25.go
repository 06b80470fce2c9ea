package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Field boosts for lexical scoring. Title matches carry the most weight,
// free-text description the least.
const (
	titleBoost       = 3.0
	brandBoost       = 2.0
	categoryBoost    = 2.0
	descriptionBoost = 1.0
)

// BleveLexicalIndex wraps Bleve v2 for BM25 keyword search over products.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveProduct is the document shape stored in the index.
type bleveProduct struct {
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

var searchFields = []struct {
	name  string
	boost float64
}{
	{"title", titleBoost},
	{"brand", brandBoost},
	{"category", categoryBoost},
	{"description", descriptionBoost},
}

// validateIndexIntegrity checks a Bleve index directory before opening.
// Returns nil if the index is absent or looks healthy.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveLexicalIndex creates or opens a BM25 index.
// If path is empty, creates an in-memory index.
// A corrupted on-disk index is cleared and recreated; callers must reindex.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	indexMapping := createIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("lexical_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveLexicalIndex{
		index: idx,
		path:  path,
	}, nil
}

// createIndexMapping builds field mappings for the product document shape.
func createIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()
	for _, f := range searchFields {
		fieldMapping := bleve.NewTextFieldMapping()
		fieldMapping.Analyzer = standard.Name
		docMapping.AddFieldMappingsAt(f.name, fieldMapping)
	}
	indexMapping.DefaultMapping = docMapping

	return indexMapping
}

// Index adds products to the index. Existing IDs are replaced.
func (b *BleveLexicalIndex) Index(ctx context.Context, products []*Product) error {
	if len(products) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, p := range products {
		doc := bleveProduct{
			Title:       p.Title,
			Brand:       p.Brand,
			Category:    p.Category,
			Description: p.Description,
		}
		if err := batch.Index(p.ID, doc); err != nil {
			return fmt.Errorf("failed to index product %s: %w", p.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search returns products matching the query terms, scored by BM25.
// Each term is matched against every field as a disjunction, so a query
// only needs to hit one field to produce a candidate.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, limit int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	fieldQueries := make([]query.Query, 0, len(searchFields))
	for _, f := range searchFields {
		mq := bleve.NewMatchQuery(queryStr)
		mq.SetField(f.name)
		mq.SetBoost(f.boost)
		fieldQueries = append(fieldQueries, mq)
	}

	searchRequest := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(fieldQueries...))
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ID:            hit.ID,
			Score:         hit.Score,
			MatchedFields: extractMatchedFields(hit),
		})
	}

	return results, nil
}

// extractMatchedFields collects the document fields that produced term
// locations for a hit, in deterministic order.
func extractMatchedFields(hit *search.DocumentMatch) []string {
	if len(hit.Locations) == 0 {
		return nil
	}

	fields := make([]string, 0, len(hit.Locations))
	for field := range hit.Locations {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Delete removes products from the index by ID.
func (b *BleveLexicalIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	return nil
}

// Count returns the number of indexed products.
func (b *BleveLexicalIndex) Count() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}

	count, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("doc count failed: %w", err)
	}
	return int(count), nil
}

// Close releases the underlying index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
