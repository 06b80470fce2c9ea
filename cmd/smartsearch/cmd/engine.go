package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/quickkart/smartsearch/internal/config"
	"github.com/quickkart/smartsearch/internal/embed"
	"github.com/quickkart/smartsearch/internal/lexicon"
	"github.com/quickkart/smartsearch/internal/query"
	"github.com/quickkart/smartsearch/internal/search"
	"github.com/quickkart/smartsearch/internal/spell"
	"github.com/quickkart/smartsearch/internal/store"
	"github.com/quickkart/smartsearch/internal/telemetry"
)

// Index artifact names under the data directory.
const (
	catalogFile = "catalog.db"
	lexicalDir  = "lexical.bleve"
	vectorFile  = "vectors.hnsw"
)

// openEngine assembles the full pipeline from the configured data
// directory. The vector index is loaded from disk when present.
func openEngine(cfg *config.Config) (*search.Engine, error) {
	tables, err := lexicon.Load(cfg.Paths.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to load tables: %w", err)
	}

	dataDir := cfg.Paths.DataDir
	catalog, err := store.NewSQLiteCatalog(filepath.Join(dataDir, catalogFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	lexIdx, err := store.NewBleveLexicalIndex(filepath.Join(dataDir, lexicalDir))
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}

	vecIdx, err := store.NewHNSWIndex(store.VectorIndexConfig{Dimensions: embed.StaticDimensions})
	if err != nil {
		_ = lexIdx.Close()
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	vectorPath := filepath.Join(dataDir, vectorFile)
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vecIdx.Load(vectorPath); err != nil {
			_ = lexIdx.Close()
			_ = catalog.Close()
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
	}

	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), embed.DefaultEmbeddingCacheSize)

	engine, err := search.NewEngine(cfg, search.EngineDeps{
		Corrector: spell.New(tables, spell.Config{
			MaxEditDistance: cfg.Spell.MaxEditDistance,
			MinFrequency:    cfg.Spell.MinFrequency,
		}),
		Analyzer: query.NewAnalyzer(tables),
		Expander: query.NewExpander(tables),
		Catalog:  catalog,
		Lexical:  lexIdx,
		Vector:   vecIdx,
		Embedder: embedder,
		Metrics:  telemetry.NewMetrics(),
		Clicks:   telemetry.NewClickSink(256, nil, nil),
	})
	if err != nil {
		_ = lexIdx.Close()
		_ = catalog.Close()
		return nil, err
	}
	return engine, nil
}
