package search

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickkart/smartsearch/internal/config"
	"github.com/quickkart/smartsearch/internal/embed"
	"github.com/quickkart/smartsearch/internal/lexicon"
	"github.com/quickkart/smartsearch/internal/query"
	"github.com/quickkart/smartsearch/internal/spell"
	"github.com/quickkart/smartsearch/internal/store"
	"github.com/quickkart/smartsearch/internal/telemetry"
)

func catalogFixture() []*store.Product {
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	return []*store.Product{
		{ID: "p1", Title: "Samsung Galaxy M35 Phone", Brand: "samsung", Category: "phone",
			Description: "amoled display 5g smartphone", Price: 25000, Rating: 4.4, NumRatings: 2100, InStock: true, CreatedAt: base},
		{ID: "p2", Title: "Samsung Galaxy S24 Phone", Brand: "samsung", Category: "phone",
			Description: "flagship camera phone", Price: 55000, Rating: 4.7, NumRatings: 3500, InStock: true, CreatedAt: base},
		{ID: "p3", Title: "Levis 511 Slim Jeans", Brand: "levis", Category: "jeans",
			Description: "classic denim jeans for everyday wear", Price: 2400, Rating: 4.3, NumRatings: 900, InStock: true, CreatedAt: base},
		{ID: "p4", Title: "Levis Loose Fit Jeans", Brand: "levis", Category: "jeans",
			Description: "relaxed denim", Price: 2900, Rating: 4.1, NumRatings: 450, InStock: true, CreatedAt: base},
		{ID: "p5", Title: "Dell Inspiron 15 Laptop", Brand: "dell", Category: "laptop",
			Description: "lightweight student laptop", Price: 42000, Rating: 4.0, NumRatings: 600, InStock: true, CreatedAt: base},
		{ID: "p6", Title: "Sony Wireless Headphones", Brand: "sony", Category: "headphones",
			Description: "noise cancelling over ear headphones", Price: 8000, Rating: 4.5, NumRatings: 1800, InStock: false, CreatedAt: base},
	}
}

func newEngineForTest(t *testing.T, mutate func(deps *EngineDeps)) *Engine {
	t.Helper()

	tables := lexicon.MustLoadDefaults()
	catalog, err := store.NewSQLiteCatalog("")
	require.NoError(t, err)
	lexIdx, err := store.NewBleveLexicalIndex("")
	require.NoError(t, err)
	vecIdx, err := store.NewHNSWIndex(store.VectorIndexConfig{Dimensions: embed.StaticDimensions})
	require.NoError(t, err)
	embedder := embed.NewCachedEmbedder(embed.NewStaticEmbedder(), 64)

	deps := EngineDeps{
		Corrector: spell.New(tables, spell.DefaultConfig()),
		Analyzer:  query.NewAnalyzer(tables),
		Expander:  query.NewExpander(tables),
		Catalog:   catalog,
		Lexical:   lexIdx,
		Vector:    vecIdx,
		Embedder:  embedder,
	}
	if mutate != nil {
		mutate(&deps)
	}

	engine, err := NewEngine(config.NewConfig(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	require.NoError(t, engine.Index(context.Background(), catalogFixture()))
	return engine
}

func TestEngine_CorrectsMisspelledQuery(t *testing.T) {
	engine := newEngineForTest(t, nil)

	resp, err := engine.Search(context.Background(), "jeins for men", Options{})
	require.NoError(t, err)

	assert.True(t, resp.Corrected)
	assert.Equal(t, "jeans for men", resp.CorrectedQuery)
	require.NotEmpty(t, resp.Results)

	// Jeans products lead the ranking.
	assert.Equal(t, "jeans", resp.Results[0].Product.Category)
	assert.Equal(t, StrategyLexical, resp.StrategyUsed)
	assert.False(t, resp.Degraded)
}

func TestEngine_PriceConstraintEnforced(t *testing.T) {
	engine := newEngineForTest(t, nil)

	resp, err := engine.Search(context.Background(), "samung phone under 30k", Options{})
	require.NoError(t, err)

	assert.Equal(t, "samsung phone under 30k", resp.CorrectedQuery)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.LessOrEqual(t, r.Product.Price, 30000.0,
			"product %s violates the price bound", r.Product.ID)
	}
}

func TestEngine_ExplicitFiltersWin(t *testing.T) {
	engine := newEngineForTest(t, nil)

	min := 50000.0
	resp, err := engine.Search(context.Background(), "samsung phone", Options{
		Filters: Filters{MinPrice: &min},
	})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Product.Price, 50000.0)
	}
}

// failingLexical simulates an unreachable keyword index.
type failingLexical struct{}

func (f *failingLexical) Index(ctx context.Context, products []*store.Product) error { return nil }
func (f *failingLexical) Search(ctx context.Context, q string, limit int) ([]*store.LexicalResult, error) {
	return nil, fmt.Errorf("connection refused")
}
func (f *failingLexical) Delete(ctx context.Context, ids []string) error { return nil }
func (f *failingLexical) Count() (int, error)                            { return 0, nil }
func (f *failingLexical) Close() error                                   { return nil }

func TestEngine_SurvivesLexicalFailure(t *testing.T) {
	engine := newEngineForTest(t, func(deps *EngineDeps) {
		deps.Lexical = &failingLexical{}
	})

	resp, err := engine.Search(context.Background(), "jeans", Options{})
	require.NoError(t, err)

	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.FailedStrategies, StrategyLexical)
	assert.NotEmpty(t, resp.Results, "fallback strategies must still produce results")
	assert.NotEqual(t, StrategyNone, resp.StrategyUsed)
}

// brokenCatalog lets indexing and scans through but fails the batch
// lookup that enriches candidates with product records.
type brokenCatalog struct {
	store.Catalog
}

func (c *brokenCatalog) GetProducts(ctx context.Context, ids []string) (map[string]*store.Product, error) {
	return nil, fmt.Errorf("database is locked")
}

func TestEngine_DegradesWhenEnrichmentFails(t *testing.T) {
	engine := newEngineForTest(t, func(deps *EngineDeps) {
		deps.Catalog = &brokenCatalog{Catalog: deps.Catalog}
	})

	resp, err := engine.Search(context.Background(), "jeans", Options{})
	require.NoError(t, err, "a catalog failure must not surface as an error")

	assert.True(t, resp.Degraded)
	assert.Empty(t, resp.Results)
	assert.Equal(t, StrategyNone, resp.StrategyUsed)

	// The degraded response must not be cached.
	again, err := engine.Search(context.Background(), "jeans", Options{})
	require.NoError(t, err)
	assert.NotSame(t, resp, again)
}

func TestEngine_SortByPrice(t *testing.T) {
	engine := newEngineForTest(t, nil)

	resp, err := engine.Search(context.Background(), "samsung phone", Options{SortBy: SortPriceLowHigh})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(resp.Results), 2)
	for i := 1; i < len(resp.Results); i++ {
		assert.LessOrEqual(t, resp.Results[i-1].Product.Price, resp.Results[i].Product.Price)
	}
}

func TestEngine_PaginationDeterministic(t *testing.T) {
	engine := newEngineForTest(t, nil)

	first, err := engine.Search(context.Background(), "jeans", Options{Page: 1, PageSize: 1})
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), "jeans", Options{Page: 2, PageSize: 1})
	require.NoError(t, err)

	require.NotEmpty(t, first.Results)
	require.NotEmpty(t, second.Results)
	assert.NotEqual(t, first.Results[0].Product.ID, second.Results[0].Product.ID)

	// Replaying page 1 yields the identical slice of the ranking.
	replay, err := engine.Search(context.Background(), "jeans", Options{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, first.Results[0].Product.ID, replay.Results[0].Product.ID)
}

func TestEngine_EmptyQuery(t *testing.T) {
	engine := newEngineForTest(t, nil)

	resp, err := engine.Search(context.Background(), "   ", Options{})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	assert.Equal(t, StrategyNone, resp.StrategyUsed)
}

func TestEngine_CachedResponseReused(t *testing.T) {
	engine := newEngineForTest(t, nil)

	first, err := engine.Search(context.Background(), "jeans", Options{})
	require.NoError(t, err)
	second, err := engine.Search(context.Background(), "jeans", Options{})
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestEngine_RecordClickNeverBlocks(t *testing.T) {
	engine := newEngineForTest(t, func(deps *EngineDeps) {
		deps.Clicks = telemetry.NewClickSink(4, nil, nil)
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			engine.RecordClick("jeans", "p3", 1)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RecordClick blocked")
	}
}
