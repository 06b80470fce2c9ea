package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/quickkart/smartsearch/internal/config"
	"github.com/quickkart/smartsearch/internal/store"
)

func newIndexCmd() *cobra.Command {
	var productsFile string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a product catalog",
		Long: `Index a product catalog JSON file into the search stores:
the SQLite catalog, the keyword index and the vector index.

The file is a JSON array of products:

  [{"id": "p1", "title": "Samsung Galaxy Phone", "brand": "samsung",
    "category": "phone", "price": 25000, "rating": 4.4,
    "num_ratings": 2100, "in_stock": true}, ...]`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, productsFile)
		},
	}

	cmd.Flags().StringVarP(&productsFile, "products", "p", "", "Path to the product catalog JSON file (required)")
	_ = cmd.MarkFlagRequired("products")

	return cmd
}

func runIndex(cmd *cobra.Command, productsFile string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	products, err := loadProducts(productsFile)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("no products found in %s", productsFile)
	}

	// One writer per data directory; concurrent index runs would corrupt
	// the bleve directory.
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, ".index.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another indexing run is in progress for %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	if err := engine.Index(cmd.Context(), products); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	if err := engine.SaveVectors(filepath.Join(cfg.Paths.DataDir, vectorFile)); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}

	cmd.Printf("Indexed %d products into %s\n", len(products), cfg.Paths.DataDir)
	return nil
}

func loadProducts(path string) ([]*store.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var products []*store.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("product at index %d has no id", i)
		}
		if p.Title == "" {
			return nil, fmt.Errorf("product %s has no title", p.ID)
		}
	}
	return products, nil
}
