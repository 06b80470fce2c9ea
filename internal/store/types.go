// Package store provides the persistence layer for the product catalog:
// a SQLite catalog of product records, a Bleve BM25 index for keyword
// retrieval, and an HNSW graph for vector retrieval.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Product is a single catalog entry. ID is stable across reindexing.
type Product struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Brand       string    `json:"brand" yaml:"brand"`
	Category    string    `json:"category" yaml:"category"`
	Description string    `json:"description" yaml:"description"`
	Price       float64   `json:"price" yaml:"price"`
	Rating      float64   `json:"rating" yaml:"rating"`
	NumRatings  int       `json:"num_ratings" yaml:"num_ratings"`
	InStock     bool      `json:"in_stock" yaml:"in_stock"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// SearchText is the text indexed for lexical retrieval.
func (p *Product) SearchText() string {
	return p.Title + " " + p.Brand + " " + p.Category + " " + p.Description
}

// LexicalResult is a BM25 hit with its raw engine score.
type LexicalResult struct {
	ID            string
	Score         float64
	MatchedFields []string
}

// VectorResult is an ANN hit. Score is normalized similarity in [0,1].
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32
}

// AttributeFilter narrows a structured catalog scan. Zero values mean
// "no constraint" for that attribute.
type AttributeFilter struct {
	Category string
	Brand    string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
}

// LexicalIndex provides BM25 keyword retrieval over product text.
type LexicalIndex interface {
	Index(ctx context.Context, products []*Product) error
	Search(ctx context.Context, query string, limit int) ([]*LexicalResult, error)
	Delete(ctx context.Context, ids []string) error
	Count() (int, error)
	Close() error
}

// VectorIndex provides approximate nearest neighbor retrieval.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// Catalog is the product record store and the source of truth for
// structured scans.
type Catalog interface {
	SaveProducts(ctx context.Context, products []*Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]*Product, error)
	AttributeScan(ctx context.Context, filter AttributeFilter, limit int) ([]*Product, error)
	EmergencyScan(ctx context.Context, terms []string, limit int) ([]*Product, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// ErrNotFound is returned when a product ID is not in the catalog.
var ErrNotFound = errors.New("product not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrDimensionMismatch indicates a vector of the wrong dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (reindex the catalog)", e.Expected, e.Got)
}
