package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *HNSWIndex {
	t.Helper()
	idx, err := NewHNSWIndex(VectorIndexConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestHNSWIndex_AddAndSearch(t *testing.T) {
	idx := newTestIndex(t)

	ids := []string{"p1", "p2", "p3"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	require.NoError(t, idx.Add(context.Background(), ids, vectors))

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.Equal(t, "p3", results[1].ID)
	assert.Greater(t, results[0].Score, float32(0.99))
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Add(context.Background(), []string{"p1"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = idx.Search(context.Background(), []float32{1, 0}, 1)
	require.Error(t, err)
}

func TestHNSWIndex_LazyDelete(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Add(context.Background(),
		[]string{"p1", "p2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	require.NoError(t, idx.Delete(context.Background(), []string{"p1"}))

	assert.False(t, idx.Contains("p1"))
	assert.True(t, idx.Contains("p2"))
	assert.Equal(t, 1, idx.Count())

	// Deleted node stays in the graph but never surfaces.
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "p1", r.ID)
	}
}

func TestHNSWIndex_Replace(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Add(context.Background(),
		[]string{"p1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, idx.Add(context.Background(),
		[]string{"p1"}, [][]float32{{0, 1, 0, 0}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(context.Background(), []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
	assert.Greater(t, results[0].Score, float32(0.99))
}

func TestHNSWIndex_EmptySearch(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_SaveLoad(t *testing.T) {
	idx := newTestIndex(t)

	require.NoError(t, idx.Add(context.Background(),
		[]string{"p1", "p2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	require.NoError(t, idx.Save(path))

	loaded, err := NewHNSWIndex(VectorIndexConfig{Dimensions: 4})
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()

	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Count())

	results, err := loaded.Search(context.Background(), []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ID)
}
