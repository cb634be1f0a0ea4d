package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

func TestVectorIndex_Search(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "x", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "diag", []float32{1, 1}))
	require.NoError(t, idx.Add(ctx, "y", []float32{0, 1}))
	require.NoError(t, idx.Add(ctx, "wide", []float32{1, 0, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, "diag", hits[1].ChunkID)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-3)
}

func TestVectorIndex_AddReplaceDelete(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "a", []float32{0, 1}))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)

	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "a"))
	assert.Zero(t, idx.Len())

	assert.ErrorIs(t, idx.Add(ctx, "", []float32{1}), domain.ErrInvalidInput)
	assert.ErrorIs(t, idx.Add(ctx, "b", nil), domain.ErrInvalidInput)
}

func TestVectorIndex_ZeroQuery(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))

	hits, err := idx.Search(ctx, []float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NoError(t, idx.Close())
}
