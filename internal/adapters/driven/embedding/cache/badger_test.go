package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c, err := Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, ok, err := c.Get(ctx, "model-a", "hello")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "model-a", "hello", []float32{0.25, -1, 3.5}))

	vec, ok, err := c.Get(ctx, "model-a", "hello")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.25, -1, 3.5}, vec)

	_, ok, err = c.Get(ctx, "model-b", "hello")
	require.NoError(t, err)
	assert.False(t, ok, "entries are scoped by model")
}

func TestCache_InMemory(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Put(context.Background(), "m", "x", []float32{1}))
	_, ok, err := c.Get(context.Background(), "m", "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_Persists(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), "m", "text", []float32{1, 2}))
	require.NoError(t, c.Close())

	c, err = Open(dir)
	require.NoError(t, err)
	defer c.Close()

	vec, ok, err := c.Get(context.Background(), "m", "text")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestDecodeVector_Corrupt(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
