package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls   int
	batched []string
	err     error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text))}, nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.batched = append(e.batched, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int              { return 1 }
func (e *countingEmbedder) ModelName() string            { return "counting" }
func (e *countingEmbedder) Ping(_ context.Context) error { return nil }
func (e *countingEmbedder) Close() error                 { return nil }

func newCachedService(t *testing.T) (*CachedService, *countingEmbedder) {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	inner := &countingEmbedder{}
	svc := Wrap(inner, c)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, inner
}

func TestCachedService_EmbedHitsCache(t *testing.T) {
	svc, inner := newCachedService(t)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "abc")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "abc")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedService_EmbedBatchOnlyMissing(t *testing.T) {
	svc, inner := newCachedService(t)
	ctx := context.Background()

	_, err := svc.Embed(ctx, "cached")
	require.NoError(t, err)

	vectors, err := svc.EmbedBatch(ctx, []string{"cached", "new", "another"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{6}, {3}, {7}}, vectors)
	assert.Equal(t, []string{"new", "another"}, inner.batched)
}

func TestCachedService_ErrorNotCached(t *testing.T) {
	svc, inner := newCachedService(t)
	inner.err = errors.New("upstream down")

	_, err := svc.Embed(context.Background(), "abc")
	assert.Error(t, err)

	inner.err = nil
	_, err = svc.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedService_Delegates(t *testing.T) {
	svc, _ := newCachedService(t)
	assert.Equal(t, "counting", svc.ModelName())
	assert.Equal(t, 1, svc.Dimensions())
	assert.NoError(t, svc.Ping(context.Background()))
}
