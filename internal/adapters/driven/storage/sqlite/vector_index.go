package sqlite

import (
	"container/heap"
	"context"
	"fmt"
	"math"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex with an exact scan over the
// embedding column of content_chunks.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Add sets the embedding of an existing chunk.
func (v *vectorIndex) Add(ctx context.Context, chunkID string, embedding []float32) error {
	res, err := v.store.db.ExecContext(ctx,
		"UPDATE content_chunks SET embedding = ? WHERE id = ?", float32SliceToBytes(embedding), chunkID)
	if err != nil {
		return fmt.Errorf("storing embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chunk %s: %w", chunkID, domain.ErrNotFound)
	}
	return nil
}

// Delete clears a chunk's embedding. Unknown chunks are ignored.
func (v *vectorIndex) Delete(ctx context.Context, chunkID string) error {
	if _, err := v.store.db.ExecContext(ctx,
		"UPDATE content_chunks SET embedding = NULL WHERE id = ?", chunkID); err != nil {
		return fmt.Errorf("clearing embedding: %w", err)
	}
	return nil
}

// Search scans every embedded chunk and keeps the k most similar.
func (v *vectorIndex) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}
	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := v.store.db.QueryContext(ctx,
		"SELECT id, embedding FROM content_chunks WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrVectorIndexUnavailable, err)
	}
	defer rows.Close()

	top := &hitHeap{}
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		vec := bytesToFloat32Slice(blob)
		if len(vec) != len(query) {
			continue
		}
		top.offer(driven.VectorHit{ChunkID: id, Similarity: cosine(query, queryNorm, vec)}, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	hits := make([]driven.VectorHit, top.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(top).(driven.VectorHit)
	}
	return hits, nil
}

// Close is a no-op; the Store owns the connection.
func (v *vectorIndex) Close() error {
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(query []float32, queryNorm float64, v []float32) float64 {
	var dot float64
	for i := range query {
		dot += float64(query[i]) * float64(v[i])
	}
	n := norm(v)
	if n == 0 {
		return 0
	}
	return dot / (queryNorm * n)
}

// hitHeap is a min-heap on similarity, ties broken so the larger chunk ID
// is evicted first.
type hitHeap []driven.VectorHit

func (h hitHeap) Len() int { return len(h) }
func (h hitHeap) Less(i, j int) bool {
	if h[i].Similarity != h[j].Similarity {
		return h[i].Similarity < h[j].Similarity
	}
	return h[i].ChunkID > h[j].ChunkID
}
func (h hitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// offer keeps hit if the heap holds fewer than k hits or hit outranks the
// current worst.
func (h *hitHeap) offer(hit driven.VectorHit, k int) {
	if h.Len() < k {
		heap.Push(h, hit)
		return
	}
	if better(hit, (*h)[0]) {
		(*h)[0] = hit
		heap.Fix(h, 0)
	}
}

// better reports whether a ranks above b: higher similarity, then the
// smaller chunk ID.
func better(a, b driven.VectorHit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.ChunkID < b.ChunkID
}
func (h *hitHeap) Push(x any)   { *h = append(*h, x.(driven.VectorHit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
