package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory exact cosine similarity index.
type VectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{vectors: make(map[string][]float32)}
}

// Add inserts or replaces the vector for chunkID.
func (v *VectorIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	if chunkID == "" || len(embedding) == 0 {
		return domain.ErrInvalidInput
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[chunkID] = append([]float32(nil), embedding...)
	return nil
}

// Delete removes a vector. Unknown IDs are ignored.
func (v *VectorIndex) Delete(_ context.Context, chunkID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, chunkID)
	return nil
}

// Len returns the number of stored vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}

// Search returns the k most similar vectors. Vectors whose dimension
// differs from the query are skipped.
func (v *VectorIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	qNorm := norm(query)
	if qNorm == 0 {
		return nil, nil
	}

	v.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(v.vectors))
	for id, vec := range v.vectors {
		if len(vec) != len(query) {
			continue
		}
		n := norm(vec)
		if n == 0 {
			continue
		}
		var dot float64
		for i := range vec {
			dot += float64(vec[i]) * float64(query[i])
		}
		hits = append(hits, driven.VectorHit{ChunkID: id, Similarity: dot / (n * qNorm)})
	}
	v.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error { return nil }

func norm(vec []float32) float64 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
