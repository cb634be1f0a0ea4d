package driven

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// EmbeddingService turns chunk text into vectors. A nil service is valid:
// chunks are then stored without vectors and hybrid search degrades to
// keyword matches.
//
// Vectors are stored and searched by a VectorIndex; this port only produces
// them. Failures are returned as *domain.EmbeddingError so callers can tell
// empty input from an unreachable provider.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every vector the model returns.
	Dimensions() int

	ModelName() string

	// Ping makes the cheapest request the provider offers.
	Ping(ctx context.Context) error

	Close() error
}

// EmbeddingCache remembers vectors per (model, text) so re-indexing
// unchanged chunks costs no provider calls.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Put(ctx context.Context, model, text string, vector []float32) error
	Close() error
}

// EmbeddingValidator checks an embedding configuration against the live
// provider. Unconfigured settings validate trivially.
type EmbeddingValidator interface {
	ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error
}
