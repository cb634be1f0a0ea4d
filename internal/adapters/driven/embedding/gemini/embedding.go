// Package gemini provides an embedding service adapter for Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "gemini-embedding-001"

// maxBatch is the most texts sent in one BatchEmbedContents call.
const maxBatch = 100

var modelDimensions = map[string]int{
	"gemini-embedding-001": 3072,
	"text-embedding-004":   768,
}

// Config holds configuration for the Gemini embedding service.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int

	// ClientOptions are appended after the API key option.
	ClientOptions []option.ClientOption
}

// EmbeddingService generates embeddings through the Gemini API.
type EmbeddingService struct {
	client     *genai.Client
	model      *genai.EmbeddingModel
	modelName  string
	dimensions int
}

// NewEmbeddingService creates a Gemini embedding service.
// It returns an unconfigured EmbeddingError when no API key is set.
func NewEmbeddingService(ctx context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, &domain.EmbeddingError{
			Reason: domain.EmbeddingUnconfigured,
			Cause:  errors.New("gemini api key not configured"),
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = modelDimensions[cfg.Model]
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &EmbeddingService{
		client:     client,
		model:      client.EmbeddingModel(cfg.Model),
		modelName:  cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.EmbeddingError{Reason: domain.EmbeddingEmptyInput}
	}

	res, err := s.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, &domain.EmbeddingError{Reason: domain.EmbeddingUpstream, Cause: err}
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, &domain.EmbeddingError{
			Reason: domain.EmbeddingUpstream,
			Cause:  errors.New("empty embedding received"),
		}
	}
	return res.Embedding.Values, nil
}

// EmbedBatch embeds texts in groups of up to maxBatch per request.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		batch := s.model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := s.model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, &domain.EmbeddingError{Reason: domain.EmbeddingUpstream, Cause: err}
		}
		if len(resp.Embeddings) != end-start {
			return nil, &domain.EmbeddingError{
				Reason: domain.EmbeddingUpstream,
				Cause:  fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), end-start),
			}
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.modelName
}

// Ping validates the key with a one-word embedding.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if _, err := s.Embed(ctx, "ping"); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *EmbeddingService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
