package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI or any OpenAI-compatible API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGemini is Google's Gemini API.
	AIProviderGemini AIProvider = "gemini"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGemini:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderGemini
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGemini:
		return "Gemini (cloud)"
	default:
		return unknownDescription
	}
}

// IndexingSettings holds orchestrator behaviour.
type IndexingSettings struct {
	// Enabled is the process-wide kill switch.
	Enabled bool

	// SyncThreshold is how many items of a batch are processed inline.
	SyncThreshold int

	// Concurrency bounds parallel item processing.
	Concurrency int
}

// AcquisitionSettings holds fetch behaviour.
type AcquisitionSettings struct {
	Timeout           time.Duration
	UserAgent         string
	MinContentLength  int
	RenderFallback    bool
	RenderTimeout     time.Duration
	RequestsPerSecond float64
	YouTubeAPIKey     string
}

// ChunkingSettings holds chunker configuration.
type ChunkingSettings struct {
	// ChunkTokens is the maximum tokens per chunk.
	ChunkTokens int

	// OverlapTokens is how many tokens consecutive chunks share.
	OverlapTokens int

	// Encoding is the tokenizer encoding name.
	Encoding string
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI/Gemini).
	APIKey string

	// Dimensions overrides the model's known dimensions when positive.
	Dimensions int

	// CacheDir enables the persistent embedding cache when set.
	CacheDir string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// SearchSettings holds search behaviour configuration.
type SearchSettings struct {
	// RRFK is the reciprocal rank fusion smoothing constant.
	RRFK int

	// CandidateMultiplier sizes each lookup's pool relative to the limit.
	CandidateMultiplier int

	// DefaultLimit is used when a query does not set one.
	DefaultLimit int

	// SnippetLength is the maximum snippet size in characters.
	SnippetLength int
}

// QueueSettings holds job queue configuration.
type QueueSettings struct {
	RetryLimit        int
	RetryDelay        time.Duration
	RetryBackoff      float64
	BatchSize         int
	PollInterval      time.Duration
	ArchiveAfter      time.Duration
	DeleteFailedAfter time.Duration
	ExpireActiveAfter time.Duration
}

// RetryPolicy returns the queue's retry policy.
func (q QueueSettings) RetryPolicy() RetryPolicy {
	return RetryPolicy{Limit: q.RetryLimit, Delay: q.RetryDelay, Backoff: q.RetryBackoff}
}

// VectorBackend selects the vector index implementation.
type VectorBackend string

// Vector backends.
const (
	VectorBackendSQLite   VectorBackend = "sqlite"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the implementation.
	Backend VectorBackend

	// DSN is the Postgres connection string for pgvector.
	DSN string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Indexing    IndexingSettings
	Acquisition AcquisitionSettings
	Chunking    ChunkingSettings
	Embedding   EmbeddingSettings
	Search      SearchSettings
	Queue       QueueSettings
	VectorIndex VectorIndexSettings
}

// DefaultUserAgent identifies the static fetcher to remote sites.
const DefaultUserAgent = "contentindex/1.0 (+https://github.com/custodia-labs/contentindex)"

// DefaultAppSettings returns settings with sensible defaults.
// Embedding is left unconfigured; keyword search works without it.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Indexing: IndexingSettings{
			Enabled:       true,
			SyncThreshold: 10,
			Concurrency:   5,
		},
		Acquisition: AcquisitionSettings{
			Timeout:           15 * time.Second,
			UserAgent:         DefaultUserAgent,
			MinContentLength:  100,
			RenderFallback:    false,
			RenderTimeout:     30 * time.Second,
			RequestsPerSecond: 2,
		},
		Chunking: ChunkingSettings{
			ChunkTokens:   512,
			OverlapTokens: 64,
			Encoding:      "cl100k_base",
		},
		Embedding: EmbeddingSettings{},
		Search: SearchSettings{
			RRFK:                60,
			CandidateMultiplier: 3,
			DefaultLimit:        10,
			SnippetLength:       200,
		},
		Queue: QueueSettings{
			RetryLimit:        3,
			RetryDelay:        time.Minute,
			RetryBackoff:      10,
			BatchSize:         5,
			PollInterval:      2 * time.Second,
			ArchiveAfter:      24 * time.Hour,
			DeleteFailedAfter: 168 * time.Hour,
			ExpireActiveAfter: 15 * time.Minute,
		},
		VectorIndex: VectorIndexSettings{
			Backend: VectorBackendSQLite,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGemini,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
		AIProviderGemini: "gemini-embedding-001",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Gemini models
		"gemini-embedding-001": 3072,
		"text-embedding-004":   768,
	}
}
