package domain

// MatchType records which lookup(s) produced a fused result.
type MatchType string

// Match types.
const (
	MatchBoth     MatchType = "both"
	MatchKeyword  MatchType = "keyword"
	MatchSemantic MatchType = "semantic"
)

// SearchMode defines how a query is answered.
type SearchMode string

// Available search modes.
const (
	// SearchModeKeyword uses only the full-text index.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModeHybrid fuses full-text and vector lookups.
	SearchModeHybrid SearchMode = "hybrid"
)

// IsValid returns true if the search mode is recognised.
func (m SearchMode) IsValid() bool {
	return m == SearchModeKeyword || m == SearchModeHybrid
}

// RequiresEmbedding returns true if this mode needs an embedding provider.
func (m SearchMode) RequiresEmbedding() bool {
	return m == SearchModeHybrid
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Embedding is a precomputed query vector. When nil, hybrid search
	// embeds the query itself.
	Embedding []float32
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// ContentItemID identifies the item the chunk belongs to.
	ContentItemID string `json:"content_item_id"`

	// ChunkID identifies the matched chunk.
	ChunkID string `json:"chunk_id"`

	// ChunkIndex is the chunk's position within its text.
	ChunkIndex int `json:"chunk_index"`

	// ChunkText is the full matched chunk.
	ChunkText string `json:"chunk_text"`

	// Snippet is an excerpt centred on the first matched term.
	Snippet string `json:"snippet"`

	// RelevanceScore is the fused RRF score, or 1/(rank+1) for keyword search.
	RelevanceScore float64 `json:"relevance_score"`

	// KeywordScore is the full-text engine's own score, when the chunk was a keyword hit.
	KeywordScore float64 `json:"keyword_score,omitempty"`

	// Similarity is the vector similarity, when the chunk was a semantic hit.
	Similarity float64 `json:"similarity,omitempty"`

	// MatchType is both, keyword or semantic.
	MatchType MatchType `json:"match_type"`

	// MatchedTerms are the query terms found in the chunk.
	MatchedTerms []string `json:"matched_terms"`
}

// Snippet is an excerpt of a chunk plus the query terms it matched.
type Snippet struct {
	Text         string
	MatchedTerms []string
}
