package domain

// IndexRequest names one item to index.
type IndexRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ErrorKind classifies item-level failures in indexing results.
type ErrorKind string

// Error kinds.
const (
	ErrorKindFetch            ErrorKind = "fetch"
	ErrorKindEmbedding        ErrorKind = "embedding"
	ErrorKindRedirectConflict ErrorKind = "redirect_conflict"
	ErrorKindQueue            ErrorKind = "queue"
	ErrorKindDisabled         ErrorKind = "disabled"
	ErrorKindStorage          ErrorKind = "storage"
)

// ItemOutcome is the result state of one item in a batch.
type ItemOutcome string

// Item outcomes.
const (
	OutcomeIndexed ItemOutcome = "indexed"
	OutcomeFailed  ItemOutcome = "failed"
	OutcomeQueued  ItemOutcome = "queued"
)

// ItemResult describes what happened to a single item.
type ItemResult struct {
	ContentItemID string      `json:"content_item_id"`
	URL           string      `json:"url"`
	Outcome       ItemOutcome `json:"outcome"`
	ErrorKind     ErrorKind   `json:"error_kind,omitempty"`
	Error         string      `json:"error,omitempty"`
	ChunkCount    int         `json:"chunk_count"`
	EmbeddedCount int         `json:"embedded_count"`
	ContentHash   string      `json:"content_hash,omitempty"`

	// Unchanged is true when the stored text already matched the fetched text.
	Unchanged bool `json:"unchanged,omitempty"`

	// Deduplicated is true when a queued job for the item already existed.
	Deduplicated bool `json:"deduplicated,omitempty"`

	// DurationMs is the total processing time of the item.
	DurationMs int64 `json:"duration_ms"`
}

// Succeeded reports whether the item was indexed.
func (r ItemResult) Succeeded() bool { return r.Outcome == OutcomeIndexed }

// IndexingStats summarises an indexContent call.
type IndexingStats struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Queued    int          `json:"queued"`
	Results   []ItemResult `json:"results"`
}

// Add records one item result in the tallies.
func (s *IndexingStats) Add(r ItemResult) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeIndexed:
		s.Succeeded++
	case OutcomeQueued:
		s.Queued++
	default:
		s.Failed++
	}
}

// FailedResult builds an ItemResult for a failure, classifying err.
func FailedResult(req IndexRequest, err error) ItemResult {
	return ItemResult{
		ContentItemID: req.ID,
		URL:           req.URL,
		Outcome:       OutcomeFailed,
		ErrorKind:     ClassifyError(err),
		Error:         err.Error(),
	}
}
