// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - Acquirer: Turns a URL into normalised plain text
//   - AcquisitionStrategy: One way of acquiring (static page, transcript, rendered page)
//   - Normaliser: Transforms raw bytes into text
//   - NormaliserRegistry: Selects appropriate normaliser by MIME type
//   - Tokenizer: Counts and splits tokens
//   - Chunker: Splits text into token-bounded windows
//   - ContentStore: ContentText and ContentChunk persistence
//   - ItemStore: ContentItem lookup for the redirect guard
//   - JobQueue: Durable background job storage
//   - SearchEngine: Full-text keyword search
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: Vector storage/search. Without it, hybrid search is keyword-only.
//   - EmbeddingService: Generates vector embeddings. Chunks are stored with null vectors.
//   - EmbeddingCache: Avoids re-embedding unchanged chunk text.
//   - SchedulerStore: Persists scheduler state between runs.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
