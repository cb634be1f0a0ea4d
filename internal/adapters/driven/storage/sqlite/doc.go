// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - ContentStore: content texts and their chunks
//   - ItemStore: content items and their URL history
//   - JobQueue: durable at-least-once job queue
//   - VectorIndex: exact cosine search over stored chunk embeddings
//   - SchedulerStore: scheduled task state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.contentindex/data/index.db
//
// # Timestamps
//
// Times are stored as fixed-width UTC text so that SQL comparisons order
// them correctly.
package sqlite
