package driving

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// Worker consumes background indexing jobs.
type Worker interface {
	// Run polls the queue until ctx is cancelled.
	Run(ctx context.Context) error

	// ProcessBatch claims and processes one batch of jobs.
	ProcessBatch(ctx context.Context) (domain.BatchReport, error)
}
