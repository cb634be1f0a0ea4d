package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// JobQueue is a durable, at-least-once job store.
// State lives in persistent storage so jobs survive process restarts.
type JobQueue interface {
	// Enqueue adds a job. When opts.SingletonKey matches an outstanding job
	// in the same queue, no job is created and the existing job is returned
	// with created = false.
	Enqueue(ctx context.Context, queue string, payload []byte, opts domain.EnqueueOptions) (job *domain.Job, created bool, err error)

	// Fetch claims up to limit due jobs, moving them to active.
	Fetch(ctx context.Context, queue string, limit int) ([]domain.Job, error)

	// Complete marks an active job completed.
	Complete(ctx context.Context, jobID string) error

	// Fail records a failure. The job is rescheduled with backoff while
	// attempts remain and marked failed otherwise.
	Fail(ctx context.Context, jobID string, cause error) (*domain.Job, error)

	// FailPermanently marks an active job failed without further attempts.
	FailPermanently(ctx context.Context, jobID string, cause error) (*domain.Job, error)

	// Release hands an active job back unprocessed. The claim does not
	// count as an attempt and the job is due immediately.
	Release(ctx context.Context, jobID string) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// Stats counts jobs per state.
	Stats(ctx context.Context, queue string) (domain.QueueStats, error)

	// Maintain expires stuck active jobs and purges archived ones.
	Maintain(ctx context.Context, now time.Time) (domain.MaintenanceResult, error)
}
