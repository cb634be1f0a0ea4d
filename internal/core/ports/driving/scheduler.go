package driving

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// Scheduler runs recurring housekeeping tasks.
type Scheduler interface {
	// Start blocks running due tasks until Stop is called or ctx is done.
	Start(ctx context.Context) error

	// Stop ends a running Start and waits for it to return.
	Stop() error

	// RunTask executes a task immediately and records the run.
	RunTask(ctx context.Context, taskID string) (domain.TaskRun, error)

	// History returns recent runs of a task, newest first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)
}
