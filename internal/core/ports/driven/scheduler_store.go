package driven

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// SchedulerStore keeps task schedules and a bounded run history.
type SchedulerStore interface {
	// GetTask returns nil and no error when the task has never been saved.
	GetTask(ctx context.Context, taskID string) (*domain.TaskState, error)

	// ListTasks returns every saved task ordered by ID.
	ListTasks(ctx context.Context) ([]domain.TaskState, error)

	// SaveTask inserts or replaces a task's state.
	SaveTask(ctx context.Context, task *domain.TaskState) error

	// RecordRun appends a run to the history.
	RecordRun(ctx context.Context, run *domain.TaskRun) error

	// RecentRuns returns up to limit runs of a task, newest first.
	RecentRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error)

	// PruneRuns keeps the newest keep runs per task.
	PruneRuns(ctx context.Context, keep int) error
}
