package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure JobQueue implements the interface.
var _ driven.JobQueue = (*JobQueue)(nil)

// JobQueue is an in-memory implementation of driven.JobQueue.
// Jobs do not survive a restart; use it for tests and ephemeral runs.
type JobQueue struct {
	mu       sync.Mutex
	jobs     map[string]*domain.Job
	settings domain.QueueSettings
	now      func() time.Time
}

// NewJobQueue creates a new in-memory job queue.
func NewJobQueue(settings domain.QueueSettings) *JobQueue {
	return &JobQueue{
		jobs:     make(map[string]*domain.Job),
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the queue's time source.
func (q *JobQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue adds a job unless an outstanding job holds the same singleton key.
func (q *JobQueue) Enqueue(_ context.Context, queue string, payload []byte, opts domain.EnqueueOptions) (*domain.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if opts.SingletonKey != "" {
		for _, job := range q.jobs {
			if job.Queue == queue && job.SingletonKey == opts.SingletonKey && job.State.IsOutstanding() {
				return copyJob(job), false, nil
			}
		}
	}

	now := q.now()
	runAt := opts.RunAt
	if runAt.IsZero() {
		runAt = now
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.settings.RetryPolicy().MaxAttempts()
	}

	job := &domain.Job{
		ID:           uuid.NewString(),
		Queue:        queue,
		SingletonKey: opts.SingletonKey,
		Payload:      append([]byte(nil), payload...),
		State:        domain.JobStateCreated,
		MaxAttempts:  maxAttempts,
		RunAt:        runAt,
		CreatedAt:    now,
	}
	q.jobs[job.ID] = job
	return copyJob(job), true, nil
}

// Fetch claims up to limit due jobs, oldest run time first.
func (q *JobQueue) Fetch(_ context.Context, queue string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []*domain.Job
	for _, job := range q.jobs {
		if job.Queue != queue || job.RunAt.After(now) {
			continue
		}
		if job.State == domain.JobStateCreated || job.State == domain.JobStateRetry {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].RunAt.Equal(due[j].RunAt) {
			return due[i].RunAt.Before(due[j].RunAt)
		}
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]domain.Job, 0, len(due))
	for _, job := range due {
		started := now
		job.State = domain.JobStateActive
		job.Attempt++
		job.StartedAt = &started
		claimed = append(claimed, *copyJob(job))
	}
	return claimed, nil
}

// Complete marks an active job completed.
func (q *JobQueue) Complete(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok || job.State != domain.JobStateActive {
		return &domain.QueueError{Op: "complete", Cause: fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)}
	}
	now := q.now()
	job.State = domain.JobStateCompleted
	job.CompletedAt = &now
	job.LastError = ""
	return nil
}

// Fail reschedules the job with backoff while attempts remain.
func (q *JobQueue) Fail(_ context.Context, jobID string, cause error) (*domain.Job, error) {
	return q.settle(jobID, cause, false)
}

// FailPermanently marks the job failed regardless of remaining attempts.
func (q *JobQueue) FailPermanently(_ context.Context, jobID string, cause error) (*domain.Job, error) {
	return q.settle(jobID, cause, true)
}

func (q *JobQueue) settle(jobID string, cause error, terminal bool) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.active("fail", jobID)
	if err != nil {
		return nil, err
	}

	job.LastError = "unknown error"
	if cause != nil {
		job.LastError = cause.Error()
	}
	if terminal {
		now := q.now()
		job.State = domain.JobStateFailed
		job.CompletedAt = &now
		return copyJob(job), nil
	}
	q.retryOrFail(job, q.now().Add(q.settings.RetryPolicy().DelayFor(job.Attempt)))
	return copyJob(job), nil
}

// Release returns an active job to the queue and gives back its attempt.
func (q *JobQueue) Release(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.active("release", jobID)
	if err != nil {
		return err
	}
	job.Attempt--
	job.State = domain.JobStateCreated
	if job.Attempt > 0 {
		job.State = domain.JobStateRetry
	}
	job.StartedAt = nil
	job.RunAt = q.now()
	return nil
}

func (q *JobQueue) active(op, jobID string) (*domain.Job, error) {
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, &domain.QueueError{Op: op, Cause: domain.ErrNotFound}
	}
	if job.State != domain.JobStateActive {
		return nil, &domain.QueueError{
			Op:    op,
			Cause: fmt.Errorf("job %s is %s, not active: %w", jobID, job.State, domain.ErrInvalidInput),
		}
	}
	return job, nil
}

// retryOrFail moves an active job to retry at runAt, or to failed when it
// has used all of its attempts.
func (q *JobQueue) retryOrFail(job *domain.Job, runAt time.Time) {
	if job.Attempt >= job.MaxAttempts {
		now := q.now()
		job.State = domain.JobStateFailed
		job.CompletedAt = &now
		return
	}
	job.State = domain.JobStateRetry
	job.RunAt = runAt
}

// GetJob retrieves a job by ID.
func (q *JobQueue) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(job), nil
}

// Stats counts jobs per state.
func (q *JobQueue) Stats(_ context.Context, queue string) (domain.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := domain.QueueStats{Queue: queue}
	for _, job := range q.jobs {
		if job.Queue != queue {
			continue
		}
		switch job.State {
		case domain.JobStateCreated:
			stats.Created++
		case domain.JobStateRetry:
			stats.Retry++
		case domain.JobStateActive:
			stats.Active++
		case domain.JobStateCompleted:
			stats.Completed++
		case domain.JobStateFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// Maintain expires stuck active jobs and purges archived ones.
func (q *JobQueue) Maintain(_ context.Context, now time.Time) (domain.MaintenanceResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var result domain.MaintenanceResult
	for id, job := range q.jobs {
		switch job.State {
		case domain.JobStateActive:
			if q.settings.ExpireActiveAfter <= 0 || job.StartedAt == nil ||
				!job.StartedAt.Before(now.Add(-q.settings.ExpireActiveAfter)) {
				continue
			}
			job.LastError = "job expired while active"
			if job.Attempt >= job.MaxAttempts {
				job.State = domain.JobStateFailed
				completed := now
				job.CompletedAt = &completed
			} else {
				job.State = domain.JobStateRetry
				job.RunAt = now
			}
			result.Expired++
		case domain.JobStateCompleted:
			if expired(job.CompletedAt, now, q.settings.ArchiveAfter) {
				delete(q.jobs, id)
				result.PurgedCompleted++
			}
		case domain.JobStateFailed:
			if expired(job.CompletedAt, now, q.settings.DeleteFailedAfter) {
				delete(q.jobs, id)
				result.PurgedFailed++
			}
		}
	}
	return result, nil
}

func expired(at *time.Time, now time.Time, after time.Duration) bool {
	return after > 0 && at != nil && at.Before(now.Add(-after))
}

func copyJob(job *domain.Job) *domain.Job {
	c := *job
	c.Payload = append([]byte(nil), job.Payload...)
	return &c
}
