package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// jobQueue implements driven.JobQueue on the jobs table.
type jobQueue struct {
	store    *Store
	settings domain.QueueSettings
}

var _ driven.JobQueue = (*jobQueue)(nil)

const jobColumns = `id, queue, singleton_key, payload, state, attempt, max_attempts,
	last_error, run_at, started_at, completed_at, created_at`

// expiredMessage is recorded on jobs reclaimed by maintenance.
const expiredMessage = "job expired while active"

func queueErr(op string, err error) error {
	return &domain.QueueError{Op: op, Cause: err}
}

// Enqueue inserts a job unless an outstanding job holds the same singleton key.
func (q *jobQueue) Enqueue(ctx context.Context, queue string, payload []byte, opts domain.EnqueueOptions) (*domain.Job, bool, error) {
	now := q.store.now()
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
		Payload:      payload,
		State:        domain.JobStateCreated,
		MaxAttempts:  maxAttempts,
		RunAt:        runAt,
		CreatedAt:    now,
	}

	// The partial unique index turns a duplicate outstanding singleton
	// into a no-op insert.
	res, err := q.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, queue, singleton_key, payload, state, attempt, max_attempts, run_at, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, job.ID, queue, nullString(opts.SingletonKey), payload, string(domain.JobStateCreated),
		maxAttempts, formatTime(runAt), formatTime(now))
	if err != nil {
		return nil, false, queueErr("enqueue", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, false, queueErr("enqueue", err)
	} else if n == 1 {
		return job, true, nil
	}

	existing, err := scanJob(q.store.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE queue = ? AND singleton_key = ? AND state IN ('created', 'retry', 'active')
	`, queue, opts.SingletonKey))
	if errors.Is(err, domain.ErrNotFound) {
		// The outstanding job finished between the insert and the lookup.
		return q.Enqueue(ctx, queue, payload, opts)
	}
	if err != nil {
		return nil, false, queueErr("enqueue", err)
	}
	return existing, false, nil
}

// Fetch claims up to limit due jobs in a single UPDATE ... RETURNING,
// so two workers never claim the same job.
func (q *jobQueue) Fetch(ctx context.Context, queue string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := formatTime(q.store.now())

	rows, err := q.store.db.QueryContext(ctx, `
		UPDATE jobs
		SET state = 'active', attempt = attempt + 1, started_at = ?
		WHERE id IN (
			SELECT id FROM jobs
			WHERE queue = ? AND state IN ('created', 'retry') AND run_at <= ?
			ORDER BY run_at, created_at
			LIMIT ?
		)
		RETURNING `+jobColumns, now, queue, now, limit)
	if err != nil {
		return nil, queueErr("fetch", err)
	}
	defer rows.Close()

	var jobs []domain.Job //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, queueErr("fetch", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, queueErr("fetch", err)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].RunAt.Equal(jobs[j].RunAt) {
			return jobs[i].RunAt.Before(jobs[j].RunAt)
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Complete marks an active job completed.
func (q *jobQueue) Complete(ctx context.Context, jobID string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE jobs SET state = 'completed', completed_at = ?, last_error = NULL
		WHERE id = ? AND state = 'active'
	`, formatTime(q.store.now()), jobID)
	if err != nil {
		return queueErr("complete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queueErr("complete", fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound))
	}
	return nil
}

// Fail reschedules the job with backoff while attempts remain, otherwise
// marks it failed.
func (q *jobQueue) Fail(ctx context.Context, jobID string, cause error) (*domain.Job, error) {
	return q.settle(ctx, jobID, cause, false)
}

// FailPermanently marks the job failed regardless of remaining attempts.
func (q *jobQueue) FailPermanently(ctx context.Context, jobID string, cause error) (*domain.Job, error) {
	return q.settle(ctx, jobID, cause, true)
}

func (q *jobQueue) settle(ctx context.Context, jobID string, cause error, terminal bool) (*domain.Job, error) {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}

	var job *domain.Job
	err := q.store.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID))
		if err != nil {
			return err
		}
		if current.State != domain.JobStateActive {
			return fmt.Errorf("job %s is %s, not active: %w", jobID, current.State, domain.ErrInvalidInput)
		}

		now := q.store.now()
		current.LastError = message
		if terminal || current.Attempt >= current.MaxAttempts {
			current.State = domain.JobStateFailed
			current.CompletedAt = &now
		} else {
			current.State = domain.JobStateRetry
			current.RunAt = now.Add(q.settings.RetryPolicy().DelayFor(current.Attempt))
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs SET state = ?, last_error = ?, run_at = ?, completed_at = ?
			WHERE id = ?
		`, string(current.State), message, formatTime(current.RunAt), formatTimePtr(current.CompletedAt), jobID); err != nil {
			return err
		}
		job = current
		return nil
	})
	if err != nil {
		return nil, queueErr("fail", err)
	}
	return job, nil
}

// Release returns an active job to the queue and gives back its attempt.
func (q *jobQueue) Release(ctx context.Context, jobID string) error {
	res, err := q.store.db.ExecContext(ctx, `
		UPDATE jobs SET
			state = CASE WHEN attempt > 1 THEN 'retry' ELSE 'created' END,
			attempt = attempt - 1,
			started_at = NULL,
			run_at = ?
		WHERE id = ? AND state = 'active'
	`, formatTime(q.store.now()), jobID)
	if err != nil {
		return queueErr("release", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queueErr("release", fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound))
	}
	return nil
}

// GetJob retrieves a job by ID.
func (q *jobQueue) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	return scanJob(q.store.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID))
}

// Stats counts jobs per state.
func (q *jobQueue) Stats(ctx context.Context, queue string) (domain.QueueStats, error) {
	stats := domain.QueueStats{Queue: queue}

	rows, err := q.store.db.QueryContext(ctx,
		"SELECT state, COUNT(*) FROM jobs WHERE queue = ? GROUP BY state", queue)
	if err != nil {
		return stats, queueErr("stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return stats, queueErr("stats", err)
		}
		switch domain.JobState(state) {
		case domain.JobStateCreated:
			stats.Created = n
		case domain.JobStateRetry:
			stats.Retry = n
		case domain.JobStateActive:
			stats.Active = n
		case domain.JobStateCompleted:
			stats.Completed = n
		case domain.JobStateFailed:
			stats.Failed = n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, queueErr("stats", err)
	}
	return stats, nil
}

// Maintain moves jobs stuck in active back to retry (or failed when out of
// attempts) and deletes archived jobs past their retention.
func (q *jobQueue) Maintain(ctx context.Context, now time.Time) (domain.MaintenanceResult, error) {
	var result domain.MaintenanceResult

	err := q.store.withTx(ctx, func(tx *sql.Tx) error {
		nowStr := formatTime(now)

		if q.settings.ExpireActiveAfter > 0 {
			cutoff := formatTime(now.Add(-q.settings.ExpireActiveAfter))
			res, err := tx.ExecContext(ctx, `
				UPDATE jobs SET
					state = CASE WHEN attempt >= max_attempts THEN 'failed' ELSE 'retry' END,
					completed_at = CASE WHEN attempt >= max_attempts THEN ? ELSE NULL END,
					run_at = ?,
					last_error = ?
				WHERE state = 'active' AND started_at < ?
			`, nowStr, nowStr, expiredMessage, cutoff)
			if err != nil {
				return fmt.Errorf("expiring active jobs: %w", err)
			}
			n, _ := res.RowsAffected()
			result.Expired = int(n)
		}

		purge := func(state domain.JobState, after time.Duration) (int, error) {
			if after <= 0 {
				return 0, nil
			}
			res, err := tx.ExecContext(ctx,
				"DELETE FROM jobs WHERE state = ? AND completed_at < ?",
				string(state), formatTime(now.Add(-after)))
			if err != nil {
				return 0, fmt.Errorf("purging %s jobs: %w", state, err)
			}
			n, _ := res.RowsAffected()
			return int(n), nil
		}

		var err error
		if result.PurgedCompleted, err = purge(domain.JobStateCompleted, q.settings.ArchiveAfter); err != nil {
			return err
		}
		if result.PurgedFailed, err = purge(domain.JobStateFailed, q.settings.DeleteFailedAfter); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return domain.MaintenanceResult{}, queueErr("maintain", err)
	}
	return result, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var state string
	var singletonKey, lastError, runAt, startedAt, completedAt, createdAt sql.NullString

	if err := row.Scan(&job.ID, &job.Queue, &singletonKey, &job.Payload, &state, &job.Attempt,
		&job.MaxAttempts, &lastError, &runAt, &startedAt, &completedAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.State = domain.JobState(state)
	job.SingletonKey = singletonKey.String
	job.LastError = lastError.String
	job.RunAt = parseNullableTime(runAt)
	job.StartedAt = parseTimePtr(startedAt)
	job.CompletedAt = parseTimePtr(completedAt)
	job.CreatedAt = parseNullableTime(createdAt)
	return &job, nil
}
