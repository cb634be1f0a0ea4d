package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// schedulerStore implements driven.SchedulerStore.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const (
	stateColumns = "id, interval_ms, enabled, last_run, next_run, last_success, last_error"
	runColumns   = "task_id, started_at, duration_ms, error, expired, purged_completed, purged_failed"
)

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.TaskState, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM task_states WHERE id = ?`, taskID)

	task, err := scanTaskState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.TaskState, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM task_states ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying task states: %w", err)
	}
	defer rows.Close()

	var tasks []domain.TaskState
	for rows.Next() {
		task, err := scanTaskState(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task states: %w", err)
	}
	return tasks, nil
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.TaskState) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO task_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			interval_ms  = excluded.interval_ms,
			enabled      = excluded.enabled,
			last_run     = excluded.last_run,
			next_run     = excluded.next_run,
			last_success = excluded.last_success,
			last_error   = excluded.last_error
	`, task.ID, task.Interval.Milliseconds(), boolToInt(task.Enabled),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		formatNullableTime(task.LastSuccess), nullString(task.LastError))
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

func (s *schedulerStore) RecordRun(ctx context.Context, run *domain.TaskRun) error {
	if run == nil || run.TaskID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO task_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.TaskID, formatTime(run.StartedAt), run.Duration.Milliseconds(), nullString(run.Error),
		run.Result.Expired, run.Result.PurgedCompleted, run.Result.PurgedFailed)
	if err != nil {
		return fmt.Errorf("recording run of %s: %w", run.TaskID, err)
	}
	return nil
}

func (s *schedulerStore) RecentRuns(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM task_runs
		WHERE task_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying task runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.TaskRun, 0, limit)
	for rows.Next() {
		var (
			run        domain.TaskRun
			startedAt  sql.NullString
			durationMs int64
			errMsg     sql.NullString
		)
		if err := rows.Scan(&run.TaskID, &startedAt, &durationMs, &errMsg,
			&run.Result.Expired, &run.Result.PurgedCompleted, &run.Result.PurgedFailed); err != nil {
			return nil, fmt.Errorf("scanning task run: %w", err)
		}
		run.StartedAt = parseNullableTime(startedAt)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating task runs: %w", err)
	}
	return runs, nil
}

// PruneRuns relies on the autoincrement id following insertion order.
func (s *schedulerStore) PruneRuns(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM task_runs
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY id DESC) AS rn
				FROM task_runs
			) WHERE rn > ?
		)
	`, max(keep, 0))
	if err != nil {
		return fmt.Errorf("pruning task runs: %w", err)
	}
	return nil
}

func scanTaskState(row rowScanner) (*domain.TaskState, error) {
	var task domain.TaskState
	var intervalMs int64
	var enabled int
	var lastRun, nextRun, lastSuccess, lastError sql.NullString

	if err := row.Scan(&task.ID, &intervalMs, &enabled,
		&lastRun, &nextRun, &lastSuccess, &lastError); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task state: %w", err)
	}

	task.Interval = time.Duration(intervalMs) * time.Millisecond
	task.Enabled = enabled == 1
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastSuccess = parseNullableTime(lastSuccess)
	task.LastError = lastError.String
	return &task, nil
}
