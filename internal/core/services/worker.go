package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure Worker implements the interface.
var _ driving.Worker = (*Worker)(nil)

// Worker consumes index-content jobs in batches. Each job of a batch runs
// on the pool. A transient failure goes back to the queue under its retry
// policy; a terminal one fails the job outright.
type Worker struct {
	queue    driven.JobQueue
	indexer  driving.IndexingService
	settings domain.QueueSettings
	pool     *ants.Pool
}

// NewWorker creates a worker with a pool sized to the batch.
func NewWorker(queue driven.JobQueue, indexer driving.IndexingService, settings domain.QueueSettings) (*Worker, error) {
	defaults := domain.DefaultAppSettings().Queue
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaults.BatchSize
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaults.PollInterval
	}

	pool, err := ants.NewPool(settings.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Worker{
		queue:    queue,
		indexer:  indexer,
		settings: settings,
		pool:     pool,
	}, nil
}

// Run polls the queue until ctx is cancelled. A full batch is followed
// immediately by another claim; otherwise the worker waits PollInterval.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("Worker started: batch size %d, poll interval %s", w.settings.BatchSize, w.settings.PollInterval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker stopping")
			return nil
		case <-timer.C:
		}

		report, err := w.ProcessBatch(ctx)
		if err != nil {
			logger.Warn("Worker batch failed: %v", err)
		}

		wait := w.settings.PollInterval
		if err == nil && report.Claimed == w.settings.BatchSize {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// ProcessBatch claims up to BatchSize jobs and processes them concurrently.
// The report lists each failed job individually. Nothing is claimed while
// indexing is disabled.
func (w *Worker) ProcessBatch(ctx context.Context) (domain.BatchReport, error) {
	var report domain.BatchReport
	if !w.indexer.Enabled() {
		return report, nil
	}

	jobs, err := w.queue.Fetch(ctx, domain.QueueIndexContent, w.settings.BatchSize)
	if err != nil {
		return report, err
	}
	report.Claimed = len(jobs)
	if len(jobs) == 0 {
		return report, nil
	}
	logger.Debug("Worker claimed %d jobs", len(jobs))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(job domain.Job, itemID string, jobErr error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case jobErr == nil:
			report.Completed++
			return
		case errors.Is(jobErr, domain.ErrIndexingDisabled):
			report.Released++
			return
		}
		report.Failures = append(report.Failures, domain.JobFailure{JobID: job.ID, ContentItemID: itemID, Err: jobErr})
	}

	for _, job := range jobs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			itemID, jobErr := w.processJob(ctx, job)
			record(job, itemID, jobErr)
		}
		if err := w.pool.Submit(task); err != nil {
			wg.Done()
			w.settleFailure(ctx, job, fmt.Errorf("submit: %w", err))
			record(job, "", err)
		}
	}
	wg.Wait()

	logger.Info("Worker batch: %d claimed, %d completed, %d failed, %d released",
		report.Claimed, report.Completed, report.Failed(), report.Released)
	return report, nil
}

// processJob indexes one job's item and settles the job. The returned
// error is the item's failure, if any.
func (w *Worker) processJob(ctx context.Context, job domain.Job) (string, error) {
	var payload domain.IndexJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		err = fmt.Errorf("decode payload: %w: %w", domain.ErrInvalidInput, err)
		w.settleFailure(ctx, job, err)
		return "", err
	}

	log := logger.With("job_id", job.ID, "content_item_id", payload.ContentItemID, "attempt", job.Attempt)
	_, err := w.indexer.IndexSingleItem(ctx, payload.ContentItemID, payload.URL)
	switch {
	case errors.Is(err, domain.ErrIndexingDisabled):
		log.Infow("indexing disabled, releasing job")
		if relErr := w.queue.Release(ctx, job.ID); relErr != nil {
			log.Errorw("release job", "error", relErr)
		}
		return payload.ContentItemID, err
	case err != nil:
		log.Warnw("job failed", "error", err, "retryable", domain.IsRetryable(err))
		w.settleFailure(ctx, job, err)
		return payload.ContentItemID, err
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		log.Errorw("complete job", "error", err)
		return payload.ContentItemID, err
	}
	log.Debugw("job completed")
	return payload.ContentItemID, nil
}

// settleFailure retries transient failures and fails terminal ones
// without spending the remaining attempts.
func (w *Worker) settleFailure(ctx context.Context, job domain.Job, cause error) {
	settle := w.queue.Fail
	if !domain.IsRetryable(cause) {
		settle = w.queue.FailPermanently
	}
	updated, err := settle(ctx, job.ID, cause)
	if err != nil {
		logger.Error("Fail job %s: %v", job.ID, err)
		return
	}
	if updated.State == domain.JobStateRetry {
		logger.Debug("Job %s retries at %s", job.ID, updated.RunAt.Format(time.RFC3339))
	} else {
		logger.Warn("Job %s failed permanently after %d attempt(s): %v", job.ID, updated.Attempt, cause)
	}
}

// Close releases the worker pool.
func (w *Worker) Close() {
	w.pool.Release()
}
