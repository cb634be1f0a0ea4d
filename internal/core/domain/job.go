package domain

import "time"

// QueueIndexContent is the queue name used for background indexing jobs.
const QueueIndexContent = "index-content"

// JobState is a job's position in the queue state machine.
//
//	created -> active -> completed
//	              |
//	              +-> retry -> active ... -> failed
type JobState string

// Job states.
const (
	JobStateCreated   JobState = "created"
	JobStateRetry     JobState = "retry"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// IsOutstanding reports whether the job still counts against its singleton key.
func (s JobState) IsOutstanding() bool {
	return s == JobStateCreated || s == JobStateRetry || s == JobStateActive
}

// IndexJobPayload is the body of an index-content job.
type IndexJobPayload struct {
	ContentItemID string `json:"content_item_id"`
	URL           string `json:"url"`
}

// Job is a durable queue entry.
type Job struct {
	// ID is the unique identifier for the job.
	ID string

	// Queue is the logical queue the job belongs to.
	Queue string

	// SingletonKey deduplicates outstanding jobs within a queue.
	SingletonKey string

	// Payload is the JSON-encoded job body.
	Payload []byte

	// State is the current job state.
	State JobState

	// Attempt counts how many times the job has been claimed.
	Attempt int

	// MaxAttempts bounds Attempt; reaching it without success fails the job.
	MaxAttempts int

	// LastError holds the most recent failure message.
	LastError string

	// RunAt is the earliest time the job may be claimed.
	RunAt time.Time

	// StartedAt is when the job was last claimed.
	StartedAt *time.Time

	// CompletedAt is when the job reached a terminal state.
	CompletedAt *time.Time

	// CreatedAt is when the job was enqueued.
	CreatedAt time.Time
}

// EnqueueOptions controls how a job is enqueued.
type EnqueueOptions struct {
	// SingletonKey deduplicates against outstanding jobs with the same key.
	SingletonKey string

	// RunAt delays the job; zero means now.
	RunAt time.Time

	// MaxAttempts overrides the queue's retry limit when positive.
	MaxAttempts int
}

// RetryPolicy governs job retries.
type RetryPolicy struct {
	// Limit is the number of retries after the first attempt.
	Limit int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// Backoff multiplies Delay for every subsequent retry.
	Backoff float64
}

// DelayFor returns the wait before retry number n (1-based).
func (p RetryPolicy) DelayFor(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(p.Delay)
	for i := 1; i < n; i++ {
		d *= p.Backoff
	}
	return time.Duration(d)
}

// MaxAttempts is the total number of claims a job gets.
func (p RetryPolicy) MaxAttempts() int {
	return p.Limit + 1
}

// QueueStats counts jobs per state for one queue.
type QueueStats struct {
	Queue     string `json:"queue"`
	Created   int    `json:"created"`
	Retry     int    `json:"retry"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// Outstanding is the number of jobs not yet in a terminal state.
func (s QueueStats) Outstanding() int {
	return s.Created + s.Retry + s.Active
}

// MaintenanceResult reports what a queue maintenance pass changed.
type MaintenanceResult struct {
	Expired         int `json:"expired"`
	PurgedCompleted int `json:"purged_completed"`
	PurgedFailed    int `json:"purged_failed"`
}

// Total is the number of jobs touched.
func (r MaintenanceResult) Total() int {
	return r.Expired + r.PurgedCompleted + r.PurgedFailed
}

// JobFailure is one failed member of a worker batch.
type JobFailure struct {
	JobID         string
	ContentItemID string
	Err           error
}

// BatchReport describes the outcome of processing one claimed batch.
type BatchReport struct {
	Claimed   int
	Completed int
	// Released counts jobs handed back unprocessed because indexing was
	// switched off mid-batch.
	Released  int
	Failures  []JobFailure
}

// Failed returns the number of jobs in the batch that failed.
func (r BatchReport) Failed() int { return len(r.Failures) }
