package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

var queueStart = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func setupQueue(t *testing.T) (driven.JobQueue, func(time.Time)) {
	t.Helper()
	store, cleanup := setupTestStore(t)
	t.Cleanup(cleanup)
	setNow := fixedClock(store, queueStart)
	return store.JobQueue(domain.DefaultAppSettings().Queue), setNow
}

func TestJobQueue_EnqueueAndFetch(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	job, created, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte(`{"content_item_id":"a"}`), domain.EnqueueOptions{})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.JobStateCreated, job.State)
	assert.Equal(t, 4, job.MaxAttempts, "retry limit 3 allows four attempts")

	jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Equal(t, domain.JobStateActive, jobs[0].State)
	assert.Equal(t, 1, jobs[0].Attempt)
	assert.JSONEq(t, `{"content_item_id":"a"}`, string(jobs[0].Payload))
	require.NotNil(t, jobs[0].StartedAt)

	again, err := queue.Fetch(ctx, domain.QueueIndexContent, 5)
	require.NoError(t, err)
	assert.Empty(t, again, "active jobs are not handed out twice")
}

func TestJobQueue_FetchRespectsLimitAndOrder(t *testing.T) {
	queue, setNow := setupQueue(t)
	ctx := context.Background()

	var ids []string
	for i := range 4 {
		setNow(queueStart.Add(time.Duration(i) * time.Second))
		job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	setNow(queueStart.Add(time.Minute))

	jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, ids[:3], []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})

	other, err := queue.Fetch(ctx, "other-queue", 3)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestJobQueue_FetchSkipsFutureJobs(t *testing.T) {
	queue, setNow := setupQueue(t)
	ctx := context.Background()

	_, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{
		RunAt: queueStart.Add(time.Hour),
	})
	require.NoError(t, err)

	jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 5)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	setNow(queueStart.Add(time.Hour))
	jobs, err = queue.Fetch(ctx, domain.QueueIndexContent, 5)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestJobQueue_SingletonKey(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()
	opts := domain.EnqueueOptions{SingletonKey: "item-1"}

	first, created, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), opts)
	require.NoError(t, err)
	require.True(t, created)

	dup, created, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), opts)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, dup.ID)

	// Still deduplicated while active.
	_, err = queue.Fetch(ctx, domain.QueueIndexContent, 1)
	require.NoError(t, err)
	_, created, err = queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), opts)
	require.NoError(t, err)
	assert.False(t, created)

	// A completed job frees the key.
	require.NoError(t, queue.Complete(ctx, first.ID))
	next, created, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), opts)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, next.ID)

	stats, err := queue.Stats(ctx, domain.QueueIndexContent)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Completed)
}

func TestJobQueue_ConcurrentFetchClaimsOnce(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	for range 20 {
		_, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{})
		require.NoError(t, err)
	}

	var mu sync.Mutex
	claimed := map[string]int{}
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 3)
				if !assert.NoError(t, err) || len(jobs) == 0 {
					return
				}
				mu.Lock()
				for _, j := range jobs {
					claimed[j.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, 20)
	for id, n := range claimed {
		assert.Equal(t, 1, n, id)
	}
}

func TestJobQueue_FailRetriesWithBackoff(t *testing.T) {
	queue, setNow := setupQueue(t)
	ctx := context.Background()

	job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{})
	require.NoError(t, err)

	now := queueStart
	wantDelays := []time.Duration{time.Minute, 10 * time.Minute, 100 * time.Minute}
	for i, delay := range wantDelays {
		jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 1)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "attempt %d", i+1)

		failed, err := queue.Fail(ctx, job.ID, errors.New("fetch timed out"))
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRetry, failed.State)
		assert.Equal(t, "fetch timed out", failed.LastError)
		assert.Equal(t, now.Add(delay), failed.RunAt)

		now = failed.RunAt
		setNow(now)
	}

	jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 4, jobs[0].Attempt)

	final, err := queue.Fail(ctx, job.ID, errors.New("still broken"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, final.State)
	require.NotNil(t, final.CompletedAt)

	stats, err := queue.Stats(ctx, domain.QueueIndexContent)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Outstanding())
}

func TestJobQueue_FailRequiresActive(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{})
	require.NoError(t, err)

	_, err = queue.Fail(ctx, job.ID, errors.New("x"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorIs(t, err, domain.ErrQueueUnavailable)

	_, err = queue.Fail(ctx, "missing", errors.New("x"))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, queue.Complete(ctx, job.ID), domain.ErrNotFound)
}

func TestJobQueue_FailPermanently(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{})
	require.NoError(t, err)
	_, err = queue.Fetch(ctx, domain.QueueIndexContent, 1)
	require.NoError(t, err)

	failed, err := queue.FailPermanently(ctx, job.ID, errors.New("redirect conflict"))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStateFailed, failed.State)
	assert.Equal(t, 1, failed.Attempt)
	assert.Equal(t, "redirect conflict", failed.LastError)
	require.NotNil(t, failed.CompletedAt)

	stats, err := queue.Stats(ctx, domain.QueueIndexContent)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Retry)

	_, err = queue.FailPermanently(ctx, job.ID, errors.New("again"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestJobQueue_Release(t *testing.T) {
	queue, setNow := setupQueue(t)
	ctx := context.Background()

	job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{})
	require.NoError(t, err)

	t.Run("first claim returns to created", func(t *testing.T) {
		_, err := queue.Fetch(ctx, domain.QueueIndexContent, 1)
		require.NoError(t, err)
		require.NoError(t, queue.Release(ctx, job.ID))

		got, err := queue.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateCreated, got.State)
		assert.Zero(t, got.Attempt)
		assert.Nil(t, got.StartedAt)
	})

	t.Run("retried job keeps earlier attempts", func(t *testing.T) {
		_, err := queue.Fetch(ctx, domain.QueueIndexContent, 1)
		require.NoError(t, err)
		failed, err := queue.Fail(ctx, job.ID, errors.New("timeout"))
		require.NoError(t, err)
		setNow(failed.RunAt)

		_, err = queue.Fetch(ctx, domain.QueueIndexContent, 1)
		require.NoError(t, err)
		require.NoError(t, queue.Release(ctx, job.ID))

		got, err := queue.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRetry, got.State)
		assert.Equal(t, 1, got.Attempt)
		assert.True(t, failed.RunAt.Equal(got.RunAt))
	})

	t.Run("not active", func(t *testing.T) {
		assert.ErrorIs(t, queue.Release(ctx, job.ID), domain.ErrNotFound)
	})
}

func TestJobQueue_GetJob(t *testing.T) {
	queue, _ := setupQueue(t)
	ctx := context.Background()

	job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{
		SingletonKey: "k",
		MaxAttempts:  2,
	})
	require.NoError(t, err)

	got, err := queue.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "k", got.SingletonKey)
	assert.Equal(t, 2, got.MaxAttempts)
	assert.Equal(t, queueStart, got.CreatedAt)

	_, err = queue.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobQueue_Maintain(t *testing.T) {
	queue, setNow := setupQueue(t)
	ctx := context.Background()

	enqueue := func(key string) *domain.Job {
		job, _, err := queue.Enqueue(ctx, domain.QueueIndexContent, []byte("{}"), domain.EnqueueOptions{SingletonKey: key})
		require.NoError(t, err)
		return job
	}

	done := enqueue("done")
	dead := enqueue("dead")
	stuck := enqueue("stuck")

	jobs, err := queue.Fetch(ctx, domain.QueueIndexContent, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	require.NoError(t, queue.Complete(ctx, done.ID))

	// Exhaust attempts on the dead job.
	for {
		failed, err := queue.Fail(ctx, dead.ID, errors.New("boom"))
		require.NoError(t, err)
		if failed.State == domain.JobStateFailed {
			break
		}
		setNow(failed.RunAt)
		for {
			claimed, err := queue.Fetch(ctx, domain.QueueIndexContent, 1)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			if claimed[0].ID == dead.ID {
				break
			}
		}
	}

	t.Run("nothing old enough", func(t *testing.T) {
		result, err := queue.Maintain(ctx, queueStart.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, result.Total())
	})

	t.Run("expires stuck active job", func(t *testing.T) {
		result, err := queue.Maintain(ctx, queueStart.Add(20*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, result.Expired)

		got, err := queue.GetJob(ctx, stuck.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStateRetry, got.State)
		assert.Equal(t, expiredMessage, got.LastError)
	})

	t.Run("purges completed after a day", func(t *testing.T) {
		result, err := queue.Maintain(ctx, queueStart.Add(25*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, result.PurgedCompleted)
		assert.Equal(t, 0, result.PurgedFailed)

		_, err = queue.GetJob(ctx, done.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("purges failed after a week", func(t *testing.T) {
		result, err := queue.Maintain(ctx, queueStart.Add(8*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, result.PurgedFailed)
	})
}
