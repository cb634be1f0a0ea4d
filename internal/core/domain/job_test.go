package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_DelayFor(t *testing.T) {
	p := RetryPolicy{Limit: 3, Delay: time.Minute, Backoff: 10}

	assert.Equal(t, time.Minute, p.DelayFor(1))
	assert.Equal(t, 10*time.Minute, p.DelayFor(2))
	assert.Equal(t, 100*time.Minute, p.DelayFor(3))
	assert.Equal(t, time.Minute, p.DelayFor(0))
	assert.Equal(t, 4, p.MaxAttempts())
}

func TestJobState_IsOutstanding(t *testing.T) {
	assert.True(t, JobStateCreated.IsOutstanding())
	assert.True(t, JobStateRetry.IsOutstanding())
	assert.True(t, JobStateActive.IsOutstanding())
	assert.False(t, JobStateCompleted.IsOutstanding())
	assert.False(t, JobStateFailed.IsOutstanding())
}

func TestIndexingStats_Add(t *testing.T) {
	var stats IndexingStats
	stats.Total = 4
	stats.Add(ItemResult{ContentItemID: "1", Outcome: OutcomeIndexed})
	stats.Add(ItemResult{ContentItemID: "2", Outcome: OutcomeQueued})
	stats.Add(FailedResult(IndexRequest{ID: "3", URL: "u"}, ErrIndexingDisabled))
	stats.Add(FailedResult(IndexRequest{ID: "4", URL: "u"}, errors.New("boom")))

	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 2, stats.Failed)
	assert.Len(t, stats.Results, 4)
	assert.Equal(t, ErrorKindDisabled, stats.Results[2].ErrorKind)
	assert.Equal(t, ErrorKindStorage, stats.Results[3].ErrorKind)
}

func TestBatchReport_Failed(t *testing.T) {
	r := BatchReport{Claimed: 3, Completed: 2, Failures: []JobFailure{{JobID: "j3"}}}
	assert.Equal(t, 1, r.Failed())
}
