package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

func TestSchedulerStore_SaveAndGetTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	states := store.SchedulerStore()

	now := time.Now().UTC().Truncate(time.Millisecond)
	task := &domain.TaskState{
		ID:          domain.TaskIDQueueMaintenance,
		Interval:    90 * time.Second,
		Enabled:     true,
		LastRun:     now.Add(-time.Minute),
		NextRun:     now.Add(30 * time.Second),
		LastSuccess: now.Add(-time.Minute),
	}
	require.NoError(t, states.SaveTask(ctx, task))

	got, err := states.GetTask(ctx, domain.TaskIDQueueMaintenance)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, 90*time.Second, got.Interval)
	assert.True(t, got.Enabled)
	assert.Empty(t, got.LastError)
	assert.WithinDuration(t, task.LastRun, got.LastRun, time.Millisecond)
	assert.WithinDuration(t, task.NextRun, got.NextRun, time.Millisecond)
	assert.WithinDuration(t, task.LastSuccess, got.LastSuccess, time.Millisecond)
}

func TestSchedulerStore_GetTask_Missing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	got, err := store.SchedulerStore().GetTask(context.Background(), "never-saved")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSchedulerStore_SaveTask_Upserts(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	states := store.SchedulerStore()

	task := &domain.TaskState{ID: "t", Interval: time.Minute, Enabled: true}
	require.NoError(t, states.SaveTask(ctx, task))

	task.Enabled = false
	task.LastError = "database is locked"
	require.NoError(t, states.SaveTask(ctx, task))

	tasks, err := states.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].Enabled)
	assert.Equal(t, "database is locked", tasks[0].LastError)
	assert.True(t, tasks[0].LastRun.IsZero())
}

func TestSchedulerStore_SaveTask_Invalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	states := store.SchedulerStore()

	assert.ErrorIs(t, states.SaveTask(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, states.SaveTask(context.Background(), &domain.TaskState{}), domain.ErrInvalidInput)
}

func TestSchedulerStore_ListTasks_OrderedByID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	states := store.SchedulerStore()

	for _, id := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, states.SaveTask(ctx, &domain.TaskState{ID: id, Interval: time.Minute}))
	}

	tasks, err := states.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "alpha", tasks[0].ID)
	assert.Equal(t, "mid", tasks[1].ID)
	assert.Equal(t, "zeta", tasks[2].ID)
}

func TestSchedulerStore_RecordAndRecentRuns(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	states := store.SchedulerStore()

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 3 {
		run := &domain.TaskRun{
			TaskID:    domain.TaskIDQueueMaintenance,
			StartedAt: start.Add(time.Duration(i) * time.Minute),
			Duration:  250 * time.Millisecond,
			Result:    domain.MaintenanceResult{Expired: i, PurgedCompleted: 10 * i},
		}
		if i == 1 {
			run.Error = "queue unavailable"
		}
		require.NoError(t, states.RecordRun(ctx, run))
	}
	require.NoError(t, states.RecordRun(ctx, &domain.TaskRun{TaskID: "other", StartedAt: start}))

	runs, err := states.RecentRuns(ctx, domain.TaskIDQueueMaintenance, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, 2, runs[0].Result.Expired, "newest first")
	assert.Equal(t, 20, runs[0].Result.PurgedCompleted)
	assert.Equal(t, 250*time.Millisecond, runs[0].Duration)
	assert.True(t, runs[0].StartedAt.Equal(start.Add(2*time.Minute)))
	assert.False(t, runs[1].Succeeded())
	assert.Equal(t, "queue unavailable", runs[1].Error)

	limited, err := states.RecentRuns(ctx, domain.TaskIDQueueMaintenance, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := states.RecentRuns(ctx, domain.TaskIDQueueMaintenance, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSchedulerStore_RecordRun_Invalid(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SchedulerStore().RecordRun(context.Background(), &domain.TaskRun{})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchedulerStore_PruneRuns_PerTask(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	states := store.SchedulerStore()

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		for _, id := range []string{"a", "b"} {
			require.NoError(t, states.RecordRun(ctx, &domain.TaskRun{
				TaskID:    id,
				StartedAt: start.Add(time.Duration(i) * time.Minute),
				Result:    domain.MaintenanceResult{Expired: i},
			}))
		}
	}

	require.NoError(t, states.PruneRuns(ctx, 2))

	for _, id := range []string{"a", "b"} {
		runs, err := states.RecentRuns(ctx, id, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2, id)
		assert.Equal(t, 4, runs[0].Result.Expired)
		assert.Equal(t, 3, runs[1].Result.Expired)
	}
}
