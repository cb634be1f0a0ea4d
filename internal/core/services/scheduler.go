package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// runRetention is how many runs are kept per task.
const runRetention = 100

// taskFunc is the body of a scheduled task.
type taskFunc func(ctx context.Context) (domain.MaintenanceResult, error)

// Scheduler runs housekeeping tasks on fixed intervals. Task state is
// persisted so restarts keep the cadence.
type Scheduler struct {
	config        domain.SchedulerConfig
	store         driven.SchedulerStore
	tasks         map[string]taskFunc
	checkInterval time.Duration
	now           func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	// exec serialises task bodies between the loop and RunTask.
	exec sync.Mutex
}

// NewScheduler creates a scheduler. A nil queue makes maintenance a no-op.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	queue driven.JobQueue,
) *Scheduler {
	s := &Scheduler{
		config:        config,
		store:         store,
		checkInterval: 15 * time.Second,
		now:           func() time.Time { return time.Now().UTC() },
	}
	s.tasks = map[string]taskFunc{
		domain.TaskIDQueueMaintenance: func(ctx context.Context) (domain.MaintenanceResult, error) {
			if queue == nil {
				return domain.MaintenanceResult{}, nil
			}
			return queue.Maintain(ctx, s.now())
		},
	}
	return s
}

// Start runs due tasks until Stop is called or ctx is done. It returns
// immediately when the scheduler is disabled or already running.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info("Scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil
	}
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.done == done {
			s.stop, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}()

	if err := s.syncTasks(ctx); err != nil {
		logger.Warn("Scheduler: failed to sync tasks: %v", err)
	}

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		s.runDue(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-ticker.C:
		}
	}
}

// Stop ends a running Start and waits for the current task to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop = nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

// RunTask executes a task now, outside its schedule.
func (s *Scheduler) RunTask(ctx context.Context, taskID string) (domain.TaskRun, error) {
	if _, ok := s.tasks[taskID]; !ok {
		return domain.TaskRun{}, fmt.Errorf("%w: unknown task %q", domain.ErrNotFound, taskID)
	}

	state, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return domain.TaskRun{}, err
	}
	if state == nil {
		state = s.newState(taskID, s.config.Schedules()[taskID])
	}
	return s.execute(ctx, state)
}

// History returns recent runs of a task, newest first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskRun, error) {
	return s.store.RecentRuns(ctx, taskID, limit)
}

// syncTasks writes the configured schedules into the store, keeping the
// recorded run times of tasks that already exist.
func (s *Scheduler) syncTasks(ctx context.Context) error {
	for id, sched := range s.config.Schedules() {
		state, err := s.store.GetTask(ctx, id)
		if err != nil {
			return err
		}

		switch {
		case state == nil:
			state = s.newState(id, sched)
		case state.Interval != sched.Interval:
			state.Interval = sched.Interval
			state.NextRun = s.now().Add(sched.Interval)
		}
		state.Enabled = sched.Enabled

		if err := s.store.SaveTask(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) newState(id string, sched domain.TaskSchedule) *domain.TaskState {
	if sched.Interval <= 0 {
		sched.Interval = domain.DefaultMaintenanceInterval
	}
	return &domain.TaskState{
		ID:       id,
		Interval: sched.Interval,
		Enabled:  sched.Enabled,
		NextRun:  s.now().Add(sched.Interval),
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("Scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		if _, ok := s.tasks[tasks[i].ID]; !ok || !tasks[i].Due(now) {
			continue
		}
		if _, err := s.execute(ctx, &tasks[i]); err != nil {
			logger.Warn("Scheduler: task %s failed: %v", tasks[i].ID, err)
		}
	}
}

// execute runs one task body, then records its state and the run.
func (s *Scheduler) execute(ctx context.Context, state *domain.TaskState) (domain.TaskRun, error) {
	s.exec.Lock()
	defer s.exec.Unlock()

	run := domain.TaskRun{TaskID: state.ID, StartedAt: s.now()}
	result, err := s.tasks[state.ID](ctx)
	ended := s.now()
	run.Duration = ended.Sub(run.StartedAt)
	run.Result = result

	state.LastRun = run.StartedAt
	state.NextRun = ended.Add(state.Interval)
	if err != nil {
		run.Error = err.Error()
		state.LastError = run.Error
	} else {
		state.LastError = ""
		state.LastSuccess = ended
		if result.Total() > 0 {
			logger.Info("Queue maintenance: %d expired, %d completed purged, %d failed purged",
				result.Expired, result.PurgedCompleted, result.PurgedFailed)
		}
	}

	if saveErr := s.store.SaveTask(ctx, state); saveErr != nil {
		logger.Warn("Scheduler: failed to save task %s: %v", state.ID, saveErr)
	}
	if recordErr := s.store.RecordRun(ctx, &run); recordErr != nil {
		logger.Warn("Scheduler: failed to record run of %s: %v", state.ID, recordErr)
	}
	if pruneErr := s.store.PruneRuns(ctx, runRetention); pruneErr != nil {
		logger.Warn("Scheduler: failed to prune runs: %v", pruneErr)
	}

	return run, err
}
