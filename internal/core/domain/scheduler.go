package domain

import "time"

// TaskIDQueueMaintenance names the built-in job queue housekeeping task.
const TaskIDQueueMaintenance = "queue-maintenance"

// DefaultMaintenanceInterval is how often queue maintenance runs.
const DefaultMaintenanceInterval = 5 * time.Minute

// TaskState is the persisted schedule of one recurring task. It survives
// restarts so a task that ran recently is not repeated on startup.
type TaskState struct {
	ID          string
	Interval    time.Duration
	Enabled     bool
	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	LastError   string
}

// Due reports whether the task should run at now.
func (t TaskState) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskRun records one execution of a task.
type TaskRun struct {
	TaskID    string            `json:"task_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Error     string            `json:"error,omitempty"`
	Result    MaintenanceResult `json:"result"`
}

// Succeeded reports whether the run finished without error.
func (r TaskRun) Succeeded() bool { return r.Error == "" }

// TaskSchedule enables a task and sets its period.
type TaskSchedule struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// QueueMaintenance schedules expiry and purging of queued jobs.
	QueueMaintenance TaskSchedule
}

// Schedules maps task IDs to their schedule.
func (c SchedulerConfig) Schedules() map[string]TaskSchedule {
	return map[string]TaskSchedule{
		TaskIDQueueMaintenance: c.QueueMaintenance,
	}
}

// DefaultSchedulerConfig returns the scheduler defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		QueueMaintenance: TaskSchedule{
			Enabled:  true,
			Interval: DefaultMaintenanceInterval,
		},
	}
}
