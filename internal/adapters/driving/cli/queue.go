package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

var (
	queueJSON         bool
	queueHistoryLimit int
)

var errSchedulerNotConfigured = errors.New("scheduler not configured")

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the background job queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts per state",
	Args:  cobra.NoArgs,
	RunE:  runQueueStats,
}

var queueMaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Expire stuck jobs and purge old ones now",
	Args:  cobra.NoArgs,
	RunE:  runQueueMaintain,
}

var queueHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent queue maintenance runs",
	Args:  cobra.NoArgs,
	RunE:  runQueueHistory,
}

func init() {
	queueCmd.PersistentFlags().BoolVar(&queueJSON, "json", false, "output as JSON")
	queueHistoryCmd.Flags().IntVarP(&queueHistoryLimit, "limit", "n", 10, "number of runs to show")
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueMaintainCmd)
	queueCmd.AddCommand(queueHistoryCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueStats(cmd *cobra.Command, _ []string) error {
	if indexingService == nil {
		return errIndexingNotConfigured
	}

	stats, err := indexingService.QueueStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("queue stats failed: %w", err)
	}

	if queueJSON {
		return printJSON(cmd, stats)
	}

	cmd.Printf("Queue: %s\n", stats.Queue)
	cmd.Printf("  created:   %d\n", stats.Created)
	cmd.Printf("  retry:     %d\n", stats.Retry)
	cmd.Printf("  active:    %d\n", stats.Active)
	cmd.Printf("  completed: %d\n", stats.Completed)
	cmd.Printf("  failed:    %d\n", stats.Failed)
	cmd.Printf("Outstanding: %d\n", stats.Outstanding())
	state := "enabled"
	if !indexingService.Enabled() {
		state = "disabled"
	}
	cmd.Printf("Indexing:    %s\n", state)
	return nil
}

func runQueueMaintain(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errSchedulerNotConfigured
	}

	run, err := schedulerService.RunTask(cmd.Context(), domain.TaskIDQueueMaintenance)
	if err != nil {
		return fmt.Errorf("queue maintenance failed: %w", err)
	}

	if queueJSON {
		return printJSON(cmd, run)
	}
	cmd.Printf("Expired %d, purged %d completed and %d failed jobs (%s)\n",
		run.Result.Expired, run.Result.PurgedCompleted, run.Result.PurgedFailed, run.Duration)
	return nil
}

func runQueueHistory(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil {
		return errSchedulerNotConfigured
	}

	runs, err := schedulerService.History(cmd.Context(), domain.TaskIDQueueMaintenance, queueHistoryLimit)
	if err != nil {
		return fmt.Errorf("queue history failed: %w", err)
	}

	if queueJSON {
		if runs == nil {
			runs = []domain.TaskRun{}
		}
		return printJSON(cmd, runs)
	}
	if len(runs) == 0 {
		cmd.Println("No maintenance runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "ok"
		if !r.Succeeded() {
			status = "failed: " + r.Error
		}
		cmd.Printf("%s  expired=%d completed=%d failed=%d  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Result.Expired, r.Result.PurgedCompleted, r.Result.PurgedFailed, status)
	}
	return nil
}
