package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/contentindex/internal/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued indexing jobs",
	Long: `Runs the background worker and the queue maintenance scheduler until
interrupted. Jobs that fail are retried with backoff.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if workerService == nil {
		return errWorkerNotConfigured
	}

	cmd.Println("Worker running. Press Ctrl+C to stop.")
	return runBackground(cmd.Context(), nil)
}

// runBackground runs the worker, the scheduler and fn together. The first
// failure cancels the rest; cancellation of ctx is a clean stop.
func runBackground(ctx context.Context, fn func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)

	if workerService != nil {
		g.Go(func() error {
			return workerService.Run(ctx)
		})
	}

	if schedulerService != nil {
		g.Go(func() error {
			if err := schedulerService.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return schedulerService.Stop()
		})
	}

	if fn != nil {
		g.Go(func() error {
			return fn(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("Background processing stopped")
	return err
}
