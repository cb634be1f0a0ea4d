// Package cli provides the cobra command tree for the contentindex binary.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// version is set at build time.
var version = "dev"

// skipServices marks commands that run without the service graph.
const skipServices = "skip-services"

var (
	indexingService  driving.IndexingService
	searchService    driving.SearchService
	settingsService  driving.SettingsService
	workerService    driving.Worker
	schedulerService driving.Scheduler
)

// Options carries the global flag values to the bootstrap function.
type Options struct {
	// DataDir holds the config file, database and indexes.
	DataDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON selects JSON log output.
	LogJSON bool
}

// Services holds the driving ports the commands run against.
type Services struct {
	Indexing  driving.IndexingService
	Search    driving.SearchService
	Settings  driving.SettingsService
	Worker    driving.Worker
	Scheduler driving.Scheduler

	// Close releases the resources behind the services.
	Close func() error
}

// Bootstrap builds the services once flags are parsed.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	globalOpts Options
	bootstrap  Bootstrap
	closeFn    func() error
)

var rootCmd = &cobra.Command{
	Use:   "contentindex",
	Short: "Index web pages and videos for hybrid search",
	Long: `contentindex acquires text from web pages and video transcripts, splits it
into token-bounded chunks, embeds each chunk and answers queries by fusing
keyword and semantic matches.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalOpts.DataDir, "data-dir", "", "directory for config, database and indexes (default ~/.contentindex)")
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.Verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&globalOpts.LogJSON, "log-json", false, "write logs as JSON")
}

// SetBootstrap registers the function that builds the services.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices injects the services directly.
func SetServices(s *Services) {
	indexingService = s.Indexing
	searchService = s.Search
	settingsService = s.Settings
	workerService = s.Worker
	schedulerService = s.Scheduler
	closeFn = s.Close
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetVerbose(globalOpts.Verbose)
	logger.SetJSON(globalOpts.LogJSON)

	if cmd.Annotations[skipServices] == "true" || bootstrap == nil || indexingService != nil {
		return nil
	}

	svc, err := bootstrap(cmd.Context(), globalOpts)
	if err != nil {
		return err
	}
	SetServices(svc)
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	logger.Sync()
	if closeFn == nil {
		return nil
	}
	err := closeFn()
	closeFn = nil
	return err
}

var (
	errIndexingNotConfigured = errors.New("indexing service not configured")
	errSearchNotConfigured   = errors.New("search service not configured")
	errSettingsNotConfigured = errors.New("settings service not configured")
	errWorkerNotConfigured   = errors.New("worker not configured")
)
