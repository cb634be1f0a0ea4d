package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change indexing, acquisition, embedding, search and queue settings.

Settings are stored in the config file in the data directory. Environment
variables prefixed CONTENTINDEX_ override file values.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a single setting",
	Long: `Change a single setting. Durations use Go syntax (30s, 5m, 24h).

Pass "-" as the value to type it without echo, e.g. for API keys:
  contentindex settings set embedding.api_key -`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding <provider> [model]",
	Short: "Configure embedding provider",
	Long: `Configure the embedding provider for semantic search.

Providers: ollama (local), openai, gemini. Cloud providers prompt for an API key.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsEmbedding,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings for consistency",
	Args:  cobra.NoArgs,
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	values, err := settingsService.Describe()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	keys := make([]string, 0, len(values))
	width := 0
	for k := range values {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	section := ""
	for _, k := range keys {
		prefix, _, _ := strings.Cut(k, ".")
		if prefix != section {
			if section != "" {
				cmd.Println()
			}
			cmd.Printf("[%s]\n", prefix)
			section = prefix
		}
		v := values[k]
		if v == "" {
			v = "(not set)"
		}
		cmd.Printf("  %-*s  %s\n", width, k, v)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	key, value := args[0], args[1]
	if value == "-" {
		cmd.Printf("%s: ", key)
		value = readSecret(cmd.InOrStdin())
		cmd.Println()
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	cmd.Printf("%s updated.\n", key)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	provider := domain.AIProvider(args[0])
	if !provider.IsValid() {
		return fmt.Errorf("unknown provider %q (choose ollama, openai or gemini)", args[0])
	}
	model := ""
	if len(args) > 1 {
		model = args[1]
	}

	apiKey := ""
	if provider.RequiresAPIKey() {
		cmd.Printf("%s API key: ", provider.Description())
		apiKey = readSecret(cmd.InOrStdin())
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	cmd.Printf("Embedding provider set to %s (%s).\n", provider.Description(), settings.Embedding.Model)
	if apiKey != "" {
		cmd.Printf("API key: %s\n", maskAPIKey(apiKey))
	}
	return nil
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("invalid settings:\n%w", err)
	}
	cmd.Println("Settings are valid.")
	return nil
}

// readSecret reads a line without echo when in is the terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
