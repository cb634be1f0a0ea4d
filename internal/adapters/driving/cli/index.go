package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index content items",
	Long: `Acquire, chunk, embed and store content so it can be searched.

Small batches are indexed immediately; anything beyond the sync threshold
is queued for the background worker.`,
}

var indexAddCmd = &cobra.Command{
	Use:   "add <id> <url>",
	Short: "Register a content item without indexing it",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndexAdd,
}

var indexRunCmd = &cobra.Command{
	Use:   "run <id=url>...",
	Short: "Index a batch of content items",
	Long: `Index one or more items given as id=url pairs.

Example:
  contentindex index run post-1=https://example.com/a video-7=https://youtu.be/dQw4w9WgXcQ`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexRun,
}

var indexItemCmd = &cobra.Command{
	Use:   "item <id> <url>",
	Short: "Re-index one item after its content or URL changed",
	Args:  cobra.ExactArgs(2),
	RunE:  runIndexItem,
}

var indexTextCmd = &cobra.Command{
	Use:   "text <content-text-id>",
	Short: "Re-chunk and re-embed stored text without fetching",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexText,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show the index status of an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexStatus,
}

func init() {
	indexCmd.PersistentFlags().BoolVar(&indexJSON, "json", false, "output as JSON")
	indexCmd.AddCommand(indexAddCmd)
	indexCmd.AddCommand(indexRunCmd)
	indexCmd.AddCommand(indexItemCmd)
	indexCmd.AddCommand(indexTextCmd)
	indexCmd.AddCommand(indexStatusCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexAdd(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errIndexingNotConfigured
	}

	item, err := indexingService.RegisterItem(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("register item: %w", err)
	}

	cmd.Printf("Registered %s -> %s\n", item.ID, item.URL)
	return nil
}

func runIndexRun(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errIndexingNotConfigured
	}

	items, err := parseItemArgs(args)
	if err != nil {
		return err
	}

	stats, err := indexingService.IndexContent(cmd.Context(), items)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	if indexJSON {
		return printJSON(cmd, stats)
	}

	for _, r := range stats.Results {
		printItemResult(cmd, r)
	}
	cmd.Println()
	cmd.Printf("Total %d: %d indexed, %d queued, %d failed\n", stats.Total, stats.Succeeded, stats.Queued, stats.Failed)
	return nil
}

// parseItemArgs turns id=url arguments into index requests.
func parseItemArgs(args []string) ([]domain.IndexRequest, error) {
	items := make([]domain.IndexRequest, 0, len(args))
	for _, arg := range args {
		id, url, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("invalid item %q: expected id=url", arg)
		}
		items = append(items, domain.IndexRequest{ID: strings.TrimSpace(id), URL: strings.TrimSpace(url)})
	}
	return items, nil
}

func runIndexItem(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errIndexingNotConfigured
	}

	result, err := indexingService.OnContentChanged(cmd.Context(), args[0], args[1])
	return reportItem(cmd, result, err)
}

func runIndexText(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errIndexingNotConfigured
	}

	result, err := indexingService.IndexFromExistingContent(cmd.Context(), args[0])
	return reportItem(cmd, result, err)
}

func reportItem(cmd *cobra.Command, result domain.ItemResult, err error) error {
	if indexJSON {
		if jsonErr := printJSON(cmd, result); jsonErr != nil {
			return jsonErr
		}
	} else {
		printItemResult(cmd, result)
	}
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}
	return nil
}

func printItemResult(cmd *cobra.Command, r domain.ItemResult) {
	switch r.Outcome {
	case domain.OutcomeIndexed:
		note := ""
		if r.Unchanged {
			note = ", unchanged"
		}
		cmd.Printf("  ✓ %s: %d chunks, %d embedded (%dms%s)\n", r.ContentItemID, r.ChunkCount, r.EmbeddedCount, r.DurationMs, note)
	case domain.OutcomeQueued:
		note := ""
		if r.Deduplicated {
			note = " (already queued)"
		}
		cmd.Printf("  … %s: queued%s\n", r.ContentItemID, note)
	default:
		cmd.Printf("  ✗ %s: [%s] %s\n", r.ContentItemID, r.ErrorKind, r.Error)
	}
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	if indexingService == nil {
		return errIndexingNotConfigured
	}

	view, err := indexingService.GetIndexStatus(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("item %s has not been indexed", args[0])
	}
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if indexJSON {
		return printJSON(cmd, view)
	}

	cmd.Printf("Item:    %s\n", view.ContentItemID)
	cmd.Printf("Status:  %s\n", view.Status)
	if view.Error != "" {
		cmd.Printf("Error:   %s\n", view.Error)
	}
	cmd.Printf("Words:   %d\n", view.WordCount)
	cmd.Printf("Tokens:  %d\n", view.TokenCount)
	cmd.Printf("Chunks:  %d\n", view.ChunkCount)
	if view.IndexedAt != nil {
		cmd.Printf("Indexed: %s\n", view.IndexedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
