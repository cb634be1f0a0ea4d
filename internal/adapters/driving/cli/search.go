package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

var (
	searchLimit   int
	searchJSON    bool
	searchKeyword bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed content",
	Long: `Performs hybrid search across all indexed chunks.
Combines keyword (BM25) and semantic (vector) matches with reciprocal rank
fusion. Use --keyword to skip the semantic lookup.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var searchReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the keyword index from stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runSearchReindex,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVarP(&searchKeyword, "keyword", "k", false, "keyword matches only")
	searchCmd.AddCommand(searchReindexCmd)
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errSearchNotConfigured
	}

	var (
		results []domain.SearchResult
		err     error
	)
	if searchKeyword {
		results, err = searchService.KeywordSearch(cmd.Context(), query, searchLimit)
	} else {
		results, err = searchService.HybridSearch(cmd.Context(), query, domain.SearchOptions{Limit: searchLimit})
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		if results == nil {
			results = []domain.SearchResult{}
		}
		return printJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] item #chunk (score, match)
		r := &results[i]
		cmd.Printf("  [%d] %s #%d (%.4f, %s)\n", i+1, r.ContentItemID, r.ChunkIndex, r.RelevanceScore, r.MatchType)
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		cmd.Println()
	}

	return nil
}

func runSearchReindex(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errSearchNotConfigured
	}

	cmd.Println("Rebuilding keyword index...")
	n, err := searchService.RebuildKeywordIndex(cmd.Context())
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	cmd.Printf("Indexed %d chunks.\n", n)
	return nil
}
