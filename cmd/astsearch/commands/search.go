package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/paginate"
	"github.com/compozy/astsearch/engine/search"
	"github.com/compozy/astsearch/pkg/logger"
	"github.com/compozy/astsearch/pkg/progress"
)

var (
	searchLanguage   string
	searchExtensions []string
	searchInclude    []string
	searchExclude    []string
	searchPage       int
	searchPageSize   int
	searchJSON       bool
)

var searchCmd = &cobra.Command{
	Use:   "search <pattern> <directory>",
	Short: "Search a directory for an AST pattern",
	Long: `Search every eligible file under a directory for an ast-grep pattern and
print the matches. Output is paginated under the search token budget; use
--page to walk through large result sets.`,
	Example: `  # Find all eval calls in Python code
  astsearch search 'eval($CODE)' ./src --language python

  # Restrict by extension and path
  astsearch search 'unwrap()' . --ext rs --exclude 'target/**'

  # Second page, machine-readable
  astsearch search 'exec.Command($$$ARGS)' . --language go --page 2 --json`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

var initSearchOnce sync.Once

// InitSearchCommand registers the search command
func InitSearchCommand() {
	initSearchOnce.Do(func() {
		searchCmd.Flags().StringVarP(&searchLanguage, "language", "l", "", "language filter (ast-grep tag)")
		searchCmd.Flags().StringSliceVar(&searchExtensions, "ext", nil, "file extension filter")
		searchCmd.Flags().StringSliceVar(&searchInclude, "include", nil, "glob patterns to include")
		searchCmd.Flags().StringSliceVar(&searchExclude, "exclude", nil, "glob patterns to exclude")
		searchCmd.Flags().IntVar(&searchPage, "page", 1, "page number (1-based)")
		searchCmd.Flags().IntVar(&searchPageSize, "page-size", 0, "results per page (0 = auto from token budget)")
		searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit JSON instead of text")
		rootCmd.AddCommand(searchCmd)
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	pattern, directory := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	units, err := search.Enumerate(&search.WalkOptions{
		Root:             directory,
		Language:         searchLanguage,
		Extensions:       searchExtensions,
		Include:          searchInclude,
		Exclude:          searchExclude,
		IgnoreDirs:       cfg.Walker.IgnoreDirs,
		RespectGitignore: cfg.Walker.RespectGitignore,
	})
	if err != nil {
		return err
	}

	engine := search.NewEngine(cfg.EngineSettings())
	ctx := cmd.Context()

	// JSON output goes to stdout, so the indicator only runs in text mode
	var indicator *progress.Runner
	if !searchJSON {
		indicator = progress.NewRunner(fmt.Sprintf("Searching %d files", len(units)))
		indicator.Start()
	}

	results := make([]core.FileResult, 0, len(units))
	for i, unit := range units {
		if ctx.Err() != nil {
			if indicator != nil {
				indicator.Done(ctx.Err())
			}
			return ctx.Err()
		}
		fileResult, searchErr := engine.SearchFile(ctx, pattern, searchLanguage, unit)
		if searchErr != nil {
			logger.Debug("file search failed, skipping", "file", unit, "error", searchErr)
		} else if fileResult != nil && len(fileResult.Matches) > 0 {
			results = append(results, *fileResult)
		}
		if indicator != nil {
			indicator.SetCount(i+1, len(units))
		}
	}
	if indicator != nil {
		indicator.Success()
	}

	paginator := paginate.NewPaginatorWithTunables(cfg.Budgets, cfg.PaginatorTunables())
	page := paginate.List(paginator, results, searchPage, searchPageSize, "search", countSummary)

	if searchJSON {
		return printJSON(page)
	}
	printSearchPage(pattern, len(units), page)
	return nil
}

// countSummary aggregates match totals across the whole result set
func countSummary(items []core.FileResult) (map[string]any, error) {
	total := 0
	for _, item := range items {
		total += len(item.Matches)
	}
	return map[string]any{
		"files_with_matches": len(items),
		"total_matches":      total,
	}, nil
}

func printSearchPage(pattern string, filesSearched int, page paginate.Result[core.FileResult]) {
	fmt.Printf("Pattern: %s\n", pattern)
	fmt.Printf("Files searched: %d, files with matches: %d\n\n", filesSearched, page.Pagination.TotalCount)

	for _, fileResult := range page.Items {
		fmt.Printf("%s (%s, %d matches)\n", fileResult.File, fileResult.Language, len(fileResult.Matches))
		for _, m := range fileResult.Matches {
			fmt.Printf("  %d:%d  %s\n", m.Start.Line, m.Start.Column, m.Text)
		}
		fmt.Println()
	}

	fmt.Printf("Page %d/%d", page.Pagination.Page, page.Pagination.TotalPages)
	if page.Pagination.HasNext {
		fmt.Printf(" (use --page %d for more)", *page.Pagination.NextPage)
	}
	fmt.Println()
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
