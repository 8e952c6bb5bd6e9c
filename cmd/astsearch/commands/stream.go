package commands

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/search"
	"github.com/compozy/astsearch/engine/stream"
	"github.com/compozy/astsearch/pkg/progress"
)

var (
	streamLanguage   string
	streamExtensions []string
	streamInclude    []string
	streamExclude    []string
	streamChunkSize  int
	streamJSON       bool
)

var streamCmd = &cobra.Command{
	Use:   "stream <pattern> <directory>",
	Short: "Search a large directory as a chunked background stream",
	Long: `Run a search as a background stream and consume it chunk by chunk, showing
live progress. This is the CLI twin of the create_search_stream MCP tool and
is the right choice for trees too large for a single paginated response.`,
	Example: `  # Stream all unwrap() calls across a vendored tree
  astsearch stream 'unwrap()' ./vendor --language rust

  # Smaller chunks for steadier feedback
  astsearch stream 'eval($CODE)' . --language python --chunk-size 5`,
	Args: cobra.ExactArgs(2),
	RunE: runStream,
}

var initStreamOnce sync.Once

// InitStreamCommand registers the stream command
func InitStreamCommand() {
	initStreamOnce.Do(func() {
		streamCmd.Flags().StringVarP(&streamLanguage, "language", "l", "", "language filter (ast-grep tag)")
		streamCmd.Flags().StringSliceVar(&streamExtensions, "ext", nil, "file extension filter")
		streamCmd.Flags().StringSliceVar(&streamInclude, "include", nil, "glob patterns to include")
		streamCmd.Flags().StringSliceVar(&streamExclude, "exclude", nil, "glob patterns to exclude")
		streamCmd.Flags().IntVar(&streamChunkSize, "chunk-size", 0, "files per chunk (0 = config default)")
		streamCmd.Flags().BoolVar(&streamJSON, "json", false, "emit collected results as JSON")
		rootCmd.AddCommand(streamCmd)
	})
}

func runStream(cmd *cobra.Command, args []string) error {
	pattern, directory := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	units, err := search.Enumerate(&search.WalkOptions{
		Root:             directory,
		Language:         streamLanguage,
		Extensions:       streamExtensions,
		Include:          streamInclude,
		Exclude:          streamExclude,
		IgnoreDirs:       cfg.Walker.IgnoreDirs,
		RespectGitignore: cfg.Walker.RespectGitignore,
	})
	if err != nil {
		return err
	}

	engine := search.NewEngine(cfg.EngineSettings())
	controller := stream.NewController(cfg.StreamConfig())
	defer controller.Close()

	created, err := controller.Create(units, streamChunkSize, func(ctx context.Context, unit string) (any, error) {
		fileResult, searchErr := engine.SearchFile(ctx, pattern, streamLanguage, unit)
		if searchErr != nil {
			return nil, searchErr
		}
		if fileResult == nil || len(fileResult.Matches) == 0 {
			return nil, nil
		}
		return fileResult, nil
	})
	if err != nil {
		return err
	}

	indicator := progress.NewAdaptiveProgress(os.Stdout)
	indicator.Start(fmt.Sprintf("Searching %d files for %q", created.TotalUnits, pattern))

	results, chunks, err := drainStream(controller, created, indicator)
	if err != nil {
		indicator.Error(err)
		return err
	}

	totalMatches := 0
	for _, r := range results {
		totalMatches += len(r.Matches)
	}
	indicator.SuccessWithStats("Search complete", progress.StreamStats{
		StreamID:         created.StreamID,
		Files:            created.TotalUnits,
		FilesWithMatches: len(results),
		Matches:          totalMatches,
		Chunks:           chunks,
		Status:           string(stream.StatusCompleted),
	})

	if streamJSON {
		return printJSON(results)
	}
	for _, fileResult := range results {
		fmt.Printf("%s (%d matches)\n", fileResult.File, len(fileResult.Matches))
	}
	return nil
}

// drainStream polls chunks until the terminal chunk arrives, updating the
// progress display along the way
func drainStream(
	controller *stream.Controller,
	created *stream.CreateResult,
	indicator *progress.AdaptiveProgress,
) ([]core.FileResult, int, error) {
	var results []core.FileResult
	chunks := 0

	for {
		chunkResult, err := controller.NextChunk(created.StreamID, 5*time.Second)
		if err != nil {
			return nil, chunks, err
		}

		if chunkResult.Chunk != nil {
			chunks++
			for _, item := range chunkResult.Chunk.Data {
				if fileResult, ok := item.(*core.FileResult); ok {
					results = append(results, *fileResult)
				}
			}
			if chunkResult.Chunk.Error != "" {
				return results, chunks, fmt.Errorf("stream failed: %s", chunkResult.Chunk.Error)
			}
			if chunkResult.Chunk.IsFinal {
				return results, chunks, nil
			}
		}

		if chunkResult.Progress != nil {
			indicator.UpdateStream(
				chunkResult.Progress.ProcessedItems,
				chunkResult.Progress.TotalItems,
				chunks,
				fmt.Sprintf("%d files with matches", len(results)),
			)
		}

		if !chunkResult.HasMore {
			return results, chunks, nil
		}
	}
}
