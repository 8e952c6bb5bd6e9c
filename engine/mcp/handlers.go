package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/paginate"
	"github.com/compozy/astsearch/engine/search"
	"github.com/compozy/astsearch/engine/stream"
	"github.com/compozy/astsearch/pkg/logger"
)

// topFileCount bounds the per-file leaderboard in search summaries
const topFileCount = 5

// HandleSearchDirectoryInternal runs a synchronous directory search and
// paginates the per-file results under the "search" token budget
func (s *Server) HandleSearchDirectoryInternal(ctx context.Context, args map[string]any) (*ToolResponse, error) {
	pattern, _ := args["pattern"].(string)
	directory, _ := args["directory"].(string)
	if pattern == "" {
		return nil, core.NewError(fmt.Errorf("pattern must not be empty"), core.ErrorCodePatternInvalid, nil)
	}
	if directory == "" {
		return nil, core.NewError(fmt.Errorf("directory must not be empty"), core.ErrorCodeInvalidInput, nil)
	}

	language, _ := args["language"].(string)
	units, err := s.enumerate(directory, language, args)
	if err != nil {
		return nil, err
	}

	logger.Debug("starting directory search",
		"pattern", pattern,
		"directory", directory,
		"files", len(units),
	)

	results := make([]core.FileResult, 0, len(units))
	totalFiles := len(units)
	for _, unit := range units {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		fileResult, searchErr := s.searcher.SearchFile(ctx, pattern, language, unit)
		if searchErr != nil {
			logger.Debug("file search failed, skipping", "file", unit, "error", searchErr)
			continue
		}
		if fileResult != nil && len(fileResult.Matches) > 0 {
			results = append(results, *fileResult)
		}
	}

	page, _ := args["page"].(int)
	pageSize, _ := args["page_size"].(int)

	result := paginate.List(s.paginator, results, page, pageSize, "search", func(items []core.FileResult) (map[string]any, error) {
		summary := buildSearchSummary(items, totalFiles)
		return map[string]any{
			"total_files":        summary.TotalFiles,
			"files_with_matches": summary.FilesWithMatches,
			"total_matches":      summary.TotalMatches,
			"top_files":          summary.TopFiles,
			"language_breakdown": summary.LanguageBreakdown,
		}, nil
	})

	return NewToolResponse(map[string]any{
		"pattern":    pattern,
		"directory":  directory,
		"results":    result.Items,
		"pagination": result.Pagination,
		"summary":    result.Summary,
	}), nil
}

// HandleCreateSearchStreamInternal enumerates work units eagerly, then
// registers a stream whose worker searches one file per unit
func (s *Server) HandleCreateSearchStreamInternal(_ context.Context, args map[string]any) (*ToolResponse, error) {
	pattern, _ := args["pattern"].(string)
	directory, _ := args["directory"].(string)
	if pattern == "" {
		return nil, core.NewError(fmt.Errorf("pattern must not be empty"), core.ErrorCodePatternInvalid, nil)
	}
	if directory == "" {
		return nil, core.NewError(fmt.Errorf("directory must not be empty"), core.ErrorCodeInvalidInput, nil)
	}

	language, _ := args["language"].(string)
	units, err := s.enumerate(directory, language, args)
	if err != nil {
		return nil, err
	}

	chunkSize, _ := args["chunk_size"].(int)
	created, err := s.streams.Create(units, chunkSize, s.searchUnitFunc(pattern, language))
	if err != nil {
		return nil, err
	}

	logger.Info("search stream created",
		"stream_id", created.StreamID,
		"pattern", pattern,
		"directory", directory,
		"total_units", created.TotalUnits,
	)

	return NewToolResponse(map[string]any{
		"stream_id":    created.StreamID,
		"pattern":      pattern,
		"directory":    directory,
		"total_units":  created.TotalUnits,
		"total_chunks": created.TotalChunks,
		"chunk_size":   created.ChunkSize,
		"usage": map[string]any{
			"next_chunk": fmt.Sprintf("call get_stream_chunk with stream_id %q until is_final", created.StreamID),
			"progress":   "call get_stream_progress at any time; it never consumes a chunk",
			"cancel":     "call cancel_stream to stop early; the final chunk is still delivered",
		},
	}), nil
}

// HandleGetStreamChunkInternal retrieves the next chunk, waiting up to the
// requested timeout. A timeout on a running stream is reported with
// has_more=true and no chunk, never as an error.
func (s *Server) HandleGetStreamChunkInternal(_ context.Context, args map[string]any) (*ToolResponse, error) {
	streamID, _ := args["stream_id"].(string)
	if streamID == "" {
		return nil, core.NewError(fmt.Errorf("stream_id must not be empty"), core.ErrorCodeInvalidInput, nil)
	}

	var timeout time.Duration
	if seconds, ok := args["timeout"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	chunk, err := s.streams.NextChunk(streamID, timeout)
	if err != nil {
		return nil, err
	}
	return NewToolResponse(chunk), nil
}

// HandleGetStreamProgressInternal returns a non-blocking progress snapshot
func (s *Server) HandleGetStreamProgressInternal(_ context.Context, args map[string]any) (*ToolResponse, error) {
	streamID, _ := args["stream_id"].(string)
	if streamID == "" {
		return nil, core.NewError(fmt.Errorf("stream_id must not be empty"), core.ErrorCodeInvalidInput, nil)
	}

	progress, err := s.streams.Progress(streamID)
	if err != nil {
		return nil, err
	}
	return NewToolResponse(progress), nil
}

// HandleCancelStreamInternal requests cooperative cancellation
func (s *Server) HandleCancelStreamInternal(_ context.Context, args map[string]any) (*ToolResponse, error) {
	streamID, _ := args["stream_id"].(string)
	if streamID == "" {
		return nil, core.NewError(fmt.Errorf("stream_id must not be empty"), core.ErrorCodeInvalidInput, nil)
	}

	if err := s.streams.Cancel(streamID); err != nil {
		return nil, err
	}
	return NewToolResponse(map[string]any{
		"stream_id": streamID,
		"status":    stream.StatusCancelled,
		"message":   "cancellation requested; retrieve the final chunk to drain accumulated results",
	}), nil
}

// HandleListStreamsInternal lists all registered streams
func (s *Server) HandleListStreamsInternal(_ context.Context, _ map[string]any) (*ToolResponse, error) {
	infos := s.streams.List()
	sort.Slice(infos, func(i, j int) bool { return infos[i].StreamID < infos[j].StreamID })
	return NewToolResponse(map[string]any{
		"streams": infos,
		"count":   len(infos),
	}), nil
}

// HandleRunSecurityAuditInternal resolves the language's audit rules and
// starts one stream per rule over a shared file enumeration
func (s *Server) HandleRunSecurityAuditInternal(_ context.Context, args map[string]any) (*ToolResponse, error) {
	directory, _ := args["directory"].(string)
	language, _ := args["language"].(string)
	if directory == "" {
		return nil, core.NewError(fmt.Errorf("directory must not be empty"), core.ErrorCodeInvalidInput, nil)
	}
	if language == "" {
		return nil, core.NewError(fmt.Errorf("language must not be empty"), core.ErrorCodeInvalidInput, nil)
	}

	severitiesArg, _ := args["severities"].(string)
	var severities []core.Severity
	for _, sev := range splitCSV(severitiesArg) {
		severities = append(severities, core.Severity(sev))
	}

	patterns, err := search.AuditPatterns(language, severities, s.config.Audit.PatternsFile)
	if err != nil {
		return nil, err
	}

	units, err := s.enumerate(directory, language, args)
	if err != nil {
		return nil, err
	}

	chunkSize, _ := args["chunk_size"].(int)
	patternStreams := make([]map[string]any, 0, len(patterns))
	for _, rule := range patterns {
		created, createErr := s.streams.Create(units, chunkSize, s.auditUnitFunc(rule, language))
		if createErr != nil {
			return nil, createErr
		}
		patternStreams = append(patternStreams, map[string]any{
			"stream_id":    created.StreamID,
			"pattern":      rule.Pattern,
			"severity":     rule.Severity,
			"issue":        rule.Issue,
			"total_chunks": created.TotalChunks,
		})
	}

	logger.Info("security audit started",
		"directory", directory,
		"language", language,
		"patterns", len(patterns),
		"files", len(units),
	)

	return NewToolResponse(map[string]any{
		"directory":       directory,
		"language":        language,
		"total_files":     len(units),
		"pattern_count":   len(patterns),
		"pattern_streams": patternStreams,
		"usage": map[string]any{
			"next_chunk": "poll each pattern stream with get_stream_chunk until is_final",
		},
	}), nil
}

// enumerate resolves the walk filters from tool arguments plus server config
func (s *Server) enumerate(directory, language string, args map[string]any) ([]string, error) {
	extensions, _ := args["extensions"].(string)
	include, _ := args["include"].(string)
	exclude, _ := args["exclude"].(string)

	return search.Enumerate(&search.WalkOptions{
		Root:             directory,
		Language:         language,
		Extensions:       splitCSV(extensions),
		Include:          splitCSV(include),
		Exclude:          splitCSV(exclude),
		IgnoreDirs:       s.config.Walker.IgnoreDirs,
		RespectGitignore: s.config.Walker.RespectGitignore,
	})
}

// searchUnitFunc builds the per-file worker body for a search stream. Files
// without matches contribute nothing to their chunk.
func (s *Server) searchUnitFunc(pattern, language string) stream.UnitFunc {
	return func(ctx context.Context, unit string) (any, error) {
		fileResult, err := s.searcher.SearchFile(ctx, pattern, language, unit)
		if err != nil {
			return nil, err
		}
		if fileResult == nil || len(fileResult.Matches) == 0 {
			return nil, nil
		}
		return fileResult, nil
	}
}

// auditUnitFunc is searchUnitFunc with the matched rule attached to each result
func (s *Server) auditUnitFunc(rule core.SecurityPattern, language string) stream.UnitFunc {
	return func(ctx context.Context, unit string) (any, error) {
		fileResult, err := s.searcher.SearchFile(ctx, rule.Pattern, language, unit)
		if err != nil {
			return nil, err
		}
		if fileResult == nil || len(fileResult.Matches) == 0 {
			return nil, nil
		}
		return &core.SecurityFinding{FileResult: *fileResult, Rule: rule}, nil
	}
}

// buildSearchSummary aggregates the full result set, not just the page
func buildSearchSummary(results []core.FileResult, totalFiles int) SearchSummary {
	summary := SearchSummary{
		TotalFiles:        totalFiles,
		FilesWithMatches:  len(results),
		LanguageBreakdown: make(map[string]int),
	}

	counts := make([]TopFile, 0, len(results))
	for _, r := range results {
		summary.TotalMatches += len(r.Matches)
		if r.Language != "" {
			summary.LanguageBreakdown[r.Language] += len(r.Matches)
		}
		counts = append(counts, TopFile{File: r.File, Matches: len(r.Matches)})
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Matches > counts[j].Matches })
	if len(counts) > topFileCount {
		counts = counts[:topFileCount]
		summary.Truncated = true
	}
	summary.TopFiles = counts

	return summary
}
