package mcp

import (
	"context"
	"time"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/stream"
)

// Searcher runs one pattern against one file
type Searcher interface {
	SearchFile(ctx context.Context, pattern, language, file string) (*core.FileResult, error)
}

// StreamController is the chunked delivery surface the tools depend on
type StreamController interface {
	Create(units []string, chunkSize int, fn stream.UnitFunc) (*stream.CreateResult, error)
	NextChunk(streamID string, timeout time.Duration) (*stream.ChunkResult, error)
	Progress(streamID string) (*stream.ProgressResult, error)
	Cancel(streamID string) error
	List() []stream.Info
}

// ToolResponse represents a response from a tool
type ToolResponse struct {
	Content []any `json:"content"`
}

// NewToolResponse wraps a single result object
func NewToolResponse(result any) *ToolResponse {
	return &ToolResponse{Content: []any{result}}
}

// SearchSummary is the aggregate attached to paginated search responses,
// computed over the full result set rather than the returned page
type SearchSummary struct {
	TotalFiles        int            `json:"total_files"`
	FilesWithMatches  int            `json:"files_with_matches"`
	TotalMatches      int            `json:"total_matches"`
	TopFiles          []TopFile      `json:"top_files"`
	LanguageBreakdown map[string]int `json:"language_breakdown"`
	Truncated         bool           `json:"truncated"`
}

// TopFile is one entry of the per-file match leaderboard
type TopFile struct {
	File    string `json:"file"`
	Matches int    `json:"matches"`
}
