package stream

import (
	"context"
	"time"
)

// Status represents the lifecycle state of a stream job
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	// StatusPaused is reserved for future use; no transition into or out of
	// it is implemented.
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final and irreversible
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// UnitFunc processes one work unit (e.g. searches one file). A nil result
// with a nil error means the unit contributes nothing to its chunk.
type UnitFunc func(ctx context.Context, unit string) (any, error)

// ChunkMetadata describes a chunk's position within its stream
type ChunkMetadata struct {
	ChunkNumber  int `json:"chunk_number"`
	TotalChunks  int `json:"total_chunks"`
	ItemsInChunk int `json:"items_in_chunk"`
}

// Chunk is one ordered batch of per-unit results. Exactly one chunk per
// stream has IsFinal set, and it is always the last chunk pushed, including
// on cancellation and failure.
type Chunk struct {
	ChunkID  int           `json:"chunk_id"`
	Data     []any         `json:"data"`
	Metadata ChunkMetadata `json:"metadata"`
	IsFinal  bool          `json:"is_final"`
	Error    string        `json:"error,omitempty"`
}

// Progress is a point-in-time view of stream progress, recomputed on every
// query rather than persisted
type Progress struct {
	TotalItems         int     `json:"total_items"`
	ProcessedItems     int     `json:"processed_items"`
	ElapsedTime        float64 `json:"elapsed_time"`
	EstimatedRemaining float64 `json:"estimated_remaining"`
	ItemsPerSecond     float64 `json:"items_per_second"`
}

// CreateResult is returned as soon as enumeration is registered; it does not
// wait for any chunk to be produced
type CreateResult struct {
	StreamID    string `json:"stream_id"`
	TotalUnits  int    `json:"total_units"`
	TotalChunks int    `json:"total_chunks"`
	ChunkSize   int    `json:"chunk_size"`
}

// ChunkResult is the response to a chunk retrieval call. A timeout with a
// still-running job yields a nil Chunk with HasMore set, not an error.
type ChunkResult struct {
	StreamID string    `json:"stream_id"`
	Chunk    *Chunk    `json:"chunk"`
	Progress *Progress `json:"progress"`
	Status   Status    `json:"status"`
	HasMore  bool      `json:"has_more"`
	Error    string    `json:"error,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// ProgressResult is the response to a progress query
type ProgressResult struct {
	StreamID string    `json:"stream_id"`
	Progress *Progress `json:"progress"`
	Status   Status    `json:"status"`
	Error    string    `json:"error,omitempty"`
}

// Info summarizes one registered stream
type Info struct {
	StreamID string    `json:"stream_id"`
	Status   Status    `json:"status"`
	Progress *Progress `json:"progress"`
}

// Config defines stream controller defaults
type Config struct {
	// ChunkSize is the default number of work units per chunk
	ChunkSize int
	// InterChunkDelay is a throughput-shaping pause between chunks so the
	// result queue and downstream consumer are not saturated
	InterChunkDelay time.Duration
	// GracePeriod is how long terminal job state is retained for late polls
	GracePeriod time.Duration
	// DefaultTimeout bounds a chunk retrieval wait when the caller gives none
	DefaultTimeout time.Duration
}

// DefaultConfig returns the built-in stream defaults
func DefaultConfig() *Config {
	return &Config{
		ChunkSize:       10,
		InterChunkDelay: 100 * time.Millisecond,
		GracePeriod:     5 * time.Minute,
		DefaultTimeout:  30 * time.Second,
	}
}
