// Package stream turns large work enumerations into pull-based sequences of
// chunks, computed by one background worker per stream.
//
// Within one job a single goroutine (the worker) mutates counters and pushes
// to the result queue; callers only read counters, block on the queue, or
// request cancellation. The registry map is the only state shared across
// streams and is guarded by its own mutex.
package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/pkg/logger"
)

// Controller owns the registry of active stream jobs and their workers
type Controller struct {
	config *Config

	mu   sync.RWMutex
	jobs map[string]*job

	wg sync.WaitGroup
}

// NewController creates a stream controller; nil config selects the defaults
func NewController(config *Config) *Controller {
	if config == nil {
		config = DefaultConfig()
	}
	if config.ChunkSize < 1 {
		config.ChunkSize = DefaultConfig().ChunkSize
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = DefaultConfig().DefaultTimeout
	}
	return &Controller{
		config: config,
		jobs:   make(map[string]*job),
	}
}

// Create registers a stream over an already-enumerated work-unit list and
// starts its worker. It returns immediately; no chunk has been produced yet.
func (c *Controller) Create(units []string, chunkSize int, fn UnitFunc) (*CreateResult, error) {
	if fn == nil {
		return nil, core.NewError(
			fmt.Errorf("unit function is required"),
			core.ErrorCodeInvalidInput,
			nil,
		)
	}
	if chunkSize < 1 {
		chunkSize = c.config.ChunkSize
	}

	j := newJob(core.NewID().String(), units, chunkSize, fn)

	c.mu.Lock()
	c.jobs[j.id] = j
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		j.run(c.config.InterChunkDelay)
		c.scheduleCleanup(j)
	}()

	logger.Debug("stream created",
		"stream_id", j.id,
		"total_units", len(units),
		"total_chunks", j.totalChunks,
		"chunk_size", chunkSize,
	)

	return &CreateResult{
		StreamID:    j.id,
		TotalUnits:  len(units),
		TotalChunks: j.totalChunks,
		ChunkSize:   chunkSize,
	}, nil
}

// NextChunk blocks up to timeout waiting for the next chunk. A timeout on a
// live job is not an error: the caller gets HasMore=true and should retry.
// Each call consumes at most one chunk; chunks are delivered in production
// order and are not re-deliverable.
func (c *Controller) NextChunk(streamID string, timeout time.Duration) (*ChunkResult, error) {
	j, err := c.lookup(streamID)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = c.config.DefaultTimeout
	}

	select {
	case chunk := <-j.queue:
		return &ChunkResult{
			StreamID: streamID,
			Chunk:    &chunk,
			Progress: j.Progress(),
			Status:   j.Status(),
			HasMore:  !chunk.IsFinal,
			Error:    chunk.Error,
		}, nil
	case <-time.After(timeout):
		status := j.Status()
		if status.Terminal() {
			return &ChunkResult{
				StreamID: streamID,
				Progress: j.Progress(),
				Status:   status,
				HasMore:  false,
				Error:    j.Error(),
			}, nil
		}
		return &ChunkResult{
			StreamID: streamID,
			Progress: j.Progress(),
			Status:   status,
			HasMore:  true,
			Message:  "no data available yet, try again",
		}, nil
	}
}

// Progress returns a non-blocking snapshot of stream progress; safe to call
// concurrently with chunk retrieval and with the worker
func (c *Controller) Progress(streamID string) (*ProgressResult, error) {
	j, err := c.lookup(streamID)
	if err != nil {
		return nil, err
	}
	return &ProgressResult{
		StreamID: streamID,
		Progress: j.Progress(),
		Status:   j.Status(),
		Error:    j.Error(),
	}, nil
}

// Cancel requests cooperative cancellation. The worker checks the signal
// between work units and still pushes a terminal chunk before exiting, so a
// pending NextChunk call unblocks instead of hanging.
func (c *Controller) Cancel(streamID string) error {
	j, err := c.lookup(streamID)
	if err != nil {
		return err
	}
	j.requestCancel()
	logger.Info("stream cancellation requested", "stream_id", streamID)
	return nil
}

// List returns a snapshot of all registered streams
func (c *Controller) List() []Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]Info, 0, len(c.jobs))
	for id, j := range c.jobs {
		infos = append(infos, Info{
			StreamID: id,
			Status:   j.Status(),
			Progress: j.Progress(),
		})
	}
	return infos
}

// Close cancels all streams, waits for their workers to exit, and releases
// the registry. Intended for server shutdown and tests.
func (c *Controller) Close() {
	c.mu.Lock()
	for _, j := range c.jobs {
		j.requestCancel()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, j := range c.jobs {
		j.mu.Lock()
		if j.cleanup != nil {
			j.cleanup.Stop()
		}
		j.mu.Unlock()
		delete(c.jobs, id)
	}
}

func (c *Controller) lookup(streamID string) (*job, error) {
	c.mu.RLock()
	j, ok := c.jobs[streamID]
	c.mu.RUnlock()
	if !ok {
		return nil, core.NewError(
			fmt.Errorf("stream not found: %s", streamID),
			core.ErrorCodeStreamNotFound,
			map[string]any{"stream_id": streamID},
		)
	}
	return j, nil
}

// scheduleCleanup retains terminal job state for the grace period so a
// slightly-behind poller does not get a not-found error for a job that only
// just finished
func (c *Controller) scheduleCleanup(j *job) {
	timer := time.AfterFunc(c.config.GracePeriod, func() {
		c.mu.Lock()
		delete(c.jobs, j.id)
		c.mu.Unlock()
		logger.Debug("stream state released", "stream_id", j.id)
	})
	j.mu.Lock()
	j.cleanup = timer
	j.mu.Unlock()
}
