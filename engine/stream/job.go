package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/compozy/astsearch/pkg/errors"
	"github.com/compozy/astsearch/pkg/logger"
)

// job holds the state of one stream. The worker goroutine is the single
// writer of counters and the chunk queue; callers only read counters, read
// status, or request cancellation, so no lock is needed beyond the status
// mutex and the queue channel.
type job struct {
	id          string
	units       []string
	chunkSize   int
	totalChunks int
	fn          UnitFunc

	// queue is buffered to totalChunks+1 so the worker never blocks on push,
	// even when it has to append a terminal error chunk
	queue chan Chunk

	ctx    context.Context
	cancel context.CancelFunc
	start  time.Time

	mu      sync.Mutex
	status  Status
	errMsg  string
	cleanup *time.Timer

	processed    atomic.Int64
	currentChunk atomic.Int64
}

func newJob(id string, units []string, chunkSize int, fn UnitFunc) *job {
	totalChunks := (len(units) + chunkSize - 1) / chunkSize
	if totalChunks == 0 {
		// A zero-unit stream still emits one empty terminal chunk so
		// consumers get an unambiguous stop signal.
		totalChunks = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &job{
		id:          id,
		units:       units,
		chunkSize:   chunkSize,
		totalChunks: totalChunks,
		fn:          fn,
		queue:       make(chan Chunk, totalChunks+1),
		ctx:         ctx,
		cancel:      cancel,
		start:       time.Now(),
		status:      StatusInitializing,
	}
}

// Status returns the current lifecycle state
func (j *job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// setStatus transitions the job state; terminal states are irreversible
func (j *job) setStatus(s Status) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	j.status = s
	return true
}

func (j *job) setError(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errMsg = msg
}

// Error returns the failure message, if any
func (j *job) Error() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errMsg
}

// requestCancel marks the job cancelled and signals the worker. The worker
// observes the context between work units, so cancellation latency is
// bounded by one unit's processing time.
func (j *job) requestCancel() {
	j.setStatus(StatusCancelled)
	j.cancel()
}

// Progress derives a point-in-time progress view from the atomic counters
func (j *job) Progress() *Progress {
	processed := int(j.processed.Load())
	elapsed := time.Since(j.start).Seconds()

	var perSecond, remaining float64
	if processed > 0 && elapsed > 0 {
		perSecond = float64(processed) / elapsed
		remaining = float64(len(j.units)-processed) / perSecond
	}

	return &Progress{
		TotalItems:         len(j.units),
		ProcessedItems:     processed,
		ElapsedTime:        elapsed,
		EstimatedRemaining: remaining,
		ItemsPerSecond:     perSecond,
	}
}

// push enqueues a chunk; the buffer is sized so this never blocks
func (j *job) push(c Chunk) {
	select {
	case j.queue <- c:
	default:
		// Cannot happen with a correctly sized buffer; dropping here would
		// violate the delivery guarantee, so make the bug loud.
		logger.Error("chunk queue full, dropping chunk", "stream_id", j.id, "chunk_id", c.ChunkID)
	}
}

// run produces chunks in strictly increasing chunk_id order until the unit
// list is exhausted, the job fails, or cancellation is observed. Exactly one
// terminal chunk is pushed on every path.
func (j *job) run(delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stream worker panicked", "stream_id", j.id, "panic", r)
			j.fail(int(j.currentChunk.Load()), "stream worker panicked")
		}
	}()

	j.setStatus(StatusRunning)

	if len(j.units) == 0 {
		j.setStatus(StatusCompleted)
		j.push(Chunk{
			ChunkID:  0,
			Data:     []any{},
			Metadata: ChunkMetadata{ChunkNumber: 1, TotalChunks: j.totalChunks},
			IsFinal:  true,
		})
		return
	}

	for chunkIdx := 0; chunkIdx < j.totalChunks; chunkIdx++ {
		if j.ctx.Err() != nil {
			j.finishCancelled(chunkIdx, nil)
			return
		}

		lo := chunkIdx * j.chunkSize
		hi := min(lo+j.chunkSize, len(j.units))

		data, err := errs.WithRecoverTyped("process chunk group", func() ([]any, error) {
			return j.processGroup(j.units[lo:hi]), nil
		})
		if err != nil {
			// A failure escaping unit-level handling is fatal for the whole
			// job; no further groups are processed.
			j.fail(chunkIdx, err.Error())
			return
		}

		if j.ctx.Err() != nil {
			j.finishCancelled(chunkIdx, data)
			return
		}

		isFinal := chunkIdx == j.totalChunks-1
		if isFinal {
			j.setStatus(StatusCompleted)
		}
		j.push(Chunk{
			ChunkID: chunkIdx,
			Data:    data,
			Metadata: ChunkMetadata{
				ChunkNumber:  chunkIdx + 1,
				TotalChunks:  j.totalChunks,
				ItemsInChunk: len(data),
			},
			IsFinal: isFinal,
		})
		j.currentChunk.Store(int64(chunkIdx))

		if !isFinal {
			time.Sleep(delay)
		}
	}
}

// processGroup runs each unit independently: a failing or panicking unit is
// logged and contributes no result, it never aborts the chunk or the job
func (j *job) processGroup(units []string) []any {
	data := make([]any, 0, len(units))
	for _, unit := range units {
		if j.ctx.Err() != nil {
			return data
		}

		result, err := errs.WithRecoverTyped("process work unit", func() (any, error) {
			return j.fn(j.ctx, unit)
		})
		j.processed.Add(1)
		if err != nil {
			logger.Debug("work unit failed", "stream_id", j.id, "unit", unit, "error", err)
			continue
		}
		if result != nil {
			data = append(data, result)
		}
	}
	return data
}

// finishCancelled pushes the terminal chunk for a cancelled job, carrying
// whatever results were accumulated before the cancellation was observed
func (j *job) finishCancelled(chunkIdx int, data []any) {
	j.setStatus(StatusCancelled)
	if data == nil {
		data = []any{}
	}
	j.push(Chunk{
		ChunkID: chunkIdx,
		Data:    data,
		Metadata: ChunkMetadata{
			ChunkNumber:  chunkIdx + 1,
			TotalChunks:  j.totalChunks,
			ItemsInChunk: len(data),
		},
		IsFinal: true,
	})
}

// fail marks the job failed and pushes the terminal error chunk
func (j *job) fail(chunkIdx int, msg string) {
	if !j.setStatus(StatusFailed) {
		return
	}
	j.setError(msg)
	j.push(Chunk{
		ChunkID: chunkIdx,
		Data:    []any{},
		Metadata: ChunkMetadata{
			ChunkNumber: chunkIdx + 1,
			TotalChunks: j.totalChunks,
		},
		IsFinal: true,
		Error:   msg,
	})
}
