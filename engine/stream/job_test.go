package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopUnit(_ context.Context, _ string) (any, error) {
	return nil, nil
}

func TestJobFail(t *testing.T) {
	t.Run("Should push a terminal error chunk and mark the job failed", func(t *testing.T) {
		j := newJob("job-fail", []string{"a", "b", "c"}, 2, noopUnit)
		j.fail(1, "engine exploded")

		assert.Equal(t, StatusFailed, j.Status())
		assert.Equal(t, "engine exploded", j.Error())

		select {
		case chunk := <-j.queue:
			assert.Equal(t, 1, chunk.ChunkID)
			assert.True(t, chunk.IsFinal)
			assert.Empty(t, chunk.Data)
			assert.Equal(t, "engine exploded", chunk.Error)
			assert.Equal(t, 2, chunk.Metadata.ChunkNumber)
		default:
			t.Fatal("expected a terminal error chunk on the queue")
		}
	})

	t.Run("Should push exactly one chunk when failed twice", func(t *testing.T) {
		j := newJob("job-fail-twice", []string{"a"}, 1, noopUnit)
		j.fail(0, "first failure")
		j.fail(0, "second failure")

		assert.Equal(t, "first failure", j.Error())
		assert.Len(t, j.queue, 1)
	})

	t.Run("Should not overwrite a completed job", func(t *testing.T) {
		j := newJob("job-done", []string{"a"}, 1, noopUnit)
		require.True(t, j.setStatus(StatusCompleted))

		j.fail(0, "too late")

		assert.Equal(t, StatusCompleted, j.Status())
		assert.Empty(t, j.Error())
		assert.Empty(t, j.queue)
	})
}

func TestNextChunkFailedJob(t *testing.T) {
	t.Run("Should deliver the error chunk and then report terminal failure", func(t *testing.T) {
		c := NewController(&Config{
			ChunkSize:       2,
			DefaultTimeout:  50 * time.Millisecond,
			InterChunkDelay: time.Millisecond,
			GracePeriod:     time.Minute,
		})
		defer c.Close()

		j := newJob("job-registered", []string{"a", "b"}, 2, noopUnit)
		c.mu.Lock()
		c.jobs[j.id] = j
		c.mu.Unlock()

		j.fail(0, "worker gave up")

		chunkResult, err := c.NextChunk(j.id, 50*time.Millisecond)
		require.NoError(t, err)
		require.NotNil(t, chunkResult.Chunk)
		assert.True(t, chunkResult.Chunk.IsFinal)
		assert.Empty(t, chunkResult.Chunk.Data)
		assert.Equal(t, "worker gave up", chunkResult.Error)
		assert.False(t, chunkResult.HasMore)
		assert.Equal(t, StatusFailed, chunkResult.Status)

		// The queue is drained; a further poll hits the terminal-timeout path
		// and must still surface the failure instead of asking to retry.
		chunkResult, err = c.NextChunk(j.id, 10*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, chunkResult.Chunk)
		assert.False(t, chunkResult.HasMore)
		assert.Equal(t, StatusFailed, chunkResult.Status)
		assert.Equal(t, "worker gave up", chunkResult.Error)
		assert.Empty(t, chunkResult.Message)
	})
}
