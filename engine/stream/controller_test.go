package stream_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeUnits(n int) []string {
	units := make([]string, n)
	for i := range units {
		units[i] = fmt.Sprintf("file-%03d.go", i)
	}
	return units
}

// echoFn returns the unit itself, so chunk contents are predictable
func echoFn(_ context.Context, unit string) (any, error) {
	return unit, nil
}

func testConfig() *stream.Config {
	cfg := stream.DefaultConfig()
	cfg.InterChunkDelay = time.Millisecond
	cfg.GracePeriod = time.Minute
	return cfg
}

func drain(t *testing.T, c *stream.Controller, streamID string) []*stream.ChunkResult {
	t.Helper()
	var chunks []*stream.ChunkResult
	for {
		result, err := c.NextChunk(streamID, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, result.Chunk, "expected a chunk before the stream went quiet")
		chunks = append(chunks, result)
		if result.Chunk.IsFinal {
			return chunks
		}
	}
}

func TestCreate(t *testing.T) {
	t.Run("Should report totals before any chunk is produced", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(makeUnits(23), 5, echoFn)
		require.NoError(t, err)

		assert.NotEmpty(t, created.StreamID)
		assert.Equal(t, 23, created.TotalUnits)
		assert.Equal(t, 5, created.TotalChunks)
		assert.Equal(t, 5, created.ChunkSize)
	})

	t.Run("Should reject a nil unit function", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		_, err := c.Create(makeUnits(3), 1, nil)
		require.Error(t, err)

		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
		assert.Equal(t, core.ErrorCodeInvalidInput, coreErr.Code)
	})

	t.Run("Should fall back to configured chunk size", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(makeUnits(25), 0, echoFn)
		require.NoError(t, err)
		assert.Equal(t, 10, created.ChunkSize)
		assert.Equal(t, 3, created.TotalChunks)
	})
}

func TestNextChunk(t *testing.T) {
	t.Run("Should deliver ordered chunks with exactly one final", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(makeUnits(23), 5, echoFn)
		require.NoError(t, err)

		chunks := drain(t, c, created.StreamID)
		require.Len(t, chunks, 5)

		var collected []string
		for i, result := range chunks {
			assert.Equal(t, i, result.Chunk.ChunkID)
			assert.Equal(t, i+1, result.Chunk.Metadata.ChunkNumber)
			assert.Equal(t, 5, result.Chunk.Metadata.TotalChunks)
			assert.Equal(t, i == len(chunks)-1, result.Chunk.IsFinal)
			assert.Equal(t, !result.Chunk.IsFinal, result.HasMore)
			for _, item := range result.Chunk.Data {
				collected = append(collected, item.(string))
			}
		}
		assert.Equal(t, []int{5, 5, 5, 5, 3}, []int{
			len(chunks[0].Chunk.Data), len(chunks[1].Chunk.Data), len(chunks[2].Chunk.Data),
			len(chunks[3].Chunk.Data), len(chunks[4].Chunk.Data),
		})
		assert.Equal(t, makeUnits(23), collected)
		assert.Equal(t, stream.StatusCompleted, chunks[4].Status)
	})

	t.Run("Should emit one empty final chunk for zero units", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(nil, 5, echoFn)
		require.NoError(t, err)
		assert.Equal(t, 1, created.TotalChunks)

		chunks := drain(t, c, created.StreamID)
		require.Len(t, chunks, 1)
		assert.True(t, chunks[0].Chunk.IsFinal)
		assert.Empty(t, chunks[0].Chunk.Data)
		assert.Equal(t, stream.StatusCompleted, chunks[0].Status)
	})

	t.Run("Should skip units that return nil", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		fn := func(_ context.Context, unit string) (any, error) {
			if unit == "file-001.go" {
				return nil, nil
			}
			return unit, nil
		}
		created, err := c.Create(makeUnits(3), 3, fn)
		require.NoError(t, err)

		chunks := drain(t, c, created.StreamID)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0].Chunk.Data, 2)
	})

	t.Run("Should drop failing units without aborting the stream", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		fn := func(_ context.Context, unit string) (any, error) {
			if unit == "file-002.go" {
				return nil, errors.New("engine hiccup")
			}
			return unit, nil
		}
		created, err := c.Create(makeUnits(5), 5, fn)
		require.NoError(t, err)

		chunks := drain(t, c, created.StreamID)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0].Chunk.Data, 4)
		assert.Equal(t, stream.StatusCompleted, chunks[0].Status)
	})

	t.Run("Should survive a panicking unit function", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		fn := func(_ context.Context, unit string) (any, error) {
			if unit == "file-000.go" {
				panic("unit exploded")
			}
			return unit, nil
		}
		created, err := c.Create(makeUnits(3), 3, fn)
		require.NoError(t, err)

		chunks := drain(t, c, created.StreamID)
		require.Len(t, chunks, 1)
		assert.Len(t, chunks[0].Chunk.Data, 2)
		assert.Equal(t, stream.StatusCompleted, chunks[0].Status)
	})

	t.Run("Should report retry on timeout while running", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		blocker := make(chan struct{})
		fn := func(_ context.Context, unit string) (any, error) {
			<-blocker
			return unit, nil
		}
		created, err := c.Create(makeUnits(2), 2, fn)
		require.NoError(t, err)

		result, err := c.NextChunk(created.StreamID, 20*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, result.Chunk)
		assert.True(t, result.HasMore)
		assert.NotEmpty(t, result.Message)

		close(blocker)
		chunks := drain(t, c, created.StreamID)
		assert.Len(t, chunks, 1)
	})

	t.Run("Should report no more data after terminal timeout", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(makeUnits(2), 2, echoFn)
		require.NoError(t, err)

		drain(t, c, created.StreamID)

		result, err := c.NextChunk(created.StreamID, 20*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, result.Chunk)
		assert.False(t, result.HasMore)
		assert.Equal(t, stream.StatusCompleted, result.Status)
	})

	t.Run("Should error for an unknown stream", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		_, err := c.NextChunk("no-such-stream", time.Millisecond)
		require.Error(t, err)

		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
		assert.Equal(t, core.ErrorCodeStreamNotFound, coreErr.Code)
	})
}

func TestCancel(t *testing.T) {
	t.Run("Should deliver a terminal chunk after cancellation", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		started := make(chan struct{})
		var once sync.Once
		release := make(chan struct{})
		fn := func(_ context.Context, unit string) (any, error) {
			once.Do(func() { close(started) })
			<-release
			return unit, nil
		}
		created, err := c.Create(makeUnits(50), 5, fn)
		require.NoError(t, err)

		<-started
		require.NoError(t, c.Cancel(created.StreamID))
		close(release)

		// The terminal chunk must still arrive so pollers unblock
		result, err := c.NextChunk(created.StreamID, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, result.Chunk)
		assert.True(t, result.Chunk.IsFinal)
		assert.Equal(t, stream.StatusCancelled, result.Status)
		assert.False(t, result.HasMore)
	})

	t.Run("Should keep cancelled status after the worker exits", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(makeUnits(100), 1, func(_ context.Context, unit string) (any, error) {
			time.Sleep(time.Millisecond)
			return unit, nil
		})
		require.NoError(t, err)

		require.NoError(t, c.Cancel(created.StreamID))

		require.Eventually(t, func() bool {
			progress, progressErr := c.Progress(created.StreamID)
			return progressErr == nil && progress.Status == stream.StatusCancelled
		}, 5*time.Second, 10*time.Millisecond)

		// Status is terminal; completing work cannot overwrite it
		progress, err := c.Progress(created.StreamID)
		require.NoError(t, err)
		assert.Equal(t, stream.StatusCancelled, progress.Status)
	})

	t.Run("Should error when cancelling an unknown stream", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		err := c.Cancel("no-such-stream")
		require.Error(t, err)
	})
}

func TestProgress(t *testing.T) {
	t.Run("Should track processed items through completion", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		created, err := c.Create(makeUnits(10), 5, echoFn)
		require.NoError(t, err)

		drain(t, c, created.StreamID)

		progress, err := c.Progress(created.StreamID)
		require.NoError(t, err)
		assert.Equal(t, stream.StatusCompleted, progress.Status)
		assert.Equal(t, 10, progress.Progress.TotalItems)
		assert.Equal(t, 10, progress.Progress.ProcessedItems)
		assert.GreaterOrEqual(t, progress.Progress.ElapsedTime, 0.0)
	})

	t.Run("Should error for an unknown stream", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		_, err := c.Progress("no-such-stream")
		require.Error(t, err)
	})
}

func TestList(t *testing.T) {
	t.Run("Should snapshot all registered streams", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		first, err := c.Create(makeUnits(2), 2, echoFn)
		require.NoError(t, err)
		second, err := c.Create(makeUnits(3), 3, echoFn)
		require.NoError(t, err)

		infos := c.List()
		require.Len(t, infos, 2)
		ids := []string{infos[0].StreamID, infos[1].StreamID}
		assert.ElementsMatch(t, []string{first.StreamID, second.StreamID}, ids)
	})

	t.Run("Should return empty list when nothing is registered", func(t *testing.T) {
		c := stream.NewController(testConfig())
		defer c.Close()

		assert.Empty(t, c.List())
	})
}

func TestClose(t *testing.T) {
	t.Run("Should cancel live streams and release the registry", func(t *testing.T) {
		c := stream.NewController(testConfig())

		_, err := c.Create(makeUnits(1000), 1, func(_ context.Context, unit string) (any, error) {
			time.Sleep(time.Millisecond)
			return unit, nil
		})
		require.NoError(t, err)

		c.Close()
		assert.Empty(t, c.List())
	})
}
