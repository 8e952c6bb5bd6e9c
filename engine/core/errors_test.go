package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/astsearch/engine/core"
)

func TestNewID(t *testing.T) {
	t.Run("Should generate unique ids", func(t *testing.T) {
		first := core.NewID()
		second := core.NewID()
		assert.NotEmpty(t, first.String())
		assert.NotEqual(t, first, second)
	})
}

func TestError(t *testing.T) {
	t.Run("Should include code and metadata in the message", func(t *testing.T) {
		err := core.NewError(fmt.Errorf("bad pattern"), core.ErrorCodePatternInvalid, map[string]any{
			"pattern": "eval(",
		})
		assert.Contains(t, err.Error(), "PATTERN_INVALID")
		assert.Contains(t, err.Error(), "bad pattern")
		assert.Contains(t, err.Error(), "pattern")
	})

	t.Run("Should unwrap to the inner error", func(t *testing.T) {
		inner := fmt.Errorf("inner cause")
		err := core.NewError(inner, core.ErrorCodeInvalidInput, nil)
		assert.ErrorIs(t, err, inner)
	})

	t.Run("Should match errors by code", func(t *testing.T) {
		err := core.NewError(fmt.Errorf("a"), core.ErrorCodeStreamNotFound, nil)
		target := core.NewError(fmt.Errorf("b"), core.ErrorCodeStreamNotFound, nil)
		assert.ErrorIs(t, err, target)
	})

	t.Run("Should support errors.As through wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", core.NewError(fmt.Errorf("x"), core.ErrorCodeEngineExecFailed, nil))

		var coreErr *core.Error
		require.True(t, errors.As(err, &coreErr))
		assert.Equal(t, core.ErrorCodeEngineExecFailed, coreErr.Code)
	})
}
