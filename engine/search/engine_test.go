package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMatches(t *testing.T) {
	t.Run("Should decode matches with one-based positions", func(t *testing.T) {
		data := []byte(`[
			{
				"text": "eval(user_input)",
				"range": {
					"start": {"line": 4, "column": 8},
					"end": {"line": 4, "column": 24}
				},
				"file": "app.py",
				"language": "Python",
				"metaVariables": {
					"single": {"CODE": {"text": "user_input"}}
				}
			}
		]`)

		matches, err := decodeMatches(data)
		require.NoError(t, err)
		require.Len(t, matches, 1)

		assert.Equal(t, "eval(user_input)", matches[0].Text)
		assert.Equal(t, 5, matches[0].Start.Line)
		assert.Equal(t, 9, matches[0].Start.Column)
		assert.Equal(t, 5, matches[0].End.Line)
		assert.Equal(t, 25, matches[0].End.Column)
		assert.Equal(t, map[string]string{"CODE": "user_input"}, matches[0].MetaVars)
	})

	t.Run("Should decode matches without meta variables", func(t *testing.T) {
		data := []byte(`[
			{
				"text": "unwrap()",
				"range": {"start": {"line": 0, "column": 0}, "end": {"line": 0, "column": 8}}
			}
		]`)

		matches, err := decodeMatches(data)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, 1, matches[0].Start.Line)
		assert.Equal(t, 1, matches[0].Start.Column)
		assert.Nil(t, matches[0].MetaVars)
	})

	t.Run("Should return empty slice for empty output", func(t *testing.T) {
		matches, err := decodeMatches([]byte("  \n"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("Should return empty slice for empty array", func(t *testing.T) {
		matches, err := decodeMatches([]byte("[]"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("Should error on malformed output", func(t *testing.T) {
		_, err := decodeMatches([]byte("not json"))
		assert.Error(t, err)
	})
}

func TestNewEngine(t *testing.T) {
	t.Run("Should apply defaults for nil config", func(t *testing.T) {
		engine := NewEngine(nil)
		require.NotNil(t, engine)

		impl, ok := engine.(*astGrepEngine)
		require.True(t, ok)
		assert.Equal(t, "ast-grep", impl.config.BinaryPath)
	})

	t.Run("Should replace a non-positive timeout", func(t *testing.T) {
		engine := NewEngine(&EngineConfig{BinaryPath: "custom-grep"})
		impl := engine.(*astGrepEngine)
		assert.Equal(t, "custom-grep", impl.config.BinaryPath)
		assert.Equal(t, DefaultEngineConfig().Timeout, impl.config.Timeout)
	})
}
