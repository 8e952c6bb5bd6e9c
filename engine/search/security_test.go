package search_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/search"
)

func TestAuditLanguages(t *testing.T) {
	t.Run("Should include the built-in languages", func(t *testing.T) {
		languages := search.AuditLanguages()
		assert.Contains(t, languages, "rust")
		assert.Contains(t, languages, "python")
		assert.Contains(t, languages, "javascript")
		assert.Contains(t, languages, "go")
	})
}

func TestAuditPatterns(t *testing.T) {
	t.Run("Should return built-in patterns for a known language", func(t *testing.T) {
		patterns, err := search.AuditPatterns("python", nil, "")
		require.NoError(t, err)
		require.NotEmpty(t, patterns)

		var found bool
		for _, p := range patterns {
			if p.Pattern == "eval($CODE)" {
				found = true
				assert.Equal(t, core.SeverityHigh, p.Severity)
			}
		}
		assert.True(t, found)
	})

	t.Run("Should error for an unsupported language", func(t *testing.T) {
		_, err := search.AuditPatterns("cobol", nil, "")
		require.Error(t, err)

		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
		assert.Equal(t, core.ErrorCodeLanguageUnsupported, coreErr.Code)
	})

	t.Run("Should filter by severity", func(t *testing.T) {
		patterns, err := search.AuditPatterns("rust", []core.Severity{core.SeverityHigh}, "")
		require.NoError(t, err)
		require.NotEmpty(t, patterns)
		for _, p := range patterns {
			assert.Equal(t, core.SeverityHigh, p.Severity)
		}
	})

	t.Run("Should merge extra patterns from a YAML file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "patterns.yaml")
		content := `python:
  - pattern: "pickle.loads($DATA)"
    severity: high
    issue: "Unsafe deserialization"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		patterns, err := search.AuditPatterns("python", nil, path)
		require.NoError(t, err)

		var found bool
		for _, p := range patterns {
			if p.Pattern == "pickle.loads($DATA)" {
				found = true
				assert.Equal(t, "Unsafe deserialization", p.Issue)
			}
		}
		assert.True(t, found)
	})

	t.Run("Should error for a missing patterns file", func(t *testing.T) {
		_, err := search.AuditPatterns("python", nil, "/no/such/patterns.yaml")
		require.Error(t, err)

		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
		assert.Equal(t, core.ErrorCodeConfigNotFound, coreErr.Code)
	})

	t.Run("Should error for an unparsable patterns file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "patterns.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

		_, err := search.AuditPatterns("python", nil, path)
		require.Error(t, err)

		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
		assert.Equal(t, core.ErrorCodeConfigInvalid, coreErr.Code)
	})

	t.Run("Should not mutate the built-in table", func(t *testing.T) {
		first, err := search.AuditPatterns("go", nil, "")
		require.NoError(t, err)
		firstLen := len(first)

		// Appending to the returned slice must not leak into later calls
		_ = append(first, core.SecurityPattern{Pattern: "x", Severity: core.SeverityLow, Issue: "x"})

		second, err := search.AuditPatterns("go", nil, "")
		require.NoError(t, err)
		assert.Len(t, second, firstLen)
	})
}
