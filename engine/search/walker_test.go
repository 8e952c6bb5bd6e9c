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

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relUnits(t *testing.T, root string, units []string) []string {
	t.Helper()
	rels := make([]string, 0, len(units))
	for _, u := range units {
		rel, err := filepath.Rel(root, u)
		require.NoError(t, err)
		rels = append(rels, filepath.ToSlash(rel))
	}
	return rels
}

func TestEnumerate(t *testing.T) {
	t.Run("Should list files in lexical order", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "b.go", "package b")
		writeFile(t, root, "a.go", "package a")
		writeFile(t, root, "sub/c.go", "package c")

		units, err := search.Enumerate(&search.WalkOptions{Root: root})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.go", "b.go", "sub/c.go"}, relUnits(t, root, units))
	})

	t.Run("Should error for a missing directory", func(t *testing.T) {
		_, err := search.Enumerate(&search.WalkOptions{Root: "/no/such/directory"})
		require.Error(t, err)

		var coreErr *core.Error
		require.ErrorAs(t, err, &coreErr)
		assert.Equal(t, core.ErrorCodeDirectoryNotFound, coreErr.Code)
	})

	t.Run("Should error when root is a file", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.go", "package a")

		_, err := search.Enumerate(&search.WalkOptions{Root: filepath.Join(root, "a.go")})
		assert.Error(t, err)
	})

	t.Run("Should skip ignored directories", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "keep.go", "package keep")
		writeFile(t, root, "node_modules/skip.js", "var x")
		writeFile(t, root, ".git/config", "[core]")

		units, err := search.Enumerate(&search.WalkOptions{Root: root})
		require.NoError(t, err)
		assert.Equal(t, []string{"keep.go"}, relUnits(t, root, units))
	})

	t.Run("Should filter by extension", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "a.go", "package a")
		writeFile(t, root, "b.py", "pass")
		writeFile(t, root, "c.rs", "fn main() {}")

		units, err := search.Enumerate(&search.WalkOptions{
			Root:       root,
			Extensions: []string{"py", ".rs"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b.py", "c.rs"}, relUnits(t, root, units))
	})

	t.Run("Should apply include and exclude globs", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "src/main.go", "package main")
		writeFile(t, root, "src/main_test.go", "package main")
		writeFile(t, root, "docs/readme.md", "# readme")

		units, err := search.Enumerate(&search.WalkOptions{
			Root:    root,
			Include: []string{"src/**"},
			Exclude: []string{"**/*_test.go"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"src/main.go"}, relUnits(t, root, units))
	})

	t.Run("Should filter by detected language", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "app.py", "pass")
		writeFile(t, root, "main.go", "package main")

		units, err := search.Enumerate(&search.WalkOptions{
			Root:     root,
			Language: "python",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"app.py"}, relUnits(t, root, units))
	})

	t.Run("Should honor the root gitignore", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, ".gitignore", "generated.go\n")
		writeFile(t, root, "generated.go", "package gen")
		writeFile(t, root, "source.go", "package src")

		units, err := search.Enumerate(&search.WalkOptions{
			Root:             root,
			RespectGitignore: true,
			Extensions:       []string{"go"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"source.go"}, relUnits(t, root, units))
	})

	t.Run("Should return empty list for an empty directory", func(t *testing.T) {
		units, err := search.Enumerate(&search.WalkOptions{Root: t.TempDir()})
		require.NoError(t, err)
		assert.Empty(t, units)
	})
}

func TestDetectLanguage(t *testing.T) {
	t.Run("Should detect common languages", func(t *testing.T) {
		assert.Equal(t, "go", search.DetectLanguage("main.go"))
		assert.Equal(t, "python", search.DetectLanguage("app.py"))
		assert.Equal(t, "rust", search.DetectLanguage("lib.rs"))
	})

	t.Run("Should normalize lexer aliases", func(t *testing.T) {
		assert.Equal(t, "cpp", search.DetectLanguage("vector.cpp"))
		assert.Equal(t, "typescript", search.DetectLanguage("index.ts"))
	})

	t.Run("Should return empty for unknown files", func(t *testing.T) {
		assert.Equal(t, "", search.DetectLanguage("data.bin.unknown-ext"))
	})
}
