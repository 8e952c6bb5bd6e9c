package search

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/lexers"
	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/monochromegane/go-gitignore"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/pkg/logger"
)

// WalkOptions filters the work-unit enumeration
type WalkOptions struct {
	// Root is the directory to enumerate
	Root string
	// Language keeps only files whose detected language matches (ast-grep tag)
	Language string
	// Extensions keeps only files with these extensions (leading dot optional)
	Extensions []string
	// Include keeps only paths matching one of these doublestar globs,
	// relative to Root
	Include []string
	// Exclude drops paths matching one of these doublestar globs
	Exclude []string
	// IgnoreDirs are directory names skipped outright
	IgnoreDirs []string
	// RespectGitignore honors the root .gitignore when present
	RespectGitignore bool
}

// DefaultIgnoreDirs are directory names never worth searching
func DefaultIgnoreDirs() []string {
	return []string{".git", ".idea", ".vscode", "node_modules", "vendor", "dist", "build", "__pycache__", "target"}
}

// Enumerate walks the tree once, eagerly, and returns every file that passes
// the filters in lexical order. Eager enumeration is what makes stream chunk
// totals exact up front.
func Enumerate(opts *WalkOptions) ([]string, error) {
	info, err := os.Stat(opts.Root)
	if err != nil || !info.IsDir() {
		return nil, core.NewError(
			fmt.Errorf("directory not found: %s", opts.Root),
			core.ErrorCodeDirectoryNotFound,
			map[string]any{"directory": opts.Root},
		)
	}

	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs()
	}
	skipDir := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		skipDir[d] = true
	}

	var ignoreMatcher gitignore.IgnoreMatcher
	if opts.RespectGitignore {
		if matcher, ignErr := gitignore.NewGitIgnore(filepath.Join(opts.Root, ".gitignore")); ignErr == nil {
			ignoreMatcher = matcher
		}
	}

	extensions := normalizeExtensions(opts.Extensions)

	var units []string
	walkErr := filepath.WalkDir(opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != opts.Root && skipDir[d.Name()] {
				return filepath.SkipDir
			}
			if ignoreMatcher != nil && path != opts.Root && ignoreMatcher.Match(path, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignoreMatcher != nil && ignoreMatcher.Match(path, false) {
			return nil
		}
		if len(extensions) > 0 && !extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, relErr := filepath.Rel(opts.Root, path)
		if relErr != nil {
			rel = path
		}
		if !matchGlobs(opts.Include, rel, true) || matchGlobs(opts.Exclude, rel, false) {
			return nil
		}

		if opts.Language != "" && DetectLanguage(path) != opts.Language {
			return nil
		}

		units = append(units, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", opts.Root, walkErr)
	}

	return units, nil
}

// matchGlobs reports whether rel matches any of the globs; an empty glob
// list yields the provided default
func matchGlobs(globs []string, rel string, emptyDefault bool) bool {
	if len(globs) == 0 {
		return emptyDefault
	}
	rel = filepath.ToSlash(rel)
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func normalizeExtensions(extensions []string) map[string]bool {
	if len(extensions) == 0 {
		return nil
	}
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// lexerAliases maps chroma lexer names to ast-grep language tags where a
// plain lowercasing is not enough
var lexerAliases = map[string]string{
	"c++":        "cpp",
	"jsx":        "javascript",
	"tsx":        "typescript",
	"gas":        "", // assembler, not searchable
	"plaintext":  "",
	"markdown":   "",
	"typescript": "typescript",
	"javascript": "javascript",
}

// DetectLanguage maps a filename to an ast-grep language tag using chroma's
// lexer registry; empty string means undetected
func DetectLanguage(path string) string {
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		return ""
	}
	name := strings.ToLower(lexer.Config().Name)
	if alias, ok := lexerAliases[name]; ok {
		return alias
	}
	return name
}
