// Package search delegates AST pattern matching to the external ast-grep
// binary and owns work-unit enumeration over directory trees. It never
// implements matching itself.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/compozy/astsearch/engine/core"
	errs "github.com/compozy/astsearch/pkg/errors"
)

// Engine runs one pattern against one file and reports its matches
type Engine interface {
	SearchFile(ctx context.Context, pattern, language, file string) (*core.FileResult, error)
}

// EngineConfig configures the external engine invocation
type EngineConfig struct {
	// BinaryPath is the ast-grep executable; resolved via PATH when bare
	BinaryPath string
	// Timeout bounds a single file invocation
	Timeout time.Duration
}

// DefaultEngineConfig returns the built-in engine settings
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		BinaryPath: "ast-grep",
		Timeout:    30 * time.Second,
	}
}

// astGrepEngine shells out to the ast-grep CLI with JSON output
type astGrepEngine struct {
	config *EngineConfig
	retry  *errs.RetryConfig
}

// NewEngine creates an ast-grep backed engine; nil config selects defaults
func NewEngine(config *EngineConfig) Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultEngineConfig().Timeout
	}
	return &astGrepEngine{
		config: config,
		retry:  errs.DefaultRetryConfig(),
	}
}

// rawMatch mirrors one entry of `ast-grep run --json` output
type rawMatch struct {
	Text  string `json:"text"`
	Range struct {
		Start rawPosition `json:"start"`
		End   rawPosition `json:"end"`
	} `json:"range"`
	File          string                      `json:"file"`
	Language      string                      `json:"language"`
	MetaVariables map[string]map[string]rawMV `json:"metaVariables"`
}

type rawPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type rawMV struct {
	Text string `json:"text"`
}

// SearchFile invokes ast-grep on a single file. Transient exec failures are
// retried; a missing binary and undecodable output are not.
func (e *astGrepEngine) SearchFile(
	ctx context.Context,
	pattern, language, file string,
) (*core.FileResult, error) {
	return errs.WithRetryTyped(ctx, "ast-grep search", e.retry, func() (*core.FileResult, error) {
		return e.searchOnce(ctx, pattern, language, file)
	})
}

func (e *astGrepEngine) searchOnce(
	ctx context.Context,
	pattern, language, file string,
) (*core.FileResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	args := []string{"run", "--pattern", pattern, "--json=compact"}
	if language != "" {
		args = append(args, "--lang", language)
	}
	args = append(args, file)

	cmd := exec.CommandContext(runCtx, e.config.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, core.NewError(
				fmt.Errorf("ast-grep binary not found: %s", e.config.BinaryPath),
				core.ErrorCodeEngineNotFound,
				nil,
			)
		}
		return nil, core.NewError(
			fmt.Errorf("ast-grep failed: %w: %s", err, stderr.String()),
			core.ErrorCodeEngineExecFailed,
			map[string]any{"file": file},
		)
	}

	matches, err := decodeMatches(stdout.Bytes())
	if err != nil {
		return nil, core.NewError(
			fmt.Errorf("cannot decode ast-grep output: %w", err),
			core.ErrorCodeEngineDecodeFailed,
			map[string]any{"file": file},
		)
	}

	result := &core.FileResult{
		File:     file,
		Language: language,
		Matches:  matches,
	}
	if len(matches) > 0 && language == "" {
		result.Language = DetectLanguage(file)
	}
	if info, statErr := os.Stat(file); statErr == nil {
		result.FileSize = int(info.Size())
	}
	return result, nil
}

// decodeMatches converts ast-grep JSON output to core matches. ast-grep
// reports zero-based lines and columns; ours are one-based.
func decodeMatches(data []byte) ([]core.Match, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []core.Match{}, nil
	}

	var raw []rawMatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	matches := make([]core.Match, 0, len(raw))
	for i := range raw {
		m := core.Match{
			Text: raw[i].Text,
			Start: core.Position{
				Line:   raw[i].Range.Start.Line + 1,
				Column: raw[i].Range.Start.Column + 1,
			},
			End: core.Position{
				Line:   raw[i].Range.End.Line + 1,
				Column: raw[i].Range.End.Column + 1,
			},
		}
		if single, ok := raw[i].MetaVariables["single"]; ok && len(single) > 0 {
			m.MetaVars = make(map[string]string, len(single))
			for name, mv := range single {
				m.MetaVars[name] = mv.Text
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}
