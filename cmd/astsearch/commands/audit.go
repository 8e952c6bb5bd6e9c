package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/engine/search"
	"github.com/compozy/astsearch/engine/stream"
	"github.com/compozy/astsearch/pkg/logger"
	"github.com/compozy/astsearch/pkg/progress"
)

var (
	auditSeverities []string
	auditChunkSize  int
	auditJSON       bool
)

var auditCmd = &cobra.Command{
	Use:   "audit <directory>",
	Short: "Run heuristic security patterns over a directory",
	Long: `Run the built-in security patterns for a language against every eligible
file under a directory. Each pattern runs as its own stream over a shared file
enumeration; findings are collected and grouped by severity.

The patterns are coarse heuristics meant to surface candidates for review,
not a static analyzer verdict.`,
	Example: `  # Audit Python code for the high-severity patterns only
  astsearch audit ./src --language python --severity high

  # Full Rust audit with custom extra patterns
  astsearch audit . --language rust --config astsearch.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAudit,
}

var (
	auditLanguage string
	initAuditOnce sync.Once
)

// InitAuditCommand registers the audit command
func InitAuditCommand() {
	initAuditOnce.Do(func() {
		auditCmd.Flags().StringVarP(&auditLanguage, "language", "l", "", "language to audit (required)")
		auditCmd.Flags().StringSliceVar(&auditSeverities, "severity", nil, "severity filter: high, medium, low")
		auditCmd.Flags().IntVar(&auditChunkSize, "chunk-size", 0, "files per chunk (0 = config default)")
		auditCmd.Flags().BoolVar(&auditJSON, "json", false, "emit findings as JSON")
		_ = auditCmd.MarkFlagRequired("language")
		rootCmd.AddCommand(auditCmd)
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	directory := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var severities []core.Severity
	for _, s := range auditSeverities {
		severities = append(severities, core.Severity(s))
	}

	patterns, err := search.AuditPatterns(auditLanguage, severities, cfg.Audit.PatternsFile)
	if err != nil {
		return err
	}

	units, err := search.Enumerate(&search.WalkOptions{
		Root:             directory,
		Language:         auditLanguage,
		IgnoreDirs:       cfg.Walker.IgnoreDirs,
		RespectGitignore: cfg.Walker.RespectGitignore,
	})
	if err != nil {
		return err
	}

	logger.Info("starting security audit",
		"directory", directory,
		"language", auditLanguage,
		"patterns", len(patterns),
		"files", len(units),
	)

	engine := search.NewEngine(cfg.EngineSettings())
	controller := stream.NewController(cfg.StreamConfig())
	defer controller.Close()

	// JSON output goes to stdout, so the indicator only runs in text mode
	var indicator *progress.Runner
	if !auditJSON {
		indicator = progress.NewRunner(fmt.Sprintf("Auditing %d files with %d patterns", len(units), len(patterns)))
		indicator.Start()
	}

	findings, err := collectFindings(controller, engine, patterns, units, auditLanguage, indicator)
	if indicator != nil {
		indicator.Done(err)
	}
	if err != nil {
		return err
	}

	if auditJSON {
		return printJSON(findings)
	}
	printFindings(directory, len(units), findings)
	return nil
}

// collectFindings runs one stream per pattern and drains them sequentially.
// Sequential draining keeps at most a few ast-grep processes alive at once.
func collectFindings(
	controller *stream.Controller,
	engine search.Engine,
	patterns []core.SecurityPattern,
	units []string,
	language string,
	indicator *progress.Runner,
) ([]core.SecurityFinding, error) {
	var findings []core.SecurityFinding

	for i, rule := range patterns {
		if indicator != nil {
			indicator.Update(fmt.Sprintf("Pattern %d/%d: %s", i+1, len(patterns), rule.Pattern))
		}
		created, err := controller.Create(units, auditChunkSize, func(ctx context.Context, unit string) (any, error) {
			fileResult, searchErr := engine.SearchFile(ctx, rule.Pattern, language, unit)
			if searchErr != nil {
				return nil, searchErr
			}
			if fileResult == nil || len(fileResult.Matches) == 0 {
				return nil, nil
			}
			return &core.SecurityFinding{FileResult: *fileResult, Rule: rule}, nil
		})
		if err != nil {
			return nil, err
		}

		for {
			chunkResult, err := controller.NextChunk(created.StreamID, 30*time.Second)
			if err != nil {
				return nil, err
			}
			if indicator != nil && chunkResult.Progress != nil {
				indicator.SetCount(i*len(units)+chunkResult.Progress.ProcessedItems, len(patterns)*len(units))
			}
			if chunkResult.Chunk != nil {
				for _, item := range chunkResult.Chunk.Data {
					if finding, ok := item.(*core.SecurityFinding); ok {
						findings = append(findings, *finding)
					}
				}
				if chunkResult.Chunk.IsFinal {
					break
				}
			}
			if !chunkResult.HasMore {
				break
			}
		}
	}

	return findings, nil
}

func printFindings(directory string, filesScanned int, findings []core.SecurityFinding) {
	fmt.Printf("Audited %d files under %s\n\n", filesScanned, directory)

	if len(findings) == 0 {
		fmt.Println("No findings.")
		return
	}

	bySeverity := map[core.Severity][]core.SecurityFinding{}
	for _, f := range findings {
		bySeverity[f.Rule.Severity] = append(bySeverity[f.Rule.Severity], f)
	}

	for _, severity := range []core.Severity{core.SeverityHigh, core.SeverityMedium, core.SeverityLow} {
		group := bySeverity[severity]
		if len(group) == 0 {
			continue
		}
		fmt.Printf("%s (%d findings)\n", severity, len(group))
		for _, f := range group {
			fmt.Printf("  %s: %s (%d matches) - %s\n", f.File, f.Rule.Pattern, len(f.Matches), f.Rule.Issue)
		}
		fmt.Println()
	}
}
