package commands

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/compozy/astsearch/pkg/config"
	"github.com/compozy/astsearch/pkg/logger"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "astsearch",
	Short: "AST-aware code search with token-budgeted pagination and chunked streaming",
	Long: `astsearch searches codebases by syntax tree pattern instead of plain text,
delegating the matching itself to the ast-grep binary. Results are shaped for
LLM consumption: synchronous searches are paginated to fit a token budget, and
large searches run as background streams delivering results chunk by chunk.

Key Features:
  • Structural search via ast-grep patterns with meta-variables
  • Token-budgeted pagination with whole-set summaries
  • Chunked background streams with progress, cancellation, and retry-safe polling
  • Heuristic security audits per language
  • MCP server exposing all of the above as tools

Example workflow:
  1. Quick search:       astsearch search 'eval($CODE)' ./src --language python
  2. Large tree:         astsearch stream 'unwrap()' ./vendor --language rust
  3. Security audit:     astsearch audit ./src --language python
  4. Serve to an LLM:    astsearch serve-mcp`,
}

var (
	initRootOnce sync.Once
	cfgFile      string
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	InitConfig()

	InitSearchCommand()
	InitStreamCommand()
	InitAuditCommand()
	InitVersionCommand()
	RegisterMCPCommand()

	cobra.CheckErr(rootCmd.Execute())
}

// InitConfig initializes the configuration
func InitConfig() {
	initRootOnce.Do(func() {
		rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./astsearch.yaml)")
		cobra.OnInitialize(initConfigEnv)
	})
}

func initConfigEnv() {
	// Environment variables override file values, e.g. ASTSEARCH_ENGINE_BINARY
	viper.SetEnvPrefix("ASTSEARCH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// loadConfig resolves the effective configuration for a command run
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger.SetLevelFromString(cfg.Log.Level)
	return cfg, nil
}
