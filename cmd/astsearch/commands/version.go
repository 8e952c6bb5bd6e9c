package commands

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
)

// Build identity, overridable at link time via -ldflags
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// versionString folds the build identity into one greppable line
func versionString() string {
	return fmt.Sprintf("astsearch %s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build identity",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

var initVersionOnce sync.Once

// InitVersionCommand registers the version command
func InitVersionCommand() {
	initVersionOnce.Do(func() {
		rootCmd.AddCommand(versionCmd)
	})
}
