package commands

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	t.Run("Should print the build identity as one line", func(t *testing.T) {
		var buf bytes.Buffer
		versionCmd.SetOut(&buf)
		versionCmd.Run(versionCmd, nil)

		out := buf.String()
		assert.Contains(t, out, "astsearch "+Version)
		assert.Contains(t, out, "commit "+GitCommit)
		assert.Contains(t, out, runtime.Version())
		assert.Contains(t, out, runtime.GOOS+"/"+runtime.GOARCH)
		assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
	})

	t.Run("Should register under the root command", func(t *testing.T) {
		InitVersionCommand()
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Use == "version" {
				found = true
			}
		}
		require.True(t, found)
	})
}
