package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	logger *log.Logger

	initLoggerOnce sync.Once
)

// InitLogger initializes the default logger
func InitLogger() {
	initLoggerOnce.Do(func() {
		logger = log.New(os.Stderr)
		logger.SetLevel(log.InfoLevel)
	})
}

func ensureInitialized() {
	InitLogger()
}

// SetLevel sets the logging level
func SetLevel(level log.Level) {
	ensureInitialized()
	logger.SetLevel(level)
}

// SetLevelFromString sets the logging level from a config string.
// Unrecognized values leave the level unchanged.
func SetLevelFromString(level string) {
	ensureInitialized()
	switch strings.ToLower(level) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn", "warning":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	}
}

// SetDebug enables debug logging
func SetDebug(debug bool) {
	ensureInitialized()
	if debug {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...any) {
	ensureInitialized()
	logger.Info(msg, keyvals...)
}

// Debug logs a debug message
func Debug(msg string, keyvals ...any) {
	ensureInitialized()
	logger.Debug(msg, keyvals...)
}

// Error logs an error message
func Error(msg string, keyvals ...any) {
	ensureInitialized()
	logger.Error(msg, keyvals...)
}

// Warn logs a warning message
func Warn(msg string, keyvals ...any) {
	ensureInitialized()
	logger.Warn(msg, keyvals...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, keyvals ...any) {
	ensureInitialized()
	logger.Fatal(msg, keyvals...)
}

// With returns a new logger with additional context
func With(keyvals ...any) *log.Logger {
	ensureInitialized()
	return logger.With(keyvals...)
}

// Disable completely disables logging output. The MCP stdio transport owns
// stdout, so anything noisy must go to stderr or nowhere.
func Disable() {
	ensureInitialized()
	logger.SetOutput(io.Discard)
}

// Enable re-enables logging output to stderr
func Enable() {
	ensureInitialized()
	logger.SetOutput(os.Stderr)
}
