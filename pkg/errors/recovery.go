package errors

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/compozy/astsearch/engine/core"
	"github.com/compozy/astsearch/pkg/logger"
)

// -----
// Recovery Functions
// -----

// RecoverWithContext handles panics and converts them to errors
func RecoverWithContext(_ context.Context, operation string) error {
	if r := recover(); r != nil {
		return panicToError(operation, r)
	}
	return nil
}

// WithRecover executes a function with panic recovery
func WithRecover(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(operation, r)
		}
	}()
	return fn()
}

// WithRecoverTyped executes a function with panic recovery and a typed result
func WithRecoverTyped[T any](operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicToError(operation, r)
		}
	}()
	return fn()
}

func panicToError(operation string, r any) error {
	stack := string(debug.Stack())
	logger.Error("panic recovered",
		"operation", operation,
		"panic", r,
		"stack", stack,
	)

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = errors.New(v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return core.NewError(err, "PANIC_RECOVERED", map[string]any{
		"operation": operation,
		"panic":     fmt.Sprintf("%v", r),
	})
}

// -----
// Retry Mechanisms using retry-go
// -----

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     uint
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	RetryableErrors []core.ErrorCode // Error codes that should trigger retry
}

// DefaultRetryConfig returns sensible defaults for engine invocations
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		RetryableErrors: []core.ErrorCode{
			core.ErrorCodeEngineExecFailed,
		},
	}
}

// WithRetryTyped executes a function with retry logic and returns a typed result
func WithRetryTyped[T any](
	ctx context.Context,
	operation string,
	config *RetryConfig,
	fn func() (T, error),
) (T, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var result T

	opts := []retry.Option{
		retry.Attempts(config.MaxAttempts),
		retry.Delay(config.InitialDelay),
		retry.MaxDelay(config.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("operation failed, retrying",
				"operation", operation,
				"attempt", n+1,
				"max_attempts", config.MaxAttempts,
				"error", err,
			)
		}),
		retry.RetryIf(func(err error) bool {
			return isRetryable(err, config.RetryableErrors)
		}),
	}

	err := retry.Do(func() error {
		var retryErr error
		result, retryErr = fn()
		return retryErr
	}, opts...)

	return result, err
}

// WithRetry executes a function with retry logic
func WithRetry(ctx context.Context, operation string, config *RetryConfig, fn func() error) error {
	_, err := WithRetryTyped(ctx, operation, config, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// isRetryable checks if an error should trigger a retry
func isRetryable(err error, retryableCodes []core.ErrorCode) bool {
	if err == nil {
		return false
	}

	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		return false
	}

	for _, code := range retryableCodes {
		if coreErr.Code == code {
			return true
		}
	}
	return false
}
