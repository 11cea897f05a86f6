package alertcache

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// Entity/spec errors
	ErrSkippedSpecVersion = errors.New("execution spec missing or not cache-eligible")
	ErrInvalidTargetKey   = errors.New("invalid canonical target key")
	ErrNotFound           = errors.New("cache record not found")

	// Store errors
	ErrStoreUnavailable    = errors.New("key-value store unavailable")
	ErrMalformedIndexValue = errors.New("stored index value is not a JSON array")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorWithContext adds additional context to errors for better debugging and logging
type ErrorWithContext struct {
	Err     error
	Context map[string]interface{}
}

func (e *ErrorWithContext) Error() string {
	if len(e.Context) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (context: %+v)", e.Err, e.Context)
}

func (e *ErrorWithContext) Unwrap() error {
	return e.Err
}

// WithContext adds context to an error
func WithContext(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}
	return &ErrorWithContext{
		Err:     err,
		Context: context,
	}
}

// TargetError records a target key that could not be parsed during a sync.
// These are surfaced through SyncReport instead of being dropped silently.
type TargetError struct {
	Target string
	Err    error
}

func (e TargetError) Error() string {
	return fmt.Sprintf("target %q: %v", e.Target, e.Err)
}

func (e TargetError) Unwrap() error {
	return e.Err
}

// Common error checking helpers

// IsSkippedSpec checks if an error is a spec-version gate rejection
func IsSkippedSpec(err error) bool {
	return errors.Is(err, ErrSkippedSpecVersion)
}

// IsRetryable checks if an error is safe to retry on the next natural write
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsPermanent checks if an error is permanent (not retryable)
func IsPermanent(err error) bool {
	return errors.Is(err, ErrSkippedSpecVersion) ||
		errors.Is(err, ErrInvalidTargetKey) ||
		errors.Is(err, ErrInvalidConfig)
}
