package poller

import (
	"errors"
	"fmt"
)

// Domain-specific errors for the polling loop.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidBatchSize is returned when the configured batch size is
	// not positive.
	ErrInvalidBatchSize = errors.New("poller: max batch size must be positive")

	// ErrInvalidConnectionMode is returned for an unknown connection mode.
	ErrInvalidConnectionMode = errors.New("poller: unknown connection mode")

	// ErrServerRequired is returned when Options.Server is nil.
	ErrServerRequired = errors.New("poller: server is required")

	// ErrStoreRequired is returned when Options.Store is nil.
	ErrStoreRequired = errors.New("poller: store is required")
)

// Severity classifies a failure at the batch boundary so the loop can
// mechanically decide whether to abort or continue, without inspecting
// error text.
type Severity int

const (
	// SeverityRecoverable failures (batch read, merge write, sink
	// record) are logged and the loop advances to the next batch.
	SeverityRecoverable Severity = iota

	// SeverityFatal failures (bad configuration, session connect) end
	// the run; no further batches can proceed.
	SeverityFatal
)

// String returns the severity name for log output.
func (s Severity) String() string {
	if s == SeverityFatal {
		return "fatal"
	}
	return "recoverable"
}

// BatchError is a classified failure from the polling loop.
type BatchError struct {
	// Severity decides abort versus continue.
	Severity Severity

	// Batch is the 1-based batch index, or 0 when not batch-scoped.
	Batch int

	// Op names the loop stage that failed (partition, connect, read,
	// merge).
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.Batch > 0 {
		return fmt.Sprintf("%s failure in %s (batch %d): %v", e.Severity, e.Op, e.Batch, e.Err)
	}
	return fmt.Sprintf("%s failure in %s: %v", e.Severity, e.Op, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *BatchError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the run must abort.
func (e *BatchError) Fatal() bool {
	return e.Severity == SeverityFatal
}
