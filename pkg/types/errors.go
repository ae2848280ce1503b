package types

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Sentinel errors shared by the front-end and the back-ends.
var (
	// ErrBufferTooSmall is returned when a record does not fit into the
	// caller-supplied buffer. The accompanying count is the size needed.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrUnknownBackend is returned when a configuration names a back-end
	// that has no registered factory.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrDuplicateBackend is returned when a back-end name is registered twice.
	ErrDuplicateBackend = errors.New("backend already registered")

	// ErrClosed is returned by operations on a finalized logger or back-end.
	ErrClosed = errors.New("closed")

	// ErrRecordTooLarge is returned when a record exceeds the queue node limit.
	ErrRecordTooLarge = errors.New("record too large")
)

// ErrorLevel represents the severity of an error raised by the logging
// machinery itself.
type ErrorLevel int

const (
	// ErrorLevelLow represents minor errors that don't impact operation
	ErrorLevelLow ErrorLevel = iota
	// ErrorLevelMedium represents errors that lose or delay records
	ErrorLevelMedium
	// ErrorLevelHigh represents errors that disable a back-end
	ErrorLevelHigh
)

// String returns the lower-case severity name.
func (l ErrorLevel) String() string {
	switch l {
	case ErrorLevelLow:
		return "low"
	case ErrorLevelMedium:
		return "medium"
	case ErrorLevelHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LogError represents an error that occurred during logging operations
type LogError struct {
	Operation   string     // The operation that failed
	Destination string     // The back-end where the error occurred
	Message     string     // Human readable error message
	Err         error      // The underlying error
	Level       ErrorLevel // The severity level of the error
	Timestamp   time.Time  // When the error occurred
}

// Error implements the error interface
func (e LogError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Operation, e.Message)
	if e.Destination != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Operation, e.Destination, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e LogError) Unwrap() error {
	return e.Err
}

// ErrorHandler defines a function type for handling logger errors
type ErrorHandler func(err LogError)

// StderrErrorHandler writes errors to stderr (default behavior)
func StderrErrorHandler(err LogError) {
	fmt.Fprintf(os.Stderr, "omnilog: %s\n", err.Error())
}

// SilentErrorHandler discards all errors
func SilentErrorHandler(LogError) {}

// ChannelErrorHandler returns an error handler that sends errors to a channel
func ChannelErrorHandler(ch chan<- LogError) ErrorHandler {
	return func(err LogError) {
		select {
		case ch <- err:
		default:
			// Channel full, fallback to stderr
			StderrErrorHandler(err)
		}
	}
}

// MultiErrorHandler combines multiple error handlers
func MultiErrorHandler(handlers ...ErrorHandler) ErrorHandler {
	return func(err LogError) {
		for _, handler := range handlers {
			if handler != nil {
				handler(err)
			}
		}
	}
}

// ConfigError describes an invalid or missing configuration key.
type ConfigError struct {
	Backend string // back-end instance name, empty for the front-end
	Key     string // offending key
	Reason  string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Backend == "" {
		return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config: backend %q: %s: %s", e.Backend, e.Key, e.Reason)
}

// NewConfigError returns a ConfigError carrying a stack trace.
func NewConfigError(backend, key, reason string) error {
	return errors.WithStack(&ConfigError{Backend: backend, Key: key, Reason: reason})
}

// AsConfigError extracts a ConfigError from err's chain.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
