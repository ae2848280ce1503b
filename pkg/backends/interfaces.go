package backends

import (
	"io"
	"time"

	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Backend is a pluggable sink for routed log records.
//
// Init is called once before any record is delivered. After a successful
// Init the front-end subscribes LogMessage to every level in Levels and
// LogBinary to the binary channel. LogMessage and LogBinary may be called
// concurrently from any goroutine; they must not retain info or data after
// returning. Close releases resources and is idempotent.
type Backend interface {
	// Name returns the registry key of the back-end.
	Name() string

	// Init configures the back-end from its subtree of the configuration.
	// Invalid or unknown keys yield a *types.ConfigError.
	Init(cfg *config.Tree) error

	// Dump writes the current settings to w, one per line, each line
	// starting with prefix.
	Dump(w io.Writer, prefix string)

	// Levels returns the levels the back-end wants to receive.
	Levels() types.LevelMask

	// LogMessage accepts one record stamped at ts.
	LogMessage(info *types.MsgInfo, ts time.Time) error

	// LogBinary accepts raw bytes written without any prefix.
	LogBinary(data []byte) error

	// Status reports the back-end's runtime state.
	Status() Status

	// Close stops the back-end. Records accepted before Close are flushed.
	Close() error
}

// Factory creates an unconfigured back-end.
type Factory func() Backend

// ErrorReporter is implemented by back-ends that report asynchronous
// failures, such as writer goroutine I/O errors, through a handler.
type ErrorReporter interface {
	SetErrorHandler(handler types.ErrorHandler)
}

// Status describes a back-end at a point in time.
type Status struct {
	Name        string
	Destination string
	Active      bool
	Levels      types.LevelMask
	LastError   error
	Metrics     metrics.Metrics
}
