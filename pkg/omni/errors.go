package omni

import "github.com/wayneeseguin/omnilog/pkg/types"

// Error handling types re-exported for callers that only import omni.
type (
	// LogError describes a failure inside the logging machinery.
	LogError = types.LogError
	// ErrorHandler receives LogError values.
	ErrorHandler = types.ErrorHandler
)

// Stock error handlers.
var (
	StderrErrorHandler  ErrorHandler = types.StderrErrorHandler
	SilentErrorHandler  ErrorHandler = types.SilentErrorHandler
	ChannelErrorHandler              = types.ChannelErrorHandler
	MultiErrorHandler                = types.MultiErrorHandler
)
