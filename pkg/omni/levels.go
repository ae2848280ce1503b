package omni

import (
	"github.com/wayneeseguin/omnilog/pkg/event"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Enabled reports whether at least one back-end receives records at
// level. It costs one atomic load.
func (l *Logger) Enabled(level types.Level) bool {
	return level.Valid() && l.channels[level.Index()].Active()
}

// Log emits a record at level with an explicit source location. When no
// back-end is bound to level, nothing is formatted, stamped or allocated
// by the logger.
//
// Parameters:
//   - level: One of the Level constants
//   - loc: Source location, or the zero Location for none
//   - template: Printf-style template
//   - args: Arguments for the template
//
// Example:
//
//	logger.Log(types.LevelWarning, types.Here(0), "retrying %s", host)
func (l *Logger) Log(level types.Level, loc types.Location, template string, args ...any) {
	if !level.Valid() {
		return
	}
	ch := &l.channels[level.Index()]
	if !ch.Active() {
		return
	}
	l.emit(ch, level, loc, template, args)
}

// LogBinary emits raw bytes on the binary channel. It is not subject to
// level filtering; every attached back-end receives the bytes.
func (l *Logger) LogBinary(data []byte) {
	if !l.binary.Active() {
		return
	}
	l.binary.Emit(func(s BinarySink) { _ = s(data) }, true)
}

// logCaller captures the location of the code that called the exported
// convenience method when location capture is enabled.
func (l *Logger) logCaller(level types.Level, template string, args []any) {
	ch := &l.channels[level.Index()]
	if !ch.Active() {
		return
	}
	var loc types.Location
	if l.showLocation.Load() {
		loc = types.Here(2)
	}
	l.emit(ch, level, loc, template, args)
}

func (l *Logger) emit(ch *event.Channel[MsgSink], level types.Level, loc types.Location, template string, args []any) {
	info := types.MsgInfo{
		Level:    level,
		Origin:   l,
		Location: loc,
		Template: template,
		Args:     args,
	}
	ts := l.clock()
	ch.Emit(func(s MsgSink) { _ = s(&info, ts) }, true)
}

// Trace logs at TRACE.
func (l *Logger) Trace(template string, args ...any) {
	l.logCaller(types.LevelTrace, template, args)
}

// Debug logs at DEBUG.
func (l *Logger) Debug(template string, args ...any) {
	l.logCaller(types.LevelDebug, template, args)
}

// Info logs at INFO.
func (l *Logger) Info(template string, args ...any) {
	l.logCaller(types.LevelInfo, template, args)
}

// Warning logs at WARNING.
func (l *Logger) Warning(template string, args ...any) {
	l.logCaller(types.LevelWarning, template, args)
}

// Error logs at ERROR.
func (l *Logger) Error(template string, args ...any) {
	l.logCaller(types.LevelError, template, args)
}

// Fatal logs at FATAL. It does not terminate the process.
func (l *Logger) Fatal(template string, args ...any) {
	l.logCaller(types.LevelFatal, template, args)
}

// Alert logs at ALERT.
func (l *Logger) Alert(template string, args ...any) {
	l.logCaller(types.LevelAlert, template, args)
}

// TraceAt logs at TRACE with an explicit location.
func (l *Logger) TraceAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelTrace, loc, template, args...)
}

// DebugAt logs at DEBUG with an explicit location.
func (l *Logger) DebugAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelDebug, loc, template, args...)
}

// InfoAt logs at INFO with an explicit location.
func (l *Logger) InfoAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelInfo, loc, template, args...)
}

// WarningAt logs at WARNING with an explicit location.
func (l *Logger) WarningAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelWarning, loc, template, args...)
}

// ErrorAt logs at ERROR with an explicit location.
func (l *Logger) ErrorAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelError, loc, template, args...)
}

// FatalAt logs at FATAL with an explicit location.
func (l *Logger) FatalAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelFatal, loc, template, args...)
}

// AlertAt logs at ALERT with an explicit location.
func (l *Logger) AlertAt(loc types.Location, template string, args ...any) {
	l.Log(types.LevelAlert, loc, template, args...)
}
