package omni

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/backends"
	"github.com/wayneeseguin/omnilog/pkg/event"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// MsgSink receives a record routed to one level channel.
type MsgSink func(info *types.MsgInfo, ts time.Time) error

// BinarySink receives raw bytes routed to the binary channel.
type BinarySink func(data []byte) error

// State is the lifecycle position of a Logger.
type State int32

// Logger states, in lifecycle order.
const (
	StateUninitialized State = iota
	StateConfigured
	StateActive
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateActive:
		return "active"
	case StateShuttingDown:
		return "shutting down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Logger is the front-end of the pipeline. It keeps one dispatch channel
// per level plus one binary channel, stamps each record and emits it to
// the back-ends bound to that channel.
//
// Logging methods may be called from any goroutine. They return nothing
// and never panic: back-end failures and panics are turned into LogError
// values passed to the error handler.
type Logger struct {
	ident        atomic.Pointer[string]
	showLocation atomic.Bool
	clock        func() time.Time
	registry     *backends.Registry

	channels [types.LevelCount]event.Channel[MsgSink]
	binary   event.Channel[BinarySink]

	mu       sync.Mutex // serializes Configure, Attach and Close
	attached []*attachment

	state        atomic.Int32
	errorHandler atomic.Pointer[types.ErrorHandler]
	closeOnce    sync.Once
	closeErr     error
}

// attachment is one back-end together with its subscriptions.
type attachment struct {
	backend  backends.Backend
	bindings []*event.Binding[MsgSink]
	binary   *event.Binding[BinarySink]
}

// New creates an unconfigured logger. Back-ends are added with Configure
// or Attach.
//
// Example:
//
//	logger, err := omni.New(omni.WithIdent("api"), omni.WithShowLocation(true))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer logger.Close()
func New(options ...Option) (*Logger, error) {
	cfg := defaultConfig()
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	l := &Logger{
		clock:    cfg.Clock,
		registry: cfg.Registry,
	}
	l.ident.Store(&cfg.Ident)
	l.showLocation.Store(cfg.ShowLocation)
	l.SetErrorHandler(cfg.ErrorHandler)
	return l, nil
}

// Ident returns the identifier shown in records when a back-end enables
// "show-ident".
func (l *Logger) Ident() string { return *l.ident.Load() }

// ShowLocation reports whether the convenience methods capture the
// caller's source location.
func (l *Logger) ShowLocation() bool { return l.showLocation.Load() }

// State returns the current lifecycle state.
func (l *Logger) State() State { return State(l.state.Load()) }

// Registry returns the registry Configure resolves back-end names in.
func (l *Logger) Registry() *backends.Registry { return l.registry }

// SetErrorHandler sets the handler told about back-end failures. It is
// also handed to attached back-ends that report errors asynchronously. A
// nil handler discards errors.
func (l *Logger) SetErrorHandler(handler types.ErrorHandler) {
	if handler == nil {
		handler = types.SilentErrorHandler
	}
	l.errorHandler.Store(&handler)

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.attached {
		if r, ok := a.backend.(backends.ErrorReporter); ok {
			r.SetErrorHandler(handler)
		}
	}
}

// Attach binds an initialized back-end to the channels of every level in
// its mask and to the binary channel.
func (l *Logger) Attach(b backends.Backend) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.State() {
	case StateShuttingDown, StateClosed:
		return errors.Wrapf(types.ErrClosed, "attach %s", b.Name())
	}
	l.attach(b)
	l.state.Store(int32(StateActive))
	return nil
}

func (l *Logger) attach(b backends.Backend) {
	if r, ok := b.(backends.ErrorReporter); ok {
		r.SetErrorHandler(*l.errorHandler.Load())
	}

	a := &attachment{backend: b}
	sink := l.messageSink(b)
	for _, level := range b.Levels().Levels() {
		a.bindings = append(a.bindings, l.channels[level.Index()].Bind(sink))
	}
	a.binary = l.binary.Bind(l.binarySink(b))
	l.attached = append(l.attached, a)
}

// Detach unbinds b and returns true if it was attached. The back-end is
// not closed.
func (l *Logger) Detach(b backends.Backend) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, a := range l.attached {
		if a.backend != b {
			continue
		}
		a.unbind()
		l.attached = append(l.attached[:i], l.attached[i+1:]...)
		return true
	}
	return false
}

func (a *attachment) unbind() {
	for _, b := range a.bindings {
		b.Unbind()
	}
	a.binary.Unbind()
}

// Backends returns the attached back-ends in attachment order.
func (l *Logger) Backends() []backends.Backend {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]backends.Backend, len(l.attached))
	for i, a := range l.attached {
		out[i] = a.backend
	}
	return out
}

// Status returns the status of every attached back-end.
func (l *Logger) Status() []backends.Status {
	bs := l.Backends()
	out := make([]backends.Status, len(bs))
	for i, b := range bs {
		out[i] = b.Status()
	}
	return out
}

// Dump writes the logger settings and those of every attached back-end.
func (l *Logger) Dump(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%slogger\n", prefix)
	fmt.Fprintf(w, "%s    ident: %s\n", prefix, l.Ident())
	fmt.Fprintf(w, "%s    show-location: %t\n", prefix, l.ShowLocation())
	fmt.Fprintf(w, "%s    state: %s\n", prefix, l.State())
	for _, b := range l.Backends() {
		b.Dump(w, prefix+"  ")
	}
}

// Close unbinds every back-end, so no new record reaches them, and then
// closes them in attachment order. The back-end errors are combined into
// one. Calling Close again returns the first result.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.finalize()
	})
	return l.closeErr
}

func (l *Logger) finalize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.Store(int32(StateShuttingDown))
	for _, a := range l.attached {
		a.unbind()
	}

	var result *multierror.Error
	for _, a := range l.attached {
		if err := a.backend.Close(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "close %s", a.backend.Name()))
		}
	}
	l.attached = nil
	l.state.Store(int32(StateClosed))
	return result.ErrorOrNil()
}

// messageSink wraps b.LogMessage so that its errors and panics end up at
// the error handler instead of the caller.
func (l *Logger) messageSink(b backends.Backend) MsgSink {
	name := b.Name()
	return func(info *types.MsgInfo, ts time.Time) (err error) {
		defer l.recoverSink(name, &err)
		if err = b.LogMessage(info, ts); err != nil {
			l.reportSinkError(name, "log message", err)
		}
		return err
	}
}

func (l *Logger) binarySink(b backends.Backend) BinarySink {
	name := b.Name()
	return func(data []byte) (err error) {
		defer l.recoverSink(name, &err)
		if err = b.LogBinary(data); err != nil {
			l.reportSinkError(name, "log binary", err)
		}
		return err
	}
}

func (l *Logger) recoverSink(name string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	*err = errors.Errorf("panic in backend %s: %v", name, r)
	l.report(types.LogError{
		Operation:   "dispatch",
		Destination: name,
		Message:     "backend panicked",
		Err:         *err,
		Level:       types.ErrorLevelHigh,
	})
}

// reportSinkError reports err unless it only says that the back-end was
// closed underneath a record in flight.
func (l *Logger) reportSinkError(name, op string, err error) {
	if errors.Is(err, types.ErrClosed) {
		return
	}
	l.report(types.LogError{
		Operation:   op,
		Destination: name,
		Message:     "backend failed",
		Err:         err,
		Level:       types.ErrorLevelMedium,
	})
}

func (l *Logger) report(e types.LogError) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.clock()
	}
	if h := l.errorHandler.Load(); h != nil {
		(*h)(e)
	}
}
