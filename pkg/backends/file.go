package backends

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/wayneeseguin/omnilog/internal/buffer"
	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// AsyncFileName is the registry name of the asynchronous file back-end.
const AsyncFileName = "async_file"

// Defaults of the asynchronous file back-end.
const (
	DefaultFileMode    os.FileMode = 0644
	DefaultWaitTimeout             = 2 * time.Second

	// TimeoutEnv overrides DefaultWaitTimeout for back-ends that do not
	// set "timeout" explicitly.
	TimeoutEnv = "OMNILOG_TIMEOUT"
)

const producerStackBuf = 512

const (
	fileClosed int32 = iota
	fileOpen
	fileStopping
	fileTerminated
)

type asyncFileSettings struct {
	Name               string          `mapstructure:"name"`
	File               string          `mapstructure:"file"`
	Append             bool            `mapstructure:"append"`
	Levels             types.LevelMask `mapstructure:"levels"`
	Mode               os.FileMode     `mapstructure:"mode"`
	Timeout            time.Duration   `mapstructure:"timeout"`
	DeferFormat        bool            `mapstructure:"defer-format"`
	Lock               bool            `mapstructure:"lock"`
	MaxFree            int             `mapstructure:"max-free"`
	formatters.Options `mapstructure:",squash"`
}

// AsyncFile appends records to a file from a dedicated writer goroutine.
//
// Producers render each record (or, with "defer-format", only its body)
// into a node taken from a recycling allocator and push it onto a
// lock-free stack; they never wait for I/O and share no lock with the
// writer. The writer wakes when the stack becomes non-empty or after
// "timeout", takes the whole stack at once, restores push order and
// writes every node.
//
// Durability is deliberately weak. Records are stamped when they are
// logged but reach the file later; records still queued when the process
// dies are lost. Records from one goroutine keep their relative order,
// while records from different goroutines may appear in an order that
// differs from their timestamps. Close drains everything accepted before
// it was called.
type AsyncFile struct {
	settings asyncFileSettings

	fd    int
	lock  *flock.Flock
	stack *buffer.Stack
	alloc *buffer.Allocator
	stats *metrics.Collector

	// write is the raw write primitive, replaceable in tests.
	write func(fd int, p []byte) (int, error)

	state      atomic.Int32
	// Producers count themselves in inflight[epoch]. Close flips the epoch
	// after leaving fileOpen and waits only for the old slot, so callers
	// that arrive later and are rejected never delay it.
	epoch      atomic.Uint32
	inflight   [2]atomic.Int64
	terminated atomic.Bool
	ready      chan struct{}
	done       chan struct{}

	// owned by the writer goroutine
	scratch  []byte
	failing  bool
	closeErr error

	lastErr      atomic.Pointer[error]
	errorHandler atomic.Pointer[types.ErrorHandler]

	closeOnce sync.Once
	finalErr  error
}

// NewAsyncFile returns an unconfigured asynchronous file back-end.
func NewAsyncFile() *AsyncFile {
	a := &AsyncFile{
		fd:    -1,
		write: unix.Write,
		stats: metrics.NewCollector(),
		settings: asyncFileSettings{
			Append:  true,
			Levels:  types.LevelNoDebug,
			Mode:    DefaultFileMode,
			Timeout: defaultTimeout(),
			Options: formatters.DefaultOptions(),
		},
	}
	h := types.ErrorHandler(types.StderrErrorHandler)
	a.errorHandler.Store(&h)
	return a
}

func defaultTimeout() time.Duration {
	if v := os.Getenv(TimeoutEnv); v != "" {
		if d, err := config.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return DefaultWaitTimeout
}

// Name implements Backend.
func (a *AsyncFile) Name() string { return AsyncFileName }

// Init implements Backend. It opens the file, starts the writer goroutine
// and returns once the writer is ready to drain.
func (a *AsyncFile) Init(cfg *config.Tree) error {
	if a.state.Load() != fileClosed {
		return errors.Errorf("%s: already initialized", AsyncFileName)
	}

	s := a.settings
	if err := cfg.Decode(AsyncFileName, &s); err != nil {
		return err
	}
	if s.File == "" {
		return types.NewConfigError(AsyncFileName, "file", "missing required key")
	}
	if s.Timeout <= 0 {
		return types.NewConfigError(AsyncFileName, "timeout", "must be positive")
	}
	if s.MaxFree < 0 {
		return types.NewConfigError(AsyncFileName, "max-free", "must not be negative")
	}
	s.File = filepath.Clean(s.File)
	s.NewLine = true

	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(s.File), 0755); err != nil {
		return types.NewConfigError(AsyncFileName, "file", "create directory: "+err.Error())
	}
	flags := unix.O_WRONLY | unix.O_CREAT | unix.O_CLOEXEC
	if s.Append {
		flags |= unix.O_APPEND
	} else {
		flags |= unix.O_TRUNC
	}
	fd, err := unix.Open(s.File, flags, uint32(s.Mode.Perm()))
	if err != nil {
		return types.NewConfigError(AsyncFileName, "file", fmt.Sprintf("open %s: %v", s.File, err))
	}

	a.settings = s
	a.fd = fd
	if s.Lock {
		a.lock = flock.New(s.File + ".lock")
	}
	a.stack = buffer.NewStack()
	a.alloc = buffer.NewAllocator(s.MaxFree)
	a.ready = make(chan struct{})
	a.done = make(chan struct{})

	a.state.Store(fileOpen)
	go a.run()
	<-a.ready
	return nil
}

// SetErrorHandler implements ErrorReporter.
func (a *AsyncFile) SetErrorHandler(handler types.ErrorHandler) {
	if handler == nil {
		handler = types.SilentErrorHandler
	}
	a.errorHandler.Store(&handler)
}

// Dump implements Backend.
func (a *AsyncFile) Dump(w io.Writer, prefix string) {
	s := a.settings
	fmt.Fprintf(w, "%s%s\n", prefix, AsyncFileName)
	fmt.Fprintf(w, "%s    file: %s\n", prefix, s.File)
	fmt.Fprintf(w, "%s    append: %t\n", prefix, s.Append)
	fmt.Fprintf(w, "%s    levels: %s\n", prefix, s.Levels)
	fmt.Fprintf(w, "%s    mode: %#o\n", prefix, uint32(s.Mode.Perm()))
	fmt.Fprintf(w, "%s    timeout: %s\n", prefix, s.Timeout)
	fmt.Fprintf(w, "%s    defer-format: %t\n", prefix, s.DeferFormat)
	fmt.Fprintf(w, "%s    lock: %t\n", prefix, s.Lock)
	dumpOptions(w, prefix, s.Options)
}

// Levels implements Backend.
func (a *AsyncFile) Levels() types.LevelMask { return a.settings.Levels }

// LogMessage implements Backend. The record is copied into a queue node;
// nothing refers to info after the call returns.
func (a *AsyncFile) LogMessage(info *types.MsgInfo, ts time.Time) error {
	if !a.settings.Levels.Has(info.Level) {
		return nil
	}
	slot := &a.inflight[a.epoch.Load()]
	slot.Add(1)
	defer slot.Add(-1)
	if a.state.Load() != fileOpen {
		a.stats.TrackDropped()
		return types.ErrClosed
	}

	var stack [producerStackBuf]byte
	var line []byte
	if a.settings.DeferFormat {
		line = info.AppendText(stack[:0])
	} else {
		line = formatters.AppendMessage(stack[:0], a.settings.Options, ts, info)
	}
	if len(line) > buffer.MaxPayload {
		line = line[:buffer.MaxPayload]
		if !a.settings.DeferFormat {
			line[len(line)-1] = '\n'
		}
	}

	n, err := a.alloc.Get(len(line))
	if err != nil {
		a.stats.TrackDropped()
		return err
	}
	copy(n.Data(), line)
	n.Level = info.Level
	if a.settings.DeferFormat {
		n.Deferred = true
		n.Stamp = ts
		n.Ident = info.Ident()
		n.Loc = info.Location
	}
	a.stats.TrackEnqueued(info.Level)
	a.stack.Push(n)
	return nil
}

// LogBinary implements Backend. Records larger than one node are split
// into consecutive nodes, which keep their order because they are pushed
// by the same goroutine.
func (a *AsyncFile) LogBinary(data []byte) error {
	slot := &a.inflight[a.epoch.Load()]
	slot.Add(1)
	defer slot.Add(-1)
	if a.state.Load() != fileOpen {
		a.stats.TrackDropped()
		return types.ErrClosed
	}

	for len(data) > 0 {
		chunk := data
		if len(chunk) > buffer.MaxPayload {
			chunk = chunk[:buffer.MaxPayload]
		}
		n, err := a.alloc.Get(len(chunk))
		if err != nil {
			a.stats.TrackDropped()
			return err
		}
		copy(n.Data(), chunk)
		n.Binary = true
		a.stats.TrackBinary()
		a.stack.Push(n)
		data = data[len(chunk):]
	}
	return nil
}

// run is the writer goroutine.
func (a *AsyncFile) run() {
	defer close(a.done)
	close(a.ready)

	for {
		a.stack.Wait(a.settings.Timeout)
		stop := a.terminated.Load()
		a.drain()
		if stop {
			break
		}
	}

	if err := unix.Close(a.fd); err != nil {
		a.closeErr = errors.Wrap(err, "close log file")
	}
	a.fd = -1
}

func (a *AsyncFile) drain() {
	head := a.stack.PopAll()
	if head == nil {
		return
	}

	locked := false
	if a.lock != nil {
		if err := a.lock.Lock(); err != nil {
			a.fail("lock", "acquire file lock", err)
		} else {
			locked = true
		}
	}

	count := 0
	for n := head; n != nil; {
		next := n.Next()
		a.writeNode(n)
		a.alloc.Put(n)
		count++
		n = next
	}

	if locked {
		if err := a.lock.Unlock(); err != nil {
			a.fail("lock", "release file lock", err)
		}
	}
	a.stats.TrackBatch(count)
}

func (a *AsyncFile) writeNode(n *buffer.Node) {
	data := n.Data()
	if n.Deferred {
		a.scratch = formatters.AppendRecord(a.scratch[:0], a.settings.Options, n.Stamp, n.Level, n.Ident, &n.Loc, data)
		data = a.scratch
	}

	start := time.Now()
	if err := a.writeFull(data); err != nil {
		a.stats.TrackDropped()
		msg := "write failed, record dropped"
		if isDiskFullError(err) {
			msg = "disk full, record dropped"
		}
		a.fail("write", msg, err)
		return
	}
	a.failing = false
	a.stats.TrackWrite(len(data), time.Since(start))
}

// fail records err and reports it. While writes keep failing only the
// first failure of the streak is reported.
func (a *AsyncFile) fail(source, msg string, err error) {
	a.stats.TrackError(source)
	a.lastErr.Store(&err)
	if source == "write" {
		if a.failing {
			return
		}
		a.failing = true
	}
	if h := a.errorHandler.Load(); h != nil && *h != nil {
		(*h)(types.LogError{
			Operation:   source,
			Destination: a.settings.File,
			Message:     msg,
			Err:         err,
			Level:       types.ErrorLevelMedium,
			Timestamp:   time.Now(),
		})
	}
}

// LastError returns the most recent writer error, or nil.
func (a *AsyncFile) LastError() error {
	if p := a.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Stats returns the back-end counters.
func (a *AsyncFile) Stats() metrics.Metrics { return a.stats.Snapshot() }

// AllocatorStats returns the node allocator counters. It is zero before
// Init.
func (a *AsyncFile) AllocatorStats() buffer.AllocStats {
	if a.alloc == nil {
		return buffer.AllocStats{}
	}
	return a.alloc.Stats()
}

// Status implements Backend.
func (a *AsyncFile) Status() Status {
	return Status{
		Name:        AsyncFileName,
		Destination: a.settings.File,
		Active:      a.state.Load() == fileOpen,
		Levels:      a.settings.Levels,
		LastError:   a.LastError(),
		Metrics:     a.stats.Snapshot(),
	}
}

// Close implements Backend. It stops accepting records, waits for the
// producers already inside LogMessage or LogBinary, lets the writer
// perform a final drain and blocks until the writer has closed the file.
// Calling Close again returns the first result.
func (a *AsyncFile) Close() error {
	a.closeOnce.Do(func() {
		a.finalErr = a.finalize()
	})
	return a.finalErr
}

func (a *AsyncFile) finalize() error {
	if !a.state.CompareAndSwap(fileOpen, fileStopping) {
		a.state.Store(fileTerminated)
		return nil
	}
	a.epoch.Store(1)
	for a.inflight[0].Load() != 0 {
		runtime.Gosched()
	}
	a.terminated.Store(true)
	a.stack.Signal()
	<-a.done

	for n := a.stack.PopAll(); n != nil; {
		next := n.Next()
		a.stats.TrackDropped()
		a.alloc.Put(n)
		n = next
	}
	if a.lock != nil {
		_ = a.lock.Close()
	}
	a.state.Store(fileTerminated)
	return a.closeErr
}
