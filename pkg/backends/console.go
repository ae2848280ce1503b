package backends

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ConsoleName is the registry name of the console back-end.
const ConsoleName = "console"

// Default level split of the console back-end.
const (
	DefaultStdoutLevels = types.LevelMask(types.LevelInfo | types.LevelWarning)
	DefaultStderrLevels = types.LevelMask(types.LevelError | types.LevelFatal | types.LevelAlert)
)

const consoleStackBuf = 1024

type consoleSettings struct {
	Name               string          `mapstructure:"name"`
	StdoutLevels       types.LevelMask `mapstructure:"stdout-levels"`
	StderrLevels       types.LevelMask `mapstructure:"stderr-levels"`
	formatters.Options `mapstructure:",squash"`
}

// Console writes every record synchronously to one of two streams chosen
// by level. A level present in both masks is written to both streams.
type Console struct {
	stdout, stderr io.Writer
	outMu, errMu   sync.Mutex

	settings consoleSettings
	active   atomic.Bool
	lastErr  atomic.Pointer[error]
}

// NewConsole returns a console back-end writing to os.Stdout and os.Stderr.
func NewConsole() *Console {
	return NewConsoleWithWriters(os.Stdout, os.Stderr)
}

// NewConsoleWithWriters returns a console back-end using the given streams.
func NewConsoleWithWriters(stdout, stderr io.Writer) *Console {
	opts := formatters.DefaultOptions()
	return &Console{
		stdout: stdout,
		stderr: stderr,
		settings: consoleSettings{
			StdoutLevels: DefaultStdoutLevels,
			StderrLevels: DefaultStderrLevels,
			Options:      opts,
		},
	}
}

// Name implements Backend.
func (c *Console) Name() string { return ConsoleName }

// Init implements Backend.
func (c *Console) Init(cfg *config.Tree) error {
	s := c.settings
	if err := cfg.Decode(ConsoleName, &s); err != nil {
		return err
	}
	s.NewLine = true
	c.settings = s
	c.active.Store(true)
	return nil
}

// Dump implements Backend.
func (c *Console) Dump(w io.Writer, prefix string) {
	s := c.settings
	fmt.Fprintf(w, "%s%s\n", prefix, ConsoleName)
	fmt.Fprintf(w, "%s    stdout-levels: %s\n", prefix, s.StdoutLevels)
	fmt.Fprintf(w, "%s    stderr-levels: %s\n", prefix, s.StderrLevels)
	dumpOptions(w, prefix, s.Options)
}

// Levels implements Backend.
func (c *Console) Levels() types.LevelMask {
	return c.settings.StdoutLevels | c.settings.StderrLevels
}

// LogMessage implements Backend. The line is rendered into a stack buffer
// and written before returning.
func (c *Console) LogMessage(info *types.MsgInfo, ts time.Time) error {
	if !c.active.Load() {
		return types.ErrClosed
	}

	var stack [consoleStackBuf]byte
	n, err := formatters.FormatMessage(stack[:], c.settings.Options, ts, info)
	var line []byte
	switch {
	case err == nil:
		line = stack[:n]
	case errors.Is(err, types.ErrBufferTooSmall):
		line = formatters.AppendMessage(make([]byte, 0, n), c.settings.Options, ts, info)
	default:
		return err
	}

	if c.settings.StdoutLevels.Has(info.Level) {
		if err := c.write(&c.outMu, c.stdout, line); err != nil {
			return err
		}
	}
	if c.settings.StderrLevels.Has(info.Level) {
		if err := c.write(&c.errMu, c.stderr, line); err != nil {
			return err
		}
	}
	return nil
}

// LogBinary implements Backend. Raw records go to the standard output
// stream unchanged.
func (c *Console) LogBinary(data []byte) error {
	if !c.active.Load() {
		return types.ErrClosed
	}
	return c.write(&c.outMu, c.stdout, data)
}

func (c *Console) write(mu *sync.Mutex, w io.Writer, p []byte) error {
	mu.Lock()
	_, err := w.Write(p)
	mu.Unlock()
	if err != nil {
		err = errors.Wrap(err, "console write")
		c.lastErr.Store(&err)
	}
	return err
}

// Status implements Backend.
func (c *Console) Status() Status {
	st := Status{
		Name:        ConsoleName,
		Destination: "stdout/stderr",
		Active:      c.active.Load(),
		Levels:      c.Levels(),
	}
	if p := c.lastErr.Load(); p != nil {
		st.LastError = *p
	}
	return st
}

// Close implements Backend. The streams themselves are left open.
func (c *Console) Close() error {
	c.active.Store(false)
	return nil
}

func dumpOptions(w io.Writer, prefix string, o formatters.Options) {
	fmt.Fprintf(w, "%s    timestamp: %t\n", prefix, o.Timestamp)
	fmt.Fprintf(w, "%s    show-level: %t\n", prefix, o.ShowLevel)
	fmt.Fprintf(w, "%s    show-ident: %t\n", prefix, o.ShowIdent)
	fmt.Fprintf(w, "%s    show-location: %t\n", prefix, o.ShowLocation)
}
