package backends

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Output formats understood by the bridge back-ends.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Field keys attached by the bridge back-ends.
const (
	severityKey = "severity"
	identKey    = "ident"
	locationKey = "location"
	binaryKey   = "data"
)

type bridgeSettings struct {
	Name         string          `mapstructure:"name"`
	Levels       types.LevelMask `mapstructure:"levels"`
	Output       string          `mapstructure:"output"`
	Format       string          `mapstructure:"format"`
	ShowIdent    bool            `mapstructure:"show-ident"`
	ShowLocation bool            `mapstructure:"show-location"`

	// Rotation of file outputs, see lumberjack.Logger.
	MaxSize    int  `mapstructure:"max-size"`
	MaxBackups int  `mapstructure:"max-backups"`
	MaxAge     int  `mapstructure:"max-age"`
	Compress   bool `mapstructure:"compress"`
}

// bridge holds what the zap, zerolog and logrus back-ends share: settings,
// the resolved output and bookkeeping. Each back-end owns the library
// logger that renders records.
type bridge struct {
	name     string
	settings bridgeSettings
	out      io.Writer
	closer   io.Closer

	active  atomic.Bool
	closed  atomic.Bool
	lastErr atomic.Pointer[error]
	stats   *metrics.Collector
}

func newBridge(name string) bridge {
	return bridge{
		name:  name,
		stats: metrics.NewCollector(),
		settings: bridgeSettings{
			Levels:       types.LevelNoDebug,
			Output:       "stdout",
			Format:       FormatJSON,
			ShowLocation: true,
			MaxSize:      100,
		},
	}
}

func (b *bridge) init(cfg *config.Tree) error {
	if b.active.Load() || b.closed.Load() {
		return errors.Errorf("%s: already initialized", b.name)
	}
	s := b.settings
	if err := cfg.Decode(b.name, &s); err != nil {
		return err
	}
	switch s.Format {
	case FormatJSON, FormatConsole:
	default:
		return types.NewConfigError(b.name, "format", fmt.Sprintf("unsupported format %q", s.Format))
	}
	if s.Output == "" {
		return types.NewConfigError(b.name, "output", "must not be empty")
	}

	out, closer, err := openOutput(s)
	if err != nil {
		return types.NewConfigError(b.name, "output", err.Error())
	}
	b.settings = s
	b.out = out
	b.closer = closer
	return nil
}

// openOutput resolves "stdout", "stderr" or a file path. Files are
// rotated by lumberjack.
func openOutput(s bridgeSettings) (io.Writer, io.Closer, error) {
	switch s.Output {
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(s.Output), 0755); err != nil {
		return nil, nil, errors.Wrap(err, "create directory")
	}
	lj := &lumberjack.Logger{
		Filename:   s.Output,
		MaxSize:    s.MaxSize,
		MaxBackups: s.MaxBackups,
		MaxAge:     s.MaxAge,
		Compress:   s.Compress,
		LocalTime:  true,
	}
	return lj, lj, nil
}

func (b *bridge) Name() string { return b.name }

func (b *bridge) Levels() types.LevelMask { return b.settings.Levels }

// accepts reports whether a record at level should be rendered.
func (b *bridge) accepts(level types.Level) (bool, error) {
	if !b.active.Load() {
		return false, types.ErrClosed
	}
	return b.settings.Levels.Has(level), nil
}

func (b *bridge) record(level types.Level, err error) error {
	if err != nil {
		err = errors.Wrapf(err, "%s write", b.name)
		b.lastErr.Store(&err)
		b.stats.TrackError("write")
		b.stats.TrackDropped()
		return err
	}
	if level == 0 {
		b.stats.TrackBinary()
	} else {
		b.stats.TrackEnqueued(level)
	}
	return nil
}

func (b *bridge) Dump(w io.Writer, prefix string) {
	s := b.settings
	fmt.Fprintf(w, "%s%s\n", prefix, b.name)
	fmt.Fprintf(w, "%s    levels: %s\n", prefix, s.Levels)
	fmt.Fprintf(w, "%s    output: %s\n", prefix, s.Output)
	fmt.Fprintf(w, "%s    format: %s\n", prefix, s.Format)
	fmt.Fprintf(w, "%s    show-ident: %t\n", prefix, s.ShowIdent)
	fmt.Fprintf(w, "%s    show-location: %t\n", prefix, s.ShowLocation)
	if b.closer != nil {
		fmt.Fprintf(w, "%s    max-size: %d\n", prefix, s.MaxSize)
		fmt.Fprintf(w, "%s    max-backups: %d\n", prefix, s.MaxBackups)
		fmt.Fprintf(w, "%s    max-age: %d\n", prefix, s.MaxAge)
		fmt.Fprintf(w, "%s    compress: %t\n", prefix, s.Compress)
	}
}

func (b *bridge) Status() Status {
	st := Status{
		Name:        b.name,
		Destination: b.settings.Output,
		Active:      b.active.Load(),
		Levels:      b.settings.Levels,
		Metrics:     b.stats.Snapshot(),
	}
	if p := b.lastErr.Load(); p != nil {
		st.LastError = *p
	}
	return st
}

func (b *bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.active.Store(false)
	if b.closer != nil {
		return errors.Wrapf(b.closer.Close(), "%s close", b.name)
	}
	return nil
}
