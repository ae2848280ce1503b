package backends

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ZerologName is the registry name of the zerolog back-end.
const ZerologName = "zerolog"

// Zerolog forwards records to a zerolog.Logger.
type Zerolog struct {
	bridge
	l zerolog.Logger
}

// NewZerolog returns an unconfigured zerolog back-end.
func NewZerolog() *Zerolog {
	return &Zerolog{bridge: newBridge(ZerologName)}
}

// Init implements Backend.
func (z *Zerolog) Init(cfg *config.Tree) error {
	if err := z.bridge.init(cfg); err != nil {
		return err
	}
	out := z.out
	if z.settings.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: z.out, NoColor: true, TimeFormat: time.RFC3339Nano}
	}
	z.l = zerolog.New(out).Level(zerolog.TraceLevel)
	z.active.Store(true)
	return nil
}

// LogMessage implements Backend. The timestamp is written as an
// RFC3339Nano string so output does not depend on zerolog's global
// time format.
func (z *Zerolog) LogMessage(info *types.MsgInfo, ts time.Time) error {
	if ok, err := z.accepts(info.Level); !ok {
		return err
	}

	ev := z.l.WithLevel(toZerologLevel(info.Level))
	if ev == nil {
		return nil
	}
	ev.Str(zerolog.TimestampFieldName, ts.Format(time.RFC3339Nano))
	ev.Str(severityKey, info.Level.String())
	if z.settings.ShowIdent {
		ev.Str(identKey, info.Ident())
	}
	if z.settings.ShowLocation && !info.Location.Empty() {
		ev.Str(locationKey, info.Location.String())
	}
	ev.Msg(info.Text())
	return z.record(info.Level, nil)
}

// LogBinary implements Backend. The bytes are attached hex-encoded to an
// INFO event.
func (z *Zerolog) LogBinary(data []byte) error {
	if !z.active.Load() {
		return types.ErrClosed
	}
	z.l.WithLevel(zerolog.InfoLevel).
		Str(zerolog.TimestampFieldName, time.Now().Format(time.RFC3339Nano)).
		Hex(binaryKey, data).
		Msg("binary")
	return z.record(0, nil)
}

// toZerologLevel maps FATAL and ALERT to Error; zerolog's fatal level
// exits the process when used through Fatal().
func toZerologLevel(l types.Level) zerolog.Level {
	switch l {
	case types.LevelTrace:
		return zerolog.TraceLevel
	case types.LevelDebug:
		return zerolog.DebugLevel
	case types.LevelInfo:
		return zerolog.InfoLevel
	case types.LevelWarning:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
