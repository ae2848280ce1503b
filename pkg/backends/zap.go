package backends

import (
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ZapName is the registry name of the zap back-end.
const ZapName = "zap"

// Zap forwards records to a zap core writing to the configured output.
type Zap struct {
	bridge
	core zapcore.Core
}

// NewZap returns an unconfigured zap back-end.
func NewZap() *Zap {
	return &Zap{bridge: newBridge(ZapName)}
}

// Init implements Backend.
func (z *Zap) Init(cfg *config.Tree) error {
	if err := z.bridge.init(cfg); err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	var enc zapcore.Encoder
	if z.settings.Format == FormatConsole {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	z.core = zapcore.NewCore(enc, zapcore.AddSync(z.out), zapcore.DebugLevel)
	z.active.Store(true)
	return nil
}

// LogMessage implements Backend.
func (z *Zap) LogMessage(info *types.MsgInfo, ts time.Time) error {
	if ok, err := z.accepts(info.Level); !ok {
		return err
	}

	ent := zapcore.Entry{
		Level:   toZapLevel(info.Level),
		Time:    ts,
		Message: info.Text(),
	}
	fields := make([]zapcore.Field, 0, 3)
	fields = append(fields, zap.String(severityKey, info.Level.String()))
	if z.settings.ShowIdent {
		fields = append(fields, zap.String(identKey, info.Ident()))
	}
	if z.settings.ShowLocation && !info.Location.Empty() {
		fields = append(fields, zap.String(locationKey, info.Location.String()))
	}
	return z.record(info.Level, z.core.Write(ent, fields))
}

// LogBinary implements Backend. The bytes are attached base64-encoded to
// an INFO entry.
func (z *Zap) LogBinary(data []byte) error {
	if !z.active.Load() {
		return types.ErrClosed
	}
	ent := zapcore.Entry{Level: zapcore.InfoLevel, Time: time.Now(), Message: "binary"}
	return z.record(0, z.core.Write(ent, []zapcore.Field{zap.Binary(binaryKey, data)}))
}

// Close implements Backend. It syncs the core before releasing the output.
// Sync failures on the standard streams are ignored: most terminals and
// pipes reject fsync.
func (z *Zap) Close() error {
	var result error
	if z.core != nil && z.active.Load() {
		if err := z.core.Sync(); err != nil && z.out != os.Stdout && z.out != os.Stderr {
			result = multierror.Append(result, errors.Wrap(err, "zap sync"))
		}
	}
	if err := z.bridge.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

// toZapLevel maps FATAL and ALERT to Error so that nothing exits the
// process; the original level is kept in the severity field.
func toZapLevel(l types.Level) zapcore.Level {
	switch l {
	case types.LevelTrace, types.LevelDebug:
		return zapcore.DebugLevel
	case types.LevelInfo:
		return zapcore.InfoLevel
	case types.LevelWarning:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
