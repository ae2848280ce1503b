package backends

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// LogrusName is the registry name of the logrus back-end.
const LogrusName = "logrus"

// Logrus forwards records to a dedicated logrus.Logger.
type Logrus struct {
	bridge
	l *logrus.Logger
}

// NewLogrus returns an unconfigured logrus back-end.
func NewLogrus() *Logrus {
	return &Logrus{bridge: newBridge(LogrusName)}
}

// Init implements Backend.
func (l *Logrus) Init(cfg *config.Tree) error {
	if err := l.bridge.init(cfg); err != nil {
		return err
	}
	lg := logrus.New()
	lg.SetOutput(l.out)
	lg.SetLevel(logrus.TraceLevel)
	if l.settings.Format == FormatConsole {
		lg.SetFormatter(&logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		lg.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	l.l = lg
	l.active.Store(true)
	return nil
}

// LogMessage implements Backend.
func (l *Logrus) LogMessage(info *types.MsgInfo, ts time.Time) error {
	if ok, err := l.accepts(info.Level); !ok {
		return err
	}

	fields := logrus.Fields{severityKey: info.Level.String()}
	if l.settings.ShowIdent {
		fields[identKey] = info.Ident()
	}
	if l.settings.ShowLocation && !info.Location.Empty() {
		fields[locationKey] = info.Location.String()
	}
	l.l.WithTime(ts).WithFields(fields).Log(toLogrusLevel(info.Level), info.Text())
	return l.record(info.Level, nil)
}

// LogBinary implements Backend.
func (l *Logrus) LogBinary(data []byte) error {
	if !l.active.Load() {
		return types.ErrClosed
	}
	l.l.WithField(binaryKey, data).Log(logrus.InfoLevel, "binary")
	return l.record(0, nil)
}

// toLogrusLevel never returns PanicLevel, at which Entry.Log panics.
// Entry.Log does not exit at FatalLevel.
func toLogrusLevel(lv types.Level) logrus.Level {
	switch lv {
	case types.LevelTrace:
		return logrus.TraceLevel
	case types.LevelDebug:
		return logrus.DebugLevel
	case types.LevelInfo:
		return logrus.InfoLevel
	case types.LevelWarning:
		return logrus.WarnLevel
	case types.LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}
