package backends

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	omnitest "github.com/wayneeseguin/omnilog/internal/testing"
	"github.com/wayneeseguin/omnilog/pkg/config"
)

var errSync = errors.New("sync failed")

// failingSync accepts writes and fails every Sync.
type failingSync struct{}

func (failingSync) Write(p []byte) (int, error) { return len(p), nil }
func (failingSync) Sync() error                 { return errSync }

func TestZap_CloseReportsSyncFailure(t *testing.T) {
	z := NewZap()
	path := omnitest.LogPath(t, "zap.log")
	if err := z.Init(config.New(map[string]any{"output": path})); err != nil {
		t.Fatalf("Init: %v", err)
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	z.core = zapcore.NewCore(enc, failingSync{}, zapcore.DebugLevel)

	err := z.Close()
	if !errors.Is(err, errSync) {
		t.Fatalf("Close = %v, want the sync failure", err)
	}
	if err := z.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestZap_CloseIgnoresStandardStreamSync(t *testing.T) {
	z := NewZap()
	if err := z.Init(config.New(map[string]any{"output": "stderr"})); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := z.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
