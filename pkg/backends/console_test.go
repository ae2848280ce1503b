package backends_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wayneeseguin/omnilog/pkg/backends"
	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

var ts = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func msg(level types.Level, text string) *types.MsgInfo {
	return &types.MsgInfo{Level: level, Template: text}
}

func plain(extra map[string]any) *config.Tree {
	m := map[string]any{
		"timestamp":     false,
		"show-level":    false,
		"show-location": false,
	}
	for k, v := range extra {
		m[k] = v
	}
	return config.New(m)
}

func TestConsole_SplitsLevelsBetweenStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	c := backends.NewConsoleWithWriters(&out, &errOut)
	if err := c.Init(plain(nil)); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, m := range []*types.MsgInfo{
		msg(types.LevelInfo, "info"),
		msg(types.LevelWarning, "warn"),
		msg(types.LevelError, "error"),
		msg(types.LevelAlert, "alert"),
		msg(types.LevelDebug, "debug"),
	} {
		if err := c.LogMessage(m, ts); err != nil {
			t.Fatalf("LogMessage: %v", err)
		}
	}

	if got, want := out.String(), "info\nwarn\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "error\nalert\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
	if c.Levels() != backends.DefaultStdoutLevels|backends.DefaultStderrLevels {
		t.Errorf("Levels() = %s", c.Levels())
	}
}

func TestConsole_OverlappingMasksWriteBoth(t *testing.T) {
	var out, errOut bytes.Buffer
	c := backends.NewConsoleWithWriters(&out, &errOut)
	err := c.Init(plain(map[string]any{
		"stdout-levels": "all",
		"stderr-levels": "error",
	}))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	_ = c.LogMessage(msg(types.LevelError, "boom"), ts)
	_ = c.LogMessage(msg(types.LevelTrace, "trace"), ts)

	if out.String() != "boom\ntrace\n" || errOut.String() != "boom\n" {
		t.Errorf("stdout=%q stderr=%q", out.String(), errOut.String())
	}
}

func TestConsole_LongMessageFallsBackToHeap(t *testing.T) {
	var out bytes.Buffer
	c := backends.NewConsoleWithWriters(&out, &out)
	if err := c.Init(config.New(map[string]any{"show-location": true})); err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("x", 5000)
	info := &types.MsgInfo{
		Level:    types.LevelInfo,
		Location: types.NewLocation("main.go", 7),
		Template: "%s",
		Args:     []any{long},
	}
	if err := c.LogMessage(info, ts); err != nil {
		t.Fatal(err)
	}
	want := "20240506-07:08:09.000000|INFO|main.go:7|" + long + "\n"
	if out.String() != want {
		t.Errorf("long line mangled: got %d bytes, want %d", out.Len(), len(want))
	}
}

func TestConsole_InitRejectsUnknownKeys(t *testing.T) {
	c := backends.NewConsoleWithWriters(&bytes.Buffer{}, &bytes.Buffer{})
	err := c.Init(config.New(map[string]any{"stdout-level": "info"}))
	ce, ok := types.AsConfigError(err)
	if !ok {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if ce.Key != "stdout-level" || ce.Backend != backends.ConsoleName {
		t.Errorf("ConfigError = %+v", ce)
	}
}

func TestConsole_CloseAndDump(t *testing.T) {
	var out bytes.Buffer
	c := backends.NewConsoleWithWriters(&out, &out)
	if err := c.Init(nil); err != nil {
		t.Fatal(err)
	}

	var dump bytes.Buffer
	c.Dump(&dump, "  ")
	for _, want := range []string{"  console\n", "stdout-levels: INFO|WARNING", "stderr-levels: ERROR|FATAL|ALERT", "show-location: true"} {
		if !strings.Contains(dump.String(), want) {
			t.Errorf("Dump missing %q:\n%s", want, dump.String())
		}
	}

	if err := c.LogBinary([]byte{0x01, 0x02}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), []byte{0x01, 0x02}) {
		t.Errorf("binary output = %v", out.Bytes())
	}

	_ = c.Close()
	_ = c.Close()
	if c.Status().Active {
		t.Error("console should be inactive after Close")
	}
	if err := c.LogMessage(msg(types.LevelInfo, "late"), ts); !errors.Is(err, types.ErrClosed) {
		t.Errorf("LogMessage after Close err = %v, want ErrClosed", err)
	}
}
