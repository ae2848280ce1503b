package omni_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trickstertwo/xclock/adapter/frozen"

	omnitest "github.com/wayneeseguin/omnilog/internal/testing"
	"github.com/wayneeseguin/omnilog/pkg/backends"
	"github.com/wayneeseguin/omnilog/pkg/config"
	"github.com/wayneeseguin/omnilog/pkg/omni"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// recorder is an in-memory back-end.
type recorder struct {
	name   string
	levels types.LevelMask

	mu      sync.Mutex
	lines   []string
	stamps  []time.Time
	locs    []string
	binary  [][]byte
	closes  int
	handler types.ErrorHandler

	onMessage func(*types.MsgInfo)
}

func newRecorder(name string, levels types.LevelMask) *recorder {
	return &recorder{name: name, levels: levels}
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Init(cfg *config.Tree) error {
	if v, ok := cfg.Get("levels"); ok {
		m, err := config.ParseLevels(v)
		if err != nil {
			return types.NewConfigError(r.name, "levels", err.Error())
		}
		r.levels = m
	}
	return nil
}

func (r *recorder) Dump(w io.Writer, prefix string) {
	fmt.Fprintf(w, "%s%s\n", prefix, r.name)
}

func (r *recorder) Levels() types.LevelMask { return r.levels }

func (r *recorder) LogMessage(info *types.MsgInfo, ts time.Time) error {
	if r.onMessage != nil {
		r.onMessage(info)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, info.Level.String()+" "+info.Ident()+" "+info.Text())
	r.stamps = append(r.stamps, ts)
	r.locs = append(r.locs, info.Location.String())
	return nil
}

func (r *recorder) LogBinary(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.binary = append(r.binary, append([]byte(nil), data...))
	return nil
}

func (r *recorder) Status() backends.Status {
	return backends.Status{Name: r.name, Active: true, Levels: r.levels}
}

func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	return nil
}

func (r *recorder) SetErrorHandler(h types.ErrorHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// panicker panics on every record.
type panicker struct{ *recorder }

func (p panicker) LogMessage(*types.MsgInfo, time.Time) error { panic("boom") }

// countingStringer counts how often it is rendered.
type countingStringer struct{ n atomic.Int32 }

func (c *countingStringer) String() string {
	c.n.Add(1)
	return "value"
}

func newLogger(t *testing.T, opts ...omni.Option) *omni.Logger {
	t.Helper()
	l, err := omni.New(append([]omni.Option{omni.WithErrorHandler(omni.SilentErrorHandler)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLogger_DisabledLevelDoesNotFormat(t *testing.T) {
	l := newLogger(t)
	rec := newRecorder("rec", types.MaskOf(types.LevelInfo))
	if err := l.Attach(rec); err != nil {
		t.Fatal(err)
	}

	var s countingStringer
	l.Debug("value=%v", &s)
	l.Log(types.LevelTrace, types.Location{}, "value=%v", &s)
	if n := s.n.Load(); n != 0 {
		t.Errorf("disabled level formatted its arguments %d times", n)
	}
	if l.Enabled(types.LevelDebug) || !l.Enabled(types.LevelInfo) {
		t.Error("Enabled does not match the bound levels")
	}

	allocs := testing.AllocsPerRun(100, func() {
		l.Debug("nothing listens")
		l.Log(types.LevelTrace, types.Location{}, "nothing listens")
	})
	if allocs != 0 {
		t.Errorf("disabled logging allocated %.1f times per call", allocs)
	}

	l.Info("value=%v", &s)
	if n := s.n.Load(); n != 1 {
		t.Errorf("enabled level formatted %d times, want 1", n)
	}
}

func TestLogger_StartFailScenario(t *testing.T) {
	path := omnitest.LogPath(t, "app.log")
	l := newLogger(t, omni.WithIdent("app"))

	cfg := config.New(map[string]any{
		"logger": map[string]any{
			"backends": []any{
				map[string]any{
					"name":          backends.AsyncFileName,
					"file":          path,
					"levels":        "info|error",
					"append":        false,
					"timestamp":     false,
					"show-level":    false,
					"show-location": false,
				},
			},
		},
	})
	if err := l.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if l.State() != omni.StateActive {
		t.Fatalf("state = %s, want active", l.State())
	}

	l.Info("start")
	l.Debug("ignored")
	l.Error("fail")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := omnitest.ReadLines(t, path)
	if strings.Join(lines, ",") != "start,fail" {
		t.Errorf("lines = %q, want [start fail]", lines)
	}
}

func TestLogger_ConfigureKeepsWorkingBackends(t *testing.T) {
	reg := backends.NewRegistry()
	rec := newRecorder("rec", types.LevelNone)
	if err := reg.Register("rec", func() backends.Backend { return rec }); err != nil {
		t.Fatal(err)
	}
	l := newLogger(t, omni.WithRegistry(reg))

	cfg, err := config.Parse([]byte(`{"logger": {"ident": "svc", "backends": [
		{"name": "rec", "levels": "warning"},
		{"name": "missing"},
		{"name": "rec", "levels": "loud"}]}}`))
	if err != nil {
		t.Fatal(err)
	}
	err = l.Configure(cfg)
	if !errors.Is(err, types.ErrUnknownBackend) {
		t.Errorf("Configure err = %v, want ErrUnknownBackend in chain", err)
	}
	if _, ok := types.AsConfigError(err); !ok {
		t.Errorf("Configure err = %v, want a ConfigError for levels", err)
	}
	if l.Ident() != "svc" {
		t.Errorf("Ident() = %q, want svc", l.Ident())
	}

	l.Warning("disk at %d%%", 91)
	if got := rec.got(); len(got) != 1 || got[0] != "WARNING svc disk at 91%" {
		t.Errorf("recorded %q", got)
	}
}

func TestLogger_UnbindDuringEmission(t *testing.T) {
	l := newLogger(t)
	first := newRecorder("first", types.MaskOf(types.LevelInfo))
	second := newRecorder("second", types.MaskOf(types.LevelInfo))
	_ = l.Attach(first)
	_ = l.Attach(second)

	first.onMessage = func(*types.MsgInfo) {
		l.Detach(second)
		l.Detach(first)
	}
	l.Info("one")
	l.Info("two")

	if got := first.got(); len(got) != 1 {
		t.Errorf("first recorded %q, want only the first record", got)
	}
	if got := second.got(); len(got) != 0 {
		t.Errorf("second recorded %q after being unbound mid-emission", got)
	}
	if l.Detach(second) {
		t.Error("second Detach should report false")
	}
}

func TestLogger_EmissionFollowsBindingOrder(t *testing.T) {
	l := newLogger(t)
	var order []string
	var mu sync.Mutex
	for _, name := range []string{"a", "b", "c"} {
		r := newRecorder(name, types.LevelAll)
		r.onMessage = func(*types.MsgInfo) {
			mu.Lock()
			order = append(order, r.name)
			mu.Unlock()
		}
		_ = l.Attach(r)
	}
	l.Alert("x")
	if strings.Join(order, "") != "abc" {
		t.Errorf("emission order = %v", order)
	}
}

func TestLogger_PanicsBecomeErrors(t *testing.T) {
	errs := make(chan omni.LogError, 4)
	l := newLogger(t)
	l.SetErrorHandler(omni.ChannelErrorHandler(errs))

	bad := panicker{newRecorder("bad", types.LevelAll)}
	good := newRecorder("good", types.LevelAll)
	_ = l.Attach(bad)
	_ = l.Attach(good)

	l.Error("still delivered")

	if got := good.got(); len(got) != 1 {
		t.Errorf("good back-end recorded %q", got)
	}
	select {
	case e := <-errs:
		if e.Operation != "dispatch" || e.Destination != "bad" || !strings.Contains(e.Error(), "boom") {
			t.Errorf("reported %+v", e)
		}
	default:
		t.Error("panic was not reported")
	}
}

func TestLogger_LongLineReachesConsole(t *testing.T) {
	errs := make(chan omni.LogError, 4)
	l := newLogger(t)
	l.SetErrorHandler(omni.ChannelErrorHandler(errs))

	var out bytes.Buffer
	c := backends.NewConsoleWithWriters(&out, io.Discard)
	if err := c.Init(config.New(map[string]any{})); err != nil {
		t.Fatal(err)
	}
	if err := l.Attach(c); err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("x", 2000)
	l.Info("%s", long)

	if !strings.HasSuffix(out.String(), "|"+long+"\n") {
		t.Errorf("console wrote %d bytes, want the full line", out.Len())
	}
	select {
	case e := <-errs:
		t.Errorf("unexpected error: %v", e)
	default:
	}
}

func TestLogger_LocationCapture(t *testing.T) {
	l := newLogger(t, omni.WithShowLocation(true))
	rec := newRecorder("rec", types.LevelAll)
	_ = l.Attach(rec)

	_, _, line, _ := runtime.Caller(0)
	l.Info("here")
	l.InfoAt(types.NewLocation("/src/job.go", 12), "there")
	l.Log(types.LevelInfo, types.Location{}, "nowhere")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{fmt.Sprintf("logger_test.go:%d", line+1), "job.go:12", ""}
	if strings.Join(rec.locs, ",") != strings.Join(want, ",") {
		t.Errorf("locations = %q, want %q", rec.locs, want)
	}
}

func TestLogger_FrozenClock(t *testing.T) {
	ft := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := frozen.Set(frozen.Config{Time: ft})
	defer restore()

	l := newLogger(t)
	rec := newRecorder("rec", types.LevelAll)
	_ = l.Attach(rec)
	l.Info("tick")

	custom := newLogger(t, omni.WithClock(func() time.Time { return ft.Add(time.Hour) }))
	rec2 := newRecorder("rec2", types.LevelAll)
	_ = custom.Attach(rec2)
	custom.Info("tock")

	if !rec.stamps[0].Equal(ft) {
		t.Errorf("stamp = %v, want %v", rec.stamps[0], ft)
	}
	if !rec2.stamps[0].Equal(ft.Add(time.Hour)) {
		t.Errorf("custom clock stamp = %v", rec2.stamps[0])
	}
}

func TestLogger_BinaryIgnoresLevels(t *testing.T) {
	l := newLogger(t)
	a := newRecorder("a", types.MaskOf(types.LevelAlert))
	b := newRecorder("b", types.LevelNone)
	_ = l.Attach(a)
	_ = l.Attach(b)

	l.LogBinary([]byte{0xCA, 0xFE})
	for _, r := range []*recorder{a, b} {
		if len(r.binary) != 1 || !bytes.Equal(r.binary[0], []byte{0xCA, 0xFE}) {
			t.Errorf("%s binary = %v", r.name, r.binary)
		}
	}
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	l := newLogger(t)
	rec := newRecorder("rec", types.LevelAll)
	_ = l.Attach(rec)
	if rec.handler == nil {
		t.Error("error handler was not handed to the back-end")
	}

	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if l.State() != omni.StateClosed {
		t.Errorf("state = %s, want closed", l.State())
	}
	if rec.closes != 1 {
		t.Errorf("back-end closed %d times, want 1", rec.closes)
	}

	l.Info("after close")
	if got := rec.got(); len(got) != 0 {
		t.Errorf("record delivered after Close: %q", got)
	}
	if err := l.Attach(newRecorder("late", types.LevelAll)); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Attach after Close = %v, want ErrClosed", err)
	}
	if err := l.Configure(config.New(nil)); !errors.Is(err, types.ErrClosed) {
		t.Errorf("Configure after Close = %v, want ErrClosed", err)
	}
}

func TestLogger_DumpAndStatus(t *testing.T) {
	l := newLogger(t, omni.WithIdent("api"))
	if l.State() != omni.StateUninitialized {
		t.Errorf("new logger state = %s", l.State())
	}
	_ = l.Attach(newRecorder("rec", types.LevelAll))

	var buf bytes.Buffer
	l.Dump(&buf, "")
	want := "logger\n    ident: api\n    show-location: false\n    state: active\n  rec\n"
	if buf.String() != want {
		t.Errorf("Dump =\n%s\nwant\n%s", buf.String(), want)
	}
	if st := l.Status(); len(st) != 1 || st[0].Name != "rec" {
		t.Errorf("Status = %+v", st)
	}
}

func TestNew_RejectsNilOptions(t *testing.T) {
	if _, err := omni.New(omni.WithRegistry(nil)); err == nil {
		t.Error("nil registry should be rejected")
	}
	if _, err := omni.New(omni.WithClock(nil)); err == nil {
		t.Error("nil clock should be rejected")
	}
}

func BenchmarkLogger_Disabled(b *testing.B) {
	l, _ := omni.New()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		l.Debug("nothing listens")
	}
}
