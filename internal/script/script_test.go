package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/clickstorm/internal/timeline"
)

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Debug(msg string, args ...any) {}

func (l *recordingLogger) Info(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(msg, args...))
}

const fullScript = `
move(10, 20)
path({{0, 0}, {5, 5}, {10, 10}})
wait(500)
click("left", 100, 200, {wait = 40, speed = 30})
double("Left", 100, 200)
down("right")
up("right", {move = 250})
find("AQID", {x = 1, y = 2, anchor = "LastFound", region = false})
`

// ==== Build Tests ====

func TestBuildString(t *testing.T) {
	entries, err := BuildString(context.Background(), fullScript, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildString() error = %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("BuildString() len = %d, want 8", len(entries))
	}

	wantOffsets := []timeline.Millis{0, 10, 20, 530, 540, 550, 560, 570}
	for i, want := range wantOffsets {
		if entries[i].Offset != want {
			t.Errorf("entry %d offset = %d, want %d", i, entries[i].Offset, want)
		}
	}

	if mv, ok := entries[0].Action.(timeline.Move); !ok || mv != (timeline.Move{X: 10, Y: 20}) {
		t.Errorf("entry 0 = %+v, want Move(10, 20)", entries[0].Action)
	}
	if poly, ok := entries[1].Action.(timeline.MovesPolyline); !ok || len(poly.Points) != 3 {
		t.Errorf("entry 1 = %+v, want a three point polyline", entries[1].Action)
	}
	if *entries[1].Pos != timeline.Pt(10, 10) {
		t.Errorf("entry 1 pos = %v, want the last point", entries[1].Pos)
	}
	if w, ok := entries[2].Action.(timeline.Wait); !ok || w.MS != 500 {
		t.Errorf("entry 2 = %+v, want Wait 500", entries[2].Action)
	}

	click := entries[3]
	if c, ok := click.Action.(timeline.ButtonClick); !ok || c.Button != timeline.ButtonLeft {
		t.Errorf("entry 3 = %+v, want left click", click.Action)
	}
	if click.Meta.WaitMS != 40 || click.Meta.ClickSpeedMS != 30 || click.Meta.LeftMode != timeline.EdgeAuto {
		t.Errorf("entry 3 meta = %+v", click.Meta)
	}
	if *click.Pos != timeline.Pt(100, 200) {
		t.Errorf("entry 3 pos = %v, want (100, 200)", click.Pos)
	}

	if entries[4].Meta.LeftMode != timeline.EdgeDouble {
		t.Errorf("entry 4 left mode = %v, want Double", entries[4].Meta.LeftMode)
	}
	if down, ok := entries[5].Action.(timeline.ButtonDown); !ok || down.Button != timeline.ButtonRight {
		t.Errorf("entry 5 = %+v, want right down", entries[5].Action)
	}
	if entries[5].Pos != nil {
		t.Errorf("entry 5 pos = %v, want nil", entries[5].Pos)
	}
	if entries[5].Meta.RightMode != timeline.EdgeDown {
		t.Errorf("entry 5 right mode = %v, want Down", entries[5].Meta.RightMode)
	}
	if entries[6].Meta.MoveMS != 250 {
		t.Errorf("entry 6 move = %d, want 250", entries[6].Meta.MoveMS)
	}

	ft, ok := entries[7].Action.(timeline.FindTarget)
	if !ok {
		t.Fatalf("entry 7 = %T, want FindTarget", entries[7].Action)
	}
	if !bytes.Equal(ft.Image, []byte{1, 2, 3}) || ft.Anchor != timeline.AnchorLastFound || ft.RegionSize != nil {
		t.Errorf("entry 7 = %+v", ft)
	}
	if ft.PatchSize != 64 || ft.Precision != float32(0.92) || ft.TimeoutMS != 2000 {
		t.Errorf("entry 7 defaults = %d/%v/%d", ft.PatchSize, ft.Precision, ft.TimeoutMS)
	}
	if *entries[7].Pos != timeline.Pt(1, 2) {
		t.Errorf("entry 7 pos = %v, want (1, 2)", entries[7].Pos)
	}
}

func TestBuildFindDefaults(t *testing.T) {
	entries, err := BuildString(context.Background(), `find("AQID")`, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildString() error = %v", err)
	}
	ft := entries[0].Action.(timeline.FindTarget)
	if ft.RegionSize == nil || *ft.RegionSize != 600 {
		t.Errorf("RegionSize = %v, want 600", ft.RegionSize)
	}
	if ft.Anchor != timeline.AnchorRecordedClick {
		t.Errorf("Anchor = %v, want RecordedClick", ft.Anchor)
	}
	if entries[0].Pos != nil {
		t.Error("find without coordinates has a position")
	}
}

func TestBuildFindImageClick(t *testing.T) {
	entries, err := BuildString(context.Background(),
		`click("middle", 5, 6, {find = true, image = "AQID", precision = 0.8, timeout = 900})`,
		DefaultConfig())
	if err != nil {
		t.Fatalf("BuildString() error = %v", err)
	}
	e := entries[0]
	if !bytes.Equal(e.Image(), []byte{1, 2, 3}) {
		t.Errorf("Image() = %v, want [1 2 3]", e.Image())
	}
	if !e.Meta.UseFindImage || e.Meta.TargetPrecision != float32(0.8) || e.Meta.TargetTimeoutMS != 900 {
		t.Errorf("meta = %+v", e.Meta)
	}
}

func TestBuildStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StepMS = 0
	entries, err := BuildString(context.Background(), "for i = 1, 5 do move(i, i) end", cfg)
	if err != nil {
		t.Fatalf("BuildString() error = %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("BuildString() len = %d, want 5", len(entries))
	}
	for i, e := range entries {
		if e.Offset != 0 {
			t.Errorf("entry %d offset = %d, want 0", i, e.Offset)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	entries, err := BuildString(context.Background(), "-- nothing", DefaultConfig())
	if err != nil {
		t.Fatalf("BuildString() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("BuildString() = %v, want an empty timeline", entries)
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"syntax error", "move(1, ", ""},
		{"short path", "path({{1, 1}})", "at least two points"},
		{"bad path point", `path({{1, 1}, "x"})`, "{x, y}"},
		{"unknown option", `click("left", 1, 1, {colour = 1})`, "colour"},
		{"unknown button", `click("side")`, "unknown button"},
		{"find without image", `click("left", {find = true})`, "needs an image"},
		{"negative wait", "wait(-1)", "negative"},
		{"negative option", `click("left", {speed = -3})`, "negative"},
		{"bad image", `find("!!!")`, "base64"},
		{"bad anchor", `find("AQID", {anchor = "Somewhere"})`, "anchor"},
		{"half position", `find("AQID", {x = 1})`, "both x and y"},
		{"runtime error", `error("boom")`, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := BuildString(context.Background(), tt.code, DefaultConfig())
			if err == nil {
				t.Fatalf("BuildString() = %v, want error", entries)
			}
			if entries != nil {
				t.Error("BuildString() returned entries alongside an error")
			}
			var se *Error
			if !errors.As(err, &se) {
				t.Errorf("error type = %T, want *Error", err)
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "macro.lua")
	if err := os.WriteFile(path, []byte("move(1, 2)\nwait(10)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadFile(context.Background(), path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("LoadFile() len = %d, want 2", len(entries))
	}

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.lua"), DefaultConfig())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want not exist", err)
	}
}

// ==== State Tests ====

func TestStateSandbox(t *testing.T) {
	s := NewState()
	defer s.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "io", "os", "debug", "package"} {
		if v := s.GetGlobal(name); v != lua.LNil {
			t.Errorf("global %s = %T, want nil", name, v)
		}
	}
	for _, name := range []string{"string", "table", "math", "pairs"} {
		if v := s.GetGlobal(name); v == lua.LNil {
			t.Errorf("global %s missing", name)
		}
	}
}

func TestStatePrintUsesLogger(t *testing.T) {
	logger := &recordingLogger{}
	s := NewState(WithLogger(logger))
	defer s.Close()

	if err := s.Run(context.Background(), "print", strings.NewReader(`print("hello", 42)`)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(logger.lines) != 1 || logger.lines[0] != "script: hello\t42" {
		t.Errorf("logged %q, want one print line", logger.lines)
	}
}

func TestStateTimeout(t *testing.T) {
	s := NewState(WithTimeout(50 * time.Millisecond))
	defer s.Close()

	err := s.Run(context.Background(), "loop", strings.NewReader("while true do end"))
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Run() error = %v, want ErrTimeout", err)
	}
}

func TestStateContextCancel(t *testing.T) {
	s := NewState()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, "loop", strings.NewReader("while true do end"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestStateClosed(t *testing.T) {
	s := NewState()
	s.Close()
	if !s.IsClosed() {
		t.Error("Close() did not close state")
	}
	// Double close should not panic
	s.Close()

	if err := s.Run(context.Background(), "x", strings.NewReader("x = 1")); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Run() on closed state error = %v, want ErrStateClosed", err)
	}
}

func TestStateRegisterFunc(t *testing.T) {
	s := NewState()
	defer s.Close()

	s.RegisterFunc("double", func(L *lua.LState) int {
		L.Push(lua.LNumber(float64(L.CheckNumber(1)) * 2))
		return 1
	})
	if err := s.Run(context.Background(), "double", strings.NewReader("result = double(21)")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if v, ok := s.GetGlobal("result").(lua.LNumber); !ok || float64(v) != 42 {
		t.Errorf("double(21) = %v, want 42", s.GetGlobal("result"))
	}
}
