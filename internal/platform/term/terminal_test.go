package term

import (
	"context"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/clickstorm/internal/timeline"
)

func newTestTerminal(t *testing.T) (*Terminal, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	term, err := NewWithScreen(screen)
	if err != nil {
		t.Fatalf("NewWithScreen() error = %v", err)
	}
	screen.SetSize(40, 20)
	t.Cleanup(func() { _ = term.Close() })
	return term, screen
}

func TestTerminalMouseEvents(t *testing.T) {
	term, _ := newTestTerminal(t)

	if _, ok := term.CursorPos(); ok {
		t.Error("CursorPos() ok = true before any mouse event")
	}

	term.handleEvent(tcell.NewEventMouse(7, 3, tcell.ButtonPrimary|tcell.ButtonSecondary, tcell.ModNone))

	if p, ok := term.CursorPos(); !ok || p != timeline.Pt(7, 3) {
		t.Errorf("CursorPos() = %v, %v, want (7,3), true", p, ok)
	}
	if !term.ButtonDown(timeline.ButtonLeft) {
		t.Error("ButtonDown(left) = false, want true")
	}
	if !term.ButtonDown(timeline.ButtonRight) {
		t.Error("ButtonDown(right) = false, want true")
	}
	if term.ButtonDown(timeline.ButtonMiddle) {
		t.Error("ButtonDown(middle) = true, want false")
	}

	term.handleEvent(tcell.NewEventMouse(8, 3, tcell.ButtonNone, tcell.ModNone))
	if term.ButtonDown(timeline.ButtonLeft) {
		t.Error("ButtonDown(left) = true after release")
	}
}

func TestTerminalButtonMapping(t *testing.T) {
	tests := []struct {
		name string
		mask tcell.ButtonMask
		want timeline.Button
	}{
		{"primary", tcell.ButtonPrimary, timeline.ButtonLeft},
		{"secondary", tcell.ButtonSecondary, timeline.ButtonRight},
		{"middle", tcell.ButtonMiddle, timeline.ButtonMiddle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term, _ := newTestTerminal(t)
			term.handleEvent(tcell.NewEventMouse(3, 4, tt.mask, tcell.ModNone))
			for _, b := range []timeline.Button{timeline.ButtonLeft, timeline.ButtonRight, timeline.ButtonMiddle} {
				if got := term.ButtonDown(b); got != (b == tt.want) {
					t.Errorf("ButtonDown(%v) = %v, want %v", b, got, b == tt.want)
				}
			}
		})
	}
}

func TestTerminalKeyHandler(t *testing.T) {
	term, _ := newTestTerminal(t)

	var gotKey tcell.Key
	term.OnKey(func(k tcell.Key, _ rune) { gotKey = k })
	term.handleEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))

	if gotKey != tcell.KeyEscape {
		t.Errorf("key handler got %v, want KeyEscape", gotKey)
	}
}

func TestTerminalScreenSize(t *testing.T) {
	term, _ := newTestTerminal(t)
	w, h, ok := term.ScreenSize()
	if !ok || w != 40 || h != 20 {
		t.Errorf("ScreenSize() = %d, %d, %v, want 40, 20, true", w, h, ok)
	}
}

func TestTerminalCaptureAndFind(t *testing.T) {
	term, screen := newTestTerminal(t)

	style := tcell.StyleDefault.Foreground(tcell.ColorRed).Background(tcell.ColorBlue)
	for i, r := range "OK?" {
		screen.SetContent(20+i, 10, r, nil, style)
	}
	screen.SetContent(21, 9, '#', nil, style)
	screen.Show()

	patch, err := term.CapturePatch(timeline.Pt(21, 10), 4)
	if err != nil {
		t.Fatalf("CapturePatch() error = %v", err)
	}
	search, err := term.Prepare(patch, nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	m, found, err := search.Find(1)
	if err != nil || !found {
		t.Fatalf("Find() = %v, %v, %v, want a match", m, found, err)
	}
	if m.Pos != timeline.Pt(21, 10) {
		t.Errorf("Find().Pos = %v, want (21,10)", m.Pos)
	}
}

func TestTerminalPointer(t *testing.T) {
	term, screen := newTestTerminal(t)

	if err := term.MoveTo(timeline.Pt(5, 6)); err != nil {
		t.Fatalf("MoveTo() error = %v", err)
	}
	if p, _ := term.CursorPos(); p != timeline.Pt(5, 6) {
		t.Errorf("CursorPos() after MoveTo = %v, want (5,6)", p)
	}
	if x, y, visible := screen.GetCursor(); !visible || x != 5 || y != 6 {
		t.Errorf("GetCursor() = %d, %d, %v, want 5, 6, true", x, y, visible)
	}

	_ = term.Down(timeline.ButtonLeft)
	if r, _, _, _ := screen.GetContent(5, 6); r != 'L' { //nolint:staticcheck // GetContent is the correct API
		t.Errorf("marker after Down = %q, want 'L'", r)
	}
	_ = term.Up(timeline.ButtonLeft)
	if r, _, _, _ := screen.GetContent(5, 6); r != 'l' { //nolint:staticcheck // GetContent is the correct API
		t.Errorf("marker after Up = %q, want 'l'", r)
	}
}

func TestTerminalRunStopsOnCancel(t *testing.T) {
	term, _ := newTestTerminal(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- term.Run(ctx) }()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestTerminalDrawPanel(t *testing.T) {
	term, screen := newTestTerminal(t)

	term.DrawPanel([]string{"first", "Recording..."})

	cells, w, h := screen.GetContents()
	row := func(y int) string {
		var out []rune
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) > 0 {
				out = append(out, c.Runes[0])
			}
		}
		return string(out)
	}
	if got := row(h - 1); got[:12] != "Recording..." {
		t.Errorf("last row = %q, want it to start with the status", got)
	}
	if got := row(h - 2); got[:5] != "first" {
		t.Errorf("second last row = %q, want it to start with first", got)
	}
}
