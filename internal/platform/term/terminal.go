// Package term implements platform.Backend on a terminal through tcell.
//
// Terminal cells stand in for pixels: mouse events report the cell under the
// pointer, the snapshot renders every cell as one pixel coloured from its
// rune and style, and injected pointer moves place the terminal cursor.
package term

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/platform/imagematch"
	"github.com/dshills/clickstorm/internal/timeline"
)

// KeyHandler receives key presses from the event loop.
type KeyHandler func(key tcell.Key, r rune)

// Terminal is a tcell backed desktop.
type Terminal struct {
	screen  tcell.Screen
	matcher *imagematch.Matcher

	mu       sync.Mutex
	cursor   timeline.Point
	cursorOK bool
	buttons  [timeline.NumButtons]bool
	onKey    KeyHandler
	closed   bool
}

var _ platform.Backend = (*Terminal)(nil)

// New creates a terminal backend on the controlling terminal.
func New() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewWithScreen(screen)
}

// NewWithScreen initializes screen and wraps it. Tests pass a
// tcell.SimulationScreen.
func NewWithScreen(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.Clear()
	screen.Show()

	t := &Terminal{screen: screen}
	t.matcher = imagematch.New(t)
	return t, nil
}

// Name returns "term".
func (t *Terminal) Name() string { return "term" }

// OnKey registers the key handler.
func (t *Terminal) OnKey(fn KeyHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onKey = fn
}

// Run polls terminal events until ctx is done or the backend is closed.
func (t *Terminal) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return ctx.Err()
		}
		t.handleEvent(ev)
	}
}

func (t *Terminal) handleEvent(ev tcell.Event) {
	switch e := ev.(type) {
	case *tcell.EventMouse:
		x, y := e.Position()
		mask := e.Buttons()
		t.mu.Lock()
		t.cursor = timeline.Pt(x, y)
		t.cursorOK = true
		t.buttons[timeline.ButtonLeft] = mask&tcell.ButtonPrimary != 0
		t.buttons[timeline.ButtonRight] = mask&tcell.ButtonSecondary != 0
		t.buttons[timeline.ButtonMiddle] = mask&tcell.ButtonMiddle != 0
		t.mu.Unlock()

	case *tcell.EventKey:
		t.mu.Lock()
		fn := t.onKey
		t.mu.Unlock()
		if fn != nil {
			fn(e.Key(), e.Rune())
		}

	case *tcell.EventResize:
		t.screen.Sync()
	}
}

// CursorPos returns the last reported mouse cell.
func (t *Terminal) CursorPos() (timeline.Point, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cursor, t.cursorOK
}

// ButtonDown reports the last reported button mask.
func (t *Terminal) ButtonDown(b timeline.Button) bool {
	if !b.Valid() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buttons[b]
}

// ScreenSize returns the terminal size in cells.
func (t *Terminal) ScreenSize() (int, int, bool) {
	w, h := t.screen.Size()
	return w, h, w > 0 && h > 0
}

// Snapshot renders the cell grid as an image, one pixel per cell.
func (t *Terminal) Snapshot() (image.Image, error) {
	w, h := t.screen.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			mainc, _, style, _ := t.screen.GetContent(x, y) //nolint:staticcheck // GetContent is the correct API
			img.SetRGBA(x, y, cellColor(mainc, style))
		}
	}
	return img, nil
}

// cellColor maps a cell to a pixel. Blank cells take the background colour;
// other cells take the foreground colour perturbed by the rune so different
// glyphs in the same style stay distinguishable.
func cellColor(r rune, style tcell.Style) color.RGBA {
	fg, bg, _ := style.Decompose()
	if r == 0 || r == ' ' {
		return rgba(bg, 0)
	}
	c := rgba(fg, 255)
	c.B ^= uint8(r & 0x7f)
	return c
}

func rgba(c tcell.Color, fallback uint8) color.RGBA {
	if c == tcell.ColorDefault {
		return color.RGBA{R: fallback, G: fallback, B: fallback, A: 255}
	}
	r, g, b := c.RGB()
	return color.RGBA{R: clamp(r), G: clamp(g), B: clamp(b), A: 255}
}

func clamp(v int32) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// CapturePatch encodes a square of cells centered on center as PNG.
func (t *Terminal) CapturePatch(center timeline.Point, size uint32) ([]byte, error) {
	return imagematch.Capture(t, center, size)
}

// Prepare prepares a template search over the cell grid.
func (t *Terminal) Prepare(img []byte, region *platform.Rect) (platform.Search, error) {
	return t.matcher.Prepare(img, region)
}

// MoveTo shows the terminal cursor at p. The recorded cursor follows so the
// live position reflects the injected move until the next mouse event.
func (t *Terminal) MoveTo(p timeline.Point) error {
	t.mu.Lock()
	t.cursor = p
	t.cursorOK = true
	t.mu.Unlock()

	t.screen.ShowCursor(p.X, p.Y)
	t.screen.Show()
	return nil
}

// Down paints a press marker at the cursor.
func (t *Terminal) Down(b timeline.Button) error {
	return t.mark(b, markerRune(b, true))
}

// Up paints a release marker at the cursor.
func (t *Terminal) Up(b timeline.Button) error {
	return t.mark(b, markerRune(b, false))
}

func (t *Terminal) mark(b timeline.Button, r rune) error {
	if !b.Valid() {
		return timeline.ErrInvalidButton
	}
	t.mu.Lock()
	at := t.cursor
	t.mu.Unlock()

	t.screen.SetContent(at.X, at.Y, r, nil, tcell.StyleDefault.Reverse(true))
	t.screen.Show()
	return nil
}

func markerRune(b timeline.Button, down bool) rune {
	marks := [timeline.NumButtons][2]rune{
		timeline.ButtonLeft:   {'l', 'L'},
		timeline.ButtonRight:  {'r', 'R'},
		timeline.ButtonMiddle: {'m', 'M'},
	}
	if down {
		return marks[b][1]
	}
	return marks[b][0]
}

// DrawPanel writes lines over the bottom rows of the terminal, one line per
// row, clearing the rest of each row. Lines that do not fit are dropped from
// the top.
func (t *Terminal) DrawPanel(lines []string) {
	w, h := t.screen.Size()
	if len(lines) > h {
		lines = lines[len(lines)-h:]
	}
	style := tcell.StyleDefault.Reverse(true)
	top := h - len(lines)
	for i, line := range lines {
		x := 0
		for _, r := range line {
			if x >= w {
				break
			}
			t.screen.SetContent(x, top+i, r, nil, style)
			x++
		}
		for ; x < w; x++ {
			t.screen.SetContent(x, top+i, ' ', nil, style)
		}
	}
	t.screen.Show()
}

// Close restores the terminal. It is safe to call more than once.
func (t *Terminal) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.screen.Fini()
	return nil
}
