// Package sim provides a deterministic in-memory desktop.
//
// Desktop implements platform.Backend over an RGBA framebuffer. Tests drive
// the cursor and buttons directly and inspect the log of injected pointer
// calls; the -backend sim mode uses the same type behind the console's sim
// commands.
package sim

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/platform/imagematch"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Op identifies an injected pointer primitive.
type Op string

// Pointer primitives recorded in the call log.
const (
	OpMove Op = "move"
	OpDown Op = "down"
	OpUp   Op = "up"
)

// Call is one injected pointer primitive.
type Call struct {
	Op     Op
	Pos    timeline.Point
	Button timeline.Button
}

// Desktop is an in-memory desktop. All methods are safe for concurrent use.
type Desktop struct {
	mu         sync.Mutex
	fb         *image.RGBA
	cursor     timeline.Point
	cursorOK   bool
	buttons    [timeline.NumButtons]bool
	calls      []Call
	onCall     func(Call)
	captureErr error
	matcher    *imagematch.Matcher
}

var _ platform.Backend = (*Desktop)(nil)

// New creates a desktop of the given size with a black screen and the
// cursor at the origin.
func New(width, height int) *Desktop {
	d := &Desktop{
		fb:       image.NewRGBA(image.Rect(0, 0, width, height)),
		cursorOK: true,
	}
	draw.Draw(d.fb, d.fb.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	d.matcher = imagematch.New(d)
	return d
}

// Name returns "sim".
func (d *Desktop) Name() string { return "sim" }

// Close is a no-op.
func (d *Desktop) Close() error { return nil }

// CursorPos returns the simulated cursor.
func (d *Desktop) CursorPos() (timeline.Point, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor, d.cursorOK
}

// SetCursor moves the simulated cursor without logging a call.
func (d *Desktop) SetCursor(p timeline.Point) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = p
	d.cursorOK = true
}

// LoseCursor makes CursorPos fail until the next SetCursor or MoveTo.
func (d *Desktop) LoseCursor() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursorOK = false
}

// ButtonDown reports the simulated button state.
func (d *Desktop) ButtonDown(b timeline.Button) bool {
	if !b.Valid() {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buttons[b]
}

// SetButton changes the simulated button state without logging a call.
func (d *Desktop) SetButton(b timeline.Button, down bool) {
	if !b.Valid() {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buttons[b] = down
}

// ScreenSize returns the framebuffer size.
func (d *Desktop) ScreenSize() (int, int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.fb.Bounds()
	return b.Dx(), b.Dy(), true
}

// Snapshot returns a copy of the framebuffer.
func (d *Desktop) Snapshot() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := image.NewRGBA(d.fb.Bounds())
	copy(out.Pix, d.fb.Pix)
	return out, nil
}

// Fill paints a rectangle of the framebuffer.
func (d *Desktop) Fill(r platform.Rect, c color.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	draw.Draw(d.fb, r.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawImage copies img onto the framebuffer with its top-left corner at at.
func (d *Desktop) DrawImage(at timeline.Point, img image.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := img.Bounds()
	dst := image.Rect(at.X, at.Y, at.X+b.Dx(), at.Y+b.Dy())
	draw.Draw(d.fb, dst, img, b.Min, draw.Src)
}

// FailCapture makes CapturePatch return err. A nil err restores capture.
func (d *Desktop) FailCapture(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captureErr = err
}

// CapturePatch encodes a square of the framebuffer as PNG.
func (d *Desktop) CapturePatch(center timeline.Point, size uint32) ([]byte, error) {
	d.mu.Lock()
	err := d.captureErr
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return imagematch.Capture(d, center, size)
}

// Prepare prepares a template search over the framebuffer.
func (d *Desktop) Prepare(img []byte, region *platform.Rect) (platform.Search, error) {
	return d.matcher.Prepare(img, region)
}

// MoveTo moves the cursor and logs the call.
func (d *Desktop) MoveTo(p timeline.Point) error {
	d.mu.Lock()
	d.cursor = p
	d.cursorOK = true
	fn := d.record(Call{Op: OpMove, Pos: p})
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// Down presses a button at the cursor and logs the call.
func (d *Desktop) Down(b timeline.Button) error {
	return d.edge(OpDown, b, true)
}

// Up releases a button at the cursor and logs the call.
func (d *Desktop) Up(b timeline.Button) error {
	return d.edge(OpUp, b, false)
}

func (d *Desktop) edge(op Op, b timeline.Button, down bool) error {
	if !b.Valid() {
		return timeline.ErrInvalidButton
	}
	d.mu.Lock()
	d.buttons[b] = down
	fn := d.record(Call{Op: op, Pos: d.cursor, Button: b})
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// record appends to the call log and returns the hook invocation, which the
// caller runs after releasing the lock. Caller must hold d.mu.
func (d *Desktop) record(c Call) func() {
	d.calls = append(d.calls, c)
	if d.onCall == nil {
		return nil
	}
	hook := d.onCall
	return func() { hook(c) }
}

// OnCall registers a hook invoked after every injected primitive.
func (d *Desktop) OnCall(fn func(Call)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCall = fn
}

// Calls returns a copy of the call log.
func (d *Desktop) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// ResetCalls clears the call log.
func (d *Desktop) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}
