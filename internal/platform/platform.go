// Package platform declares the input, capture and injection primitives the
// recorder and the playback engine consume.
//
// Concrete desktops live in subpackages: sim is an in-memory desktop used by
// tests and the -backend sim mode, term drives a terminal through tcell.
// imagematch provides the patch capture and template search shared by both.
package platform

import (
	"errors"
	"image"
	"time"

	"github.com/dshills/clickstorm/internal/timeline"
)

// ErrCaptureUnavailable indicates the backend cannot capture screen content.
var ErrCaptureUnavailable = errors.New("screen capture unavailable")

// Rect is a screen rectangle in pixels.
type Rect struct {
	X, Y int
	W, H int
}

// Empty returns true if the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Bounds converts the rectangle to an image.Rectangle.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Match is the result of a successful template search.
type Match struct {
	// Pos is the center of the matched patch.
	Pos timeline.Point

	// Score is the similarity in [0, 1].
	Score float32
}

// CursorReader reads the live pointer position.
type CursorReader interface {
	// CursorPos returns the pointer position. ok is false when the
	// position cannot be read.
	CursorPos() (pos timeline.Point, ok bool)
}

// ButtonReader reads the live button state.
type ButtonReader interface {
	ButtonDown(b timeline.Button) bool
}

// Capturer captures a square PNG patch of the screen centered on a point.
type Capturer interface {
	CapturePatch(center timeline.Point, size uint32) ([]byte, error)
}

// Matcher locates a reference image on screen.
//
// Prepare decodes the reference once; the returned Search can be retried
// against fresh screen content until it matches.
type Matcher interface {
	Prepare(image []byte, region *Rect) (Search, error)
}

// Search is a prepared template search.
type Search interface {
	// Find returns the best match scoring at least precision.
	// found is false when nothing on screen is similar enough.
	Find(precision float32) (m Match, found bool, err error)
}

// Pointer injects pointer motion and button edges.
type Pointer interface {
	MoveTo(p timeline.Point) error
	Down(b timeline.Button) error
	Up(b timeline.Button) error
}

// Screen reports the screen dimensions.
type Screen interface {
	// ScreenSize returns the size in pixels. ok is false when unknown.
	ScreenSize() (w, h int, ok bool)
}

// Framebuffer exposes the current screen content as an image.
type Framebuffer interface {
	Snapshot() (image.Image, error)
}

// Backend aggregates every primitive a desktop provides.
type Backend interface {
	CursorReader
	ButtonReader
	Capturer
	Matcher
	Pointer
	Screen

	// Name identifies the backend in logs.
	Name() string

	// Close releases backend resources.
	Close() error
}

// Clock provides the wall-clock and sleeping used for timing decisions.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the Clock backed by package time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
