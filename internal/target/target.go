// Package target resolves reference images to screen coordinates at
// playback time.
//
// A Resolver picks an anchor point according to the request's anchor
// policy, bounds the search to a square region around it when a region size
// is set, and polls the matcher until it finds the image, the timeout
// expires or the caller cancels.
package target

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Errors returned by Resolve.
var (
	// ErrTimeout indicates the image was not found before the deadline.
	ErrTimeout = errors.New("target search timed out")

	// ErrMissingImage indicates a request without reference image data.
	ErrMissingImage = errors.New("missing reference image")

	// ErrCancelled indicates the caller cancelled the search.
	ErrCancelled = errors.New("target search cancelled")
)

// TimeoutError reports an expired search. It matches ErrTimeout with errors.Is.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("FindTarget timed out (%d ms)", e.Timeout.Milliseconds())
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// Canceller reports cooperative cancellation.
type Canceller interface {
	Cancelled() bool
}

// Limits bounds request parameters.
type Limits struct {
	MinRegionSize uint32
	MinPrecision  float32
	MaxPrecision  float32

	// MinTimeout and MaxTimeout bound the timeout of click rows.
	MinTimeout time.Duration
	MaxTimeout time.Duration

	// Retry is the pause between unsuccessful searches.
	Retry time.Duration
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{
		MinRegionSize: 100,
		MinPrecision:  0.5,
		MaxPrecision:  1.0,
		MinTimeout:    200 * time.Millisecond,
		MaxTimeout:    10 * time.Second,
		Retry:         50 * time.Millisecond,
	}
}

// ClampPrecision bounds a confidence threshold.
func (l Limits) ClampPrecision(p float32) float32 {
	if p < l.MinPrecision {
		return l.MinPrecision
	}
	if p > l.MaxPrecision {
		return l.MaxPrecision
	}
	return p
}

// ClampTimeout bounds a click row timeout.
func (l Limits) ClampTimeout(d time.Duration) time.Duration {
	if d < l.MinTimeout {
		return l.MinTimeout
	}
	if d > l.MaxTimeout {
		return l.MaxTimeout
	}
	return d
}

// Request describes one search.
type Request struct {
	Image     []byte
	Precision float32
	Timeout   time.Duration
	Anchor    timeline.Anchor

	// RegionSize bounds the search around the anchor. Nil searches the
	// whole screen.
	RegionSize *uint32

	// Recorded is the position stored with the entry.
	Recorded *timeline.Point
}

// State is carried across searches of one playback run.
type State struct {
	// LastFound is the most recent successful match.
	LastFound *timeline.Point
}

// Resolver locates reference images on screen.
type Resolver struct {
	Matcher platform.Matcher
	Cursor  platform.CursorReader
	Screen  platform.Screen
	Clock   platform.Clock
	Limits  Limits
}

// NewResolver creates a resolver over a backend with default limits.
func NewResolver(b platform.Backend, clock platform.Clock) *Resolver {
	if clock == nil {
		clock = platform.SystemClock{}
	}
	return &Resolver{
		Matcher: b,
		Cursor:  b,
		Screen:  b,
		Clock:   clock,
		Limits:  DefaultLimits(),
	}
}

// ForFindTarget builds the request for a FindTarget row.
func ForFindTarget(a timeline.FindTarget, recorded *timeline.Point) Request {
	return Request{
		Image:      a.Image,
		Precision:  a.Precision,
		Timeout:    time.Duration(a.TimeoutMS) * time.Millisecond,
		Anchor:     a.Anchor,
		RegionSize: a.RegionSize,
		Recorded:   recorded,
	}
}

// ForClick builds the request for a button row resolved by image search.
// Click rows always search the whole screen and use clamped timeouts.
func (r *Resolver) ForClick(meta timeline.ClickMeta, image []byte, recorded *timeline.Point) Request {
	return Request{
		Image:     image,
		Precision: meta.TargetPrecision,
		Timeout:   r.Limits.ClampTimeout(time.Duration(meta.TargetTimeoutMS) * time.Millisecond),
		Anchor:    timeline.AnchorRecordedClick,
		Recorded:  recorded,
	}
}

// Anchor resolves the anchor policy to a point, or nil when none of the
// candidates is known.
func (r *Resolver) Anchor(policy timeline.Anchor, recorded *timeline.Point, st *State) *timeline.Point {
	live := func() *timeline.Point {
		if r.Cursor == nil {
			return nil
		}
		if p, ok := r.Cursor.CursorPos(); ok {
			return &p
		}
		return nil
	}
	var last *timeline.Point
	if st != nil {
		last = st.LastFound
	}

	switch policy {
	case timeline.AnchorCurrentMouse:
		return first(live(), recorded, last)
	case timeline.AnchorLastFound:
		if p := first(last, recorded); p != nil {
			return p
		}
		return live()
	default:
		return first(recorded)
	}
}

// Resolve searches for req.Image until it is found, the timeout expires or c
// reports cancellation. A successful match is stored in st.LastFound.
func (r *Resolver) Resolve(c Canceller, req Request, st *State) (timeline.Point, error) {
	if len(req.Image) == 0 {
		return timeline.Point{}, ErrMissingImage
	}
	if st == nil {
		st = &State{}
	}

	var region *platform.Rect
	if req.RegionSize != nil {
		if center := r.Anchor(req.Anchor, req.Recorded, st); center != nil && r.Screen != nil {
			if w, h, ok := r.Screen.ScreenSize(); ok {
				region = Region(w, h, *center, *req.RegionSize, r.Limits.MinRegionSize)
			}
		}
	}

	search, err := r.Matcher.Prepare(req.Image, region)
	if err != nil {
		return timeline.Point{}, fmt.Errorf("FindTarget decode failed: %w", err)
	}

	precision := r.Limits.ClampPrecision(req.Precision)
	started := r.Clock.Now()
	for {
		if c != nil && c.Cancelled() {
			return timeline.Point{}, ErrCancelled
		}
		if r.Clock.Now().Sub(started) > req.Timeout {
			return timeline.Point{}, &TimeoutError{Timeout: req.Timeout}
		}

		m, found, err := search.Find(precision)
		if err != nil {
			return timeline.Point{}, fmt.Errorf("target search failed: %w", err)
		}
		if found {
			p := m.Pos
			st.LastFound = &p
			return p, nil
		}
		r.Clock.Sleep(r.Limits.Retry)
	}
}

// Region computes a square search region of size (at least minSize) around
// center, clamped to a screen of w by h. It returns nil when the screen size
// is unknown.
func Region(w, h int, center timeline.Point, size, minSize uint32) *platform.Rect {
	if w <= 0 || h <= 0 {
		return nil
	}
	if size < minSize {
		size = minSize
	}

	rw := min(int(size), w)
	rh := min(int(size), h)

	cx := clamp(center.X, 0, w-1)
	cy := clamp(center.Y, 0, h-1)

	left := clamp(cx-int(size)/2, 0, w-rw)
	top := clamp(cy-int(size)/2, 0, h-rh)

	return &platform.Rect{X: left, Y: top, W: rw, H: rh}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func first(points ...*timeline.Point) *timeline.Point {
	for _, p := range points {
		if p != nil {
			q := *p
			return &q
		}
	}
	return nil
}
