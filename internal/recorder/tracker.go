package recorder

import (
	"time"

	"github.com/dshills/clickstorm/internal/timeline"
)

// pressTracker tracks the press state of one button.
type pressTracker struct {
	down bool

	// Press state, valid while down.
	pos   *timeline.Point
	at    time.Time
	image []byte
}

// press records a rising edge.
func (t *pressTracker) press(pos *timeline.Point, at time.Time, image []byte) {
	t.down = true
	t.pos = pos
	t.at = at
	t.image = image
}

// release records a falling edge and returns how long the button was held
// and how far the pointer travelled (Manhattan distance).
// Travel is zero when either position is unknown.
func (t *pressTracker) release(pos *timeline.Point, at time.Time) (held time.Duration, travel int) {
	held = at.Sub(t.at)
	if held < 0 {
		held = 0
	}
	if t.pos != nil && pos != nil {
		travel = t.pos.Distance(*pos)
	}
	t.down = false
	return held, travel
}

// reset clears the press state.
func (t *pressTracker) reset() {
	*t = pressTracker{}
}

// pendingClick is a released click candidate that may be promoted to a
// double click.
type pendingClick struct {
	pos        *timeline.Point
	image      []byte
	releasedAt time.Time
	offset     timeline.Millis
}

// within reports whether a release at "at" falls inside the click window.
// A release earlier than the pending one (clock skew) never merges.
func (p *pendingClick) within(at time.Time, window time.Duration) bool {
	gap := at.Sub(p.releasedAt)
	return gap >= 0 && gap <= window
}

// expired reports whether the click window closed before now.
func (p *pendingClick) expired(now time.Time, window time.Duration) bool {
	return now.Sub(p.releasedAt) > window
}
