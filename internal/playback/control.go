package playback

import (
	"sync/atomic"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Control is the state shared between a running engine and its owner.
//
// The owner writes the cancel flag and reads progress; the engine does the
// reverse. Both sides poll, so no ordering beyond eventual visibility is
// needed.
type Control struct {
	cancelled atomic.Bool
	progress  atomic.Int64
}

// NewControl creates a control with progress at timeline.Done.
func NewControl() *Control {
	c := &Control{}
	c.progress.Store(timeline.Done)
	return c
}

// Cancel requests cooperative cancellation of the run.
// Safe to call more than once and from any goroutine.
func (c *Control) Cancel() {
	c.cancelled.Store(true)
}

// Cancelled returns true once Cancel has been called.
func (c *Control) Cancelled() bool {
	return c.cancelled.Load()
}

// Progress returns the index of the row being executed.
// ok is false before the first row and after the run completes.
func (c *Control) Progress() (index int, ok bool) {
	v := c.progress.Load()
	if v < 0 {
		return 0, false
	}
	return int(v), true
}

// SetProgress publishes the index of the row being executed.
// Pass timeline.Done to clear it.
func (c *Control) SetProgress(index int) {
	c.progress.Store(int64(index))
}
