package recorder

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Logger is the logging surface the recorder needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}

// Sample is the raw input state read on one polling tick.
type Sample struct {
	// Pos is the cursor position, nil when it could not be read.
	Pos *timeline.Point

	// Down holds the button state indexed by timeline.Button.
	Down [timeline.NumButtons]bool
}

// ReadSample polls the live cursor and buttons.
func ReadSample(cursor platform.CursorReader, buttons platform.ButtonReader) Sample {
	var s Sample
	if p, ok := cursor.CursorPos(); ok {
		s.Pos = &p
	}
	for _, b := range timeline.Buttons {
		s.Down[b] = buttons.ButtonDown(b)
	}
	return s
}

// Recorder converts polled samples into timeline entries.
//
// A Recorder is owned by one session. Tick, Start and Stop serialize on an
// internal mutex; the entries slice passed to Tick and Stop must not be
// mutated concurrently by the caller.
type Recorder struct {
	mu       sync.Mutex
	cfg      Config
	clock    platform.Clock
	capturer platform.Capturer
	logger   Logger

	enabled bool
	session string

	presses [timeline.NumButtons]pressTracker
	pending [timeline.NumButtons]*pendingClick

	synthetic   timeline.Millis
	started     bool
	lastEmitted timeline.Millis

	lastKnown    *timeline.Point
	lastClickPos *timeline.Point
	pathAnchor   *timeline.Point
}

// New creates a disabled recorder. A nil capturer records rows without
// reference images; a nil logger discards output.
func New(cfg Config, clock platform.Clock, capturer platform.Capturer, logger Logger) *Recorder {
	if clock == nil {
		clock = platform.SystemClock{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Recorder{
		cfg:      cfg,
		clock:    clock,
		capturer: capturer,
		logger:   logger,
	}
}

// Config returns the active configuration.
func (r *Recorder) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig replaces the configuration. It takes effect on the next tick.
func (r *Recorder) SetConfig(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

// Start resets all per-session state and enables recording. pos seeds the
// last known cursor position. It returns the new session ID.
func (r *Recorder) Start(pos *timeline.Point) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.presses {
		r.presses[i].reset()
		r.pending[i] = nil
	}
	r.synthetic = 0
	r.started = false
	r.lastEmitted = 0
	r.lastClickPos = nil
	r.lastKnown = copyPoint(pos)
	r.pathAnchor = copyPoint(pos)
	r.session = uuid.NewString()
	r.enabled = true

	r.logger.Info("recording session %s started (path mode %v)", r.session, r.cfg.PathMode)
	return r.session
}

// Enabled returns true while a session is recording.
func (r *Recorder) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Session returns the ID of the current or last session.
func (r *Recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Clock returns the synthetic clock.
func (r *Recorder) Clock() timeline.Millis {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.synthetic
}

// Tick processes one sample and returns entries with any new rows appended.
// In path mode a sample at the coordinate of a trailing Move retimes that
// row instead of appending a duplicate. Tick is a no-op while disabled.
func (r *Recorder) Tick(s Sample, entries []timeline.Entry) []timeline.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return entries
	}

	now := r.clock.Now()
	if s.Pos != nil {
		r.lastKnown = copyPoint(s.Pos)
	}

	if r.cfg.PathMode {
		entries = r.samplePath(s.Pos, entries)
	}

	for _, b := range timeline.Buttons {
		t := &r.presses[b]
		switch {
		case s.Down[b] && !t.down:
			entries = r.pressed(b, now, entries)
		case !s.Down[b] && t.down:
			entries = r.released(b, now, entries)
		}
	}

	for _, b := range timeline.Buttons {
		if p := r.pending[b]; p != nil && p.expired(now, r.cfg.ClickWindow) {
			entries = r.flush(b, entries)
		}
	}

	return entries
}

// Stop releases buttons that are still held, flushes pending clicks as
// single clicks and disables recording. A held button is released at the
// last known position as if it had been let go on this tick, so every
// recorded ButtonDown gets its ButtonUp.
func (r *Recorder) Stop(entries []timeline.Entry) []timeline.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled {
		return entries
	}
	now := r.clock.Now()
	for _, b := range timeline.Buttons {
		if r.presses[b].down {
			r.logger.Debug("%s still held at stop, releasing", b)
			entries = r.released(b, now, entries)
		}
	}
	for _, b := range timeline.Buttons {
		if r.pending[b] != nil {
			entries = r.flush(b, entries)
		}
	}
	r.enabled = false
	r.logger.Info("recording session %s stopped at %d ms", r.session, r.synthetic)
	return entries
}

// pressed handles a rising edge. Caller must hold r.mu.
func (r *Recorder) pressed(b timeline.Button, now time.Time, entries []timeline.Entry) []timeline.Entry {
	pos := copyPoint(r.lastKnown)
	image := r.capture(pos)
	r.presses[b].press(pos, now, image)

	if !r.cfg.PathMode {
		return entries
	}
	offset := r.advance()
	return r.emit(entries, timeline.Entry{
		Offset: offset,
		Action: timeline.ButtonDown{Button: b, Image: image},
		Pos:    copyPoint(pos),
		Meta:   r.cfg.metaFor(b, timeline.EdgeDown),
	})
}

// released handles a falling edge. Caller must hold r.mu.
func (r *Recorder) released(b timeline.Button, now time.Time, entries []timeline.Entry) []timeline.Entry {
	t := &r.presses[b]
	downPos, downImage := t.pos, t.image
	upPos := copyPoint(r.lastKnown)
	held, travel := t.release(upPos, now)

	if r.cfg.PathMode {
		offset := r.advance()
		return r.emit(entries, timeline.Entry{
			Offset: offset,
			Action: timeline.ButtonUp{Button: b, Image: r.capture(upPos)},
			Pos:    upPos,
			Meta:   r.cfg.metaFor(b, timeline.EdgeUp),
		})
	}

	if held > r.cfg.MaxHold || travel > r.cfg.SplitPX {
		r.logger.Debug("%s split: held %v, moved %d px", b, held, travel)
		if r.pending[b] != nil {
			entries = r.flush(b, entries)
		}

		downOffset := r.advance()
		entries = r.moveBefore(entries, downPos, downOffset)
		entries = r.emit(entries, timeline.Entry{
			Offset: downOffset,
			Action: timeline.ButtonDown{Button: b, Image: downImage},
			Pos:    copyPoint(downPos),
			Meta:   r.cfg.metaFor(b, timeline.EdgeDown),
		})

		upOffset := r.advance()
		entries = r.emit(entries, timeline.Entry{
			Offset: upOffset,
			Action: timeline.ButtonUp{Button: b, Image: r.capture(upPos)},
			Pos:    upPos,
			Meta:   r.cfg.metaFor(b, timeline.EdgeUp),
		})
		r.lastClickPos = copyPoint(upPos)
		return entries
	}

	if p := r.pending[b]; p != nil {
		if p.within(now, r.cfg.ClickWindow) {
			r.pending[b] = nil
			return r.emitClick(entries, b, p, timeline.EdgeDouble)
		}
		entries = r.flush(b, entries)
	}

	// The pending slot is written only once the candidate is complete.
	candidate := &pendingClick{
		pos:        copyPoint(downPos),
		image:      downImage,
		releasedAt: now,
		offset:     r.advance(),
	}
	r.pending[b] = candidate
	return entries
}

// flush emits the pending click of b as a single click. Caller must hold r.mu.
func (r *Recorder) flush(b timeline.Button, entries []timeline.Entry) []timeline.Entry {
	p := r.pending[b]
	r.pending[b] = nil
	return r.emitClick(entries, b, p, timeline.EdgeAuto)
}

// emitClick appends a click row for p. Caller must hold r.mu.
func (r *Recorder) emitClick(entries []timeline.Entry, b timeline.Button, p *pendingClick, mode timeline.EdgeMode) []timeline.Entry {
	offset := p.offset
	if offset < r.lastEmitted {
		offset = r.lastEmitted
	}
	entries = r.moveBefore(entries, p.pos, offset)
	entries = r.emit(entries, timeline.Entry{
		Offset: offset,
		Action: timeline.ButtonClick{Button: b, Image: p.image},
		Pos:    copyPoint(p.pos),
		Meta:   r.cfg.metaFor(b, mode),
	})
	r.lastClickPos = copyPoint(p.pos)
	return entries
}

// moveBefore emits a Move to pos when it differs from the previous click.
// Caller must hold r.mu.
func (r *Recorder) moveBefore(entries []timeline.Entry, pos *timeline.Point, offset timeline.Millis) []timeline.Entry {
	if !r.cfg.MoveBeforeClick || pos == nil || r.lastClickPos == nil || r.lastClickPos.Equal(*pos) {
		return entries
	}
	return r.emit(entries, timeline.Entry{
		Offset: offset,
		Action: timeline.Move{X: pos.X, Y: pos.Y},
		Pos:    copyPoint(pos),
	})
}

// samplePath appends or retimes a path Move. Caller must hold r.mu.
func (r *Recorder) samplePath(pos *timeline.Point, entries []timeline.Entry) []timeline.Entry {
	if pos == nil {
		return entries
	}
	if r.pathAnchor != nil && r.pathAnchor.Distance(*pos) < r.cfg.PathMinDeltaPX {
		return entries
	}

	n := len(entries)
	trailing := false
	if n > 0 {
		mv, ok := entries[n-1].Action.(timeline.Move)
		trailing = ok && mv.X == pos.X && mv.Y == pos.Y
	}
	if trailing {
		offset := r.advance()
		entries[n-1].Offset = offset
		r.lastEmitted = offset
		return entries
	}
	if r.pathAnchor != nil && r.pathAnchor.Equal(*pos) {
		// Stationary since the last sample and the row after it is not a Move.
		return entries
	}

	r.pathAnchor = copyPoint(pos)
	offset := r.advance()
	return r.emit(entries, timeline.Entry{
		Offset: offset,
		Action: timeline.Move{X: pos.X, Y: pos.Y},
		Pos:    copyPoint(pos),
	})
}

// advance moves the synthetic clock for a new emitting event. The first
// event of a session is stamped 0. Caller must hold r.mu.
func (r *Recorder) advance() timeline.Millis {
	if r.started {
		r.synthetic += timeline.Millis(r.cfg.WaitMS)
	} else {
		r.started = true
	}
	return r.synthetic
}

// emit appends e. Caller must hold r.mu.
func (r *Recorder) emit(entries []timeline.Entry, e timeline.Entry) []timeline.Entry {
	if e.Offset > r.lastEmitted {
		r.lastEmitted = e.Offset
	}
	return append(entries, e)
}

// capture grabs a reference patch at pos. Failures are logged and yield nil.
func (r *Recorder) capture(pos *timeline.Point) []byte {
	if r.capturer == nil || pos == nil {
		return nil
	}
	img, err := r.capturer.CapturePatch(*pos, r.cfg.PatchSize)
	if err != nil {
		r.logger.Debug("patch capture at %v failed: %v", *pos, err)
		return nil
	}
	return img
}

func copyPoint(p *timeline.Point) *timeline.Point {
	if p == nil {
		return nil
	}
	q := *p
	return &q
}
