package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/target"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Errors returned by playback.
var (
	// ErrCancelled indicates the run was stopped by its owner.
	ErrCancelled = errors.New("playback cancelled")

	// ErrMissingClickMeta indicates a button row without click metadata.
	ErrMissingClickMeta = errors.New("Click row is missing click metadata")

	// ErrMissingTargetImage indicates an image-resolved button row without
	// a reference image.
	ErrMissingTargetImage = errors.New("Target click row is missing patch image data")

	// ErrAlreadyPlaying indicates a run was started while another is active.
	ErrAlreadyPlaying = errors.New("already playing")

	// ErrEmptyTimeline indicates a run was started with no entries.
	ErrEmptyTimeline = errors.New("nothing to play")
)

// Logger is the logging surface the engine needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// State is the lifecycle state of a run.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateFinished
	StateCancelled
	StateFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the playback timing parameters.
type Config struct {
	// DefaultMoveMS is the move duration of rows without metadata.
	DefaultMoveMS uint16

	// UpMoveMS is the move duration of button-up rows without metadata.
	UpMoveMS uint16

	// MaxMoveMS caps every move duration.
	MaxMoveMS uint16

	// DefaultClickSpeedMS is the click hold time of rows without metadata.
	DefaultClickSpeedMS uint16

	// MaxClickSpeedMS caps every click hold time.
	MaxClickSpeedMS uint16

	// SleepSlice is the longest uninterrupted sleep.
	SleepSlice time.Duration

	// Step is the nominal interpolation step.
	Step time.Duration

	// MaxSteps bounds the number of interpolation steps per move.
	MaxSteps int
}

// DefaultConfig returns the standard playback timing.
func DefaultConfig() Config {
	return Config{
		DefaultMoveMS:       150,
		UpMoveMS:            250,
		MaxMoveMS:           500,
		DefaultClickSpeedMS: 20,
		MaxClickSpeedMS:     100,
		SleepSlice:          10 * time.Millisecond,
		Step:                10 * time.Millisecond,
		MaxSteps:            60,
	}
}

// Result describes a finished run.
type Result struct {
	RunID string
	State State

	// Err is nil for finished runs and ErrCancelled for stopped ones.
	Err error

	// Completed is the number of rows fully executed.
	Completed int

	Duration time.Duration
}

// Status returns the status line shown for the result.
func (r Result) Status() string {
	switch r.State {
	case StateFinished:
		return "Playback finished"
	case StateCancelled:
		return "Playback stopped."
	default:
		return fmt.Sprintf("Playback error: %v", r.Err)
	}
}

// Run is an immutable snapshot prepared for playback.
type Run struct {
	ID string

	// Entries is the materialized clone the engine executes.
	Entries []timeline.Entry

	// Rows maps an index in Entries back to the source row.
	Rows timeline.RowMap

	Control *Control
}

// NewRun materializes a deep copy of entries so the source can keep being
// edited while the run executes.
func NewRun(entries []timeline.Entry) *Run {
	compact, rows := timeline.Materialize(entries)
	return &Run{
		ID:      uuid.NewString(),
		Entries: compact,
		Rows:    rows,
		Control: NewControl(),
	}
}

// ActiveRow returns the source row currently executing.
func (r *Run) ActiveRow() (int, bool) {
	i, ok := r.Control.Progress()
	if !ok {
		return 0, false
	}
	return r.Rows.Original(i)
}

// Engine executes runs against a pointer.
type Engine struct {
	Pointer  platform.Pointer
	Cursor   platform.CursorReader
	Resolver *target.Resolver
	Clock    platform.Clock
	Config   Config
	Logger   Logger

	// OnPrimitive, when set, is called after every injected primitive.
	OnPrimitive func()
}

// NewEngine creates an engine over a backend with default timing.
func NewEngine(b platform.Backend, clock platform.Clock, logger Logger) *Engine {
	if clock == nil {
		clock = platform.SystemClock{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Engine{
		Pointer:  b,
		Cursor:   b,
		Resolver: target.NewResolver(b, clock),
		Clock:    clock,
		Config:   DefaultConfig(),
		Logger:   logger,
	}
}

// runner holds per-run mutable state.
type runner struct {
	e       *Engine
	ctl     *Control
	current *timeline.Point
	found   target.State
}

// Execute plays run to completion, failure or cancellation.
func (e *Engine) Execute(run *Run) Result {
	if e.Logger == nil {
		e.Logger = nopLogger{}
	}
	started := e.Clock.Now()
	r := &runner{e: e, ctl: run.Control}
	if e.Cursor != nil {
		if p, ok := e.Cursor.CursorPos(); ok {
			r.current = &p
		}
	}

	e.Logger.Info("playback run %s started with %d rows", run.ID, len(run.Entries))

	res := Result{RunID: run.ID, State: StateFinished}
	for i, entry := range run.Entries {
		run.Control.SetProgress(i)
		if err := r.step(entry); err != nil {
			res.Err = err
			if errors.Is(err, ErrCancelled) || errors.Is(err, target.ErrCancelled) {
				res.State = StateCancelled
				res.Err = ErrCancelled
			} else {
				res.State = StateFailed
			}
			break
		}
		res.Completed++
	}
	if res.State == StateFinished {
		run.Control.SetProgress(timeline.Done)
	}
	res.Duration = e.Clock.Now().Sub(started)

	switch res.State {
	case StateFailed:
		e.Logger.Warn("playback run %s failed at row %d: %v", run.ID, res.Completed, res.Err)
	default:
		e.Logger.Info("playback run %s %s after %d rows in %v", run.ID, res.State, res.Completed, res.Duration)
	}
	return res
}

func (r *runner) step(entry timeline.Entry) error {
	if r.ctl.Cancelled() {
		return ErrCancelled
	}

	cfg := r.e.Config
	meta := entry.Meta
	_, isWait := entry.Action.(timeline.Wait)
	_, isUp := entry.Action.(timeline.ButtonUp)

	clickSpeed := cfg.DefaultClickSpeedMS
	moveMS := cfg.DefaultMoveMS
	if isUp {
		moveMS = cfg.UpMoveMS
	}
	if meta != nil {
		clickSpeed = meta.ClickSpeedMS
		moveMS = meta.MoveMS
		if meta.WaitMS > 0 && !isWait {
			if err := r.sleep(ms(uint64(meta.WaitMS))); err != nil {
				return err
			}
		}
	}
	clickSpeed = min(clickSpeed, cfg.MaxClickSpeedMS)
	moveMS = min(moveMS, cfg.MaxMoveMS)
	move := ms(uint64(moveMS))

	switch a := entry.Action.(type) {
	case timeline.Move:
		return r.moveTo(timeline.Pt(a.X, a.Y), move)

	case timeline.MovesPolyline:
		for _, p := range a.Points {
			if err := r.moveTo(p, move); err != nil {
				return err
			}
		}
		return nil

	case timeline.Wait:
		return r.sleep(ms(a.MS))

	case timeline.FindTarget:
		p, err := r.e.Resolver.Resolve(r.ctl, target.ForFindTarget(a, entry.Pos), &r.found)
		if err != nil {
			return err
		}
		return r.moveTo(p, move)

	case timeline.ButtonDown:
		if err := r.approach(entry, a.Image, move); err != nil {
			return err
		}
		if err := r.checkpoint(); err != nil {
			return err
		}
		return r.primitive(func() error { return r.e.Pointer.Down(a.Button) })

	case timeline.ButtonUp:
		if err := r.approach(entry, a.Image, move); err != nil {
			return err
		}
		if err := r.checkpoint(); err != nil {
			return err
		}
		return r.primitive(func() error { return r.e.Pointer.Up(a.Button) })

	case timeline.ButtonClick:
		if err := r.approach(entry, a.Image, move); err != nil {
			return err
		}
		speed := ms(uint64(clickSpeed))
		if err := r.click(a.Button, speed); err != nil {
			return err
		}
		if meta.ModeFor(a.Button) == timeline.EdgeDouble {
			r.pause(speed)
			return r.click(a.Button, speed)
		}
		return nil

	case nil:
		return timeline.ErrNilAction
	}
	return fmt.Errorf("unsupported action %s", entry.Kind())
}

// approach moves the pointer to the click position of a button row,
// resolving it by image search when the metadata asks for it.
func (r *runner) approach(entry timeline.Entry, image []byte, move time.Duration) error {
	meta := entry.Meta
	if meta == nil {
		return ErrMissingClickMeta
	}

	pos := entry.Pos
	if meta.UseFindImage {
		if len(image) == 0 {
			return ErrMissingTargetImage
		}
		p, err := r.e.Resolver.Resolve(r.ctl, r.e.Resolver.ForClick(*meta, image, entry.Pos), &r.found)
		if err != nil {
			return err
		}
		pos = &p
	}
	if pos == nil {
		return nil
	}
	return r.moveTo(*pos, move)
}

// click issues one down/up cycle held for speed. Once the down is injected
// the up always follows.
func (r *runner) click(b timeline.Button, speed time.Duration) error {
	if err := r.checkpoint(); err != nil {
		return err
	}
	if err := r.primitive(func() error { return r.e.Pointer.Down(b) }); err != nil {
		return err
	}
	r.pause(speed)
	return r.primitive(func() error { return r.e.Pointer.Up(b) })
}

// moveTo interpolates the pointer from its last known position to p.
func (r *runner) moveTo(p timeline.Point, total time.Duration) error {
	start := p
	switch {
	case r.current != nil:
		start = *r.current
	case r.e.Cursor != nil:
		if live, ok := r.e.Cursor.CursorPos(); ok {
			start = live
		}
	}
	if start == p {
		r.current = &p
		return nil
	}

	if total <= 0 {
		if err := r.checkpoint(); err != nil {
			return err
		}
		if err := r.primitive(func() error { return r.e.Pointer.MoveTo(clampOrigin(p)) }); err != nil {
			return err
		}
		r.current = &p
		return nil
	}

	steps := r.e.steps(total)
	stepDur := max(total/time.Duration(steps), time.Millisecond)
	for i := 1; i <= steps; i++ {
		if err := r.checkpoint(); err != nil {
			return err
		}
		t := float64(i) / float64(steps)
		next := timeline.Pt(
			start.X+int(float64(p.X-start.X)*t),
			start.Y+int(float64(p.Y-start.Y)*t),
		)
		if err := r.primitive(func() error { return r.e.Pointer.MoveTo(clampOrigin(next)) }); err != nil {
			return err
		}
		r.e.Clock.Sleep(stepDur)
	}
	r.current = &p
	return r.checkpoint()
}

// steps returns the interpolation step count for a move of total.
func (e *Engine) steps(total time.Duration) int {
	step := e.Config.Step
	if step <= 0 {
		step = 10 * time.Millisecond
	}
	n := int((total + step - 1) / step)
	return max(1, min(n, e.Config.MaxSteps))
}

// sleep waits for d in slices, returning ErrCancelled as soon as the flag
// is observed.
func (r *runner) sleep(d time.Duration) error {
	slice := r.e.Config.SleepSlice
	if slice <= 0 {
		slice = 10 * time.Millisecond
	}
	for d > 0 {
		if err := r.checkpoint(); err != nil {
			return err
		}
		s := min(d, slice)
		r.e.Clock.Sleep(s)
		d -= s
	}
	return r.checkpoint()
}

// checkpoint reports ErrCancelled once the run's flag is set.
func (r *runner) checkpoint() error {
	if r.ctl.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// pause sleeps without observing cancellation. It only separates the
// halves of a click.
func (r *runner) pause(d time.Duration) {
	if d > 0 {
		r.e.Clock.Sleep(d)
	}
}

func (r *runner) primitive(fn func() error) error {
	if err := fn(); err != nil {
		return fmt.Errorf("input injection failed: %w", err)
	}
	if r.e.OnPrimitive != nil {
		r.e.OnPrimitive()
	}
	return nil
}

func ms(v uint64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func clampOrigin(p timeline.Point) timeline.Point {
	return timeline.Pt(max(p.X, 0), max(p.Y, 0))
}
