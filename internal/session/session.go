package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/clickstorm/internal/editor"
	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/playback"
	"github.com/dshills/clickstorm/internal/recorder"
	"github.com/dshills/clickstorm/internal/script"
	"github.com/dshills/clickstorm/internal/storage"
	"github.com/dshills/clickstorm/internal/target"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Status lines reported by session commands.
const (
	StatusRecording       = "Recording..."
	StatusPlaying         = "Playing..."
	StatusPlaybackStopped = "Playback stopped."
	StatusStillStopping   = "Playback still stopping"
	StatusCleared         = "Cleared"
	StatusBusy            = "Stop recording/playback first"
	StatusBusyLoading     = "Stop recording/playback before loading"
)

// ErrNoBackend is returned by New without a backend.
var ErrNoBackend = errors.New("session requires a backend")

// ErrBusy is returned by edits attempted outside idle mode.
var ErrBusy = errors.New(StatusBusy)

// Mode is the session's exclusive activity.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeRecording
	ModePlaying
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRecording:
		return "recording"
	case ModePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Logger is the logging surface the session and its components need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Settings are the tunables a configuration reload can replace.
type Settings struct {
	Recorder recorder.Config
	Playback playback.Config
	Target   target.Limits
	Script   script.Config

	// ScriptTimeout bounds one script run. Zero disables it.
	ScriptTimeout time.Duration

	// Path is the default timeline file for Save and Load.
	Path string
}

// DefaultSettings returns the package defaults.
func DefaultSettings() Settings {
	return Settings{
		Recorder: recorder.DefaultConfig(),
		Playback: playback.DefaultConfig(),
		Target:   target.DefaultLimits(),
		Script:   script.DefaultConfig(),
		Path:     storage.DefaultPath,

		ScriptTimeout: script.DefaultTimeout,
	}
}

// Options configures a Session.
type Options struct {
	Backend  platform.Backend
	Clock    platform.Clock
	Logger   Logger

	// Settings are the initial tunables. The zero value means
	// DefaultSettings.
	Settings Settings

	// Notifier receives session changes. Nil creates a synchronous one.
	Notifier *Notifier
}

// Session owns one timeline and the recorder and player working on it.
//
// All methods are safe for concurrent use. Observers are notified after the
// session lock is released, so they may call back into the session.
type Session struct {
	mu sync.Mutex

	backend  platform.Backend
	rec      *recorder.Recorder
	player   *playback.Player
	editor   *editor.Editor
	logger   Logger
	notifier *Notifier

	settings Settings
	pending  *Settings

	entries  []timeline.Entry
	mode     Mode
	status   string
	selected int
	draft    editor.Draft

	run         *playback.Run
	done        <-chan playback.Result
	activeRow   int
	scrollRow   int
	hasScrolled bool

	queued []Change
}

// New creates an idle session with an empty timeline.
func New(opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = platform.SystemClock{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier()
	}
	if opts.Settings == (Settings{}) {
		opts.Settings = DefaultSettings()
	}

	engine := playback.NewEngine(opts.Backend, clock, logger)
	engine.Config = opts.Settings.Playback
	engine.Resolver.Limits = opts.Settings.Target

	return &Session{
		backend:   opts.Backend,
		rec:       recorder.New(opts.Settings.Recorder, clock, opts.Backend, logger),
		player:    playback.NewPlayer(engine),
		editor:    editor.New(opts.Backend),
		logger:    logger,
		notifier:  notifier,
		settings:  opts.Settings,
		entries:   []timeline.Entry{},
		selected:  editor.NoSelection,
		draft:     editor.NewDraft(),
		activeRow: timeline.Done,
	}, nil
}

// Notifier returns the notifier session changes are published on.
func (s *Session) Notifier() *Notifier {
	return s.notifier
}

// Player returns the session's player.
func (s *Session) Player() *playback.Player {
	return s.player
}

// unlock releases the session lock and then publishes queued changes.
func (s *Session) unlock() {
	changes := s.queued
	s.queued = nil
	s.mu.Unlock()

	for _, c := range changes {
		s.notifier.Notify(c)
	}
}

func (s *Session) setStatus(status string) {
	if status == s.status {
		return
	}
	s.queued = append(s.queued, Change{Kind: ChangeStatus, Old: s.status, New: status})
	s.status = status
}

func (s *Session) setMode(m Mode) {
	if m == s.mode {
		return
	}
	s.queued = append(s.queued, Change{Kind: ChangeMode, Old: s.mode, New: m})
	s.mode = m
}

func (s *Session) setEntries(entries []timeline.Entry) {
	old := len(s.entries)
	s.entries = entries
	s.queued = append(s.queued, Change{Kind: ChangeTimeline, Old: old, New: len(entries)})
}

func (s *Session) setSelected(i int) {
	if i == s.selected {
		return
	}
	s.queued = append(s.queued, Change{Kind: ChangeSelection, Old: s.selected, New: i})
	s.selected = i
}

func (s *Session) setActiveRow(i int) {
	if i == s.activeRow {
		return
	}
	s.queued = append(s.queued, Change{Kind: ChangeActiveRow, Old: s.activeRow, New: i})
	s.activeRow = i
}

// ==== Accessors ====

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Status returns the current status line.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Entries returns a copy of the timeline.
func (s *Session) Entries() []timeline.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeline.Clone(s.entries)
}

// Len returns the number of rows in the timeline.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Rows renders the timeline as label and detail columns.
func (s *Session) Rows() (labels, details []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return timeline.DescribeAll(s.entries)
}

// Selected returns the selected row or editor.NoSelection.
func (s *Session) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// ActiveRow returns the row playback is executing. ok is false when no run
// is active or the run has not reached its first row.
func (s *Session) ActiveRow() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRow, s.activeRow != timeline.Done
}

// ScrollRow returns the row the list should keep in view during playback.
func (s *Session) ScrollRow() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollRow, s.hasScrolled
}

// Settings returns the applied settings.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Draft returns a copy of the row editor state.
func (s *Session) Draft() editor.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draft
	d.Patch = append([]byte(nil), s.draft.Patch...)
	return d
}

// SetDraft replaces the row editor state.
func (s *Session) SetDraft(d editor.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = d
}

// ==== Recording ====

// StartRecording clears the timeline and starts a recording session seeded
// with the live cursor position. Ignored while playing.
func (s *Session) StartRecording() string {
	s.mu.Lock()
	defer s.unlock()

	if s.mode == ModePlaying {
		return s.status
	}

	var pos *timeline.Point
	if p, ok := s.backend.CursorPos(); ok {
		pos = &p
	}
	s.setEntries([]timeline.Entry{})
	s.setSelected(editor.NoSelection)
	id := s.rec.Start(pos)
	s.logger.Debug("session: recording %s", id)

	s.setMode(ModeRecording)
	s.setStatus(StatusRecording)
	return s.status
}

// StopRecording ends the recording session, flushing pending clicks. While
// playing it cancels the run instead.
func (s *Session) StopRecording() string {
	s.mu.Lock()
	defer s.unlock()

	switch s.mode {
	case ModePlaying:
		s.cancelLocked()
	case ModeRecording:
		s.setEntries(s.rec.Stop(s.entries))
		s.setMode(ModeIdle)
		s.setStatus(fmt.Sprintf("Stopped. %d events recorded.", len(s.entries)))
		s.applyPendingLocked()
	}
	return s.status
}

// Tick feeds one input sample to the recorder. Ignored unless recording.
func (s *Session) Tick(sample recorder.Sample) {
	s.mu.Lock()
	defer s.unlock()

	if s.mode != ModeRecording {
		return
	}
	before := len(s.entries)
	s.entries = s.rec.Tick(sample, s.entries)
	if len(s.entries) != before {
		s.queued = append(s.queued, Change{Kind: ChangeTimeline, Old: before, New: len(s.entries)})
	}
}

// Poll reads a sample from the backend and feeds it to the recorder.
func (s *Session) Poll() {
	if s.Mode() != ModeRecording {
		return
	}
	s.Tick(recorder.ReadSample(s.backend, s.backend))
}

// ==== Playback ====

// StartPlayback plays a snapshot of the timeline in the background. Ignored
// while recording or when the timeline is empty. Cancelling ctx cancels the
// run.
func (s *Session) StartPlayback(ctx context.Context) string {
	s.mu.Lock()
	defer s.unlock()

	if s.mode == ModeRecording || len(s.entries) == 0 {
		return s.status
	}
	if s.mode == ModePlaying {
		return s.status
	}
	if s.player.IsPlaying() {
		// A cancelled run has not returned from its last suspension yet.
		s.setStatus(StatusStillStopping)
		return s.status
	}

	run, done, err := s.player.Start(ctx, s.entries)
	if err != nil {
		s.setStatus(fmt.Sprintf("Playback error: %v", err))
		return s.status
	}
	s.run = run
	s.done = done
	s.hasScrolled = false
	s.setActiveRow(timeline.Done)
	s.setMode(ModePlaying)
	s.setStatus(StatusPlaying)
	return s.status
}

// CancelPlayback stops the active run. The session returns to idle at once;
// the run's late result is ignored.
func (s *Session) CancelPlayback() string {
	s.mu.Lock()
	defer s.unlock()

	if s.mode == ModePlaying {
		s.cancelLocked()
	}
	return s.status
}

func (s *Session) cancelLocked() {
	if s.run != nil {
		s.run.Control.Cancel()
	}
	s.run = nil
	s.hasScrolled = false
	s.setActiveRow(timeline.Done)
	s.setMode(ModeIdle)
	s.setStatus(StatusPlaybackStopped)
}

// Done returns the channel the active run delivers its result on, or nil.
// The channel of a cancelled run stays readable until PosTick drains it.
func (s *Session) Done() <-chan playback.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// PlaybackFinished records the result of a run. Results of runs other than
// the active one are ignored.
func (s *Session) PlaybackFinished(res playback.Result) string {
	s.mu.Lock()
	defer s.unlock()

	if s.run == nil || res.RunID != s.run.ID {
		if s.run == nil {
			s.done = nil
		}
		s.logger.Debug("session: ignoring result of run %s", res.RunID)
		s.applyPendingLocked()
		return s.status
	}

	s.run = nil
	s.done = nil
	s.hasScrolled = false
	s.setActiveRow(timeline.Done)
	s.setMode(ModeIdle)
	s.setStatus(res.Status())
	s.applyPendingLocked()
	return s.status
}

// PosTick publishes playback progress. It maps the engine's position to the
// source row, snaps the scroll row when the active row has moved three or
// more rows away, and completes a finished run.
func (s *Session) PosTick() {
	if done := s.Done(); done != nil {
		select {
		case res, ok := <-done:
			if ok {
				s.PlaybackFinished(res)
				return
			}
		default:
		}
	}

	s.mu.Lock()
	defer s.unlock()

	if s.mode != ModePlaying || s.run == nil {
		return
	}
	row, ok := s.run.ActiveRow()
	if !ok {
		return
	}
	s.setActiveRow(row)
	if !s.hasScrolled || abs(row-s.scrollRow) >= 3 {
		s.scrollRow = row
		s.hasScrolled = true
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Clear empties the timeline. Ignored while playing.
func (s *Session) Clear() string {
	s.mu.Lock()
	defer s.unlock()

	if s.mode == ModePlaying {
		return s.status
	}
	s.setEntries([]timeline.Entry{})
	s.setSelected(editor.NoSelection)
	s.setStatus(StatusCleared)
	return s.status
}

// ==== Editing ====

// edit runs fn on the timeline when idle and adopts its result.
func (s *Session) edit(fn func(entries []timeline.Entry) (editor.Result, error)) (string, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.mode != ModeIdle {
		s.setStatus(StatusBusy)
		return s.status, ErrBusy
	}
	res, err := fn(s.entries)
	if err != nil {
		s.setStatus(err.Error())
		return s.status, err
	}
	s.setEntries(res.Entries)
	s.setSelected(res.Selected)
	s.setStatus(res.Status)
	return s.status, nil
}

// Apply inserts the draft's rows or applies them to the selected row.
func (s *Session) Apply() (string, error) {
	return s.edit(func(entries []timeline.Entry) (editor.Result, error) {
		return s.editor.Apply(entries, s.selected, s.draft)
	})
}

// InsertBelow inserts the draft's rows after the selected row.
func (s *Session) InsertBelow() (string, error) {
	return s.edit(func(entries []timeline.Entry) (editor.Result, error) {
		return s.editor.InsertBelow(entries, s.selected, s.draft)
	})
}

// Delete removes row i.
func (s *Session) Delete(i int) (string, error) {
	return s.edit(func(entries []timeline.Entry) (editor.Result, error) {
		return s.editor.Delete(entries, i)
	})
}

// InsertWait appends a Wait row.
func (s *Session) InsertWait(w editor.WaitDraft) (string, error) {
	return s.edit(func(entries []timeline.Entry) (editor.Result, error) {
		return s.editor.InsertWait(entries, w), nil
	})
}

// InsertFindTarget appends a FindTarget row. Without a capture position the
// row is placed at the live cursor.
func (s *Session) InsertFindTarget(f editor.FindTargetDraft) (string, error) {
	var current *timeline.Point
	if p, ok := s.backend.CursorPos(); ok {
		current = &p
	}
	return s.edit(func(entries []timeline.Entry) (editor.Result, error) {
		return s.editor.InsertFindTarget(entries, f, current)
	})
}

// Select selects row i and loads it into the draft. Pass editor.NoSelection
// to clear the selection.
func (s *Session) Select(i int) (string, error) {
	s.mu.Lock()
	defer s.unlock()

	if i == editor.NoSelection {
		s.setSelected(editor.NoSelection)
		return s.status, nil
	}
	d, err := s.editor.Select(s.entries, i, s.draft)
	if err != nil {
		s.setStatus(err.Error())
		return s.status, err
	}
	s.draft = d
	s.setSelected(i)
	s.setStatus(fmt.Sprintf("Selected row %d", i))
	return s.status, nil
}

// CaptureCursor fills the draft from the live cursor. Only allowed when idle.
func (s *Session) CaptureCursor() (string, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.mode != ModeIdle {
		s.setStatus(StatusBusy)
		return s.status, ErrBusy
	}
	p, ok := s.backend.CursorPos()
	if !ok {
		s.setStatus("GET (X,Y) cancelled")
		return s.status, platform.ErrCaptureUnavailable
	}
	s.editor.Capture(&s.draft, p)
	s.setStatus(fmt.Sprintf("Captured %s click at %s", s.draft.Target, p))
	return s.status, nil
}

// ==== Files ====

func (s *Session) resolvePath(path string) string {
	if path = strings.TrimSpace(path); path != "" {
		return path
	}
	return s.settings.Path
}

// Save writes the materialized timeline to path, or to the configured path
// when path is empty.
func (s *Session) Save(path string) (string, error) {
	s.mu.Lock()
	path = s.resolvePath(path)
	entries := timeline.Clone(s.entries)
	s.mu.Unlock()

	status, err := storage.Save(path, entries)

	s.mu.Lock()
	defer s.unlock()
	if err != nil {
		s.setStatus(err.Error())
		return s.status, err
	}
	s.logger.Info("session: saved %d rows to %s", len(entries), path)
	s.setStatus(status)
	return s.status, nil
}

// Load replaces the timeline with the file at path. Rejected unless idle; a
// failed load leaves the timeline untouched.
func (s *Session) Load(path string) (string, error) {
	return s.replace(func(path string) ([]timeline.Entry, error) {
		return storage.Load(path)
	}, path)
}

// LoadScript replaces the timeline with the rows built by the Lua script at
// path.
func (s *Session) LoadScript(ctx context.Context, path string) (string, error) {
	return s.replace(func(path string) ([]timeline.Entry, error) {
		settings := s.Settings()
		return script.LoadFile(ctx, path, settings.Script,
			script.WithLogger(s.logger), script.WithTimeout(settings.ScriptTimeout))
	}, path)
}

func (s *Session) replace(load func(path string) ([]timeline.Entry, error), path string) (string, error) {
	s.mu.Lock()
	if s.mode != ModeIdle {
		s.setStatus(StatusBusyLoading)
		status := s.status
		s.unlock()
		return status, ErrBusy
	}
	path = s.resolvePath(path)
	s.mu.Unlock()

	if path == "" {
		return s.fail(storage.ErrNoPath)
	}
	entries, err := load(path)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	defer s.unlock()
	if s.mode != ModeIdle {
		s.setStatus(StatusBusyLoading)
		return s.status, ErrBusy
	}
	s.setEntries(entries)
	s.setSelected(editor.NoSelection)
	s.setStatus(fmt.Sprintf("Loaded %d events", len(entries)))
	s.logger.Info("session: loaded %d rows from %s", len(entries), path)
	return s.status, nil
}

func (s *Session) fail(err error) (string, error) {
	s.mu.Lock()
	defer s.unlock()
	s.setStatus(err.Error())
	return s.status, err
}

// ==== Configuration ====

// ApplyConfig replaces the session settings. While recording or playing the
// change is deferred until the session next becomes idle.
func (s *Session) ApplyConfig(settings Settings) {
	s.mu.Lock()
	defer s.unlock()

	if s.mode != ModeIdle || s.player.IsPlaying() {
		s.pending = &settings
		s.logger.Info("session: config change deferred until idle")
		return
	}
	s.applyLocked(settings)
}

func (s *Session) applyPendingLocked() {
	if s.pending == nil || s.mode != ModeIdle || s.player.IsPlaying() {
		return
	}
	settings := *s.pending
	s.pending = nil
	s.applyLocked(settings)
}

func (s *Session) applyLocked(settings Settings) {
	s.settings = settings
	s.rec.SetConfig(settings.Recorder)
	s.player.Engine().Config = settings.Playback
	s.player.Engine().Resolver.Limits = settings.Target
	s.logger.Info("session: config applied")
}

// HasPendingConfig returns true while a config change waits for idle.
func (s *Session) HasPendingConfig() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}
