// Package watcher provides file watching for configuration live reload.
//
// The watcher monitors a single configuration file for changes and calls a
// handler once a burst of modifications has settled. The file's directory is
// watched rather than the file itself so editors that save by renaming a
// temporary file over the original are still observed.
package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

// ErrWatcherClosed is returned when operating on a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Event represents a file change event.
type Event struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the operation that triggered the event.
	Op Operation

	// Time is when the event occurred.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates a new file was created.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called when a file change is detected.
type Handler func(event Event)

// ErrorHandler receives errors reported by the underlying watcher.
type ErrorHandler func(err error)

// Watcher monitors one file for changes.
type Watcher struct {
	mu sync.Mutex

	path    string
	dir     string
	handler Handler
	onError ErrorHandler

	fsw *fsnotify.Watcher

	debounce time.Duration
	timer    *time.Timer
	pending  *Event

	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce duration for rapid changes. Zero reports
// every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets the handler for watcher errors.
func WithErrorHandler(h ErrorHandler) Option {
	return func(w *Watcher) {
		w.onError = h
	}
}

// New creates a watcher for the file at path. The file need not exist yet,
// but its directory must.
func New(path string, handler Handler, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		handler:  handler,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Run delivers events until ctx is done or the watcher is closed. It returns
// nil in both cases.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.mu.Unlock()

	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// Close stops the watcher. It is safe to call Close multiple times.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = nil
	w.mu.Unlock()

	return w.fsw.Close()
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	op, ok := convertOp(ev.Op)
	if !ok {
		return
	}
	event := Event{Path: w.path, Op: op, Time: time.Now()}

	if w.debounce == 0 {
		w.handler(event)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = &event
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush reports the latest pending event.
func (w *Watcher) flush() {
	w.mu.Lock()
	event := w.pending
	w.pending = nil
	w.timer = nil
	closed := w.closed
	w.mu.Unlock()

	if event != nil && !closed {
		w.handler(*event)
	}
}

// convertOp maps an fsnotify operation to the most significant Operation.
// Chmod alone is not reported.
func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	default:
		return 0, false
	}
}
