package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds the execution of one script.
const DefaultTimeout = 5 * time.Second

// Errors for script execution.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrTimeout is returned when a script runs past its deadline.
	ErrTimeout = errors.New("script execution timeout")
)

// Error reports a script that failed to compile or run.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("script %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes Go callers;
// Lua code itself always runs on the calling goroutine.
type State struct {
	L *lua.LState

	mu      sync.Mutex
	timeout time.Duration
	logger  Logger
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithTimeout sets the execution deadline of each Run. Zero disables it.
func WithTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// WithLogger routes the script's print output to logger.
func WithLogger(logger Logger) StateOption {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewState creates a sandboxed Lua state with only the base, table, string
// and math libraries.
func NewState(opts ...StateOption) *State {
	s := &State{
		timeout: DefaultTimeout,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	s.installSandbox()
	return s
}

// openSafeLibraries opens the libraries that cannot reach the host.
//
// io, os, debug and package are never opened.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// installSandbox removes the loaders and redirects print to the logger.
func (s *State) installSandbox() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		s.logger.Info("script: %s", strings.Join(parts, "\t"))
		return 0
	}))
}

// Run compiles and executes src. name labels the chunk in error messages.
// Execution stops when ctx is done or the state's timeout elapses.
func (s *State) Run(ctx context.Context, name string, src io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	fn, err := s.L.Load(src, name)
	if err != nil {
		return &Error{Name: name, Err: err}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	s.L.Push(fn)
	if err := s.callWithRecovery(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return &Error{Name: name, Err: ErrTimeout}
			}
			return &Error{Name: name, Err: ctxErr}
		}
		return &Error{Name: name, Err: err}
	}
	return nil
}

// callWithRecovery calls the function on top of the stack, converting Go
// panics raised inside callbacks into errors.
func (s *State) callWithRecovery() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return s.L.PCall(0, 0, nil)
}

// RegisterFunc registers a Go function as a global Lua function.
func (s *State) RegisterFunc(name string, fn lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, s.L.NewFunction(fn))
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Further calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
