package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Player runs at most one playback at a time.
type Player struct {
	engine  *Engine
	mu      sync.Mutex
	playing atomic.Bool
	active  *Run
}

// NewPlayer creates a player that executes runs on engine.
func NewPlayer(engine *Engine) *Player {
	return &Player{engine: engine}
}

// Engine returns the engine runs execute on.
func (p *Player) Engine() *Engine {
	return p.engine
}

// Play executes entries synchronously. Cancelling ctx cancels the run.
// Returns ErrEmptyTimeline or ErrAlreadyPlaying without starting a run.
func (p *Player) Play(ctx context.Context, entries []timeline.Entry) (Result, error) {
	run, err := p.begin(entries)
	if err != nil {
		return Result{}, err
	}
	defer p.end()

	stop := context.AfterFunc(ctx, run.Control.Cancel)
	defer stop()

	return p.engine.Execute(run), nil
}

// Start executes entries in a goroutine and returns immediately.
// The returned channel receives exactly one Result and is then closed.
// Any error during setup is returned immediately.
func (p *Player) Start(ctx context.Context, entries []timeline.Entry) (*Run, <-chan Result, error) {
	run, err := p.begin(entries)
	if err != nil {
		return nil, nil, err
	}

	done := make(chan Result, 1)
	go func() {
		stop := context.AfterFunc(ctx, run.Control.Cancel)
		res := p.engine.Execute(run)
		stop()
		p.end()

		done <- res
		close(done)
	}()

	return run, done, nil
}

// IsPlaying returns true while a run is executing.
func (p *Player) IsPlaying() bool {
	return p.playing.Load()
}

// Active returns the executing run, or nil.
func (p *Player) Active() *Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Cancel stops the executing run.
// Safe to call even if nothing is playing.
func (p *Player) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil {
		p.active.Control.Cancel()
	}
}

func (p *Player) begin(entries []timeline.Entry) (*Run, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTimeline
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing.Load() {
		return nil, ErrAlreadyPlaying
	}
	run := NewRun(entries)
	p.active = run
	p.playing.Store(true)
	return run, nil
}

func (p *Player) end() {
	p.mu.Lock()
	p.active = nil
	p.mu.Unlock()
	p.playing.Store(false)
}
