// Package app wires the clickstorm session to a desktop backend, the
// configuration file and the command console, and runs their loops.
package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/clickstorm/internal/config"
	"github.com/dshills/clickstorm/internal/config/watcher"
	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/session"
)

// Application is the central coordinator for all clickstorm components.
type Application struct {
	mu  sync.RWMutex
	cfg *config.Config

	backend platform.Backend
	session *session.Session
	logger  *Logger
	metrics *Metrics

	subs []*session.Subscription

	// State
	running  atomic.Bool
	quit     chan struct{}
	quitOnce sync.Once

	opts Options
}

// Options configures the application.
type Options struct {
	// Config is the loaded configuration. Nil uses config.Default().
	Config *config.Config

	// ConfigPath is the configuration file, re-read by Reload.
	ConfigPath string

	// LoaderOptions are applied on every reload, so command line overrides
	// survive a change to the file.
	LoaderOptions []config.LoaderOption

	// Watch reloads the configuration when ConfigPath changes.
	Watch bool

	Backend platform.Backend

	// Clock drives recording and playback. Nil uses the system clock.
	Clock platform.Clock

	Logger  *Logger
	Metrics *Metrics

	// Input supplies console commands, one per line. Nil disables the
	// console; EOF quits.
	Input io.Reader

	// Output receives console replies. Nil discards them.
	Output io.Writer

	// Timeline is loaded before the loops start when set.
	Timeline string

	// Play starts playback once the loops run and quits when it ends.
	Play bool
}

// New creates a new Application with the given options.
func New(opts Options) (*Application, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	app := &Application{
		cfg:     opts.Config,
		backend: opts.Backend,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		quit:    make(chan struct{}),
		opts:    opts,
	}
	app.logger.SetLevel(ParseLogLevel(opts.Config.Logging.Level))

	s, err := session.New(session.Options{
		Backend:  opts.Backend,
		Clock:    opts.Clock,
		Logger:   app.logger.WithComponent("session"),
		Settings: SettingsFrom(opts.Config),
	})
	if err != nil {
		return nil, &InitError{Component: "session", Err: err}
	}
	app.session = s
	app.subscribe()
	app.bindKeys()

	if opts.Timeline != "" {
		if _, err := s.Load(opts.Timeline); err != nil {
			return nil, &InitError{Component: "timeline", Err: err}
		}
	}
	return app, nil
}

// SettingsFrom converts a configuration into session settings.
func SettingsFrom(cfg *config.Config) session.Settings {
	return session.Settings{
		Recorder:      cfg.RecorderConfig(),
		Playback:      cfg.PlaybackConfig(),
		Target:        cfg.TargetLimits(),
		Script:        cfg.ScriptConfig(),
		ScriptTimeout: cfg.ScriptTimeout(),
		Path:          cfg.Paths.Timeline,
	}
}

// subscribe logs session changes, counts finished runs and keeps the
// backend panel current.
func (app *Application) subscribe() {
	n := app.session.Notifier()
	log := app.logger.WithComponent("session")

	app.subs = append(app.subs,
		n.SubscribeKind(session.ChangeStatus, func(c session.Change) {
			log.Debug("status: %v", c.New)
		}),
		n.SubscribeKind(session.ChangeMode, func(c session.Change) {
			log.Info("mode %v -> %v", c.Old, c.New)
			if c.Old == session.ModePlaying && c.New == session.ModeIdle {
				app.metrics.RecordRun()
				if app.opts.Play {
					app.Quit()
				}
			}
		}),
		n.Subscribe(func(session.Change) {
			app.redraw()
		}),
	)
}

// Run starts the application loops and blocks until ctx is done, Quit is
// called or a loop fails.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	cfg := app.Config()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.every(ctx, cfg.TickInterval(), app.pollInput)
		return nil
	})
	g.Go(func() error {
		app.every(ctx, cfg.PosTickInterval(), app.pollPlayback)
		return nil
	})
	g.Go(func() error {
		select {
		case <-app.quit:
			return ErrQuit
		case <-ctx.Done():
			return nil
		}
	})

	if r, ok := app.backend.(runner); ok {
		g.Go(func() error {
			err := r.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				return NewComponentError("backend", err)
			}
			return ErrQuit
		})
	}

	if app.opts.Watch && app.opts.ConfigPath != "" {
		w, err := watcher.New(app.opts.ConfigPath, func(watcher.Event) {
			_ = app.Reload()
		}, watcher.WithErrorHandler(func(err error) {
			app.logger.WithComponent("watcher").Warn("%v", err)
		}))
		if err != nil {
			app.logger.WithComponent("watcher").Warn("not watching %s: %v", app.opts.ConfigPath, err)
		} else {
			g.Go(func() error {
				if err := w.Run(ctx); err != nil {
					return NewComponentError("watcher", err)
				}
				return nil
			})
		}
	}

	if app.opts.Input != nil {
		g.Go(func() error {
			return app.console(ctx, app.opts.Input, app.opts.Output)
		})
	}

	if app.opts.Play {
		if status := app.session.StartPlayback(ctx); status != session.StatusPlaying {
			app.logger.Warn("playback did not start: %s", status)
			app.Quit()
		}
	}

	app.redraw()
	err := g.Wait()
	app.session.CancelPlayback()

	if errors.Is(err, ErrQuit) {
		return nil
	}
	return err
}

// runner is implemented by backends with their own event loop.
type runner interface {
	Run(ctx context.Context) error
}

// every calls fn each interval until ctx is done.
func (app *Application) every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (app *Application) pollInput() {
	timer := StartTimer()
	app.session.Poll()
	app.metrics.RecordTick(timer.Elapsed())
}

func (app *Application) pollPlayback() {
	app.session.PosTick()
	app.metrics.RecordPosTick()
}

// Quit asks Run to return. It is safe to call more than once.
func (app *Application) Quit() {
	app.quitOnce.Do(func() { close(app.quit) })
}

// Reload re-reads the configuration file and applies it. While recording or
// playing, the session defers the new settings until it is idle.
func (app *Application) Reload() error {
	log := app.logger.WithComponent("config")

	cfg, err := config.NewLoader(app.opts.ConfigPath, app.opts.LoaderOptions...).Load()
	app.metrics.RecordReload(err)
	if err != nil {
		log.Warn("reload failed: %v", err)
		return NewOperationError("reload", app.opts.ConfigPath, err)
	}

	app.mu.Lock()
	app.cfg = cfg
	app.mu.Unlock()

	app.logger.SetLevel(ParseLogLevel(cfg.Logging.Level))
	app.session.ApplyConfig(SettingsFrom(cfg))
	if app.session.HasPendingConfig() {
		log.Info("reloaded %s, applying when idle", app.opts.ConfigPath)
	} else {
		log.Info("reloaded %s", app.opts.ConfigPath)
	}
	return nil
}

// Close stops playback and releases the session and backend.
func (app *Application) Close() error {
	app.session.CancelPlayback()
	for _, sub := range app.subs {
		sub.Unsubscribe()
	}
	app.session.Notifier().Close()

	var errs ErrorList
	if err := app.backend.Close(); err != nil {
		errs.Add(NewComponentError("backend", err))
	}
	return errs.AsError()
}

// IsRunning returns true while Run is active.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the current configuration.
func (app *Application) Config() *config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Session returns the session.
func (app *Application) Session() *session.Session {
	return app.session
}

// Backend returns the desktop backend.
func (app *Application) Backend() platform.Backend {
	return app.backend
}

// Metrics returns the application's metrics instance.
func (app *Application) Metrics() *Metrics {
	return app.metrics
}

// InitError represents an initialization failure.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "failed to initialize " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
