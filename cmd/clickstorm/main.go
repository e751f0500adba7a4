// Package main is the entry point for the Clickstorm macro recorder.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/clickstorm/internal/app"
	"github.com/dshills/clickstorm/internal/config"
	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/platform/sim"
	"github.com/dshills/clickstorm/internal/platform/term"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type flags struct {
	configPath string
	backend    string
	logLevel   string
	timeline   string
	play       bool
	watch      bool
	width      int
	height     int
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags()

	var loaderOpts []config.LoaderOption
	if f.logLevel != "" {
		loaderOpts = append(loaderOpts, config.WithOverride("logging.level", f.logLevel))
	}

	cfg, err := config.NewLoader(f.configPath, loaderOpts...).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open log file: %v\n", err)
		return 1
	}
	defer closeLog()
	app.SetLogger(logger)

	opts := app.Options{
		Config:        cfg,
		ConfigPath:    f.configPath,
		LoaderOptions: loaderOpts,
		Watch:         f.watch,
		Logger:        logger,
		Timeline:      f.timeline,
		Play:          f.play,
	}

	// Create desktop backend
	switch f.backend {
	case "term":
		t, err := term.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
			return 1
		}
		opts.Backend = t
	case "sim":
		opts.Backend = sim.New(f.width, f.height)
		opts.Input = os.Stdin
		opts.Output = os.Stdout
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown backend %q (must be sim or term)\n", f.backend)
		return 1
	}

	application, err := app.New(opts)
	if err != nil {
		closeBackend(opts.Backend)
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer func() {
		if err := application.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}()

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// newLogger builds the application logger. Logs go to the configured file,
// or to stderr when none is set.
func newLogger(cfg *config.Config) (*app.Logger, func(), error) {
	lc := app.DefaultLoggerConfig()
	lc.Level = app.ParseLogLevel(cfg.Logging.Level)

	closeFn := func() {}
	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		file, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		out = file
		closeFn = func() { _ = file.Close() }
	}
	lc.Output = out
	return app.NewLogger(lc), closeFn, nil
}

func closeBackend(b platform.Backend) {
	if err := b.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to close backend: %v\n", err)
	}
}

func parseFlags() flags {
	var f flags
	var showVersion bool
	var showHelp bool

	// Without a user config directory no file is loaded.
	defaultConfig, _ := config.DefaultPath()

	flag.StringVar(&f.configPath, "config", defaultConfig, "Path to configuration file")
	flag.StringVar(&f.configPath, "c", defaultConfig, "Path to configuration file (shorthand)")
	flag.StringVar(&f.backend, "backend", "sim", "Desktop backend (sim, term)")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.timeline, "file", "", "Timeline file to load at startup")
	flag.StringVar(&f.timeline, "f", "", "Timeline file to load at startup (shorthand)")
	flag.BoolVar(&f.play, "play", false, "Play the loaded timeline and exit")
	flag.BoolVar(&f.watch, "watch", false, "Reload the configuration file when it changes")
	flag.IntVar(&f.width, "width", 1920, "Simulated screen width")
	flag.IntVar(&f.height, "height", 1080, "Simulated screen height")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Clickstorm - mouse macro recorder and player\n\n")
		fmt.Fprintf(os.Stderr, "Usage: clickstorm [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  clickstorm                       Start with the simulated desktop console\n")
		fmt.Fprintf(os.Stderr, "  clickstorm -backend term         Record and play inside the terminal\n")
		fmt.Fprintf(os.Stderr, "  clickstorm -f macro.yaml -play   Play a saved timeline and exit\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Clickstorm %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch f.logLevel {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", f.logLevel)
		os.Exit(1)
	}

	if flag.NArg() > 0 && f.timeline == "" {
		f.timeline = flag.Arg(0)
	}
	return f
}
