package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dshills/clickstorm/internal/config/loader"
	"github.com/dshills/clickstorm/internal/playback"
	"github.com/dshills/clickstorm/internal/recorder"
	"github.com/dshills/clickstorm/internal/script"
	"github.com/dshills/clickstorm/internal/storage"
	"github.com/dshills/clickstorm/internal/target"
	"github.com/dshills/clickstorm/internal/timeline"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "CLICKSTORM_"

// FileName is the name of the configuration file.
const FileName = "config.toml"

// Sections lists the top-level tables of the configuration file.
var Sections = []string{"recorder", "playback", "target", "script", "logging", "paths"}

// Config is the complete clickstorm configuration.
type Config struct {
	Recorder RecorderSection `toml:"recorder"`
	Playback PlaybackSection `toml:"playback"`
	Target   TargetSection   `toml:"target"`
	Script   ScriptSection   `toml:"script"`
	Logging  LoggingSection  `toml:"logging"`
	Paths    PathsSection    `toml:"paths"`
}

// RecorderSection configures sampling and classification of input.
type RecorderSection struct {
	// TickMS is the input polling interval.
	TickMS int `toml:"tick_ms"`
	// PosTickMS is the progress polling interval.
	PosTickMS int `toml:"pos_tick_ms"`

	WaitMS         uint16 `toml:"wait_ms"`
	SplitPX        int    `toml:"split_px"`
	MaxHoldMS      int    `toml:"max_hold_ms"`
	ClickWindowMS  int    `toml:"click_window_ms"`
	PathMode       bool   `toml:"path_mode"`
	PathMinDeltaPX int    `toml:"path_min_delta_px"`
	PatchSize      uint32 `toml:"patch_size"`

	MoveBeforeClick bool `toml:"move_before_click"`

	// Replay metadata stored in recorded rows.
	ClickSpeedMS    uint16  `toml:"click_speed_ms"`
	MoveMS          uint16  `toml:"move_ms"`
	UseFindImage    bool    `toml:"use_find_image"`
	TargetPrecision float32 `toml:"target_precision"`
	TargetTimeoutMS uint64  `toml:"target_timeout_ms"`
}

// PlaybackSection configures replay timing.
type PlaybackSection struct {
	DefaultMoveMS       uint16 `toml:"default_move_ms"`
	UpMoveMS            uint16 `toml:"up_move_ms"`
	MaxMoveMS           uint16 `toml:"max_move_ms"`
	DefaultClickSpeedMS uint16 `toml:"default_click_speed_ms"`
	MaxClickSpeedMS     uint16 `toml:"max_click_speed_ms"`
	SleepSliceMS        int    `toml:"sleep_slice_ms"`
	StepMS              int    `toml:"step_ms"`
	MaxSteps            int    `toml:"max_steps"`
}

// TargetSection bounds image searches.
type TargetSection struct {
	RegionSize    uint32  `toml:"region_size"`
	MinRegionSize uint32  `toml:"min_region_size"`
	MinPrecision  float32 `toml:"min_precision"`
	MaxPrecision  float32 `toml:"max_precision"`
	MinTimeoutMS  int     `toml:"min_timeout_ms"`
	MaxTimeoutMS  int     `toml:"max_timeout_ms"`
	RetryMS       int     `toml:"retry_ms"`
}

// ScriptSection configures the Lua timeline builder.
type ScriptSection struct {
	// StepMS is the offset gap between rows a script emits.
	StepMS uint64 `toml:"step_ms"`
	// TimeoutMS bounds the execution of a script. Zero disables it.
	TimeoutMS int `toml:"timeout_ms"`

	// Defaults for find().
	FindPatchSize uint32  `toml:"find_patch_size"`
	FindPrecision float32 `toml:"find_precision"`
	FindTimeoutMS uint64  `toml:"find_timeout_ms"`
}

// LoggingSection configures the application logger.
type LoggingSection struct {
	// Level is one of debug, info, warn or error.
	Level string `toml:"level"`
	// File, when set, receives log output instead of stderr.
	File string `toml:"file"`
}

// PathsSection names files the application reads and writes.
type PathsSection struct {
	// Timeline is the default file for save and load.
	Timeline string `toml:"timeline"`
}

// Default returns the built-in configuration.
func Default() *Config {
	rec := recorder.DefaultConfig()
	pb := playback.DefaultConfig()
	lim := target.DefaultLimits()
	sc := script.DefaultConfig()

	return &Config{
		Recorder: RecorderSection{
			TickMS:          16,
			PosTickMS:       30,
			WaitMS:          rec.WaitMS,
			SplitPX:         rec.SplitPX,
			MaxHoldMS:       int(rec.MaxHold / time.Millisecond),
			ClickWindowMS:   int(rec.ClickWindow / time.Millisecond),
			PathMode:        rec.PathMode,
			PathMinDeltaPX:  rec.PathMinDeltaPX,
			PatchSize:       rec.PatchSize,
			MoveBeforeClick: rec.MoveBeforeClick,
			ClickSpeedMS:    rec.Meta.ClickSpeedMS,
			MoveMS:          rec.Meta.MoveMS,
			UseFindImage:    rec.Meta.UseFindImage,
			TargetPrecision: rec.Meta.TargetPrecision,
			TargetTimeoutMS: rec.Meta.TargetTimeoutMS,
		},
		Playback: PlaybackSection{
			DefaultMoveMS:       pb.DefaultMoveMS,
			UpMoveMS:            pb.UpMoveMS,
			MaxMoveMS:           pb.MaxMoveMS,
			DefaultClickSpeedMS: pb.DefaultClickSpeedMS,
			MaxClickSpeedMS:     pb.MaxClickSpeedMS,
			SleepSliceMS:        int(pb.SleepSlice / time.Millisecond),
			StepMS:              int(pb.Step / time.Millisecond),
			MaxSteps:            pb.MaxSteps,
		},
		Target: TargetSection{
			RegionSize:    sc.RegionSize,
			MinRegionSize: lim.MinRegionSize,
			MinPrecision:  lim.MinPrecision,
			MaxPrecision:  lim.MaxPrecision,
			MinTimeoutMS:  int(lim.MinTimeout / time.Millisecond),
			MaxTimeoutMS:  int(lim.MaxTimeout / time.Millisecond),
			RetryMS:       int(lim.Retry / time.Millisecond),
		},
		Script: ScriptSection{
			StepMS:        uint64(sc.StepMS),
			TimeoutMS:     int(script.DefaultTimeout / time.Millisecond),
			FindPatchSize: sc.PatchSize,
			FindPrecision: sc.Precision,
			FindTimeoutMS: sc.TimeoutMS,
		},
		Logging: LoggingSection{Level: "info"},
		Paths:   PathsSection{Timeline: storage.DefaultPath},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/clickstorm/config.toml, falling back
// to the platform's user configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoConfigDir, err)
	}
	return filepath.Join(dir, "clickstorm", FileName), nil
}

// ==== Conversions ====

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ClickMeta returns the replay metadata attached to new rows.
func (c *Config) ClickMeta() timeline.ClickMeta {
	m := timeline.DefaultClickMeta()
	m.ClickSpeedMS = c.Recorder.ClickSpeedMS
	m.MoveMS = c.Recorder.MoveMS
	m.UseFindImage = c.Recorder.UseFindImage
	m.TargetPrecision = c.Recorder.TargetPrecision
	m.TargetTimeoutMS = c.Recorder.TargetTimeoutMS
	return m
}

// RecorderConfig returns the recorder settings.
func (c *Config) RecorderConfig() recorder.Config {
	return recorder.Config{
		WaitMS:          c.Recorder.WaitMS,
		SplitPX:         c.Recorder.SplitPX,
		MaxHold:         ms(c.Recorder.MaxHoldMS),
		ClickWindow:     ms(c.Recorder.ClickWindowMS),
		PathMode:        c.Recorder.PathMode,
		PathMinDeltaPX:  c.Recorder.PathMinDeltaPX,
		PatchSize:       c.Recorder.PatchSize,
		MoveBeforeClick: c.Recorder.MoveBeforeClick,
		Meta:            c.ClickMeta(),
	}
}

// PlaybackConfig returns the playback timing.
func (c *Config) PlaybackConfig() playback.Config {
	return playback.Config{
		DefaultMoveMS:       c.Playback.DefaultMoveMS,
		UpMoveMS:            c.Playback.UpMoveMS,
		MaxMoveMS:           c.Playback.MaxMoveMS,
		DefaultClickSpeedMS: c.Playback.DefaultClickSpeedMS,
		MaxClickSpeedMS:     c.Playback.MaxClickSpeedMS,
		SleepSlice:          ms(c.Playback.SleepSliceMS),
		Step:                ms(c.Playback.StepMS),
		MaxSteps:            c.Playback.MaxSteps,
	}
}

// TargetLimits returns the image search bounds.
func (c *Config) TargetLimits() target.Limits {
	return target.Limits{
		MinRegionSize: c.Target.MinRegionSize,
		MinPrecision:  c.Target.MinPrecision,
		MaxPrecision:  c.Target.MaxPrecision,
		MinTimeout:    ms(c.Target.MinTimeoutMS),
		MaxTimeout:    ms(c.Target.MaxTimeoutMS),
		Retry:         ms(c.Target.RetryMS),
	}
}

// ScriptConfig returns the defaults applied to rows built by scripts.
func (c *Config) ScriptConfig() script.Config {
	return script.Config{
		StepMS:     timeline.Millis(c.Script.StepMS),
		Meta:       c.ClickMeta(),
		PatchSize:  c.Script.FindPatchSize,
		Precision:  c.Script.FindPrecision,
		TimeoutMS:  c.Script.FindTimeoutMS,
		RegionSize: c.Target.RegionSize,
	}
}

// ScriptTimeout returns the execution bound of one script.
func (c *Config) ScriptTimeout() time.Duration {
	return ms(c.Script.TimeoutMS)
}

// TickInterval returns the input polling interval.
func (c *Config) TickInterval() time.Duration {
	return ms(c.Recorder.TickMS)
}

// PosTickInterval returns the progress polling interval.
func (c *Config) PosTickInterval() time.Duration {
	return ms(c.Recorder.PosTickMS)
}

// ==== Loading ====

// Loader reads the configuration file and overlays the environment and
// explicit overrides on top of the defaults, in that order.
type Loader struct {
	path      string
	toml      *loader.TOMLLoader
	env       *loader.EnvLoader
	overrides map[string]any
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS reads the configuration file from fsys.
func WithFS(fsys loader.FileSystem) LoaderOption {
	return func(l *Loader) {
		l.toml = loader.NewTOMLLoaderWithFS(fsys)
	}
}

// WithEnv replaces the environment loader. Nil disables the environment.
func WithEnv(env *loader.EnvLoader) LoaderOption {
	return func(l *Loader) {
		l.env = env
	}
}

// WithOverride sets a dotted setting path after all other sources.
func WithOverride(path string, value any) LoaderOption {
	return func(l *Loader) {
		loader.SetByPath(l.overrides, path, value)
	}
}

// NewEnvLoader returns the CLICKSTORM_ environment loader.
func NewEnvLoader() *loader.EnvLoader {
	env := loader.NewEnvLoader(EnvPrefix, Sections...)
	env.AddMapping("CLICKSTORM_LOG_LEVEL", "logging.level")
	env.AddMapping("CLICKSTORM_TIMELINE", "paths.timeline")
	return env
}

// NewLoader creates a loader for the file at path. An empty path loads no
// file.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		path:      path,
		toml:      loader.NewTOMLLoader(),
		env:       NewEnvLoader(),
		overrides: make(map[string]any),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Load builds a validated configuration. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.path != "" {
		if _, err := l.toml.LoadInto(l.path, cfg); err != nil {
			return nil, err
		}
	}

	overlay := make(map[string]any)
	if l.env != nil {
		overlay = loader.DeepMerge(overlay, l.env.Load())
	}
	overlay = loader.DeepMerge(overlay, l.overrides)
	if len(overlay) > 0 {
		data, err := loader.Encode(overlay)
		if err != nil {
			return nil, fmt.Errorf("encoding overrides: %w", err)
		}
		if err := loader.Decode("environment", data, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
