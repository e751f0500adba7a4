package config

import "strings"

// LogLevels lists the accepted logging levels.
var LogLevels = []string{"debug", "info", "warn", "error"}

type validator struct {
	err *ValidationError
}

func (v *validator) fail(path, msg string, value any, code ValidationErrorCode) {
	if v.err == nil {
		v.err = &ValidationError{Path: path, Message: msg, Value: value, Code: code}
	}
}

func (v *validator) positive(path string, value int) {
	if value <= 0 {
		v.fail(path, "must be positive", value, ErrCodeOutOfRange)
	}
}

func (v *validator) nonNegative(path string, value int) {
	if value < 0 {
		v.fail(path, "must not be negative", value, ErrCodeOutOfRange)
	}
}

func (v *validator) unit(path string, value float32) {
	if value < 0 || value > 1 {
		v.fail(path, "must be between 0 and 1", value, ErrCodeOutOfRange)
	}
}

// Validate checks the configuration and returns the first problem found as
// a *ValidationError.
func (c *Config) Validate() error {
	v := &validator{}

	v.positive("recorder.tick_ms", c.Recorder.TickMS)
	v.positive("recorder.pos_tick_ms", c.Recorder.PosTickMS)
	v.nonNegative("recorder.split_px", c.Recorder.SplitPX)
	v.nonNegative("recorder.max_hold_ms", c.Recorder.MaxHoldMS)
	v.nonNegative("recorder.click_window_ms", c.Recorder.ClickWindowMS)
	v.nonNegative("recorder.path_min_delta_px", c.Recorder.PathMinDeltaPX)
	if c.Recorder.PatchSize == 0 {
		v.fail("recorder.patch_size", "must be positive", c.Recorder.PatchSize, ErrCodeOutOfRange)
	}
	v.unit("recorder.target_precision", c.Recorder.TargetPrecision)

	if c.Playback.MaxMoveMS == 0 {
		v.fail("playback.max_move_ms", "must be positive", c.Playback.MaxMoveMS, ErrCodeOutOfRange)
	}
	if c.Playback.MaxClickSpeedMS == 0 {
		v.fail("playback.max_click_speed_ms", "must be positive", c.Playback.MaxClickSpeedMS, ErrCodeOutOfRange)
	}
	v.positive("playback.sleep_slice_ms", c.Playback.SleepSliceMS)
	v.positive("playback.step_ms", c.Playback.StepMS)
	v.positive("playback.max_steps", c.Playback.MaxSteps)

	v.unit("target.min_precision", c.Target.MinPrecision)
	v.unit("target.max_precision", c.Target.MaxPrecision)
	if c.Target.MinPrecision > c.Target.MaxPrecision {
		v.fail("target.min_precision", "exceeds target.max_precision", c.Target.MinPrecision, ErrCodeInconsistent)
	}
	v.nonNegative("target.min_timeout_ms", c.Target.MinTimeoutMS)
	if c.Target.MinTimeoutMS > c.Target.MaxTimeoutMS {
		v.fail("target.min_timeout_ms", "exceeds target.max_timeout_ms", c.Target.MinTimeoutMS, ErrCodeInconsistent)
	}
	if c.Target.RegionSize < c.Target.MinRegionSize {
		v.fail("target.region_size", "is below target.min_region_size", c.Target.RegionSize, ErrCodeInconsistent)
	}
	v.positive("target.retry_ms", c.Target.RetryMS)

	v.nonNegative("script.timeout_ms", c.Script.TimeoutMS)
	if c.Script.FindPatchSize == 0 {
		v.fail("script.find_patch_size", "must be positive", c.Script.FindPatchSize, ErrCodeOutOfRange)
	}
	v.unit("script.find_precision", c.Script.FindPrecision)

	if !validLevel(c.Logging.Level) {
		v.fail("logging.level", "must be one of "+strings.Join(LogLevels, ", "), c.Logging.Level, ErrCodeInvalidEnum)
	}

	if v.err != nil {
		return v.err
	}
	return nil
}

func validLevel(level string) bool {
	for _, l := range LogLevels {
		if strings.EqualFold(level, l) {
			return true
		}
	}
	return false
}
