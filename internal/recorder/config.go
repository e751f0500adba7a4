package recorder

import (
	"time"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Config controls how raw samples are classified.
type Config struct {
	// WaitMS is the synthetic clock increment per emitting event and the
	// pre-wait stored in the metadata of recorded rows.
	WaitMS uint16

	// SplitPX is the movement deadzone. A press and release further apart
	// than this are recorded as separate down and up rows.
	SplitPX int

	// MaxHold is the longest press still recorded as a click.
	MaxHold time.Duration

	// ClickWindow is the longest gap between two releases that merges them
	// into a double click.
	ClickWindow time.Duration

	// PathMode records pointer motion and explicit down/up rows instead of
	// classifying clicks.
	PathMode bool

	// PathMinDeltaPX is the movement needed before a new path sample is taken.
	PathMinDeltaPX int

	// PatchSize is the edge length of captured reference patches.
	PatchSize uint32

	// MoveBeforeClick emits a Move row ahead of a click recorded at a new
	// position. Ignored in path mode.
	MoveBeforeClick bool

	// Meta supplies the replay settings copied into every button row.
	Meta timeline.ClickMeta
}

// DefaultConfig returns the recorder defaults.
func DefaultConfig() Config {
	return Config{
		WaitMS:          10,
		SplitPX:         10,
		MaxHold:         50 * time.Millisecond,
		ClickWindow:     250 * time.Millisecond,
		PathMode:        false,
		PathMinDeltaPX:  0,
		PatchSize:       64,
		MoveBeforeClick: true,
		Meta:            timeline.DefaultClickMeta(),
	}
}

// metaFor builds the metadata of a row produced for b with mode.
func (c Config) metaFor(b timeline.Button, mode timeline.EdgeMode) *timeline.ClickMeta {
	m := c.Meta
	m.LeftMode = timeline.EdgeAuto
	m.RightMode = timeline.EdgeAuto
	m.MiddleMode = timeline.EdgeAuto
	m = m.WithMode(b, mode)
	m.WaitMS = c.WaitMS
	return &m
}
