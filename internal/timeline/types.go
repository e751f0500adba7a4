package timeline

import (
	"fmt"
	"strings"
)

// Millis is a synthetic millisecond offset from the start of a recording.
type Millis uint64

// Point represents a screen coordinate.
type Point struct {
	X int
	Y int
}

// Pt is shorthand for constructing a Point.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Ptr returns a pointer to a copy of p.
func (p Point) Ptr() *Point {
	return &p
}

// Equal returns true if two points are equal.
func (p Point) Equal(other Point) bool {
	return p.X == other.X && p.Y == other.Y
}

// Distance returns the Manhattan distance (|dx| + |dy|) between two points.
func (p Point) Distance(other Point) int {
	dx := p.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := p.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// String returns "(x,y)".
func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Button represents a mouse button.
type Button uint8

const (
	// ButtonLeft is the primary (left) mouse button.
	ButtonLeft Button = iota
	// ButtonRight is the secondary (right) mouse button.
	ButtonRight
	// ButtonMiddle is the middle mouse button (scroll wheel click).
	ButtonMiddle
)

// Buttons lists every recordable button in a stable order.
var Buttons = [...]Button{ButtonLeft, ButtonRight, ButtonMiddle}

// NumButtons is the number of recordable buttons.
const NumButtons = len(Buttons)

// String returns a string representation of the button.
func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return "unknown"
	}
}

// Tag returns the upper-case tag used in row descriptions.
func (b Button) Tag() string {
	return strings.ToUpper(b.String())
}

// Valid returns true if b is one of the recordable buttons.
func (b Button) Valid() bool {
	return b <= ButtonMiddle
}

// ParseButton parses a button name ("left", "right", "middle"; case insensitive).
func ParseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return ButtonLeft, nil
	case "right", "r":
		return ButtonRight, nil
	case "middle", "m":
		return ButtonMiddle, nil
	}
	return 0, fmt.Errorf("unknown button %q", s)
}

// EdgeMode classifies how a button row is replayed.
type EdgeMode uint8

const (
	// EdgeAuto replays a single click.
	EdgeAuto EdgeMode = iota
	// EdgeDown replays an isolated button press.
	EdgeDown
	// EdgeUp replays an isolated button release.
	EdgeUp
	// EdgeDouble replays a double click.
	EdgeDouble
)

// String returns the persisted name of the mode.
func (m EdgeMode) String() string {
	switch m {
	case EdgeAuto:
		return "Auto"
	case EdgeDown:
		return "Down"
	case EdgeUp:
		return "Up"
	case EdgeDouble:
		return "Double"
	default:
		return "unknown"
	}
}

// Label returns the user-facing label of the mode.
func (m EdgeMode) Label() string {
	switch m {
	case EdgeAuto:
		return "single"
	case EdgeDown:
		return "down"
	case EdgeUp:
		return "up"
	case EdgeDouble:
		return "double"
	default:
		return "unknown"
	}
}

// Tag returns the row tag of the mode.
func (m EdgeMode) Tag() string {
	switch m {
	case EdgeAuto:
		return "CLICK"
	case EdgeDown:
		return "DOWN"
	case EdgeUp:
		return "UP"
	case EdgeDouble:
		return "DOUBLE"
	default:
		return "?"
	}
}

// ParseEdgeMode parses a persisted or user-facing mode name.
func ParseEdgeMode(s string) (EdgeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "single", "click":
		return EdgeAuto, nil
	case "down":
		return EdgeDown, nil
	case "up":
		return EdgeUp, nil
	case "double":
		return EdgeDouble, nil
	}
	return 0, fmt.Errorf("unknown edge mode %q", s)
}

// Anchor selects the position image search is centered on.
type Anchor uint8

const (
	// AnchorRecordedClick uses the position stored with the entry.
	AnchorRecordedClick Anchor = iota
	// AnchorCurrentMouse uses the live cursor position.
	AnchorCurrentMouse
	// AnchorLastFound uses the most recent successful match of the run.
	AnchorLastFound
)

// String returns the persisted name of the anchor.
func (a Anchor) String() string {
	switch a {
	case AnchorRecordedClick:
		return "RecordedClick"
	case AnchorCurrentMouse:
		return "CurrentMouse"
	case AnchorLastFound:
		return "LastFound"
	default:
		return "unknown"
	}
}

// Label returns the user-facing label of the anchor.
func (a Anchor) Label() string {
	switch a {
	case AnchorRecordedClick:
		return "Recorded"
	case AnchorCurrentMouse:
		return "Mouse"
	case AnchorLastFound:
		return "Last found"
	default:
		return "unknown"
	}
}

// ParseAnchor parses a persisted or user-facing anchor name.
func ParseAnchor(s string) (Anchor, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "recordedclick", "recorded":
		return AnchorRecordedClick, nil
	case "currentmouse", "mouse":
		return AnchorCurrentMouse, nil
	case "lastfound":
		return AnchorLastFound, nil
	}
	return 0, fmt.Errorf("unknown search anchor %q", s)
}

// ClickMeta records how a row was produced and how it should be replayed.
type ClickMeta struct {
	LeftMode   EdgeMode
	RightMode  EdgeMode
	MiddleMode EdgeMode

	// WaitMS is the pause applied before the row is executed.
	WaitMS uint16

	// ClickSpeedMS is the hold time of a replayed click and the gap
	// between the two halves of a double click.
	ClickSpeedMS uint16

	// MoveMS is the duration of the pointer interpolation to the row.
	MoveMS uint16

	// UseFindImage resolves the click position by image search.
	UseFindImage bool

	TargetPrecision float32
	TargetTimeoutMS uint64
}

// DefaultClickMeta returns the metadata attached to new rows.
func DefaultClickMeta() ClickMeta {
	return ClickMeta{
		LeftMode:        EdgeAuto,
		RightMode:       EdgeAuto,
		MiddleMode:      EdgeAuto,
		WaitMS:          20,
		ClickSpeedMS:    20,
		MoveMS:          150,
		UseFindImage:    false,
		TargetPrecision: 0.90,
		TargetTimeoutMS: 2000,
	}
}

// ModeFor returns the edge mode recorded for a button.
func (m ClickMeta) ModeFor(b Button) EdgeMode {
	switch b {
	case ButtonRight:
		return m.RightMode
	case ButtonMiddle:
		return m.MiddleMode
	default:
		return m.LeftMode
	}
}

// WithMode returns a copy of m with the edge mode of b replaced.
func (m ClickMeta) WithMode(b Button, mode EdgeMode) ClickMeta {
	switch b {
	case ButtonRight:
		m.RightMode = mode
	case ButtonMiddle:
		m.MiddleMode = mode
	default:
		m.LeftMode = mode
	}
	return m
}

// Ptr returns a pointer to a copy of m.
func (m ClickMeta) Ptr() *ClickMeta {
	return &m
}
