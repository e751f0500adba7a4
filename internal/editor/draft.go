package editor

import (
	"strconv"
	"strings"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Editor panel limits.
const (
	MaxWaitMS       = 300
	MaxClickSpeedMS = 100
	MaxMoveMS       = 500

	// DefaultMoveMS is the move speed a draft resets to when the target
	// button or its mode changes.
	DefaultMoveMS = 20
)

// Draft is the state of the row editor.
//
// Coordinates are kept as the text the user typed and parsed on use, so an
// invalid value is reported when an edit is applied rather than lost.
type Draft struct {
	X string
	Y string

	// Target is the button a plain click is built for.
	Target timeline.Button

	// Modes holds the edge mode per button, indexed by timeline.Button.
	Modes [timeline.NumButtons]timeline.EdgeMode

	WaitMS       uint16
	ClickSpeedMS uint16
	MoveMS       uint16

	UseFindImage     bool
	PrecisionPercent uint8
	TimeoutMS        uint32

	// Patch is the captured preview image, if any.
	Patch []byte
}

// NewDraft returns a draft with the editor defaults.
func NewDraft() Draft {
	return Draft{
		X:                "0",
		Y:                "0",
		Target:           timeline.ButtonLeft,
		WaitMS:           20,
		ClickSpeedMS:     20,
		MoveMS:           DefaultMoveMS,
		PrecisionPercent: 90,
		TimeoutMS:        2000,
	}
}

// ActiveMode returns the edge mode of the target button.
func (d *Draft) ActiveMode() timeline.EdgeMode {
	if !d.Target.Valid() {
		return timeline.EdgeAuto
	}
	return d.Modes[d.Target]
}

// SetTarget selects the target button and resets the move speed.
func (d *Draft) SetTarget(b timeline.Button) {
	d.Target = b
	d.MoveMS = DefaultMoveMS
}

// SetMode sets the edge mode of b. Only the target button's mode can be
// changed; it returns false otherwise.
func (d *Draft) SetMode(b timeline.Button, mode timeline.EdgeMode) bool {
	if b != d.Target || !b.Valid() {
		return false
	}
	d.Modes[b] = mode
	d.MoveMS = DefaultMoveMS
	return true
}

// SetWait sets the pre-wait, clamped to MaxWaitMS.
func (d *Draft) SetWait(ms int) {
	d.WaitMS = uint16(clamp(ms, 0, MaxWaitMS))
}

// SetClickSpeed sets the click speed, clamped to MaxClickSpeedMS. It is
// ignored, returning false, while the active mode is Down or Up.
func (d *Draft) SetClickSpeed(ms int) bool {
	switch d.ActiveMode() {
	case timeline.EdgeDown, timeline.EdgeUp:
		return false
	}
	d.ClickSpeedMS = uint16(clamp(ms, 0, MaxClickSpeedMS))
	return true
}

// SetMoveSpeed sets the move duration, clamped to MaxMoveMS.
func (d *Draft) SetMoveSpeed(ms int) {
	d.MoveMS = uint16(clamp(ms, 0, MaxMoveMS))
}

// SetPoint fills the coordinate fields.
func (d *Draft) SetPoint(p timeline.Point) {
	d.X = strconv.Itoa(p.X)
	d.Y = strconv.Itoa(p.Y)
}

// Point parses the coordinate fields.
func (d Draft) Point() (timeline.Point, error) {
	x, err := strconv.Atoi(strings.TrimSpace(d.X))
	if err != nil {
		return timeline.Point{}, ErrInvalidXY
	}
	y, err := strconv.Atoi(strings.TrimSpace(d.Y))
	if err != nil {
		return timeline.Point{}, ErrInvalidXY
	}
	return timeline.Pt(x, y), nil
}

// Meta returns the click metadata for rows built from the draft.
func (d Draft) Meta() timeline.ClickMeta {
	return timeline.ClickMeta{
		LeftMode:        d.Modes[timeline.ButtonLeft],
		RightMode:       d.Modes[timeline.ButtonRight],
		MiddleMode:      d.Modes[timeline.ButtonMiddle],
		WaitMS:          d.WaitMS,
		ClickSpeedMS:    d.ClickSpeedMS,
		MoveMS:          d.MoveMS,
		UseFindImage:    d.UseFindImage,
		TargetPrecision: float32(d.PrecisionPercent) / 100,
		TargetTimeoutMS: uint64(d.TimeoutMS),
	}
}

// Kinds builds the button actions described by the modes.
//
// With every mode Auto it returns one click for the target button.
// Otherwise it returns one action per button whose mode is not Auto, in
// button order; Double builds a click, its mode travels in the metadata.
func (d Draft) Kinds(patch []byte) []timeline.Action {
	allAuto := true
	for _, m := range d.Modes {
		if m != timeline.EdgeAuto {
			allAuto = false
			break
		}
	}
	if allAuto {
		if !d.Target.Valid() {
			return nil
		}
		return []timeline.Action{timeline.ButtonClick{Button: d.Target, Image: cloneBytes(patch)}}
	}

	var out []timeline.Action
	for _, b := range timeline.Buttons {
		if mode := d.Modes[b]; mode != timeline.EdgeAuto {
			out = append(out, timeline.NewButtonAction(b, mode, cloneBytes(patch)))
		}
	}
	return out
}

// Load populates a draft from an entry, keeping fields the entry does not
// describe.
func (d Draft) Load(e timeline.Entry) Draft {
	if e.Pos != nil {
		d.SetPoint(*e.Pos)
	}
	d.Patch = cloneBytes(e.Image())

	var mode timeline.EdgeMode
	switch a := e.Action.(type) {
	case timeline.ButtonDown:
		d.Target, mode = a.Button, timeline.EdgeDown
	case timeline.ButtonUp:
		d.Target, mode = a.Button, timeline.EdgeUp
	case timeline.ButtonClick:
		d.Target = a.Button
		if e.Meta != nil {
			mode = e.Meta.ModeFor(a.Button)
		}
	}
	if e.Kind().IsButton() {
		d.UseFindImage = false
		d.Modes = [timeline.NumButtons]timeline.EdgeMode{}
		d.Modes[d.Target] = mode
	}
	d.MoveMS = DefaultMoveMS

	if m := e.Meta; m != nil {
		d.Modes[timeline.ButtonLeft] = m.LeftMode
		d.Modes[timeline.ButtonRight] = m.RightMode
		d.Modes[timeline.ButtonMiddle] = m.MiddleMode
		d.WaitMS = m.WaitMS
		d.ClickSpeedMS = min(m.ClickSpeedMS, MaxClickSpeedMS)
		d.MoveMS = min(m.MoveMS, MaxMoveMS)
		d.UseFindImage = m.UseFindImage
	}
	return d
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
