package timeline

import "bytes"

// Kind identifies the concrete variant of an Action.
type Kind uint8

const (
	KindMove Kind = iota
	KindMovesPolyline
	KindWait
	KindFindTarget
	KindButtonDown
	KindButtonUp
	KindButtonClick
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindMove:
		return "Move"
	case KindMovesPolyline:
		return "Moves"
	case KindWait:
		return "Wait"
	case KindFindTarget:
		return "FindTarget"
	case KindButtonDown:
		return "ButtonDown"
	case KindButtonUp:
		return "ButtonUp"
	case KindButtonClick:
		return "ButtonClick"
	default:
		return "unknown"
	}
}

// IsButton returns true for the button edge variants.
func (k Kind) IsButton() bool {
	return k == KindButtonDown || k == KindButtonUp || k == KindButtonClick
}

// Action is the semantic content of an entry.
// The set of implementations is closed; see the package documentation.
type Action interface {
	// Kind returns the variant discriminator.
	Kind() Kind

	// clone returns a deep copy of the action.
	clone() Action

	// equal reports whether two actions have identical content.
	equal(other Action) bool
}

// Move moves the pointer to a single coordinate.
type Move struct {
	X int
	Y int
}

// MovesPolyline moves the pointer through an ordered list of points.
// A valid polyline always has at least two points.
type MovesPolyline struct {
	Points []Point
}

// Wait pauses playback.
type Wait struct {
	MS uint64
}

// FindTarget searches the screen for Image and moves the pointer to the match.
type FindTarget struct {
	Image     []byte
	PatchSize uint32
	Precision float32
	TimeoutMS uint64
	Anchor    Anchor

	// RegionSize bounds the search to a square around the anchor.
	// Nil searches the whole screen.
	RegionSize *uint32
}

// ButtonDown presses a button.
type ButtonDown struct {
	Button Button
	Image  []byte
}

// ButtonUp releases a button.
type ButtonUp struct {
	Button Button
	Image  []byte
}

// ButtonClick clicks a button. The edge mode in the entry's metadata
// decides between a single and a double click.
type ButtonClick struct {
	Button Button
	Image  []byte
}

func (Move) Kind() Kind          { return KindMove }
func (MovesPolyline) Kind() Kind { return KindMovesPolyline }
func (Wait) Kind() Kind          { return KindWait }
func (FindTarget) Kind() Kind    { return KindFindTarget }
func (ButtonDown) Kind() Kind    { return KindButtonDown }
func (ButtonUp) Kind() Kind      { return KindButtonUp }
func (ButtonClick) Kind() Kind   { return KindButtonClick }

func (a Move) clone() Action { return a }

func (a MovesPolyline) clone() Action {
	return MovesPolyline{Points: append([]Point(nil), a.Points...)}
}

func (a Wait) clone() Action { return a }

func (a FindTarget) clone() Action {
	out := a
	out.Image = cloneBytes(a.Image)
	if a.RegionSize != nil {
		size := *a.RegionSize
		out.RegionSize = &size
	}
	return out
}

func (a ButtonDown) clone() Action  { return ButtonDown{Button: a.Button, Image: cloneBytes(a.Image)} }
func (a ButtonUp) clone() Action    { return ButtonUp{Button: a.Button, Image: cloneBytes(a.Image)} }
func (a ButtonClick) clone() Action { return ButtonClick{Button: a.Button, Image: cloneBytes(a.Image)} }

func (a Move) equal(other Action) bool {
	o, ok := other.(Move)
	return ok && o == a
}

func (a MovesPolyline) equal(other Action) bool {
	o, ok := other.(MovesPolyline)
	if !ok || len(o.Points) != len(a.Points) {
		return false
	}
	for i := range a.Points {
		if a.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}

func (a Wait) equal(other Action) bool {
	o, ok := other.(Wait)
	return ok && o == a
}

func (a FindTarget) equal(other Action) bool {
	o, ok := other.(FindTarget)
	if !ok {
		return false
	}
	if (a.RegionSize == nil) != (o.RegionSize == nil) {
		return false
	}
	if a.RegionSize != nil && *a.RegionSize != *o.RegionSize {
		return false
	}
	return bytes.Equal(a.Image, o.Image) &&
		a.PatchSize == o.PatchSize &&
		a.Precision == o.Precision &&
		a.TimeoutMS == o.TimeoutMS &&
		a.Anchor == o.Anchor
}

func (a ButtonDown) equal(other Action) bool {
	o, ok := other.(ButtonDown)
	return ok && o.Button == a.Button && bytes.Equal(o.Image, a.Image)
}

func (a ButtonUp) equal(other Action) bool {
	o, ok := other.(ButtonUp)
	return ok && o.Button == a.Button && bytes.Equal(o.Image, a.Image)
}

func (a ButtonClick) equal(other Action) bool {
	o, ok := other.(ButtonClick)
	return ok && o.Button == a.Button && bytes.Equal(o.Image, a.Image)
}

// ButtonOf returns the button and reference image of a button action.
// ok is false for non-button actions.
func ButtonOf(a Action) (button Button, image []byte, ok bool) {
	switch v := a.(type) {
	case ButtonDown:
		return v.Button, v.Image, true
	case ButtonUp:
		return v.Button, v.Image, true
	case ButtonClick:
		return v.Button, v.Image, true
	}
	return 0, nil, false
}

// NewButtonAction builds the button action for an edge mode.
// Auto and Double both produce a ButtonClick; the mode lives in ClickMeta.
func NewButtonAction(b Button, mode EdgeMode, image []byte) Action {
	switch mode {
	case EdgeDown:
		return ButtonDown{Button: b, Image: image}
	case EdgeUp:
		return ButtonUp{Button: b, Image: image}
	default:
		return ButtonClick{Button: b, Image: image}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
