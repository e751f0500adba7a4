package timeline

import (
	"errors"
	"fmt"
)

// Validation errors.
var (
	// ErrShortPolyline indicates a MovesPolyline with fewer than two points.
	ErrShortPolyline = errors.New("polyline needs at least two points")

	// ErrMissingImage indicates a FindTarget entry without a reference image.
	ErrMissingImage = errors.New("find target entry has no reference image")

	// ErrOffsetOrder indicates an entry whose offset is lower than its predecessor.
	ErrOffsetOrder = errors.New("entry offset decreases")

	// ErrNilAction indicates an entry with no action.
	ErrNilAction = errors.New("entry has no action")

	// ErrInvalidButton indicates a button action with an unknown button.
	ErrInvalidButton = errors.New("invalid button")
)

// Entry is one row of a timeline.
type Entry struct {
	// Offset is the synthetic offset from the start of the recording.
	Offset Millis

	// Action is the semantic content of the row.
	Action Action

	// Pos is the captured position associated with the action, if any.
	Pos *Point

	// Meta is the click metadata recorded alongside button rows.
	Meta *ClickMeta
}

// Clone returns a deep copy of the entry.
func (e Entry) Clone() Entry {
	out := Entry{Offset: e.Offset}
	if e.Action != nil {
		out.Action = e.Action.clone()
	}
	if e.Pos != nil {
		p := *e.Pos
		out.Pos = &p
	}
	if e.Meta != nil {
		m := *e.Meta
		out.Meta = &m
	}
	return out
}

// Equal reports whether two entries have identical content.
func (e Entry) Equal(other Entry) bool {
	if e.Offset != other.Offset {
		return false
	}
	if (e.Action == nil) != (other.Action == nil) {
		return false
	}
	if e.Action != nil && !e.Action.equal(other.Action) {
		return false
	}
	if (e.Pos == nil) != (other.Pos == nil) || (e.Pos != nil && *e.Pos != *other.Pos) {
		return false
	}
	if (e.Meta == nil) != (other.Meta == nil) || (e.Meta != nil && *e.Meta != *other.Meta) {
		return false
	}
	return true
}

// Kind returns the kind of the entry's action.
func (e Entry) Kind() Kind {
	if e.Action == nil {
		return KindWait
	}
	return e.Action.Kind()
}

// Image returns the reference image attached to the entry, if any.
func (e Entry) Image() []byte {
	switch a := e.Action.(type) {
	case FindTarget:
		return a.Image
	case ButtonDown:
		return a.Image
	case ButtonUp:
		return a.Image
	case ButtonClick:
		return a.Image
	}
	return nil
}

// Clone deep-copies a list of entries.
// The result never aliases the input, so it can be handed to playback
// while the original keeps being edited.
func Clone(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// Equal reports whether two entry lists are identical.
func Equal(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// EntryError describes an invalid entry.
type EntryError struct {
	Index int
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Validate checks a single entry against the model invariants.
func (e Entry) Validate() error {
	switch a := e.Action.(type) {
	case nil:
		return ErrNilAction
	case Move, Wait:
		return nil
	case MovesPolyline:
		if len(a.Points) < 2 {
			return ErrShortPolyline
		}
	case FindTarget:
		if len(a.Image) == 0 {
			return ErrMissingImage
		}
	case ButtonDown:
		if !a.Button.Valid() {
			return ErrInvalidButton
		}
	case ButtonUp:
		if !a.Button.Valid() {
			return ErrInvalidButton
		}
	case ButtonClick:
		if !a.Button.Valid() {
			return ErrInvalidButton
		}
	}
	return nil
}

// Validate checks every entry and the ordering of offsets.
// The first violation is returned as an *EntryError.
func Validate(entries []Entry) error {
	var prev Millis
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return &EntryError{Index: i, Err: err}
		}
		if i > 0 && e.Offset < prev {
			return &EntryError{Index: i, Err: ErrOffsetOrder}
		}
		prev = e.Offset
	}
	return nil
}

// LastOffset returns the offset of the last entry, or 0 for an empty list.
func LastOffset(entries []Entry) Millis {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Offset
}
