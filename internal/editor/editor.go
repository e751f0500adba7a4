package editor

import (
	"errors"
	"fmt"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Edit errors. Their messages double as the status line.
var (
	ErrInvalidXY       = errors.New("Invalid X/Y")
	ErrNoClickMode     = errors.New("Choose at least one click mode")
	ErrNoTargetImage   = errors.New("Capture GET target first")
	ErrNoSelection     = errors.New("Select a row first to insert below")
	ErrIndexOutOfRange = errors.New("row index out of range")
	ErrNoImage         = errors.New("No image selected")
)

// NoSelection marks the absence of a selected row.
const NoSelection = -1

// PreviewSize is the side of the patch captured for editor previews.
const PreviewSize = 128

// Result is the outcome of a successful edit.
type Result struct {
	// Entries is the edited timeline. It never aliases the input.
	Entries []timeline.Entry

	// Selected is the row selected after the edit, or NoSelection.
	Selected int

	Status string
}

// Editor applies row edits to timelines.
//
// Edits never mutate their input: each returns a new timeline, so a failed
// edit leaves the caller's timeline untouched.
type Editor struct {
	// Capturer grabs preview patches. Nil edits without images.
	Capturer platform.Capturer

	// PreviewSize is the patch side used for click rows.
	PreviewSize uint32
}

// New creates an editor capturing previews through c.
func New(c platform.Capturer) *Editor {
	return &Editor{Capturer: c, PreviewSize: PreviewSize}
}

// Capture fills the draft's coordinates from p and refreshes its preview.
func (ed *Editor) Capture(d *Draft, p timeline.Point) {
	d.SetPoint(p)
	d.Patch = ed.capture(p)
}

// Apply inserts the draft's rows or applies them to the selected row.
//
// A selected Move is moved to the draft's coordinates. Any other selected
// row is replaced by the first built row and the remaining rows are
// inserted after it. Without a selection the rows are appended and the
// first of them becomes selected.
func (ed *Editor) Apply(entries []timeline.Entry, selected int, d Draft) (Result, error) {
	if selected != NoSelection && (selected < 0 || selected >= len(entries)) {
		return Result{}, ErrIndexOutOfRange
	}
	p, err := d.Point()
	if err != nil {
		return Result{}, err
	}

	if selected != NoSelection {
		if _, ok := entries[selected].Action.(timeline.Move); ok {
			out := timeline.Clone(entries)
			out[selected].Action = timeline.Move{X: p.X, Y: p.Y}
			out[selected].Pos = p.Ptr()
			return Result{Entries: out, Selected: selected, Status: fmt.Sprintf("Updated move at row %d", selected)}, nil
		}
	}

	kinds, err := ed.kinds(d, p)
	if err != nil {
		return Result{}, err
	}
	meta := d.Meta()

	if selected == NoSelection {
		base := timeline.LastOffset(entries)
		out := timeline.Clone(entries)
		for i, k := range kinds {
			out = append(out, row(base+1+timeline.Millis(i), k, p, meta))
		}
		return Result{Entries: out, Selected: len(entries), Status: "Inserted click row"}, nil
	}

	out := timeline.Clone(entries)
	out[selected].Action = kinds[0]
	out[selected].Pos = p.Ptr()
	out[selected].Meta = meta.Ptr()

	extra := kinds[1:]
	out = insertRows(out, selected+1, out[selected].Offset, extra, p, meta)

	status := "Updated selected row"
	if len(extra) > 0 {
		status = fmt.Sprintf("Updated selected row and inserted %d extra row(s)", len(extra))
	}
	return Result{Entries: out, Selected: selected, Status: status}, nil
}

// InsertBelow inserts the draft's rows after the selected row and selects
// the first of them.
func (ed *Editor) InsertBelow(entries []timeline.Entry, selected int, d Draft) (Result, error) {
	if selected == NoSelection {
		return Result{}, ErrNoSelection
	}
	if selected < 0 || selected >= len(entries) {
		return Result{}, ErrIndexOutOfRange
	}
	p, err := d.Point()
	if err != nil {
		return Result{}, err
	}
	kinds, err := ed.kinds(d, p)
	if err != nil {
		return Result{}, err
	}

	out := insertRows(timeline.Clone(entries), selected+1, entries[selected].Offset, kinds, p, d.Meta())
	return Result{
		Entries:  out,
		Selected: selected + 1,
		Status:   fmt.Sprintf("Inserted %d row(s) below selected", len(kinds)),
	}, nil
}

// Delete removes row i.
func (ed *Editor) Delete(entries []timeline.Entry, i int) (Result, error) {
	if i < 0 || i >= len(entries) {
		return Result{}, ErrIndexOutOfRange
	}
	out := make([]timeline.Entry, 0, len(entries)-1)
	out = append(out, timeline.Clone(entries[:i])...)
	out = append(out, timeline.Clone(entries[i+1:])...)
	return Result{Entries: out, Selected: NoSelection, Status: fmt.Sprintf("Deleted row %d", i)}, nil
}

// Select loads row i into d.
func (ed *Editor) Select(entries []timeline.Entry, i int, d Draft) (Draft, error) {
	if i < 0 || i >= len(entries) {
		return d, ErrIndexOutOfRange
	}
	return d.Load(entries[i]), nil
}

// kinds builds the rows for an edit at p, capturing a patch when the draft
// has none to reuse.
func (ed *Editor) kinds(d Draft, p timeline.Point) ([]timeline.Action, error) {
	var patch []byte
	if d.UseFindImage && len(d.Patch) > 0 {
		patch = cloneBytes(d.Patch)
	} else {
		patch = ed.capture(p)
	}
	if d.UseFindImage && len(patch) == 0 {
		return nil, ErrNoTargetImage
	}

	kinds := d.Kinds(patch)
	if len(kinds) == 0 {
		return nil, ErrNoClickMode
	}
	return kinds, nil
}

func (ed *Editor) capture(p timeline.Point) []byte {
	if ed.Capturer == nil {
		return nil
	}
	size := ed.PreviewSize
	if size == 0 {
		size = PreviewSize
	}
	img, err := ed.Capturer.CapturePatch(p, size)
	if err != nil {
		return nil
	}
	return img
}

func row(offset timeline.Millis, a timeline.Action, p timeline.Point, meta timeline.ClickMeta) timeline.Entry {
	return timeline.Entry{Offset: offset, Action: a, Pos: p.Ptr(), Meta: meta.Ptr()}
}

// insertRows inserts one row per action at index at, with offsets counting
// up from base+1. Offsets are capped at the offset of the row that follows
// so the timeline stays ordered.
func insertRows(entries []timeline.Entry, at int, base timeline.Millis, kinds []timeline.Action, p timeline.Point, meta timeline.ClickMeta) []timeline.Entry {
	if len(kinds) == 0 {
		return entries
	}
	rows := make([]timeline.Entry, len(kinds))
	for i, k := range kinds {
		off := base + 1 + timeline.Millis(i)
		if at < len(entries) && off > entries[at].Offset {
			off = max(entries[at].Offset, base)
		}
		rows[i] = row(off, k, p, meta)
	}
	out := make([]timeline.Entry, 0, len(entries)+len(rows))
	out = append(out, entries[:at]...)
	out = append(out, rows...)
	return append(out, entries[at:]...)
}
