// Package editor implements row editing for timelines.
//
// A Draft holds the editor panel: coordinates, per-button edge modes and
// the timing fields. Editor turns a draft into rows and applies them to a
// timeline, either in place of the selected row or as new rows:
//
//	ed := editor.New(desktop)
//	d := editor.NewDraft()
//	ed.Capture(&d, timeline.Pt(100, 200))
//	res, err := ed.Apply(entries, editor.NoSelection, d)
//
// Wait and find target rows are built from their own dialogs, WaitDraft and
// FindTargetDraft, and appended with InsertWait and InsertFindTarget.
//
// Every edit returns a fresh timeline and never mutates its input.
package editor
