// Package timeline defines the recorded mouse timeline used by clickstorm.
//
// A timeline is an ordered list of entries. Each entry carries a synthetic
// offset from the start of the recording, a semantic action, an optional
// captured position and optional click metadata describing how the row
// should be replayed.
//
// # Actions
//
// Action is a closed sum type. The concrete variants are:
//
//   - Move: a single pointer sample
//   - MovesPolyline: a compacted run of two or more Move samples
//   - Wait: an explicit pause
//   - FindTarget: search the screen for a reference image and move there
//   - ButtonDown, ButtonUp, ButtonClick: button edges for Left/Right/Middle
//
// Consumers switch on the concrete type (or on Kind) and must handle every
// variant.
//
// # Materialization
//
// The editor works on the expanded form where every sample is its own Move
// row. Storage and playback use the compact form produced by Materialize,
// which collapses runs of Move rows into one MovesPolyline and returns a
// row map from compact index to original row:
//
//	compact, rows := timeline.Materialize(entries)
//	// compact[i] was produced from entries[rows[i]] (its last contributing row)
//
// Materialize is idempotent, so it can be applied before every save and every
// playback without checking the current form.
package timeline
