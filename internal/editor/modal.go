package editor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Wait dialog limits.
const (
	MaxWaitRowMS     = 600_000
	DefaultWaitRowMS = 1000
)

// Find target dialog limits.
const (
	MinPatchSize     = 16
	MaxPatchSize     = 512
	DefaultPatchSize = 64

	MinPrecision     = 0.50
	MaxPrecision     = 0.999
	DefaultPrecision = 0.92

	MinTargetTimeoutMS     = 100
	MaxTargetTimeoutMS     = 60_000
	DefaultTargetTimeoutMS = 2000

	MinRegionSize     = 100
	MaxRegionSize     = 5000
	DefaultRegionSize = 600
)

// WaitDraft is the state of the wait dialog.
type WaitDraft struct {
	Text string
	MS   uint64
}

// NewWaitDraft returns a wait dialog with the default duration.
func NewWaitDraft() WaitDraft {
	return WaitDraft{Text: strconv.Itoa(DefaultWaitRowMS), MS: DefaultWaitRowMS}
}

// SetText stores the typed text. A parsable value updates MS, clamped to
// MaxWaitRowMS; anything else keeps the previous value.
func (w *WaitDraft) SetText(s string) {
	w.Text = s
	if v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil {
		w.MS = min(v, MaxWaitRowMS)
	}
}

// InsertWait appends a Wait row at the last offset of the timeline.
func (ed *Editor) InsertWait(entries []timeline.Entry, w WaitDraft) Result {
	out := timeline.Clone(entries)
	out = append(out, timeline.Entry{
		Offset: timeline.LastOffset(entries),
		Action: timeline.Wait{MS: w.MS},
	})
	return Result{Entries: out, Selected: NoSelection, Status: "Added Wait row"}
}

// FindTargetDraft is the state of the find target dialog.
type FindTargetDraft struct {
	// Patch is the PNG the row searches for.
	Patch []byte

	// CapturedAt is where the patch was taken, if known.
	CapturedAt *timeline.Point

	PatchSize   uint32
	Precision   float32
	TimeoutMS   uint64
	LimitRegion bool
	RegionSize  uint32
	Anchor      timeline.Anchor

	ImagePath string

	// Status is the dialog's own feedback line.
	Status string
}

// NewFindTargetDraft returns a find target dialog with the defaults.
func NewFindTargetDraft() FindTargetDraft {
	return FindTargetDraft{
		PatchSize:   DefaultPatchSize,
		Precision:   DefaultPrecision,
		TimeoutMS:   DefaultTargetTimeoutMS,
		LimitRegion: true,
		RegionSize:  DefaultRegionSize,
		Anchor:      timeline.AnchorRecordedClick,
	}
}

// SetPatchSize parses and clamps the patch side. Invalid text is ignored.
func (f *FindTargetDraft) SetPatchSize(s string) {
	if v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32); err == nil {
		f.PatchSize = uint32(clamp(int(v), MinPatchSize, MaxPatchSize))
	}
}

// SetPrecision parses and clamps the match precision.
func (f *FindTargetDraft) SetPrecision(s string) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 32); err == nil {
		f.Precision = float32(max(MinPrecision, min(v, MaxPrecision)))
	}
}

// SetTimeout parses and clamps the search timeout.
func (f *FindTargetDraft) SetTimeout(s string) {
	if v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err == nil {
		f.TimeoutMS = max(MinTargetTimeoutMS, min(v, MaxTargetTimeoutMS))
	}
}

// SetRegionSize parses and clamps the search region side.
func (f *FindTargetDraft) SetRegionSize(s string) {
	if v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32); err == nil {
		f.RegionSize = uint32(max(MinRegionSize, min(v, MaxRegionSize)))
	}
}

// CaptureAt replaces the patch with a capture centered on p.
func (f *FindTargetDraft) CaptureAt(c platform.Capturer, p timeline.Point) {
	f.Patch, f.CapturedAt = nil, nil
	if c == nil {
		f.Status = "Capture failed: " + platform.ErrCaptureUnavailable.Error()
		return
	}
	img, err := c.CapturePatch(p, f.PatchSize)
	if err != nil {
		f.Status = fmt.Sprintf("Capture failed: %v", err)
		return
	}
	f.Patch, f.CapturedAt = img, p.Ptr()
	f.Status = "Captured"
}

// LoadFile replaces the patch with the contents of ImagePath. The capture
// position becomes current, which may be nil.
func (f *FindTargetDraft) LoadFile(current *timeline.Point) {
	path := strings.TrimSpace(f.ImagePath)
	if path == "" {
		f.Status = "Provide a path"
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.Status = fmt.Sprintf("Load failed: %v", err)
		return
	}
	f.Patch = data
	f.CapturedAt = nil
	if current != nil {
		f.CapturedAt = current.Ptr()
	}
	f.Status = "Loaded"
}

// Action builds the FindTarget action described by the dialog.
func (f FindTargetDraft) Action() (timeline.FindTarget, error) {
	if len(f.Patch) == 0 {
		return timeline.FindTarget{}, ErrNoImage
	}
	a := timeline.FindTarget{
		Image:     cloneBytes(f.Patch),
		PatchSize: f.PatchSize,
		Precision: f.Precision,
		TimeoutMS: f.TimeoutMS,
		Anchor:    f.Anchor,
	}
	if f.LimitRegion {
		size := f.RegionSize
		a.RegionSize = &size
	}
	return a, nil
}

// InsertFindTarget appends a FindTarget row at the last offset. The row is
// positioned at the capture point, else at current.
func (ed *Editor) InsertFindTarget(entries []timeline.Entry, f FindTargetDraft, current *timeline.Point) (Result, error) {
	a, err := f.Action()
	if err != nil {
		return Result{}, err
	}
	pos := f.CapturedAt
	if pos == nil {
		pos = current
	}
	e := timeline.Entry{Offset: timeline.LastOffset(entries), Action: a}
	if pos != nil {
		e.Pos = pos.Ptr()
	}

	out := append(timeline.Clone(entries), e)
	return Result{Entries: out, Selected: NoSelection, Status: "Added Find target row (move only)"}, nil
}
