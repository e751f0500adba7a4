package editor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/clickstorm/internal/platform/sim"
	"github.com/dshills/clickstorm/internal/timeline"
)

func newTestEditor() (*Editor, *sim.Desktop) {
	desk := sim.New(200, 200)
	return New(desk), desk
}

func clickRow(offset timeline.Millis, b timeline.Button, x, y int) timeline.Entry {
	return timeline.Entry{
		Offset: offset,
		Action: timeline.ButtonClick{Button: b},
		Pos:    timeline.Pt(x, y).Ptr(),
		Meta:   timeline.DefaultClickMeta().Ptr(),
	}
}

// ==== Draft Tests ====

func TestNewDraftDefaults(t *testing.T) {
	d := NewDraft()
	if d.X != "0" || d.Y != "0" {
		t.Errorf("NewDraft() X/Y = %q/%q, want 0/0", d.X, d.Y)
	}
	if d.Target != timeline.ButtonLeft {
		t.Errorf("NewDraft().Target = %v, want left", d.Target)
	}
	if d.WaitMS != 20 || d.ClickSpeedMS != 20 || d.MoveMS != DefaultMoveMS {
		t.Errorf("NewDraft() timing = %d/%d/%d, want 20/20/20", d.WaitMS, d.ClickSpeedMS, d.MoveMS)
	}
	if d.PrecisionPercent != 90 || d.TimeoutMS != 2000 {
		t.Errorf("NewDraft() target = %d%%/%dms, want 90%%/2000ms", d.PrecisionPercent, d.TimeoutMS)
	}
	if d.UseFindImage {
		t.Error("NewDraft().UseFindImage = true, want false")
	}
}

func TestDraftClamps(t *testing.T) {
	tests := []struct {
		name string
		set  func(d *Draft)
		get  func(d Draft) uint16
		want uint16
	}{
		{"wait over", func(d *Draft) { d.SetWait(500) }, func(d Draft) uint16 { return d.WaitMS }, MaxWaitMS},
		{"wait negative", func(d *Draft) { d.SetWait(-5) }, func(d Draft) uint16 { return d.WaitMS }, 0},
		{"wait in range", func(d *Draft) { d.SetWait(120) }, func(d Draft) uint16 { return d.WaitMS }, 120},
		{"click speed over", func(d *Draft) { d.SetClickSpeed(250) }, func(d Draft) uint16 { return d.ClickSpeedMS }, MaxClickSpeedMS},
		{"click speed in range", func(d *Draft) { d.SetClickSpeed(45) }, func(d Draft) uint16 { return d.ClickSpeedMS }, 45},
		{"move over", func(d *Draft) { d.SetMoveSpeed(900) }, func(d Draft) uint16 { return d.MoveMS }, MaxMoveMS},
		{"move zero", func(d *Draft) { d.SetMoveSpeed(0) }, func(d Draft) uint16 { return d.MoveMS }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDraft()
			tt.set(&d)
			if got := tt.get(d); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetClickSpeedIgnoredForEdges(t *testing.T) {
	for _, mode := range []timeline.EdgeMode{timeline.EdgeDown, timeline.EdgeUp} {
		d := NewDraft()
		d.SetMode(timeline.ButtonLeft, mode)
		if d.SetClickSpeed(50) {
			t.Errorf("SetClickSpeed() with %v = true, want false", mode)
		}
		if d.ClickSpeedMS != 20 {
			t.Errorf("ClickSpeedMS with %v = %d, want 20", mode, d.ClickSpeedMS)
		}
	}

	d := NewDraft()
	d.SetMode(timeline.ButtonLeft, timeline.EdgeDouble)
	if !d.SetClickSpeed(50) || d.ClickSpeedMS != 50 {
		t.Errorf("SetClickSpeed() with double = %d, want 50", d.ClickSpeedMS)
	}
}

func TestSetModeOnlyTarget(t *testing.T) {
	d := NewDraft()
	if d.SetMode(timeline.ButtonRight, timeline.EdgeDown) {
		t.Error("SetMode() on a non-target button = true, want false")
	}
	if d.Modes[timeline.ButtonRight] != timeline.EdgeAuto {
		t.Errorf("Modes[right] = %v, want Auto", d.Modes[timeline.ButtonRight])
	}

	d.SetMoveSpeed(300)
	if !d.SetMode(timeline.ButtonLeft, timeline.EdgeUp) {
		t.Fatal("SetMode() on the target = false, want true")
	}
	if d.MoveMS != DefaultMoveMS {
		t.Errorf("MoveMS after SetMode() = %d, want %d", d.MoveMS, DefaultMoveMS)
	}
}

func TestSetTargetResetsMove(t *testing.T) {
	d := NewDraft()
	d.SetMoveSpeed(300)
	d.SetTarget(timeline.ButtonMiddle)
	if d.Target != timeline.ButtonMiddle {
		t.Errorf("Target = %v, want middle", d.Target)
	}
	if d.MoveMS != DefaultMoveMS {
		t.Errorf("MoveMS = %d, want %d", d.MoveMS, DefaultMoveMS)
	}
}

func TestDraftPoint(t *testing.T) {
	tests := []struct {
		x, y    string
		want    timeline.Point
		wantErr bool
	}{
		{"10", "20", timeline.Pt(10, 20), false},
		{" 12 ", "\t7", timeline.Pt(12, 7), false},
		{"-4", "0", timeline.Pt(-4, 0), false},
		{"abc", "1", timeline.Point{}, true},
		{"1", "", timeline.Point{}, true},
	}

	for _, tt := range tests {
		d := NewDraft()
		d.X, d.Y = tt.x, tt.y
		got, err := d.Point()
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidXY) {
				t.Errorf("Point(%q, %q) error = %v, want ErrInvalidXY", tt.x, tt.y, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Point(%q, %q) = %v, %v, want %v", tt.x, tt.y, got, err, tt.want)
		}
	}
}

func TestDraftKinds(t *testing.T) {
	patch := []byte{1, 2, 3}
	tests := []struct {
		name   string
		target timeline.Button
		modes  map[timeline.Button]timeline.EdgeMode
		want   []timeline.Action
	}{
		{
			name:   "all auto clicks the target",
			target: timeline.ButtonRight,
			want:   []timeline.Action{timeline.ButtonClick{Button: timeline.ButtonRight, Image: patch}},
		},
		{
			name:   "double builds a click",
			target: timeline.ButtonLeft,
			modes:  map[timeline.Button]timeline.EdgeMode{timeline.ButtonLeft: timeline.EdgeDouble},
			want:   []timeline.Action{timeline.ButtonClick{Button: timeline.ButtonLeft, Image: patch}},
		},
		{
			name:   "one row per non auto button",
			target: timeline.ButtonLeft,
			modes: map[timeline.Button]timeline.EdgeMode{
				timeline.ButtonMiddle: timeline.EdgeUp,
				timeline.ButtonLeft:   timeline.EdgeDown,
			},
			want: []timeline.Action{
				timeline.ButtonDown{Button: timeline.ButtonLeft, Image: patch},
				timeline.ButtonUp{Button: timeline.ButtonMiddle, Image: patch},
			},
		},
		{
			name:   "non auto mode on another button ignores the target",
			target: timeline.ButtonLeft,
			modes:  map[timeline.Button]timeline.EdgeMode{timeline.ButtonRight: timeline.EdgeDown},
			want:   []timeline.Action{timeline.ButtonDown{Button: timeline.ButtonRight, Image: patch}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDraft()
			d.Target = tt.target
			for b, m := range tt.modes {
				d.Modes[b] = m
			}
			got := d.Kinds(patch)
			if len(got) != len(tt.want) {
				t.Fatalf("Kinds() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				e := timeline.Entry{Action: got[i]}
				if !e.Equal(timeline.Entry{Action: tt.want[i]}) {
					t.Errorf("Kinds()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDraftKindsCopiesPatch(t *testing.T) {
	patch := []byte{9, 9}
	kinds := NewDraft().Kinds(patch)
	patch[0] = 0
	_, img, _ := timeline.ButtonOf(kinds[0])
	if img[0] != 9 {
		t.Error("Kinds() aliases the patch")
	}
}

func TestDraftMeta(t *testing.T) {
	d := NewDraft()
	d.Modes[timeline.ButtonRight] = timeline.EdgeDouble
	d.SetWait(40)
	d.UseFindImage = true
	d.PrecisionPercent = 85
	d.TimeoutMS = 3000

	m := d.Meta()
	if m.RightMode != timeline.EdgeDouble || m.LeftMode != timeline.EdgeAuto {
		t.Errorf("Meta() modes = %v/%v", m.LeftMode, m.RightMode)
	}
	if m.WaitMS != 40 || !m.UseFindImage {
		t.Errorf("Meta() = %+v", m)
	}
	if m.TargetPrecision != float32(85)/100 || m.TargetTimeoutMS != 3000 {
		t.Errorf("Meta() target = %v/%d, want 0.85/3000", m.TargetPrecision, m.TargetTimeoutMS)
	}
}

// ==== Load Tests ====

func TestLoadClickRow(t *testing.T) {
	m := timeline.DefaultClickMeta()
	m.RightMode = timeline.EdgeDouble
	m.WaitMS = 40
	m.ClickSpeedMS = 250
	m.MoveMS = 300
	m.UseFindImage = true
	e := timeline.Entry{
		Action: timeline.ButtonClick{Button: timeline.ButtonRight, Image: []byte{4}},
		Pos:    timeline.Pt(7, 8).Ptr(),
		Meta:   &m,
	}

	d := NewDraft().Load(e)
	if d.X != "7" || d.Y != "8" {
		t.Errorf("Load() X/Y = %q/%q, want 7/8", d.X, d.Y)
	}
	if d.Target != timeline.ButtonRight || d.Modes[timeline.ButtonRight] != timeline.EdgeDouble {
		t.Errorf("Load() target = %v mode %v, want right double", d.Target, d.Modes[timeline.ButtonRight])
	}
	if d.WaitMS != 40 {
		t.Errorf("Load() WaitMS = %d, want 40", d.WaitMS)
	}
	if d.ClickSpeedMS != MaxClickSpeedMS {
		t.Errorf("Load() ClickSpeedMS = %d, want %d", d.ClickSpeedMS, MaxClickSpeedMS)
	}
	if d.MoveMS != 300 {
		t.Errorf("Load() MoveMS = %d, want 300", d.MoveMS)
	}
	if !d.UseFindImage {
		t.Error("Load() UseFindImage = false, want true")
	}
	if !bytes.Equal(d.Patch, []byte{4}) {
		t.Errorf("Load() Patch = %v, want [4]", d.Patch)
	}
}

func TestLoadEdgeRowWithoutMeta(t *testing.T) {
	d := NewDraft()
	d.Modes[timeline.ButtonLeft] = timeline.EdgeDouble
	d.UseFindImage = true
	d.SetMoveSpeed(400)

	d = d.Load(timeline.Entry{Action: timeline.ButtonDown{Button: timeline.ButtonMiddle}})
	if d.Target != timeline.ButtonMiddle {
		t.Errorf("Load() target = %v, want middle", d.Target)
	}
	want := [timeline.NumButtons]timeline.EdgeMode{timeline.ButtonMiddle: timeline.EdgeDown}
	if d.Modes != want {
		t.Errorf("Load() modes = %v, want %v", d.Modes, want)
	}
	if d.UseFindImage {
		t.Error("Load() kept UseFindImage for a row without metadata")
	}
	if d.MoveMS != DefaultMoveMS {
		t.Errorf("Load() MoveMS = %d, want %d", d.MoveMS, DefaultMoveMS)
	}
	if d.X != "0" || d.Y != "0" {
		t.Errorf("Load() changed X/Y to %q/%q for a row without position", d.X, d.Y)
	}
}

// ==== Apply Tests ====

func TestApplyAppends(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{
		{Offset: 5, Action: timeline.Move{X: 1, Y: 1}, Pos: timeline.Pt(1, 1).Ptr()},
		{Offset: 10, Action: timeline.Wait{MS: 100}},
	}
	before := timeline.Clone(entries)

	d := NewDraft()
	d.X, d.Y = "50", "60"
	d.Modes[timeline.ButtonLeft] = timeline.EdgeDown
	d.Modes[timeline.ButtonRight] = timeline.EdgeUp

	res, err := ed.Apply(entries, NoSelection, d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Status != "Inserted click row" {
		t.Errorf("Apply() status = %q", res.Status)
	}
	if res.Selected != 2 {
		t.Errorf("Apply() selected = %d, want 2", res.Selected)
	}
	if len(res.Entries) != 4 {
		t.Fatalf("Apply() len = %d, want 4", len(res.Entries))
	}
	for i, want := range []timeline.Millis{11, 12} {
		got := res.Entries[2+i]
		if got.Offset != want {
			t.Errorf("row %d offset = %d, want %d", 2+i, got.Offset, want)
		}
		if got.Pos == nil || *got.Pos != timeline.Pt(50, 60) {
			t.Errorf("row %d pos = %v, want (50, 60)", 2+i, got.Pos)
		}
		if got.Meta == nil || got.Meta.LeftMode != timeline.EdgeDown {
			t.Errorf("row %d meta = %+v", 2+i, got.Meta)
		}
		if len(got.Image()) == 0 {
			t.Errorf("row %d has no preview image", 2+i)
		}
	}
	if _, ok := res.Entries[3].Action.(timeline.ButtonUp); !ok {
		t.Errorf("row 3 = %T, want ButtonUp", res.Entries[3].Action)
	}
	if !timeline.Equal(entries, before) {
		t.Error("Apply() mutated its input")
	}
}

func TestApplyUpdatesMove(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{
		{Offset: 0, Action: timeline.Move{X: 1, Y: 1}, Pos: timeline.Pt(1, 1).Ptr()},
	}
	d := NewDraft()
	d.X, d.Y = "7", "9"

	res, err := ed.Apply(entries, 0, d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Status != "Updated move at row 0" {
		t.Errorf("Apply() status = %q", res.Status)
	}
	mv, ok := res.Entries[0].Action.(timeline.Move)
	if !ok || mv != (timeline.Move{X: 7, Y: 9}) {
		t.Errorf("row 0 = %+v, want Move(7, 9)", res.Entries[0].Action)
	}
	if *res.Entries[0].Pos != timeline.Pt(7, 9) {
		t.Errorf("row 0 pos = %v, want (7, 9)", res.Entries[0].Pos)
	}
	if res.Entries[0].Meta != nil {
		t.Error("updating a move attached metadata")
	}
	if mv, _ := entries[0].Action.(timeline.Move); mv.X != 1 {
		t.Error("Apply() mutated its input")
	}
}

func TestApplyReplacesSelected(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{
		clickRow(10, timeline.ButtonLeft, 1, 1),
		{Offset: 20, Action: timeline.Wait{MS: 5}},
	}

	d := NewDraft()
	d.X, d.Y = "30", "40"
	d.Modes[timeline.ButtonLeft] = timeline.EdgeDown
	d.Modes[timeline.ButtonMiddle] = timeline.EdgeDown

	res, err := ed.Apply(entries, 0, d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if want := "Updated selected row and inserted 1 extra row(s)"; res.Status != want {
		t.Errorf("Apply() status = %q, want %q", res.Status, want)
	}
	if res.Selected != 0 || len(res.Entries) != 3 {
		t.Fatalf("Apply() selected %d len %d, want 0 and 3", res.Selected, len(res.Entries))
	}
	if down, ok := res.Entries[0].Action.(timeline.ButtonDown); !ok || down.Button != timeline.ButtonLeft {
		t.Errorf("row 0 = %+v, want left down", res.Entries[0].Action)
	}
	if res.Entries[0].Offset != 10 {
		t.Errorf("row 0 offset = %d, want 10", res.Entries[0].Offset)
	}
	if down, ok := res.Entries[1].Action.(timeline.ButtonDown); !ok || down.Button != timeline.ButtonMiddle {
		t.Errorf("row 1 = %+v, want middle down", res.Entries[1].Action)
	}
	if res.Entries[1].Offset != 11 {
		t.Errorf("row 1 offset = %d, want 11", res.Entries[1].Offset)
	}
	if _, ok := res.Entries[2].Action.(timeline.Wait); !ok {
		t.Errorf("row 2 = %T, want Wait", res.Entries[2].Action)
	}
}

func TestApplySingleReplacement(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{clickRow(0, timeline.ButtonLeft, 1, 1)}
	d := NewDraft()
	d.SetTarget(timeline.ButtonRight)

	res, err := ed.Apply(entries, 0, d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Status != "Updated selected row" {
		t.Errorf("Apply() status = %q", res.Status)
	}
	if b, _, _ := timeline.ButtonOf(res.Entries[0].Action); b != timeline.ButtonRight {
		t.Errorf("row 0 button = %v, want right", b)
	}
}

func TestApplyErrors(t *testing.T) {
	entries := []timeline.Entry{clickRow(0, timeline.ButtonLeft, 1, 1)}

	tests := []struct {
		name     string
		editor   *Editor
		selected int
		draft    func() Draft
		want     error
	}{
		{
			name:     "invalid coordinates",
			editor:   New(nil),
			selected: NoSelection,
			draft: func() Draft {
				d := NewDraft()
				d.X = "x"
				return d
			},
			want: ErrInvalidXY,
		},
		{
			name:     "selection out of range",
			editor:   New(nil),
			selected: 4,
			draft:    NewDraft,
			want:     ErrIndexOutOfRange,
		},
		{
			name:     "find image without a patch",
			editor:   New(nil),
			selected: NoSelection,
			draft: func() Draft {
				d := NewDraft()
				d.UseFindImage = true
				return d
			},
			want: ErrNoTargetImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.editor.Apply(entries, tt.selected, tt.draft())
			if !errors.Is(err, tt.want) {
				t.Errorf("Apply() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestApplyFindImageReusesPatch(t *testing.T) {
	ed, _ := newTestEditor()
	d := NewDraft()
	d.UseFindImage = true
	d.Patch = []byte{7, 7, 7}

	res, err := ed.Apply(nil, NoSelection, d)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !bytes.Equal(res.Entries[0].Image(), d.Patch) {
		t.Errorf("row image = %v, want the draft patch", res.Entries[0].Image())
	}
	if !res.Entries[0].Meta.UseFindImage {
		t.Error("row meta UseFindImage = false, want true")
	}
	if res.Entries[0].Offset != 1 {
		t.Errorf("row offset = %d, want 1", res.Entries[0].Offset)
	}
}

func TestApplyWithoutCapturer(t *testing.T) {
	res, err := New(nil).Apply(nil, NoSelection, NewDraft())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Entries[0].Image() != nil {
		t.Error("row has an image without a capturer")
	}
}

func TestCapture(t *testing.T) {
	ed, _ := newTestEditor()
	d := NewDraft()
	ed.Capture(&d, timeline.Pt(20, 30))
	if d.X != "20" || d.Y != "30" {
		t.Errorf("Capture() X/Y = %q/%q, want 20/30", d.X, d.Y)
	}
	if len(d.Patch) == 0 {
		t.Error("Capture() left no patch")
	}
}

// ==== Insert Below Tests ====

func TestInsertBelow(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{
		clickRow(0, timeline.ButtonLeft, 1, 1),
		clickRow(100, timeline.ButtonLeft, 2, 2),
	}

	if _, err := ed.InsertBelow(entries, NoSelection, NewDraft()); !errors.Is(err, ErrNoSelection) {
		t.Errorf("InsertBelow() without selection error = %v, want ErrNoSelection", err)
	}

	res, err := ed.InsertBelow(entries, 0, NewDraft())
	if err != nil {
		t.Fatalf("InsertBelow() error = %v", err)
	}
	if res.Status != "Inserted 1 row(s) below selected" {
		t.Errorf("InsertBelow() status = %q", res.Status)
	}
	if res.Selected != 1 || len(res.Entries) != 3 {
		t.Fatalf("InsertBelow() selected %d len %d, want 1 and 3", res.Selected, len(res.Entries))
	}
	if res.Entries[1].Offset != 1 {
		t.Errorf("inserted offset = %d, want 1", res.Entries[1].Offset)
	}
	if *res.Entries[2].Pos != timeline.Pt(2, 2) {
		t.Errorf("row 2 pos = %v, want the old row 1", res.Entries[2].Pos)
	}
}

func TestInsertBelowKeepsOrder(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{
		clickRow(10, timeline.ButtonLeft, 1, 1),
		clickRow(10, timeline.ButtonLeft, 2, 2),
	}
	d := NewDraft()
	d.Modes[timeline.ButtonLeft] = timeline.EdgeDown
	d.Modes[timeline.ButtonRight] = timeline.EdgeDown

	res, err := ed.InsertBelow(entries, 0, d)
	if err != nil {
		t.Fatalf("InsertBelow() error = %v", err)
	}
	if err := timeline.Validate(res.Entries); err != nil {
		t.Errorf("InsertBelow() produced an invalid timeline: %v", err)
	}
	for i, e := range res.Entries {
		if e.Offset != 10 {
			t.Errorf("row %d offset = %d, want 10", i, e.Offset)
		}
	}
}

// ==== Delete/Select Tests ====

func TestDelete(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{
		clickRow(0, timeline.ButtonLeft, 1, 1),
		clickRow(1, timeline.ButtonRight, 2, 2),
		clickRow(2, timeline.ButtonMiddle, 3, 3),
	}

	res, err := ed.Delete(entries, 1)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if res.Status != "Deleted row 1" || res.Selected != NoSelection {
		t.Errorf("Delete() = %q selected %d", res.Status, res.Selected)
	}
	if len(res.Entries) != 2 || *res.Entries[1].Pos != timeline.Pt(3, 3) {
		t.Errorf("Delete() entries = %+v", res.Entries)
	}
	if len(entries) != 3 {
		t.Error("Delete() mutated its input")
	}

	if _, err := ed.Delete(entries, 3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Delete(3) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestSelect(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{clickRow(0, timeline.ButtonRight, 11, 12)}

	d, err := ed.Select(entries, 0, NewDraft())
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if d.Target != timeline.ButtonRight || d.X != "11" || d.Y != "12" {
		t.Errorf("Select() draft = %+v", d)
	}
	if _, err := ed.Select(entries, -1, NewDraft()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Select(-1) error = %v, want ErrIndexOutOfRange", err)
	}
}

// ==== Wait Dialog Tests ====

func TestWaitDraftSetText(t *testing.T) {
	tests := []struct {
		text string
		want uint64
	}{
		{"250", 250},
		{" 42 ", 42},
		{"700000", MaxWaitRowMS},
		{"abc", DefaultWaitRowMS},
		{"-1", DefaultWaitRowMS},
	}

	for _, tt := range tests {
		w := NewWaitDraft()
		w.SetText(tt.text)
		if w.MS != tt.want {
			t.Errorf("SetText(%q) MS = %d, want %d", tt.text, w.MS, tt.want)
		}
		if w.Text != tt.text {
			t.Errorf("SetText(%q) Text = %q", tt.text, w.Text)
		}
	}
}

func TestInsertWait(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{clickRow(40, timeline.ButtonLeft, 1, 1)}
	w := NewWaitDraft()
	w.SetText("300")

	res := ed.InsertWait(entries, w)
	if res.Status != "Added Wait row" {
		t.Errorf("InsertWait() status = %q", res.Status)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("InsertWait() len = %d, want 2", len(res.Entries))
	}
	got := res.Entries[1]
	if wt, ok := got.Action.(timeline.Wait); !ok || wt.MS != 300 {
		t.Errorf("row 1 = %+v, want Wait 300", got.Action)
	}
	if got.Offset != 40 || got.Pos != nil || got.Meta != nil {
		t.Errorf("row 1 = %+v, want offset 40 without pos or meta", got)
	}

	res = ed.InsertWait(nil, w)
	if len(res.Entries) != 1 || res.Entries[0].Offset != 0 {
		t.Errorf("InsertWait(nil) = %+v", res.Entries)
	}
}

// ==== Find Target Dialog Tests ====

func TestFindTargetDraftDefaults(t *testing.T) {
	f := NewFindTargetDraft()
	if f.PatchSize != 64 || f.Precision != float32(0.92) || f.TimeoutMS != 2000 {
		t.Errorf("NewFindTargetDraft() = %+v", f)
	}
	if !f.LimitRegion || f.RegionSize != 600 || f.Anchor != timeline.AnchorRecordedClick {
		t.Errorf("NewFindTargetDraft() region = %v/%d/%v", f.LimitRegion, f.RegionSize, f.Anchor)
	}
}

func TestFindTargetDraftSetters(t *testing.T) {
	tests := []struct {
		name  string
		set   func(f *FindTargetDraft)
		check func(f FindTargetDraft) bool
	}{
		{"patch size low", func(f *FindTargetDraft) { f.SetPatchSize("4") }, func(f FindTargetDraft) bool { return f.PatchSize == MinPatchSize }},
		{"patch size high", func(f *FindTargetDraft) { f.SetPatchSize("4096") }, func(f FindTargetDraft) bool { return f.PatchSize == MaxPatchSize }},
		{"patch size invalid", func(f *FindTargetDraft) { f.SetPatchSize("big") }, func(f FindTargetDraft) bool { return f.PatchSize == DefaultPatchSize }},
		{"precision low", func(f *FindTargetDraft) { f.SetPrecision("0.2") }, func(f FindTargetDraft) bool { return f.Precision == float32(MinPrecision) }},
		{"precision high", func(f *FindTargetDraft) { f.SetPrecision("1.5") }, func(f FindTargetDraft) bool { return f.Precision == float32(MaxPrecision) }},
		{"precision in range", func(f *FindTargetDraft) { f.SetPrecision("0.75") }, func(f FindTargetDraft) bool { return f.Precision == float32(0.75) }},
		{"timeout low", func(f *FindTargetDraft) { f.SetTimeout("5") }, func(f FindTargetDraft) bool { return f.TimeoutMS == MinTargetTimeoutMS }},
		{"timeout high", func(f *FindTargetDraft) { f.SetTimeout("999999") }, func(f FindTargetDraft) bool { return f.TimeoutMS == MaxTargetTimeoutMS }},
		{"region low", func(f *FindTargetDraft) { f.SetRegionSize("10") }, func(f FindTargetDraft) bool { return f.RegionSize == MinRegionSize }},
		{"region high", func(f *FindTargetDraft) { f.SetRegionSize("9000") }, func(f FindTargetDraft) bool { return f.RegionSize == MaxRegionSize }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFindTargetDraft()
			tt.set(&f)
			if !tt.check(f) {
				t.Errorf("draft = %+v", f)
			}
		})
	}
}

func TestFindTargetDraftCapture(t *testing.T) {
	_, desk := newTestEditor()
	f := NewFindTargetDraft()
	f.CaptureAt(desk, timeline.Pt(50, 50))
	if f.Status != "Captured" {
		t.Errorf("CaptureAt() status = %q", f.Status)
	}
	if len(f.Patch) == 0 || f.CapturedAt == nil || *f.CapturedAt != timeline.Pt(50, 50) {
		t.Errorf("CaptureAt() patch %d bytes at %v", len(f.Patch), f.CapturedAt)
	}

	desk.FailCapture(errors.New("boom"))
	f.CaptureAt(desk, timeline.Pt(50, 50))
	if f.Status != "Capture failed: boom" {
		t.Errorf("CaptureAt() status = %q, want capture failure", f.Status)
	}
	if f.Patch != nil || f.CapturedAt != nil {
		t.Error("failed capture kept the previous patch")
	}
}

func TestFindTargetDraftLoadFile(t *testing.T) {
	f := NewFindTargetDraft()
	f.LoadFile(nil)
	if f.Status != "Provide a path" {
		t.Errorf("LoadFile() status = %q, want Provide a path", f.Status)
	}

	f.ImagePath = filepath.Join(t.TempDir(), "missing.png")
	f.LoadFile(nil)
	if !strings.HasPrefix(f.Status, "Load failed: ") {
		t.Errorf("LoadFile() status = %q, want a load failure", f.Status)
	}

	path := filepath.Join(t.TempDir(), "patch.png")
	if err := os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}
	f.ImagePath = "  " + path + " "
	current := timeline.Pt(3, 4)
	f.LoadFile(&current)
	if f.Status != "Loaded" {
		t.Errorf("LoadFile() status = %q, want Loaded", f.Status)
	}
	if !bytes.Equal(f.Patch, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("LoadFile() patch = %v", f.Patch)
	}
	if f.CapturedAt == nil || *f.CapturedAt != current {
		t.Errorf("LoadFile() CapturedAt = %v, want %v", f.CapturedAt, current)
	}
}

func TestInsertFindTarget(t *testing.T) {
	ed, _ := newTestEditor()
	entries := []timeline.Entry{clickRow(25, timeline.ButtonLeft, 1, 1)}
	current := timeline.Pt(9, 9)

	if _, err := ed.InsertFindTarget(entries, NewFindTargetDraft(), &current); !errors.Is(err, ErrNoImage) {
		t.Errorf("InsertFindTarget() without image error = %v, want ErrNoImage", err)
	}

	f := NewFindTargetDraft()
	f.Patch = []byte{1}
	f.Anchor = timeline.AnchorLastFound
	res, err := ed.InsertFindTarget(entries, f, &current)
	if err != nil {
		t.Fatalf("InsertFindTarget() error = %v", err)
	}
	if res.Status != "Added Find target row (move only)" {
		t.Errorf("InsertFindTarget() status = %q", res.Status)
	}
	row := res.Entries[1]
	ft, ok := row.Action.(timeline.FindTarget)
	if !ok {
		t.Fatalf("row 1 = %T, want FindTarget", row.Action)
	}
	if ft.RegionSize == nil || *ft.RegionSize != DefaultRegionSize || ft.Anchor != timeline.AnchorLastFound {
		t.Errorf("row 1 = %+v", ft)
	}
	if row.Offset != 25 || row.Pos == nil || *row.Pos != current || row.Meta != nil {
		t.Errorf("row 1 = %+v, want offset 25 at the current position", row)
	}

	f.LimitRegion = false
	f.CapturedAt = timeline.Pt(5, 6).Ptr()
	res, err = ed.InsertFindTarget(entries, f, &current)
	if err != nil {
		t.Fatalf("InsertFindTarget() error = %v", err)
	}
	row = res.Entries[1]
	if row.Action.(timeline.FindTarget).RegionSize != nil {
		t.Error("unlimited region kept a region size")
	}
	if *row.Pos != timeline.Pt(5, 6) {
		t.Errorf("row pos = %v, want the capture point", row.Pos)
	}
}
