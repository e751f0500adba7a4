package target

import (
	"errors"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/platform/sim"
	"github.com/dshills/clickstorm/internal/timeline"
)

type flag struct{ set atomic.Bool }

func (f *flag) Cancelled() bool { return f.set.Load() }

func drawMarker(d *sim.Desktop, x, y int) {
	d.Fill(platform.Rect{X: x, Y: y, W: 16, H: 16}, color.RGBA{B: 220, A: 255})
	d.Fill(platform.Rect{X: x, Y: y, W: 5, H: 5}, color.RGBA{R: 255, A: 255})
	d.Fill(platform.Rect{X: x + 10, Y: y + 8, W: 6, H: 8}, color.RGBA{G: 255, A: 255})
}

func setup(t *testing.T) (*Resolver, *sim.Desktop, *sim.Clock, []byte) {
	t.Helper()
	desk := sim.New(320, 240)
	drawMarker(desk, 20, 20)
	patch, err := desk.CapturePatch(timeline.Pt(28, 28), 16)
	if err != nil {
		t.Fatalf("CapturePatch() error = %v", err)
	}
	clock := sim.NewClock()
	return NewResolver(desk, clock), desk, clock, patch
}

func TestResolveFindsMovedTarget(t *testing.T) {
	r, desk, _, patch := setup(t)
	desk.Fill(platform.Rect{W: 320, H: 240}, color.Black)
	drawMarker(desk, 200, 150)

	st := &State{}
	got, err := r.Resolve(nil, Request{Image: patch, Precision: 0.9, Timeout: time.Second}, st)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != timeline.Pt(208, 158) {
		t.Errorf("Resolve() = %v, want (208,158)", got)
	}
	if st.LastFound == nil || *st.LastFound != got {
		t.Errorf("State.LastFound = %v, want %v", st.LastFound, got)
	}
}

func TestResolveTimeout(t *testing.T) {
	r, desk, clock, patch := setup(t)
	desk.Fill(platform.Rect{W: 320, H: 240}, color.Black)

	start := clock.Now()
	_, err := r.Resolve(nil, Request{Image: patch, Precision: 0.9, Timeout: 200 * time.Millisecond}, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Resolve() error = %v, want ErrTimeout", err)
	}
	if err.Error() != "FindTarget timed out (200 ms)" {
		t.Errorf("error message = %q", err.Error())
	}
	if elapsed := clock.Now().Sub(start); elapsed < 200*time.Millisecond || elapsed > 300*time.Millisecond {
		t.Errorf("elapsed = %v, want just past 200ms", elapsed)
	}
}

func TestResolveCancelled(t *testing.T) {
	r, desk, clock, patch := setup(t)
	desk.Fill(platform.Rect{W: 320, H: 240}, color.Black)

	c := &flag{}
	clock.OnSleep(func(time.Duration) {
		if clock.Sleeps() >= 2 {
			c.set.Store(true)
		}
	})

	_, err := r.Resolve(c, Request{Image: patch, Precision: 0.9, Timeout: 10 * time.Second}, nil)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Resolve() error = %v, want ErrCancelled", err)
	}
	if clock.Sleeps() != 2 {
		t.Errorf("retries after cancel: sleeps = %d, want 2", clock.Sleeps())
	}
}

func TestResolveMissingImage(t *testing.T) {
	r, _, _, _ := setup(t)
	if _, err := r.Resolve(nil, Request{Timeout: time.Second}, nil); !errors.Is(err, ErrMissingImage) {
		t.Errorf("Resolve() error = %v, want ErrMissingImage", err)
	}
}

func TestResolveBadImage(t *testing.T) {
	r, _, _, _ := setup(t)
	_, err := r.Resolve(nil, Request{Image: []byte("nope"), Timeout: time.Second}, nil)
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Errorf("Resolve() error = %v, want a decode failure", err)
	}
}

func TestResolveRegionBoundsSearch(t *testing.T) {
	r, desk, _, patch := setup(t)
	desk.Fill(platform.Rect{W: 320, H: 240}, color.Black)
	drawMarker(desk, 280, 200)

	size := uint32(100)
	req := Request{
		Image:      patch,
		Precision:  0.9,
		Timeout:    200 * time.Millisecond,
		Anchor:     timeline.AnchorRecordedClick,
		RegionSize: &size,
		Recorded:   timeline.Pt(20, 20).Ptr(),
	}
	if _, err := r.Resolve(nil, req, nil); !errors.Is(err, ErrTimeout) {
		t.Errorf("Resolve() outside region error = %v, want ErrTimeout", err)
	}

	req.Recorded = timeline.Pt(270, 190).Ptr()
	got, err := r.Resolve(nil, req, nil)
	if err != nil {
		t.Fatalf("Resolve() inside region error = %v", err)
	}
	if got != timeline.Pt(288, 208) {
		t.Errorf("Resolve() = %v, want (288,208)", got)
	}
}

func TestAnchor(t *testing.T) {
	recorded := timeline.Pt(1, 1)
	last := timeline.Pt(2, 2)
	live := timeline.Pt(3, 3)

	tests := []struct {
		name     string
		policy   timeline.Anchor
		recorded *timeline.Point
		last     *timeline.Point
		hasLive  bool
		want     *timeline.Point
	}{
		{"recorded", timeline.AnchorRecordedClick, &recorded, &last, true, &recorded},
		{"recorded missing", timeline.AnchorRecordedClick, nil, &last, true, nil},
		{"mouse live", timeline.AnchorCurrentMouse, &recorded, &last, true, &live},
		{"mouse falls back to recorded", timeline.AnchorCurrentMouse, &recorded, &last, false, &recorded},
		{"mouse falls back to last", timeline.AnchorCurrentMouse, nil, &last, false, &last},
		{"last found", timeline.AnchorLastFound, &recorded, &last, true, &last},
		{"last falls back to recorded", timeline.AnchorLastFound, &recorded, nil, true, &recorded},
		{"last falls back to live", timeline.AnchorLastFound, nil, nil, true, &live},
		{"nothing known", timeline.AnchorLastFound, nil, nil, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk := sim.New(10, 10)
			desk.SetCursor(live)
			if !tt.hasLive {
				desk.LoseCursor()
			}
			r := NewResolver(desk, sim.NewClock())

			got := r.Anchor(tt.policy, tt.recorded, &State{LastFound: tt.last})
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Anchor() = %v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Anchor() = %v, want %v", got, *tt.want)
			}
		})
	}
}

func TestRegion(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		center timeline.Point
		size   uint32
		want   *platform.Rect
	}{
		{"centered", 1920, 1080, timeline.Pt(960, 540), 600, &platform.Rect{X: 660, Y: 240, W: 600, H: 600}},
		{"top left corner", 1920, 1080, timeline.Pt(10, 10), 600, &platform.Rect{X: 0, Y: 0, W: 600, H: 600}},
		{"center off screen", 1920, 1080, timeline.Pt(5000, 5000), 600, &platform.Rect{X: 1320, Y: 480, W: 600, H: 600}},
		{"minimum size", 1920, 1080, timeline.Pt(960, 540), 50, &platform.Rect{X: 910, Y: 490, W: 100, H: 100}},
		{"larger than screen", 800, 600, timeline.Pt(400, 300), 1000, &platform.Rect{X: 0, Y: 0, W: 800, H: 600}},
		{"unknown screen", 0, 0, timeline.Pt(1, 1), 600, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Region(tt.w, tt.h, tt.center, tt.size, 100)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Region() = %+v, want nil", *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("Region() = %+v, want %+v", got, *tt.want)
			}
		})
	}
}

func TestLimitsClamp(t *testing.T) {
	l := DefaultLimits()
	if got := l.ClampPrecision(0.1); got != 0.5 {
		t.Errorf("ClampPrecision(0.1) = %v, want 0.5", got)
	}
	if got := l.ClampPrecision(1.5); got != 1.0 {
		t.Errorf("ClampPrecision(1.5) = %v, want 1.0", got)
	}
	if got := l.ClampTimeout(10 * time.Millisecond); got != 200*time.Millisecond {
		t.Errorf("ClampTimeout(10ms) = %v, want 200ms", got)
	}
	if got := l.ClampTimeout(time.Minute); got != 10*time.Second {
		t.Errorf("ClampTimeout(1m) = %v, want 10s", got)
	}
}

func TestForClickClampsTimeout(t *testing.T) {
	r := NewResolver(sim.New(10, 10), nil)
	meta := timeline.DefaultClickMeta()
	meta.TargetTimeoutMS = 50
	req := r.ForClick(meta, []byte{1}, nil)
	if req.Timeout != 200*time.Millisecond {
		t.Errorf("ForClick().Timeout = %v, want 200ms", req.Timeout)
	}
	if req.RegionSize != nil {
		t.Error("click rows should search the whole screen")
	}
}
