// Package imagematch captures PNG patches from a framebuffer and locates them
// again by brute-force template search.
//
// The score of a candidate position is one minus the mean absolute RGB
// difference between the template and the screen, normalized to [0, 1].
// A score of 1 is a pixel-exact match.
package imagematch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/dshills/clickstorm/internal/platform"
	"github.com/dshills/clickstorm/internal/timeline"
)

// Errors returned by the matcher.
var (
	// ErrEmptyImage indicates a reference image with no data.
	ErrEmptyImage = errors.New("empty reference image")

	// ErrOutOfBounds indicates a capture centered outside the screen.
	ErrOutOfBounds = errors.New("capture outside screen bounds")
)

// Matcher searches a framebuffer for reference patches.
type Matcher struct {
	source platform.Framebuffer
}

// New creates a matcher reading from source.
func New(source platform.Framebuffer) *Matcher {
	return &Matcher{source: source}
}

// Prepare decodes the reference image for repeated searches.
// A nil region searches the whole screen.
func (m *Matcher) Prepare(img []byte, region *platform.Rect) (platform.Search, error) {
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}
	decoded, err := png.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("failed to decode reference image: %w", err)
	}
	s := &search{source: m.source, tmpl: toRGBA(decoded)}
	if region != nil {
		r := *region
		s.region = &r
	}
	return s, nil
}

type search struct {
	source platform.Framebuffer
	tmpl   *image.RGBA
	region *platform.Rect
}

func (s *search) Find(precision float32) (platform.Match, bool, error) {
	screen, err := s.source.Snapshot()
	if err != nil {
		return platform.Match{}, false, fmt.Errorf("failed to snapshot screen: %w", err)
	}
	area := screen.Bounds()
	if s.region != nil {
		area = area.Intersect(s.region.Bounds())
	}
	m, ok := Locate(toRGBA(screen), s.tmpl, area, precision)
	return m, ok, nil
}

// Locate returns the best position of tmpl inside area of screen whose score
// is at least precision. The returned point is the center of the match.
func Locate(screen, tmpl *image.RGBA, area image.Rectangle, precision float32) (platform.Match, bool) {
	tw, th := tmpl.Bounds().Dx(), tmpl.Bounds().Dy()
	area = area.Intersect(screen.Bounds())
	if tw == 0 || th == 0 || area.Dx() < tw || area.Dy() < th {
		return platform.Match{}, false
	}

	maxDiff := float64(tw * th * 3 * 255)
	threshold := float64(precision)
	best := -1.0
	var bestAt image.Point

	for y := area.Min.Y; y <= area.Max.Y-th; y++ {
		for x := area.Min.X; x <= area.Max.X-tw; x++ {
			floor := threshold
			if best > floor {
				floor = best
			}
			budget := int((1 - floor) * maxDiff)
			diff, complete := patchDiff(screen, tmpl, x, y, budget)
			if !complete {
				continue
			}
			score := 1 - float64(diff)/maxDiff
			if score >= threshold && score > best {
				best = score
				bestAt = image.Pt(x, y)
				if diff == 0 {
					return matchAt(bestAt, tw, th, best), true
				}
			}
		}
	}

	if best < 0 {
		return platform.Match{}, false
	}
	return matchAt(bestAt, tw, th, best), true
}

func matchAt(at image.Point, w, h int, score float64) platform.Match {
	return platform.Match{
		Pos:   timeline.Pt(at.X+w/2, at.Y+h/2),
		Score: float32(score),
	}
}

// patchDiff sums absolute channel differences of tmpl placed at (x, y).
// It stops early once the sum exceeds budget; complete is false then.
func patchDiff(screen, tmpl *image.RGBA, x, y, budget int) (diff int, complete bool) {
	tb := tmpl.Bounds()
	for ty := 0; ty < tb.Dy(); ty++ {
		so := screen.PixOffset(x, y+ty)
		to := tmpl.PixOffset(tb.Min.X, tb.Min.Y+ty)
		for tx := 0; tx < tb.Dx(); tx++ {
			for c := 0; c < 3; c++ {
				d := int(screen.Pix[so+c]) - int(tmpl.Pix[to+c])
				if d < 0 {
					d = -d
				}
				diff += d
			}
			so += 4
			to += 4
		}
		if diff > budget {
			return diff, false
		}
	}
	return diff, true
}

// Capture crops a square of size pixels centered on center and encodes it
// as PNG. The square is clipped to the screen.
func Capture(source platform.Framebuffer, center timeline.Point, size uint32) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("invalid patch size %d", size)
	}
	screen, err := source.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot screen: %w", err)
	}

	half := int(size) / 2
	rect := image.Rect(center.X-half, center.Y-half, center.X-half+int(size), center.Y-half+int(size))
	rect = rect.Intersect(screen.Bounds())
	if rect.Empty() {
		return nil, ErrOutOfBounds
	}

	patch := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(patch, patch.Bounds(), screen, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, patch); err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
