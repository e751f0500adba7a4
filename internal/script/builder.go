package script

import (
	"encoding/base64"
	"math"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Logger is the logging surface scripts need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}

// Config holds the defaults applied to rows a script builds.
type Config struct {
	// StepMS is the offset gap between consecutive rows.
	StepMS timeline.Millis

	// Meta is the metadata button rows start from.
	Meta timeline.ClickMeta

	// Defaults for find().
	PatchSize  uint32
	Precision  float32
	TimeoutMS  uint64
	RegionSize uint32
}

// DefaultConfig returns the builder defaults.
func DefaultConfig() Config {
	return Config{
		StepMS:     10,
		Meta:       timeline.DefaultClickMeta(),
		PatchSize:  64,
		Precision:  0.92,
		TimeoutMS:  2000,
		RegionSize: 600,
	}
}

var (
	buttonOptions = []string{"wait", "speed", "move", "image", "find", "precision", "timeout"}
	findOptions   = []string{"x", "y", "patch_size", "precision", "timeout", "anchor", "region"}
)

// Builder accumulates the rows emitted by a script.
type Builder struct {
	cfg     Config
	entries []timeline.Entry
	next    timeline.Millis
}

// NewBuilder creates an empty builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Entries returns a copy of the rows built so far.
func (b *Builder) Entries() []timeline.Entry {
	out := timeline.Clone(b.entries)
	if out == nil {
		out = []timeline.Entry{}
	}
	return out
}

// Len returns the number of rows built so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Install registers the builder's functions as globals of s.
func (b *Builder) Install(s *State) {
	s.RegisterFunc("move", b.luaMove)
	s.RegisterFunc("path", b.luaPath)
	s.RegisterFunc("wait", b.luaWait)
	s.RegisterFunc("click", b.button(timeline.EdgeAuto))
	s.RegisterFunc("double", b.button(timeline.EdgeDouble))
	s.RegisterFunc("down", b.button(timeline.EdgeDown))
	s.RegisterFunc("up", b.button(timeline.EdgeUp))
	s.RegisterFunc("find", b.luaFind)
}

func (b *Builder) add(e timeline.Entry) {
	e.Offset = b.next
	b.next += b.cfg.StepMS
	if w, ok := e.Action.(timeline.Wait); ok {
		b.next += timeline.Millis(w.MS)
	}
	b.entries = append(b.entries, e)
}

// move(x, y)
func (b *Builder) luaMove(L *lua.LState) int {
	p := timeline.Pt(L.CheckInt(1), L.CheckInt(2))
	b.add(timeline.Entry{Action: timeline.Move{X: p.X, Y: p.Y}, Pos: p.Ptr()})
	return 0
}

// path({{x, y}, {x, y}, ...})
func (b *Builder) luaPath(L *lua.LState) int {
	tbl := L.CheckTable(1)
	n := tbl.Len()
	if n < 2 {
		L.ArgError(1, "path needs at least two points")
		return 0
	}
	pts := make([]timeline.Point, n)
	for i := 1; i <= n; i++ {
		pt, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			L.ArgError(1, "path points must be {x, y} tables")
			return 0
		}
		x, okX := pt.RawGetInt(1).(lua.LNumber)
		y, okY := pt.RawGetInt(2).(lua.LNumber)
		if !okX || !okY {
			L.ArgError(1, "path points must be {x, y} tables")
			return 0
		}
		pts[i-1] = timeline.Pt(int(x), int(y))
	}
	b.add(timeline.Entry{Action: timeline.MovesPolyline{Points: pts}, Pos: pts[n-1].Ptr()})
	return 0
}

// wait(ms)
func (b *Builder) luaWait(L *lua.LState) int {
	ms := L.CheckInt64(1)
	if ms < 0 {
		L.ArgError(1, "wait must not be negative")
		return 0
	}
	b.add(timeline.Entry{Action: timeline.Wait{MS: uint64(ms)}})
	return 0
}

// button returns click/double/down/up: f(button [, x, y] [, opts]).
func (b *Builder) button(mode timeline.EdgeMode) lua.LGFunction {
	return func(L *lua.LState) int {
		btn, err := timeline.ParseButton(L.CheckString(1))
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}

		var pos *timeline.Point
		optsAt := 2
		if _, ok := L.Get(2).(lua.LNumber); ok {
			pos = timeline.Pt(L.CheckInt(2), L.CheckInt(3)).Ptr()
			optsAt = 4
		}
		opts := L.OptTable(optsAt, nil)

		meta := b.cfg.Meta.WithMode(btn, mode)
		var img []byte
		if opts != nil {
			checkOptions(L, opts, buttonOptions)
			meta.WaitMS = optUint16(L, opts, "wait", meta.WaitMS)
			meta.ClickSpeedMS = optUint16(L, opts, "speed", meta.ClickSpeedMS)
			meta.MoveMS = optUint16(L, opts, "move", meta.MoveMS)
			meta.UseFindImage = optBool(L, opts, "find", meta.UseFindImage)
			meta.TargetPrecision = optFloat(L, opts, "precision", meta.TargetPrecision)
			meta.TargetTimeoutMS = optUint64(L, opts, "timeout", meta.TargetTimeoutMS)
			img = optImage(L, opts, "image")
		}
		if meta.UseFindImage && len(img) == 0 {
			L.RaiseError("find = true needs an image")
			return 0
		}

		b.add(timeline.Entry{
			Action: timeline.NewButtonAction(btn, mode, img),
			Pos:    pos,
			Meta:   &meta,
		})
		return 0
	}
}

// find(png_base64 [, opts])
func (b *Builder) luaFind(L *lua.LState) int {
	img, err := decodeImage(L.CheckString(1))
	if err != nil || len(img) == 0 {
		L.ArgError(1, "find needs a base64 PNG")
		return 0
	}

	a := timeline.FindTarget{
		Image:     img,
		PatchSize: b.cfg.PatchSize,
		Precision: b.cfg.Precision,
		TimeoutMS: b.cfg.TimeoutMS,
		Anchor:    timeline.AnchorRecordedClick,
	}
	region := b.cfg.RegionSize
	a.RegionSize = &region

	var pos *timeline.Point
	if opts := L.OptTable(2, nil); opts != nil {
		checkOptions(L, opts, findOptions)
		a.PatchSize = uint32(optUint64(L, opts, "patch_size", uint64(a.PatchSize)))
		a.Precision = optFloat(L, opts, "precision", a.Precision)
		a.TimeoutMS = optUint64(L, opts, "timeout", a.TimeoutMS)
		if s := L.GetField(opts, "anchor"); s != lua.LNil {
			anchor, err := timeline.ParseAnchor(lua.LVAsString(s))
			if err != nil {
				L.RaiseError("%v", err)
				return 0
			}
			a.Anchor = anchor
		}
		switch v := L.GetField(opts, "region").(type) {
		case lua.LBool:
			if !bool(v) {
				a.RegionSize = nil
			}
		case lua.LNumber:
			size := uint32(optUint64(L, opts, "region", 0))
			a.RegionSize = &size
		}
		x, hasX := L.GetField(opts, "x").(lua.LNumber)
		y, hasY := L.GetField(opts, "y").(lua.LNumber)
		if hasX != hasY {
			L.RaiseError("find needs both x and y")
			return 0
		}
		if hasX {
			pos = timeline.Pt(int(x), int(y)).Ptr()
		}
	}

	b.add(timeline.Entry{Action: a, Pos: pos})
	return 0
}

// checkOptions raises an error for keys outside allowed.
func checkOptions(L *lua.LState, opts *lua.LTable, allowed []string) {
	var unknown []string
	opts.ForEach(func(k, _ lua.LValue) {
		if key := lua.LVAsString(k); !slices.Contains(allowed, key) {
			unknown = append(unknown, k.String())
		}
	})
	if len(unknown) > 0 {
		slices.Sort(unknown)
		L.RaiseError("unknown option(s): %s", strings.Join(unknown, ", "))
	}
}

func optNumber(L *lua.LState, opts *lua.LTable, key string) (float64, bool) {
	v := L.GetField(opts, key)
	if v == lua.LNil {
		return 0, false
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		L.RaiseError("option %q must be a number", key)
		return 0, false
	}
	if n < 0 {
		L.RaiseError("option %q must not be negative", key)
		return 0, false
	}
	return float64(n), true
}

func optUint16(L *lua.LState, opts *lua.LTable, key string, def uint16) uint16 {
	n, ok := optNumber(L, opts, key)
	if !ok {
		return def
	}
	return uint16(min(n, math.MaxUint16))
}

func optUint64(L *lua.LState, opts *lua.LTable, key string, def uint64) uint64 {
	n, ok := optNumber(L, opts, key)
	if !ok {
		return def
	}
	return uint64(n)
}

func optFloat(L *lua.LState, opts *lua.LTable, key string, def float32) float32 {
	n, ok := optNumber(L, opts, key)
	if !ok {
		return def
	}
	return float32(n)
}

func optBool(L *lua.LState, opts *lua.LTable, key string, def bool) bool {
	v := L.GetField(opts, key)
	if v == lua.LNil {
		return def
	}
	return lua.LVAsBool(v)
}

func optImage(L *lua.LState, opts *lua.LTable, key string) []byte {
	v := L.GetField(opts, key)
	if v == lua.LNil {
		return nil
	}
	img, err := decodeImage(lua.LVAsString(v))
	if err != nil {
		L.RaiseError("option %q: %v", key, err)
		return nil
	}
	return img
}

func decodeImage(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
