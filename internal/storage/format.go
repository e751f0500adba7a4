package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/clickstorm/internal/timeline"
)

// Format errors.
var (
	// ErrUnknownKind indicates a kind mapping naming no known variant.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrAmbiguousKind indicates a kind mapping without exactly one variant.
	ErrAmbiguousKind = errors.New("event kind must name exactly one variant")

	// ErrUnknownField indicates a field the format does not define.
	ErrUnknownField = errors.New("unknown field")
)

// eventDoc is the persisted form of timeline.Entry.
type eventDoc struct {
	MsFromStart uint64   `yaml:"ms_from_start"`
	Kind        kindDoc  `yaml:"kind"`
	Pos         *[2]int  `yaml:"pos"`
	ClickMeta   *metaDoc `yaml:"click_meta"`
}

// metaDoc is the persisted form of timeline.ClickMeta.
type metaDoc struct {
	LeftMode         string  `yaml:"left_mode"`
	RightMode        string  `yaml:"right_mode"`
	MiddleMode       string  `yaml:"middle_mode"`
	WaitMS           uint16  `yaml:"wait_ms"`
	ClickSpeedMS     uint16  `yaml:"click_speed_ms"`
	MouseMoveSpeedMS uint16  `yaml:"mouse_move_speed_ms"`
	UseFindImage     bool    `yaml:"use_find_image"`
	TargetPrecision  float32 `yaml:"target_precision"`
	TargetTimeoutMS  uint64  `yaml:"target_timeout_ms"`
}

type moveDoc struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type movesDoc struct {
	Points [][2]int `yaml:"points"`
}

type waitDoc struct {
	MS uint64 `yaml:"ms"`
}

type findTargetDoc struct {
	Patch      string  `yaml:"patch_png_base64"`
	PatchSize  uint32  `yaml:"patch_size"`
	Precision  float32 `yaml:"precision"`
	TimeoutMS  uint64  `yaml:"timeout_ms"`
	Anchor     string  `yaml:"search_anchor"`
	RegionSize *uint32 `yaml:"search_region_size"`
}

type buttonDoc struct {
	Patch *string `yaml:"patch_png_base64"`
}

var (
	moveFields       = []string{"x", "y"}
	movesFields      = []string{"points"}
	waitFields       = []string{"ms"}
	findTargetFields = []string{"patch_png_base64", "patch_size", "precision", "timeout_ms", "search_anchor", "search_region_size"}
	buttonFields     = []string{"patch_png_base64"}
)

// kindDoc is the externally tagged action. It is written as a single-key
// mapping (Move: {x: 1, y: 2}); decoding also accepts the tagged form
// (!Move {x: 1, y: 2}).
type kindDoc struct {
	Action timeline.Action
}

// MarshalYAML implements yaml.Marshaler.
func (k kindDoc) MarshalYAML() (any, error) {
	var name string
	var body any

	switch a := k.Action.(type) {
	case timeline.Move:
		name, body = "Move", moveDoc{X: a.X, Y: a.Y}
	case timeline.MovesPolyline:
		pts := make([][2]int, len(a.Points))
		for i, p := range a.Points {
			pts[i] = [2]int{p.X, p.Y}
		}
		name, body = "Moves", movesDoc{Points: pts}
	case timeline.Wait:
		name, body = "Wait", waitDoc{MS: a.MS}
	case timeline.FindTarget:
		name, body = "FindTarget", findTargetDoc{
			Patch:      base64.StdEncoding.EncodeToString(a.Image),
			PatchSize:  a.PatchSize,
			Precision:  a.Precision,
			TimeoutMS:  a.TimeoutMS,
			Anchor:     a.Anchor.String(),
			RegionSize: a.RegionSize,
		}
	case timeline.ButtonDown:
		name, body = variantName(a.Button, timeline.KindButtonDown), encodeButton(a.Image)
	case timeline.ButtonUp:
		name, body = variantName(a.Button, timeline.KindButtonUp), encodeButton(a.Image)
	case timeline.ButtonClick:
		name, body = variantName(a.Button, timeline.KindButtonClick), encodeButton(a.Image)
	default:
		return nil, timeline.ErrNilAction
	}

	return map[string]any{name: body}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (k *kindDoc) UnmarshalYAML(node *yaml.Node) error {
	name, body, err := splitVariant(node)
	if err != nil {
		return err
	}

	switch name {
	case "Move":
		var d moveDoc
		if err := decodeStrict(body, &d, moveFields); err != nil {
			return err
		}
		k.Action = timeline.Move{X: d.X, Y: d.Y}
		return nil

	case "Moves":
		var d movesDoc
		if err := decodeStrict(body, &d, movesFields); err != nil {
			return err
		}
		pts := make([]timeline.Point, len(d.Points))
		for i, p := range d.Points {
			pts[i] = timeline.Pt(p[0], p[1])
		}
		k.Action = timeline.MovesPolyline{Points: pts}
		return nil

	case "Wait":
		var d waitDoc
		if err := decodeStrict(body, &d, waitFields); err != nil {
			return err
		}
		k.Action = timeline.Wait{MS: d.MS}
		return nil

	case "FindTarget":
		var d findTargetDoc
		if err := decodeStrict(body, &d, findTargetFields); err != nil {
			return err
		}
		img, err := decodeImage(d.Patch)
		if err != nil {
			return err
		}
		anchor, err := timeline.ParseAnchor(d.Anchor)
		if err != nil {
			return fmt.Errorf("line %d: %w", body.Line, err)
		}
		k.Action = timeline.FindTarget{
			Image:      img,
			PatchSize:  d.PatchSize,
			Precision:  d.Precision,
			TimeoutMS:  d.TimeoutMS,
			Anchor:     anchor,
			RegionSize: d.RegionSize,
		}
		return nil
	}

	b, mode, ok := parseButtonVariant(name)
	if !ok {
		return fmt.Errorf("line %d: %w %q", node.Line, ErrUnknownKind, name)
	}
	var d buttonDoc
	if err := decodeStrict(body, &d, buttonFields); err != nil {
		return err
	}
	var img []byte
	if d.Patch != nil {
		if img, err = decodeImage(*d.Patch); err != nil {
			return err
		}
	}
	k.Action = timeline.NewButtonAction(b, mode, img)
	return nil
}

// splitVariant returns the variant name and body of an externally tagged node.
func splitVariant(node *yaml.Node) (string, *yaml.Node, error) {
	if node.Kind == yaml.MappingNode && strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!") {
		body := *node
		body.Tag = "!!map"
		return strings.TrimPrefix(node.Tag, "!"), &body, nil
	}
	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return "", nil, fmt.Errorf("line %d: %w", node.Line, ErrAmbiguousKind)
	}
	return node.Content[0].Value, node.Content[1], nil
}

// decodeStrict decodes a mapping node into out, rejecting keys outside
// allowed. A null body decodes as the zero value.
func decodeStrict(node *yaml.Node, out any, allowed []string) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return fmt.Errorf("line %d: %w %q", key.Line, ErrUnknownField, key.Value)
		}
	}
	return node.Decode(out)
}

func variantName(b timeline.Button, k timeline.Kind) string {
	var edge string
	switch k {
	case timeline.KindButtonDown:
		edge = "Down"
	case timeline.KindButtonUp:
		edge = "Up"
	default:
		edge = "Click"
	}
	return buttonPrefix(b) + edge
}

func buttonPrefix(b timeline.Button) string {
	switch b {
	case timeline.ButtonRight:
		return "Right"
	case timeline.ButtonMiddle:
		return "Middle"
	default:
		return "Left"
	}
}

func parseButtonVariant(name string) (timeline.Button, timeline.EdgeMode, bool) {
	for _, b := range timeline.Buttons {
		rest, ok := strings.CutPrefix(name, buttonPrefix(b))
		if !ok {
			continue
		}
		switch rest {
		case "Down":
			return b, timeline.EdgeDown, true
		case "Up":
			return b, timeline.EdgeUp, true
		case "Click":
			return b, timeline.EdgeAuto, true
		}
	}
	return 0, 0, false
}

func encodeButton(img []byte) buttonDoc {
	if len(img) == 0 {
		return buttonDoc{}
	}
	s := base64.StdEncoding.EncodeToString(img)
	return buttonDoc{Patch: &s}
}

func decodeImage(s string) ([]byte, error) {
	img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid patch_png_base64: %w", err)
	}
	return img, nil
}

func toDoc(e timeline.Entry) eventDoc {
	d := eventDoc{
		MsFromStart: uint64(e.Offset),
		Kind:        kindDoc{Action: e.Action},
	}
	if e.Pos != nil {
		d.Pos = &[2]int{e.Pos.X, e.Pos.Y}
	}
	if m := e.Meta; m != nil {
		d.ClickMeta = &metaDoc{
			LeftMode:         m.LeftMode.String(),
			RightMode:        m.RightMode.String(),
			MiddleMode:       m.MiddleMode.String(),
			WaitMS:           m.WaitMS,
			ClickSpeedMS:     m.ClickSpeedMS,
			MouseMoveSpeedMS: m.MoveMS,
			UseFindImage:     m.UseFindImage,
			TargetPrecision:  m.TargetPrecision,
			TargetTimeoutMS:  m.TargetTimeoutMS,
		}
	}
	return d
}

func fromDoc(d eventDoc) (timeline.Entry, error) {
	e := timeline.Entry{
		Offset: timeline.Millis(d.MsFromStart),
		Action: d.Kind.Action,
	}
	if d.Pos != nil {
		e.Pos = timeline.Pt(d.Pos[0], d.Pos[1]).Ptr()
	}
	if m := d.ClickMeta; m != nil {
		left, err := timeline.ParseEdgeMode(m.LeftMode)
		if err != nil {
			return e, fmt.Errorf("left_mode: %w", err)
		}
		right, err := timeline.ParseEdgeMode(m.RightMode)
		if err != nil {
			return e, fmt.Errorf("right_mode: %w", err)
		}
		middle, err := timeline.ParseEdgeMode(m.MiddleMode)
		if err != nil {
			return e, fmt.Errorf("middle_mode: %w", err)
		}
		e.Meta = &timeline.ClickMeta{
			LeftMode:        left,
			RightMode:       right,
			MiddleMode:      middle,
			WaitMS:          m.WaitMS,
			ClickSpeedMS:    m.ClickSpeedMS,
			MoveMS:          m.MouseMoveSpeedMS,
			UseFindImage:    m.UseFindImage,
			TargetPrecision: m.TargetPrecision,
			TargetTimeoutMS: m.TargetTimeoutMS,
		}
	}
	return e, nil
}
