package timeline

import "fmt"

// Describe renders an entry as the label and detail columns of the row list.
// prev is the position of the previous row; the returned position is what the
// next row should receive as prev.
func Describe(e Entry, prev *Point) (label, detail string, pos *Point) {
	switch a := e.Action.(type) {
	case Move:
		p := Point{X: a.X, Y: a.Y}
		return "MOVE|" + p.String(), moveDetail(e.Meta), &p

	case MovesPolyline:
		last := prev
		if n := len(a.Points); n > 0 {
			p := a.Points[n-1]
			last = &p
		}
		return "MOVES|(X,Y)", fmt.Sprintf("%d pts | %s", len(a.Points), moveDetail(e.Meta)), last

	case Wait:
		return "WAIT", fmt.Sprintf("wait %d ms", a.MS), prev

	case FindTarget:
		return "FIND|TARGET", waitDetail(e.Meta), orPoint(e.Pos, prev)

	case ButtonDown:
		at := orPoint(e.Pos, prev)
		return buttonLabel(a.Button, EdgeDown, e.Meta, at), waitDetail(e.Meta), at

	case ButtonUp:
		at := orPoint(e.Pos, prev)
		return buttonLabel(a.Button, EdgeUp, e.Meta, at), waitDetail(e.Meta), at

	case ButtonClick:
		at := orPoint(e.Pos, prev)
		return buttonLabel(a.Button, EdgeAuto, e.Meta, at), waitDetail(e.Meta), at
	}

	return "?", "", prev
}

// DescribeAll renders every row, threading the position through the list.
func DescribeAll(entries []Entry) (labels, details []string) {
	labels = make([]string, len(entries))
	details = make([]string, len(entries))
	var prev *Point
	for i, e := range entries {
		labels[i], details[i], prev = Describe(e, prev)
	}
	return labels, details
}

func waitDetail(meta *ClickMeta) string {
	var ms uint16
	if meta != nil {
		ms = meta.WaitMS
	}
	return fmt.Sprintf("wait %d ms", ms)
}

func moveDetail(meta *ClickMeta) string {
	if meta == nil {
		return waitDetail(nil)
	}
	return fmt.Sprintf("move %d ms | %s", meta.MoveMS, waitDetail(meta))
}

// buttonLabel formats "LEFT:CLICK|D:20ms|(x,y)". The mode comes from the
// metadata when present, otherwise from the row's own edge.
func buttonLabel(b Button, fallback EdgeMode, meta *ClickMeta, at *Point) string {
	mode := fallback
	speed := uint16(20)
	source := "(X,Y)"
	if at != nil {
		source = at.String()
	}
	if meta != nil {
		mode = meta.ModeFor(b)
		speed = meta.ClickSpeedMS
		if meta.UseFindImage {
			source = "TARGET"
		}
	}
	return fmt.Sprintf("%s:%s|D:%dms|%s", b.Tag(), mode.Tag(), speed, source)
}

func orPoint(p, fallback *Point) *Point {
	if p != nil {
		q := *p
		return &q
	}
	return fallback
}
