package timeline

// Done is the progress sentinel meaning "no active row".
const Done = -1

// RowMap maps a compact entry index to the original row it was built from.
type RowMap []int

// Original translates a compact index to the original row.
// ok is false for the Done sentinel and for indices out of range.
func (m RowMap) Original(i int) (row int, ok bool) {
	if i < 0 || i >= len(m) {
		return 0, false
	}
	return m[i], true
}

// Materialize compacts runs of consecutive Move entries into a single
// MovesPolyline.
//
// Only Move rows form a run. Existing polylines pass through as deep copies
// like every other non-Move entry, so their own timing is kept. The new
// polyline takes the offset of the run's last entry, the run's last point as
// its position, and the metadata of the last entry in the run that carried
// any. A lone Move is left untouched. rows[i] is the index in entries of the
// last row contributing to compact[i].
func Materialize(entries []Entry) (compact []Entry, rows RowMap) {
	compact = make([]Entry, 0, len(entries))
	rows = make(RowMap, 0, len(entries))

	for i := 0; i < len(entries); {
		end := i
		for end < len(entries) && isMove(entries[end].Action) {
			end++
		}

		if end-i < 2 {
			compact = append(compact, entries[i].Clone())
			rows = append(rows, i)
			i++
			continue
		}

		compact = append(compact, collapseRun(entries[i:end]))
		rows = append(rows, end-1)
		i = end
	}

	return compact, rows
}

func isMove(a Action) bool {
	_, ok := a.(Move)
	return ok
}

// collapseRun builds a polyline from two or more Move entries.
func collapseRun(run []Entry) Entry {
	points := make([]Point, 0, len(run))
	var meta *ClickMeta
	for _, e := range run {
		mv := e.Action.(Move)
		points = append(points, Point{X: mv.X, Y: mv.Y})
		if e.Meta != nil {
			m := *e.Meta
			meta = &m
		}
	}

	end := points[len(points)-1]
	return Entry{
		Offset: run[len(run)-1].Offset,
		Action: MovesPolyline{Points: points},
		Pos:    &end,
		Meta:   meta,
	}
}

// Expand is the inverse sampling operation of Materialize. Every polyline
// becomes one Move row per point, all at the polyline's offset, with the
// polyline's metadata attached to the last row. Other entries are copied.
func Expand(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		poly, ok := e.Action.(MovesPolyline)
		if !ok {
			out = append(out, e.Clone())
			continue
		}
		for i, p := range poly.Points {
			pos := p
			row := Entry{
				Offset: e.Offset,
				Action: Move{X: p.X, Y: p.Y},
				Pos:    &pos,
			}
			if i == len(poly.Points)-1 && e.Meta != nil {
				m := *e.Meta
				row.Meta = &m
			}
			out = append(out, row)
		}
	}
	return out
}

// IsCompact returns true if entries contains no pair of adjacent Move rows
// that Materialize would merge.
func IsCompact(entries []Entry) bool {
	for i := 1; i < len(entries); i++ {
		if isMove(entries[i-1].Action) && isMove(entries[i].Action) {
			return false
		}
	}
	return true
}
