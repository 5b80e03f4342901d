// Package textlayout turns positioned glyph runs into lines, blocks and
// document entities. It is shared by the PDF-based strategies.
//
// Coordinates are in points with a top-left origin; Y grows downwards.
package textlayout

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Glyph is one positioned run of text. Y is the top of the run.
type Glyph struct {
	Text string
	X, Y float64
	W    float64
	Size float64
}

// Cell is a horizontally contiguous run of text inside a line.
type Cell struct {
	Text  string
	X     float64
	Right float64
}

// Line is a set of cells sharing a baseline.
type Line struct {
	Cells []Cell
	Y     float64
	Size  float64
}

func (l Line) X() float64 { return l.Cells[0].X }

func (l Line) Right() float64 { return l.Cells[len(l.Cells)-1].Right }

func (l Line) Bottom() float64 { return l.Y + l.Size }

// Text joins the cells with single spaces.
func (l Line) Text() string {
	parts := make([]string, len(l.Cells))
	for i, c := range l.Cells {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// Options tune line grouping. Zero values pick size-relative defaults.
type Options struct {
	// LineTolerance is the maximum Y distance between runs on one line.
	LineTolerance float64
	// CellGap is the horizontal gap that starts a new cell.
	CellGap float64
}

func (o Options) tolerance(size float64) float64 {
	if o.LineTolerance > 0 {
		return o.LineTolerance
	}
	return max(size*0.5, 1)
}

func (o Options) cellGap(size float64) float64 {
	if o.CellGap > 0 {
		return o.CellGap
	}
	return max(size*1.5, 6)
}

// Normalize applies NFKC and collapses whitespace. Ligatures and
// full-width forms become their plain equivalents.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// Lines groups glyphs into lines ordered top to bottom, and each line's
// cells left to right. Glyphs with no visible text are dropped.
func Lines(glyphs []Glyph, opts Options) []Line {
	gs := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.Text != "" {
			gs = append(gs, g)
		}
	}
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Y != gs[j].Y {
			return gs[i].Y < gs[j].Y
		}
		return gs[i].X < gs[j].X
	})

	var rows [][]Glyph
	for _, g := range gs {
		if n := len(rows); n > 0 {
			last := rows[n-1]
			if g.Y-last[0].Y <= opts.tolerance(max(g.Size, last[0].Size)) {
				rows[n-1] = append(last, g)
				continue
			}
		}
		rows = append(rows, []Glyph{g})
	}

	out := make([]Line, 0, len(rows))
	for _, row := range rows {
		if l, ok := buildLine(row, opts); ok {
			out = append(out, l)
		}
	}
	return out
}

func buildLine(row []Glyph, opts Options) (Line, bool) {
	sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

	l := Line{Y: row[0].Y}
	for _, g := range row {
		l.Size = max(l.Size, g.Size)
	}

	var cur strings.Builder
	var cell Cell
	flush := func() {
		if t := Normalize(cur.String()); t != "" {
			cell.Text = t
			l.Cells = append(l.Cells, cell)
		}
		cur.Reset()
	}
	for i, g := range row {
		if i == 0 {
			cell = Cell{X: g.X, Right: g.X + g.W}
			cur.WriteString(g.Text)
			continue
		}
		gap := g.X - cell.Right
		switch {
		case gap > opts.cellGap(l.Size):
			flush()
			cell = Cell{X: g.X}
		case gap > l.Size*0.2:
			cur.WriteByte(' ')
		}
		cur.WriteString(g.Text)
		cell.Right = max(cell.Right, g.X+g.W)
	}
	flush()
	return l, len(l.Cells) > 0
}

// BodySize is the median line size, the reference for heading detection.
func BodySize(lines []Line) float64 {
	if len(lines) == 0 {
		return 0
	}
	sizes := make([]float64, len(lines))
	for i, l := range lines {
		sizes[i] = l.Size
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}
