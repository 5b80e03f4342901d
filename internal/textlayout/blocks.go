package textlayout

import (
	"math"
	"regexp"
	"strings"
)

type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockTable
	BlockCode
)

// Block is a run of lines that belong together.
type Block struct {
	Kind  BlockKind
	Level int
	Lines []Line
}

// Text joins the block's lines. List bullets are stripped and code keeps
// its line breaks.
func (b Block) Text() string {
	parts := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		parts[i] = l.Text()
	}
	if b.Kind == BlockCode {
		return strings.Join(parts, "\n")
	}
	s := strings.Join(parts, " ")
	if b.Kind == BlockListItem {
		s = strings.TrimSpace(bulletRe.ReplaceAllString(s, ""))
	}
	return s
}

// Rows returns one row of cell texts per line.
func (b Block) Rows() [][]string {
	rows := make([][]string, len(b.Lines))
	for i, l := range b.Lines {
		row := make([]string, len(l.Cells))
		for j, c := range l.Cells {
			row[j] = c.Text
		}
		rows[i] = row
	}
	return rows
}

// Bounds returns the block's box as x, y, width, height.
func (b Block) Bounds() (x, y, w, h float64) {
	left, top := math.Inf(1), math.Inf(1)
	right, bottom := math.Inf(-1), math.Inf(-1)
	for _, l := range b.Lines {
		left = min(left, l.X())
		top = min(top, l.Y)
		right = max(right, l.Right())
		bottom = max(bottom, l.Bottom())
	}
	return left, top, right - left, bottom - top
}

var (
	// Numbered section headings such as "2.1 Results" or "Appendix B Data".
	numberedHeadingRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+\p{Lu}`)
	appendixHeadingRe = regexp.MustCompile(`^(?:Appendix|APPENDIX)\s+[A-Z](?:\.\d+)*\b`)
	// Table of contents entries end in a page number and are not headings.
	tocEntryRe = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)*|[IVXLCDM]+|[A-Z](?:\.\d+)*)\s+.+?\s+\d+\s*$`)
	bulletRe   = regexp.MustCompile(`^\s*[•◦▪‣·\-\*–]\s+`)
)

const (
	headingSizeRatio = 1.25
	maxHeadingWords  = 12
	maxTableRows     = 50
)

// headingLevel reports whether l reads as a heading and at what level.
func headingLevel(l Line, body float64) (int, bool) {
	text := l.Text()
	words := len(strings.Fields(text))
	if words == 0 || words > maxHeadingWords || tocEntryRe.MatchString(text) {
		return 0, false
	}
	if m := numberedHeadingRe.FindStringSubmatch(text); m != nil && !strings.HasSuffix(text, ".") {
		return min(strings.Count(m[1], ".")+1, 6), true
	}
	if appendixHeadingRe.MatchString(text) {
		return 1, true
	}
	if body > 0 && l.Size >= body*headingSizeRatio {
		switch r := l.Size / body; {
		case r >= 1.8:
			return 1, true
		case r >= 1.5:
			return 2, true
		default:
			return 3, true
		}
	}
	return 0, false
}

// tableRun returns how many lines starting at i form a space-aligned table:
// at least two consecutive lines with the same cell count of two or more.
func tableRun(lines []Line, i int) int {
	cols := len(lines[i].Cells)
	if cols < 2 {
		return 0
	}
	n := 1
	for i+n < len(lines) && n < maxTableRows && len(lines[i+n].Cells) == cols {
		n++
	}
	if n < 2 {
		return 0
	}
	return n
}

// Blocks segments lines into headings, list items, tables and paragraphs.
// Consecutive lines join a paragraph while the vertical gap stays under the
// line size and the font size does not change.
func Blocks(lines []Line) []Block {
	body := BodySize(lines)
	var out []Block
	var cur *Block
	closeCur := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if n := tableRun(lines, i); n > 0 {
			closeCur()
			out = append(out, Block{Kind: BlockTable, Lines: append([]Line(nil), lines[i:i+n]...)})
			i += n - 1
			continue
		}
		if lvl, ok := headingLevel(l, body); ok {
			closeCur()
			out = append(out, Block{Kind: BlockHeading, Level: lvl, Lines: []Line{l}})
			continue
		}
		if bulletRe.MatchString(l.Text()) {
			closeCur()
			cur = &Block{Kind: BlockListItem, Lines: []Line{l}}
			continue
		}
		if cur != nil && joins(cur, l) {
			cur.Lines = append(cur.Lines, l)
			continue
		}
		closeCur()
		cur = &Block{Kind: BlockParagraph, Lines: []Line{l}}
	}
	closeCur()
	return out
}

func joins(b *Block, l Line) bool {
	prev := b.Lines[len(b.Lines)-1]
	if math.Abs(prev.Size-l.Size) > 0.5 {
		return false
	}
	gap := l.Y - prev.Bottom()
	if gap > prev.Size {
		return false
	}
	if b.Kind == BlockListItem {
		return l.X() > b.Lines[0].X()
	}
	return true
}
