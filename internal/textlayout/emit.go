package textlayout

import (
	"regexp"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
)

var (
	tableCaptionRe  = regexp.MustCompile(`^(Table\s+\d+(?:\.\d+)*)\s*[:.\-–]?\s*`)
	figureCaptionRe = regexp.MustCompile(`^(Fig(?:ure|\.)?\s+\d+(?:\.\d+)*)\s*[:.\-–]?\s*`)
)

// TableLabel returns the "Table N" prefix of a caption, or "".
func TableLabel(caption string) string {
	if m := tableCaptionRe.FindStringSubmatch(caption); m != nil {
		return m[1]
	}
	return ""
}

// FigureLabel returns the "Figure N" prefix of a caption, or "".
func FigureLabel(caption string) string {
	if m := figureCaptionRe.FindStringSubmatch(caption); m != nil {
		return m[1]
	}
	return ""
}

// Append adds the entities for one page's blocks to doc. A "Table N"
// paragraph directly above or below a table becomes its caption. Element
// ids are unique within the page, so a page may be appended in several
// calls, one per column.
func Append(doc *document.Document, page int, blocks []Block) {
	var elems, tables int
	for _, e := range doc.Content {
		if document.PageOf(e.BBox) == page {
			elems++
		}
	}
	for _, t := range doc.Tables {
		if document.PageOf(t.BBox) == page {
			tables++
		}
	}
	captioned := map[int]bool{}

	for i, b := range blocks {
		if b.Kind != BlockTable {
			continue
		}
		x, y, w, h := b.Bounds()
		tables++
		t := document.Table{
			ID:   strategy.ElementID("t", page, tables),
			Rows: b.Rows(),
			BBox: &document.BoundingBox{Page: page, X: x, Y: y, Width: w, Height: h},
		}
		for _, j := range []int{i - 1, i + 1} {
			if j < 0 || j >= len(blocks) || captioned[j] || blocks[j].Kind != BlockParagraph {
				continue
			}
			if label := TableLabel(blocks[j].Text()); label != "" {
				t.Label = label
				t.Caption = blocks[j].Text()
				captioned[j] = true
				break
			}
		}
		doc.Tables = append(doc.Tables, t)
	}

	for i, b := range blocks {
		if b.Kind == BlockTable {
			continue
		}
		x, y, w, h := b.Bounds()
		elems++
		e := document.ContentElement{
			ID:   strategy.ElementID("e", page, elems),
			Text: b.Text(),
			BBox: &document.BoundingBox{Page: page, X: x, Y: y, Width: w, Height: h},
		}
		switch {
		case b.Kind == BlockHeading:
			e.Kind = document.KindHeading
			e.Level = b.Level
		case b.Kind == BlockListItem:
			e.Kind = document.KindListItem
		case b.Kind == BlockCode:
			e.Kind = document.KindCode
		case captioned[i] || figureCaptionRe.MatchString(e.Text):
			e.Kind = document.KindCaption
		default:
			e.Kind = document.KindParagraph
		}
		doc.Content = append(doc.Content, e)
	}
}

// FirstHeading returns the text of the first heading in doc, or "".
func FirstHeading(doc *document.Document) string {
	for _, e := range doc.Content {
		if e.Kind == document.KindHeading {
			return e.Text
		}
	}
	return ""
}
