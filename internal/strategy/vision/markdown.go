package vision

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

// Vision output has no geometry. Blocks are stacked top to bottom in
// reading order on a letter-sized page so every entity is bound to its page
// and boxes never overlap.
const (
	marginX     = 50.0
	marginY     = 50.0
	textWidth   = 512.0
	lineHeight  = 14.0
	blockGap    = 6.0
	runesPerRow = 90
	figureW     = 300.0
	figureH     = 150.0
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// stacker hands out synthetic line geometry.
type stacker struct{ y float64 }

func (s *stacker) line(cells ...string) textlayout.Line {
	l := textlayout.Line{Y: s.y, Size: lineHeight}
	w := textWidth / float64(len(cells))
	for i, c := range cells {
		x := marginX + float64(i)*w
		l.Cells = append(l.Cells, textlayout.Cell{Text: c, X: x, Right: x + w})
	}
	s.y += lineHeight
	return l
}

// wrap lays a paragraph out over as many lines as its length needs. Joining
// the lines with spaces gives back the text.
func (s *stacker) wrap(t string) []textlayout.Line {
	var lines []textlayout.Line
	var cur []string
	n := 0
	for _, w := range strings.Fields(t) {
		if n > 0 && n+utf8.RuneCountInString(w) > runesPerRow {
			lines = append(lines, s.line(strings.Join(cur, " ")))
			cur, n = nil, 0
		}
		cur = append(cur, w)
		n += utf8.RuneCountInString(w) + 1
	}
	if len(cur) > 0 {
		lines = append(lines, s.line(strings.Join(cur, " ")))
	}
	return lines
}

func (s *stacker) gap() { s.y += blockGap }

// appendPage parses one page of markdown into blocks and appends them,
// followed by the page's figures.
func appendPage(doc *document.Document, p page) error {
	src := []byte(p.Markdown)
	root := md.Parser().Parse(text.NewReader(src))
	st := &stacker{y: marginY}
	var blocks []textlayout.Block
	add := func(kind textlayout.BlockKind, level int, lines []textlayout.Line) {
		if len(lines) == 0 {
			return
		}
		blocks = append(blocks, textlayout.Block{Kind: kind, Level: level, Lines: lines})
		st.gap()
	}

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Heading:
			add(textlayout.BlockHeading, n.Level, st.wrap(inlineText(doc, n, src)))
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock:
			if n.Parent() != nil && n.Parent().Kind() == ast.KindListItem {
				return ast.WalkSkipChildren, nil
			}
			add(textlayout.BlockParagraph, 0, st.wrap(inlineText(doc, n, src)))
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			var parts []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if c.Kind() == ast.KindParagraph || c.Kind() == ast.KindTextBlock {
					parts = append(parts, inlineText(doc, c, src))
				}
			}
			add(textlayout.BlockListItem, 0, st.wrap(strings.Join(parts, " ")))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var lines []textlayout.Line
			segs := n.Lines()
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				lines = append(lines, st.line(strings.TrimRight(string(seg.Value(src)), "\r\n")))
			}
			add(textlayout.BlockCode, 0, lines)
			return ast.WalkSkipChildren, nil
		case *east.Table:
			var lines []textlayout.Line
			for row := n.FirstChild(); row != nil; row = row.NextSibling() {
				var cells []string
				for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
					cells = append(cells, inlineText(doc, cell, src))
				}
				if len(cells) > 0 {
					lines = append(lines, st.line(cells...))
				}
			}
			add(textlayout.BlockTable, 0, lines)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return err
	}
	textlayout.Append(doc, p.Page, blocks)

	var figs int
	for _, f := range doc.Figures {
		if document.PageOf(f.BBox) == p.Page {
			figs++
		}
	}
	for _, f := range p.Figures {
		figs++
		caption := textlayout.Normalize(f.Caption)
		label := f.Label
		if label == "" {
			label = textlayout.FigureLabel(caption)
		}
		doc.Figures = append(doc.Figures, document.Figure{
			ID:      strategy.ElementID("f", p.Page, figs),
			Caption: caption,
			Label:   label,
			BBox:    &document.BoundingBox{Page: p.Page, X: marginX, Y: st.y, Width: figureW, Height: figureH},
		})
		st.y += figureH + blockGap
	}
	return nil
}

// inlineText flattens the inline children of n and records links on doc.
func inlineText(doc *document.Document, n ast.Node, src []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				b.Write(c.Segment.Value(src))
				if c.SoftLineBreak() || c.HardLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(c.Value)
			case *ast.AutoLink:
				b.Write(c.Label(src))
			case *ast.Link:
				start := b.Len()
				walk(c)
				doc.Links = append(doc.Links, document.Link{
					ID:   fmt.Sprintf("l%d", len(doc.Links)+1),
					Text: textlayout.Normalize(b.String()[start:]),
					URL:  string(c.Destination),
				})
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return textlayout.Normalize(b.String())
}
