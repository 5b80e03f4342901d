// Package markdown renders an extracted document as GitHub-flavored
// markdown with a YAML front matter block.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/thywilljoshua/docladder/internal/document"
)

// block is one renderable entity with its position in reading order.
type block struct {
	page int
	y    float64
	text string
	list bool
}

// Render returns the document as markdown. Tables and figures are placed
// among the content by page and vertical position; entities without a box
// follow the content of page 1 in extraction order.
func Render(doc *document.Document) string {
	var b strings.Builder
	if doc.Metadata.Title != "" {
		fmt.Fprintf(&b, "---\ntitle: \"%s\"\n", escapeQuotes(doc.Metadata.Title))
		if len(doc.Metadata.Authors) > 0 {
			names := make([]string, len(doc.Metadata.Authors))
			for i, a := range doc.Metadata.Authors {
				names[i] = "\"" + escapeQuotes(a.Name) + "\""
			}
			fmt.Fprintf(&b, "authors: [%s]\n", strings.Join(names, ", "))
		}
		b.WriteString("---\n\n")
	}

	captions := map[string]bool{}
	var blocks []block
	for _, e := range doc.Content {
		if e.Kind == document.KindCaption {
			captions[e.Text] = true
		}
		if s := renderElement(e); s != "" {
			p, y := position(e.BBox)
			blocks = append(blocks, block{page: p, y: y, text: s, list: e.Kind == document.KindListItem})
		}
	}
	for _, t := range doc.Tables {
		s := renderTable(t, !captions[t.Caption])
		if s == "" {
			continue
		}
		p, y := position(t.BBox)
		blocks = insert(blocks, block{page: p, y: y, text: s}, t.BBox != nil)
	}
	for _, f := range doc.Figures {
		caption := f.Caption
		if caption == "" {
			caption = f.Label
		}
		if caption == "" || captions[caption] {
			continue
		}
		p, y := position(f.BBox)
		blocks = insert(blocks, block{page: p, y: y, text: "*" + escapeInline(caption) + "*"}, f.BBox != nil)
	}

	for i, bl := range blocks {
		if i > 0 {
			if bl.list && blocks[i-1].list {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(bl.text)
	}
	if len(blocks) > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func position(bb *document.BoundingBox) (int, float64) {
	if bb == nil {
		return document.PageOf(nil), 0
	}
	return document.PageOf(bb), bb.Y
}

// insert places nb before the first block that follows it on the page, or
// after the last block of its page. Unpositioned blocks go after page 1.
func insert(blocks []block, nb block, positioned bool) []block {
	at := len(blocks)
	for i, b := range blocks {
		if b.page > nb.page || (positioned && b.page == nb.page && b.y > nb.y) {
			at = i
			break
		}
	}
	blocks = append(blocks, block{})
	copy(blocks[at+1:], blocks[at:])
	blocks[at] = nb
	return blocks
}

func renderElement(e document.ContentElement) string {
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return ""
	}
	switch e.Kind {
	case document.KindHeading:
		return strings.Repeat("#", min(max(e.Level, 1), 6)) + " " + escapeInline(text)
	case document.KindListItem:
		return "- " + escapeInline(text)
	case document.KindCode:
		return "```\n" + strings.TrimRight(e.Text, "\n") + "\n```"
	case document.KindCaption:
		return "*" + escapeInline(text) + "*"
	default:
		return escapeInline(text)
	}
}

// renderTable writes t as a pipe table with the first row as header.
// Ragged rows are padded.
func renderTable(t document.Table, withCaption bool) string {
	cols := 0
	for _, r := range t.Rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return ""
	}
	var b strings.Builder
	if withCaption && t.Caption != "" {
		b.WriteString("*" + escapeInline(t.Caption) + "*\n\n")
	}
	row := func(cells []string) {
		b.WriteString("|")
		for i := range cols {
			c := ""
			if i < len(cells) {
				c = escapeCell(cells[i])
			}
			b.WriteString(" " + c + " |")
		}
	}
	row(t.Rows[0])
	b.WriteString("\n|")
	for range cols {
		b.WriteString(" --- |")
	}
	for _, r := range t.Rows[1:] {
		b.WriteString("\n")
		row(r)
	}
	return b.String()
}

var inlineSpecial = regexp.MustCompile("^([#>]|[-+*] |\\d+[.)] )")

// escapeInline keeps text from being read as a block marker.
func escapeInline(s string) string {
	if !inlineSpecial.MatchString(s) {
		return s
	}
	if s[0] >= '0' && s[0] <= '9' {
		i := strings.IndexAny(s, ".)")
		return s[:i] + "\\" + s[i:]
	}
	return "\\" + s
}

func escapeCell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func escapeQuotes(s string) string { return strings.ReplaceAll(s, "\"", "\\\"") }

var nonSlug = regexp.MustCompile(`[^a-z0-9\-]+`)

// Slug turns a title into a file-name-safe slug.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "-", "/", "-", ".", "-").Replace(s)
	s = nonSlug.ReplaceAllString(s, "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
