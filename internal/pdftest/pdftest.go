// Package pdftest builds small, uncompressed PDF files for tests of the
// PDF strategies. Every page shares one Helvetica font resource.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Text is one string shown at an absolute position. X and Y are in PDF
// user space: points from the bottom-left corner, Y at the baseline.
type Text struct {
	S    string
	X, Y float64
	Size float64
}

// Page is one page. When Stream is set it is used as the content stream
// verbatim and Texts is ignored. A zero size is US Letter.
type Page struct {
	Width, Height float64
	Texts         []Text
	Stream        string
}

// Doc describes a whole file.
type Doc struct {
	Title    string
	Author   string
	Keywords string
	// NoWidths omits the font's Widths array, so readers report zero
	// advance for every glyph.
	NoWidths bool
	Pages    []Page
}

// Bytes renders the document with a correct cross-reference table.
func (d Doc) Bytes() []byte {
	kids := make([]string, len(d.Pages))
	for i := range d.Pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}

	font := "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding"
	if !d.NoWidths {
		font += " /FirstChar 32 /LastChar 126 /Widths [" + strings.TrimSpace(strings.Repeat("500 ", 95)) + "]"
	}
	font += " >>"

	var info []string
	for _, kv := range [][2]string{{"Title", d.Title}, {"Author", d.Author}, {"Keywords", d.Keywords}} {
		if kv[1] != "" {
			info = append(info, "/"+kv[0]+" "+literal(kv[1]))
		}
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(d.Pages)),
		font,
		"<< " + strings.Join(info, " ") + " >>",
	}
	for i, p := range d.Pages {
		w, h := p.Width, p.Height
		if w <= 0 || h <= 0 {
			w, h = 612, 792
		}
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			num(w), num(h), 6+2*i))
		s := p.content()
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(s), s))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

// Write renders d into dir/name and returns the path.
func Write(tb testing.TB, dir, name string, d Doc) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, d.Bytes(), 0o644); err != nil {
		tb.Fatal(err)
	}
	return p
}

func (p Page) content() string {
	if p.Stream != "" {
		return p.Stream
	}
	var b strings.Builder
	for _, t := range p.Texts {
		size := t.Size
		if size <= 0 {
			size = 10
		}
		fmt.Fprintf(&b, "BT /F1 %s Tf %s %s Td %s Tj ET\n", num(size), num(t.X), num(t.Y), literal(t.S))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var escaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

func literal(s string) string { return "(" + escaper.Replace(s) + ")" }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// Report is a two-page fixture. Page 1 is US Letter and places every line
// absolutely, with a heading and paragraph above a captioned table. Page 2
// is A4 and moves between lines with relative operators.
func Report() Doc {
	return Doc{
		Title:    "Quarterly Sales",
		Author:   "Ada Analyst",
		Keywords: "sales, q3; revenue",
		Pages: []Page{
			{Texts: []Text{
				{S: "Introduction", X: 72, Y: 720, Size: 18},
				{S: "This paragraph has several words in it.", X: 72, Y: 700},
				{S: "Another line continues the paragraph.", X: 72, Y: 688},
				{S: "Table 1: Sales", X: 72, Y: 650},
				{S: "Region", X: 72, Y: 630},
				{S: "Revenue", X: 300, Y: 630},
				{S: "North", X: 72, Y: 618},
				{S: "120", X: 300, Y: 618},
				{S: "South", X: 72, Y: 606},
				{S: "80", X: 300, Y: 606},
			}},
			{
				Width:  595,
				Height: 842,
				Stream: "BT /F1 10 Tf 72 700 Td (First line) Tj 0 -12 Td (Second line) Tj 14 TL T* (Third line) Tj ET",
			},
		},
	}
}
