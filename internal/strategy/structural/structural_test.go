package structural

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"rsc.io/pdf"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/pdftest"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

const page = `<!doctype html>
<html>
<head>
  <title>Release notes</title>
  <meta name="author" content="Docs Team">
  <meta name="keywords" content="release, notes; changelog">
  <script>var x = 1;</script>
</head>
<body>
  <nav><a href="#top">Top</a></nav>
  <h1>Version 2.0</h1>
  <p>This release adds <a href="https://example.com/upgrade">an upgrade guide</a>.</p>
  <div class="wrapper">
    <h2>Changes</h2>
    <ul>
      <li>Faster parsing
        <ul><li>Twice as fast on large files</li></ul>
      </li>
      <li>Smaller binaries</li>
    </ul>
  </div>
  <pre>go install ./...
docladder parse report.pdf</pre>
  <table>
    <caption>Table 1: Supported formats</caption>
    <thead><tr><th>Format</th><th>Tier</th></tr></thead>
    <tbody>
      <tr><td>PDF</td><td>structural</td></tr>
      <tr><td colspan="2">HTML</td></tr>
    </tbody>
  </table>
  <figure>
    <img src="arch.png" alt="architecture">
    <figcaption>Figure 3. Pipeline overview</figcaption>
  </figure>
  <img src="logo.png" alt="Company logo">
  <style>.x{}</style>
</body>
</html>`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func newStrategy() *Strategy {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestExtractHTML(t *testing.T) {
	src := writeFile(t, "notes.html", page)
	doc, err := newStrategy().Extract(context.Background(), strategy.Request{Source: src, Category: document.CategoryTechnicalDoc})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if doc.Format != document.FormatHTML || doc.Category != document.CategoryTechnicalDoc || doc.Source.Path != src {
		t.Errorf("document header = %+v", doc)
	}
	wantMeta := document.Metadata{
		Title:    "Release notes",
		Authors:  []document.Author{{Name: "Docs Team"}},
		Keywords: []string{"release", "notes", "changelog"},
	}
	if diff := cmp.Diff(wantMeta, doc.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	type el struct {
		Kind  document.Kind
		Level int
		Text  string
	}
	var got []el
	for _, e := range doc.Content {
		got = append(got, el{e.Kind, e.Level, e.Text})
		if e.BBox != nil {
			t.Errorf("element %s has a bbox, want page-less", e.ID)
		}
	}
	want := []el{
		{document.KindHeading, 1, "Version 2.0"},
		{document.KindParagraph, 0, "This release adds an upgrade guide."},
		{document.KindHeading, 2, "Changes"},
		{document.KindListItem, 0, "Faster parsing"},
		{document.KindListItem, 0, "Twice as fast on large files"},
		{document.KindListItem, 0, "Smaller binaries"},
		{document.KindCode, 0, "go install ./...\ndocladder parse report.pdf"},
		{document.KindCaption, 0, "Figure 3. Pipeline overview"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	wantTables := []document.Table{{
		ID:      "p1-t1",
		Rows:    [][]string{{"Format", "Tier"}, {"PDF", "structural"}, {"HTML", ""}},
		Caption: "Table 1: Supported formats",
		Label:   "Table 1",
	}}
	if diff := cmp.Diff(wantTables, doc.Tables); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}

	wantFigures := []document.Figure{
		{ID: "p1-f1", Caption: "Figure 3. Pipeline overview", Label: "Figure 3"},
		{ID: "p1-f2", Caption: "Company logo"},
	}
	if diff := cmp.Diff(wantFigures, doc.Figures); diff != "" {
		t.Errorf("figures mismatch (-want +got):\n%s", diff)
	}

	wantLinks := []document.Link{{ID: "l1", Text: "an upgrade guide", URL: "https://example.com/upgrade"}}
	if diff := cmp.Diff(wantLinks, doc.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractHTMLTitleFallback(t *testing.T) {
	src := writeFile(t, "bare.html", `<html><body><h2>Getting started</h2><p>Install it.</p></body></html>`)
	doc, err := newStrategy().Extract(context.Background(), strategy.Request{Source: src})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Metadata.Title != "Getting started" {
		t.Errorf("title = %q, want first heading", doc.Metadata.Title)
	}
}

func TestExtractHTMLOutsideRequestedPages(t *testing.T) {
	src := writeFile(t, "notes.html", page)
	doc, err := newStrategy().Extract(context.Background(), strategy.Request{Source: src, Pages: []int{2}})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Content) != 0 || len(doc.Tables) != 0 {
		t.Errorf("got %d elements for page 2 of an HTML page, want none", len(doc.Content))
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"unsupported format", writeFile(t, "notes.docx", "PK"), strategy.ErrUnsupportedFormat},
		{"missing html", filepath.Join(t.TempDir(), "gone.html"), os.ErrNotExist},
		{"corrupt pdf", writeFile(t, "broken.pdf", "not a pdf at all"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newStrategy().Extract(context.Background(), strategy.Request{Source: tt.path})
			if err == nil || doc != nil {
				t.Fatalf("Extract() = %v, %v; want an error", doc, err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Extract() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExtractPDF(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "report.pdf", pdftest.Report())

	page1 := []document.ContentElement{
		{ID: "p1-e1", Kind: document.KindHeading, Level: 1, Text: "Introduction",
			BBox: &document.BoundingBox{Page: 1, X: 72, Y: 54, Width: 108, Height: 18}},
		{ID: "p1-e2", Kind: document.KindParagraph, Text: "This paragraph has several words in it. Another line continues the paragraph.",
			BBox: &document.BoundingBox{Page: 1, X: 72, Y: 82, Width: 195, Height: 22}},
		{ID: "p1-e3", Kind: document.KindCaption, Text: "Table 1: Sales",
			BBox: &document.BoundingBox{Page: 1, X: 72, Y: 132, Width: 70, Height: 10}},
	}
	// Page 2 is A4, so its top-left origin is measured from 842.
	page2 := []document.ContentElement{
		{ID: "p2-e1", Kind: document.KindParagraph, Text: "First line Second line Third line",
			BBox: &document.BoundingBox{Page: 2, X: 72, Y: 132, Width: 55, Height: 36}},
	}
	table := document.Table{
		ID:      "p1-t1",
		Rows:    [][]string{{"Region", "Revenue"}, {"North", "120"}, {"South", "80"}},
		Label:   "Table 1",
		Caption: "Table 1: Sales",
		BBox:    &document.BoundingBox{Page: 1, X: 72, Y: 152, Width: 263, Height: 34},
	}

	tests := []struct {
		name       string
		pages      []int
		want       []document.ContentElement
		wantTables []document.Table
	}{
		{"all pages", nil, append(page1, page2...), []document.Table{table}},
		{"first page only", []int{1}, page1, []document.Table{table}},
		{"second page only", []int{2}, page2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newStrategy().Extract(context.Background(), strategy.Request{Source: src, Pages: tt.pages, Category: document.CategoryReport})
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			wantMeta := document.Metadata{
				Title:    "Quarterly Sales",
				Authors:  []document.Author{{Name: "Ada Analyst"}},
				Keywords: []string{"sales", "q3", "revenue"},
			}
			if diff := cmp.Diff(wantMeta, doc.Metadata); diff != "" {
				t.Errorf("metadata mismatch (-want +got):\n%s", diff)
			}
			if doc.Format != document.FormatPDF || doc.Category != document.CategoryReport {
				t.Errorf("format, category = %q, %q", doc.Format, doc.Category)
			}
			if diff := cmp.Diff(tt.want, doc.Content); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantTables, doc.Tables); diff != "" {
				t.Errorf("tables mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtractPDFTitleFromHeading(t *testing.T) {
	src := pdftest.Write(t, t.TempDir(), "untitled.pdf", pdftest.Doc{Pages: []pdftest.Page{{Texts: []pdftest.Text{
		{S: "Overview", X: 72, Y: 720, Size: 20},
		{S: "Body text sits under the heading.", X: 72, Y: 690},
		{S: "It runs on for a second line.", X: 72, Y: 678},
	}}}})
	doc, err := newStrategy().Extract(context.Background(), strategy.Request{Source: src})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Metadata.Title != "Overview" {
		t.Errorf("title = %q, want first heading", doc.Metadata.Title)
	}
}

// Each extraction must release its file handle.
func TestExtractPDFClosesFile(t *testing.T) {
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("no /proc/self/fd: %v", err)
	}
	before := len(fds)

	src := pdftest.Write(t, t.TempDir(), "report.pdf", pdftest.Report())
	s := newStrategy()
	for range 20 {
		if _, err := s.Extract(context.Background(), strategy.Request{Source: src}); err != nil {
			t.Fatal(err)
		}
	}

	fds, err = os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Fatal(err)
	}
	if after := len(fds); after > before+2 {
		t.Errorf("open descriptors grew from %d to %d over 20 extractions", before, after)
	}
}

func TestGlyphsFlipOrigin(t *testing.T) {
	got := glyphs([]pdf.Text{{S: "A", X: 72, Y: 700, W: 7, FontSize: 12}}, 792)
	want := []textlayout.Glyph{{Text: "A", X: 72, Y: 80, W: 7, Size: 12}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("glyphs mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitKeywords(t *testing.T) {
	if diff := cmp.Diff([]string{"a b", "c"}, splitKeywords(" a  b ;c,, ")); diff != "" {
		t.Errorf("splitKeywords mismatch (-want +got):\n%s", diff)
	}
	if got := splitKeywords(""); got != nil {
		t.Errorf("splitKeywords(\"\") = %v, want nil", got)
	}
}
