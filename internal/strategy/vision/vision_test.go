package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	genai "google.golang.org/genai"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeGen struct {
	mu      sync.Mutex
	prompts []string
	mimes   []string
	reply   func(pages []int) string
	err     error
}

func (f *fakeGen) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	p := contents[0].Parts[0].Text
	f.mu.Lock()
	f.prompts = append(f.prompts, p)
	f.mimes = append(f.mimes, contents[0].Parts[1].InlineData.MIMEType)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if cfg == nil || cfg.ResponseMIMEType != "application/json" {
		return nil, errors.New("expected a JSON response config")
	}
	return textResponse(f.reply(pagesIn(p))), nil
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: s}}}}},
	}
}

var onlyPagesRe = regexp.MustCompile(`only pages ([\d, ]+) \(`)

func pagesIn(prompt string) []int {
	m := onlyPagesRe.FindStringSubmatch(prompt)
	if m == nil {
		return nil
	}
	var out []int
	for _, f := range strings.Split(m[1], ", ") {
		n, _ := strconv.Atoi(f)
		out = append(out, n)
	}
	return out
}

func simplePages(pages ...int) string {
	var r response
	for _, p := range pages {
		r.Pages = append(r.Pages, page{Page: p, Markdown: fmt.Sprintf("# Page %d\n\nBody text for page %d.", p, p)})
	}
	b, _ := json.Marshal(r)
	return string(b)
}

func writeSource(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExtractBatchesRequestedPages(t *testing.T) {
	gen := &fakeGen{reply: func(pages []int) string {
		for _, p := range pages {
			if p == 5 {
				// Pages outside the request are dropped.
				pages = append(pages, 9)
			}
		}
		return simplePages(pages...)
	}}
	s := New(gen, Config{BatchSize: 2}, WithLogger(quietLogger))

	doc, err := s.Extract(context.Background(), strategy.Request{Source: writeSource(t, "a.pdf"), Pages: []int{5, 1, 2, 3, 4, 2}})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	var batches [][]int
	for _, p := range gen.prompts {
		batches = append(batches, pagesIn(p))
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i][0] < batches[j][0] })
	if diff := cmp.Diff([][]int{{1, 2}, {3, 4}, {5}}, batches); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, doc.Pages()); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
	if got := doc.Content[2].ID; got != "p2-e1" {
		t.Errorf("third element id = %q, want p2-e1", got)
	}
	if doc.Metadata.Title != "Page 1" {
		t.Errorf("Title = %q, want first heading", doc.Metadata.Title)
	}
	if gen.mimes[0] != "application/pdf" {
		t.Errorf("mime = %q, want application/pdf", gen.mimes[0])
	}
}

func TestExtractWholeDocument(t *testing.T) {
	gen := &fakeGen{reply: func(pages []int) string {
		if pages != nil {
			t.Errorf("pages = %v, want whole-document request", pages)
		}
		return "```json\n" + simplePages(2, 1) + "\n```"
	}}
	s := New(gen, Config{}, WithLogger(quietLogger))

	doc, err := s.Extract(context.Background(), strategy.Request{Source: writeSource(t, "a.pdf")})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "every page") {
		t.Errorf("prompts = %d, want one whole-document prompt", len(gen.prompts))
	}
	if diff := cmp.Diff([]int{1, 2}, doc.Pages()); diff != "" {
		t.Errorf("pages mismatch (-want +got):\n%s", diff)
	}
	if doc.Content[0].ID != "p1-e1" {
		t.Errorf("first element = %q, want page 1 first", doc.Content[0].ID)
	}
}

const richPage = `# Results

Revenue grew in every region. See [the appendix](https://example.com/a).

- First point
- Second point
  - Nested point

` + "```go\nx := 1\n```" + `

Table 2: Sales by region

| Region | Sales |
|--------|-------|
| North  | 10    |
| South  | 20    |
`

func TestExtractMarkdownEntities(t *testing.T) {
	gen := &fakeGen{reply: func([]int) string {
		b, _ := json.Marshal(response{
			Title: "Annual  report",
			Pages: []page{{Page: 3, Markdown: richPage, Figures: []figure{{Caption: "Figure 1: Regional split"}}}},
		})
		return "Here is the JSON you asked for:\n" + string(b)
	}}
	s := New(gen, Config{}, WithLogger(quietLogger))

	doc, err := s.Extract(context.Background(), strategy.Request{Source: writeSource(t, "a.pdf"), Pages: []int{3}})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	type elem struct {
		ID    string
		Kind  document.Kind
		Level int
		Text  string
	}
	var got []elem
	for _, e := range doc.Content {
		got = append(got, elem{e.ID, e.Kind, e.Level, e.Text})
	}
	want := []elem{
		{"p3-e1", document.KindHeading, 1, "Results"},
		{"p3-e2", document.KindParagraph, 0, "Revenue grew in every region. See the appendix."},
		{"p3-e3", document.KindListItem, 0, "First point"},
		{"p3-e4", document.KindListItem, 0, "Second point"},
		{"p3-e5", document.KindListItem, 0, "Nested point"},
		{"p3-e6", document.KindCode, 0, "x := 1"},
		{"p3-e7", document.KindCaption, 0, "Table 2: Sales by region"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("content mismatch (-want +got):\n%s", diff)
	}

	if len(doc.Tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(doc.Tables))
	}
	tbl := doc.Tables[0]
	if diff := cmp.Diff([][]string{{"Region", "Sales"}, {"North", "10"}, {"South", "20"}}, tbl.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if tbl.ID != "p3-t1" || tbl.Label != "Table 2" || tbl.Caption != "Table 2: Sales by region" {
		t.Errorf("table = %q %q %q", tbl.ID, tbl.Label, tbl.Caption)
	}

	wantFig := []document.Figure{{ID: "p3-f1", Caption: "Figure 1: Regional split", Label: "Figure 1"}}
	if diff := cmp.Diff(wantFig, doc.Figures, cmpIgnoreBBox()); diff != "" {
		t.Errorf("figures mismatch (-want +got):\n%s", diff)
	}
	wantLinks := []document.Link{{ID: "l1", Text: "the appendix", URL: "https://example.com/a"}}
	if diff := cmp.Diff(wantLinks, doc.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	if doc.Metadata.Title != "Annual report" {
		t.Errorf("Title = %q, want Annual report", doc.Metadata.Title)
	}

	var boxes []*document.BoundingBox
	for _, e := range doc.Content {
		boxes = append(boxes, e.BBox)
	}
	boxes = append(boxes, tbl.BBox, doc.Figures[0].BBox)
	for i, b := range boxes {
		if b == nil || b.Page != 3 || !b.Valid() {
			t.Fatalf("box %d = %+v, want a valid box on page 3", i, b)
		}
		for j := range i {
			if b.Overlaps(*boxes[j]) {
				t.Errorf("box %d overlaps box %d", i, j)
			}
		}
	}
}

func cmpIgnoreBBox() cmp.Option {
	return cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".BBox" }, cmp.Ignore())
}

func TestExtractErrors(t *testing.T) {
	src := writeSource(t, "a.pdf")

	gen := &fakeGen{err: errors.New("quota exceeded")}
	if _, err := New(gen, Config{}, WithLogger(quietLogger)).Extract(context.Background(), strategy.Request{Source: src}); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("generator failure: error = %v", err)
	}

	gen = &fakeGen{reply: func([]int) string { return `{"pages": [{"page": 0, "markdown": "x"}]}` }}
	if _, err := New(gen, Config{}, WithLogger(quietLogger)).Extract(context.Background(), strategy.Request{Source: src}); err == nil {
		t.Error("schema violation: error = nil")
	}

	_, err := New(&fakeGen{}, Config{}).Extract(context.Background(), strategy.Request{Source: "page.html"})
	if !errors.Is(err, strategy.ErrUnsupportedFormat) {
		t.Errorf("html: error = %v, want ErrUnsupportedFormat", err)
	}
}

func writeJPEG(t *testing.T, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExtractImage(t *testing.T) {
	src := writeJPEG(t, "scan.jpg", 40, 20)
	gen := &fakeGen{reply: func([]int) string { return simplePages(4) }}
	s := New(gen, Config{}, WithLogger(quietLogger))

	doc, err := s.Extract(context.Background(), strategy.Request{Source: src})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if diff := cmp.Diff([]int{1}, doc.Pages()); diff != "" {
		t.Errorf("image pages mismatch (-want +got):\n%s", diff)
	}
	if gen.mimes[0] != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", gen.mimes[0])
	}

	doc, err = s.Extract(context.Background(), strategy.Request{Source: src, Pages: []int{2}})
	if err != nil || len(doc.Content) != 0 || len(gen.prompts) != 1 {
		t.Errorf("page 2 of an image: %d elements, %d calls, err %v", len(doc.Content), len(gen.prompts), err)
	}
}

func TestExtractImageDownscaled(t *testing.T) {
	src := writeJPEG(t, "poster.jpg", 400, 100)
	gen := &fakeGen{reply: func([]int) string { return simplePages(1) }}
	s := New(gen, Config{MaxImageSide: 100}, WithLogger(quietLogger))

	if _, err := s.Extract(context.Background(), strategy.Request{Source: src}); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if gen.mimes[0] != "image/png" {
		t.Errorf("mime = %q, want image/png after scaling", gen.mimes[0])
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		pages   int
		wantErr bool
	}{
		{"plain", `{"pages":[{"page":1,"markdown":"a"}]}`, 1, false},
		{"fenced", "```json\n{\"pages\":[{\"page\":1,\"markdown\":\"a\"},{\"page\":2,\"markdown\":\"b\"}]}\n```", 2, false},
		{"prose around", `Sure! {"pages":[{"page":1,"markdown":"a } b"}]} Hope this helps.`, 1, false},
		{"missing markdown", `{"pages":[{"page":1}]}`, 0, true},
		{"no json", "I cannot read this file.", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseResponse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(r.Pages) != tt.pages {
				t.Errorf("pages = %d, want %d", len(r.Pages), tt.pages)
			}
		})
	}
}

func TestFindFirstJSON(t *testing.T) {
	in := `note {"a": "curly } inside", "b": {"c": "\"}"}} trailing {"d": 1}`
	want := `{"a": "curly } inside", "b": {"c": "\"}"}}`
	if got := findFirstJSON(in); got != want {
		t.Errorf("findFirstJSON() = %q, want %q", got, want)
	}
}

func TestProviderRequiresKey(t *testing.T) {
	if _, err := Provider(Config{})(context.Background()); err == nil {
		t.Error("Provider() error = nil, want missing key error")
	}
}
