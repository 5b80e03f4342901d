package document

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBoundingBoxOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b BoundingBox
		want bool
	}{
		{"disjoint horizontally", BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}, BoundingBox{X: 20, Y: 0, Width: 10, Height: 10}, false},
		{"disjoint vertically", BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}, BoundingBox{X: 0, Y: 11, Width: 10, Height: 10}, false},
		{"touching edges", BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}, BoundingBox{X: 10, Y: 0, Width: 10, Height: 10}, true},
		{"nested", BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}, BoundingBox{X: 10, Y: 10, Width: 5, Height: 5}, true},
		{"partial", BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}, BoundingBox{X: 5, Y: 5, Width: 10, Height: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() not symmetric: %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBoxEdges(t *testing.T) {
	tests := []struct {
		name          string
		box           BoundingBox
		right, bottom float64
		area          float64
	}{
		{"regular", BoundingBox{X: 72, Y: 54, Width: 108, Height: 18}, 180, 72, 1944},
		{"degenerate", BoundingBox{X: 5, Y: 5, Width: -1, Height: 3}, 4, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Right(); got != tt.right {
				t.Errorf("Right() = %v, want %v", got, tt.right)
			}
			if got := tt.box.Bottom(); got != tt.bottom {
				t.Errorf("Bottom() = %v, want %v", got, tt.bottom)
			}
			if got := tt.box.Area(); got != tt.area {
				t.Errorf("Area() = %v, want %v", got, tt.area)
			}
		})
	}
}

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBox{Page: 2, X: 10, Y: 10, Width: 10, Height: 10}
	b := BoundingBox{Page: 2, X: 5, Y: 15, Width: 30, Height: 2}
	got := a.Union(b)
	want := BoundingBox{Page: 2, X: 5, Y: 10, Width: 30, Height: 10}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Union() mismatch (-want +got):\n%s", diff)
	}
}

func TestDocumentPages(t *testing.T) {
	doc := &Document{
		Content: []ContentElement{
			{ID: "a", BBox: &BoundingBox{Page: 3}},
			{ID: "b"},
			{ID: "c", BBox: &BoundingBox{Page: 3}},
		},
		Tables:  []Table{{ID: "t", BBox: &BoundingBox{Page: 5}}},
		Figures: []Figure{{ID: "f", BBox: &BoundingBox{Page: 2}}},
	}
	want := []int{1, 2, 3, 5}
	if diff := cmp.Diff(want, doc.Pages()); diff != "" {
		t.Errorf("Pages() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"", "", false},
		{"academic_paper", CategoryAcademicPaper, false},
		{"Blog-Post", CategoryBlogPost, false},
		{" news_article ", CategoryNewsArticle, false},
		{"cookbook", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.pdf":       FormatPDF,
		"b.HTML":      FormatHTML,
		"scan.jpeg":   FormatJPG,
		"fax.TIF":     FormatTIFF,
		"photo.webp":  FormatWebP,
		"notes.md":    FormatMarkdown,
		"archive.zip": FormatOther,
	}
	for in, want := range tests {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
