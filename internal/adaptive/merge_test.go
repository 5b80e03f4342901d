package adaptive

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/thywilljoshua/docladder/internal/confidence"
	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/pipeline"
)

func contentIDs(doc *document.Document) []string {
	ids := []string{}
	for _, e := range doc.Content {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestMerge(t *testing.T) {
	base := &document.Document{
		ID: "base",
		Content: []document.ContentElement{
			el("a1", 1, "one"),
			el("a2", 2, "two"),
			{ID: "nobox", Text: "floating"},
			el("a3", 3, "three"),
			el("a4", 4, "four"),
		},
		Tables:  []document.Table{{ID: "t2", BBox: box(2, 0, 0, 10, 10)}, {ID: "t3", BBox: box(3, 0, 0, 10, 10)}},
		Figures: []document.Figure{{ID: "f1", BBox: box(1, 0, 0, 10, 10)}},
		Links:   []document.Link{{URL: "https://example.com"}},
	}
	repl := &document.Document{
		Content: []document.ContentElement{
			el("v4", 4, "four again"),
			el("v2", 2, "two again"),
			el("v7", 7, "not requested"),
			{ID: "vnobox", Text: "vision floating"},
		},
		Tables: []document.Table{{ID: "vt2", BBox: box(2, 0, 0, 10, 10)}},
	}

	tests := []struct {
		name    string
		pages   []int
		policy  pipeline.PagelessPolicy
		content []string
		tables  []string
	}{
		{
			name:    "page one policy",
			pages:   []int{1, 2, 3},
			policy:  pipeline.PagelessAsPageOne,
			content: []string{"a3", "a4", "vnobox", "v2"},
			tables:  []string{"t3", "vt2"},
		},
		{
			name:    "keep policy",
			pages:   []int{2, 4},
			policy:  pipeline.PagelessKeep,
			content: []string{"a1", "nobox", "a3", "v2", "v4"},
			tables:  []string{"t3", "vt2"},
		},
		{
			name:    "page without replacement keeps base",
			pages:   []int{3},
			policy:  pipeline.PagelessAsPageOne,
			content: []string{"a1", "a2", "nobox", "a3", "a4"},
			tables:  []string{"t2", "t3"},
		},
		{
			name:    "no pages",
			policy:  pipeline.PagelessAsPageOne,
			content: []string{"a1", "a2", "nobox", "a3", "a4"},
			tables:  []string{"t2", "t3"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(base, repl, tt.pages, tt.policy)
			if diff := cmp.Diff(tt.content, contentIDs(got)); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
			var tables []string
			for _, tb := range got.Tables {
				tables = append(tables, tb.ID)
			}
			if diff := cmp.Diff(tt.tables, tables); diff != "" {
				t.Errorf("tables mismatch (-want +got):\n%s", diff)
			}
			if got.ID != "base" || len(got.Links) != 1 {
				t.Errorf("base fields lost: %+v", got)
			}
		})
	}

	if len(base.Content) != 5 || len(repl.Content) != 4 {
		t.Error("Merge modified its inputs")
	}
}

func TestMergeFigures(t *testing.T) {
	base := &document.Document{Figures: []document.Figure{{ID: "f1", BBox: box(1, 0, 0, 10, 10)}}}
	repl := &document.Document{Content: []document.ContentElement{el("v1", 1, "page one")}}
	got := Merge(base, repl, []int{1}, pipeline.PagelessAsPageOne)
	if len(got.Figures) != 0 {
		t.Errorf("figures = %+v, want page 1 figure replaced", got.Figures)
	}
	if got.Tables == nil || got.Figures == nil || got.Content == nil {
		t.Error("merged slices must be non-nil")
	}
}

func TestSelectPages(t *testing.T) {
	conf := confidence.ExtractionConfidence{Pages: []confidence.PageConfidence{
		{Page: 1, Overall: 0.9},
		{Page: 2, Overall: 0.6, NeedsVision: true},
		{Page: 3, Overall: 0.2, NeedsVision: true},
		{Page: 4, Overall: 0.5, NeedsVision: true},
		{Page: 5, Overall: 0.5, NeedsVision: true},
		{Page: 6, Overall: 0.1, NeedsVision: true},
	}}
	tests := []struct {
		max  int
		want []int
	}{
		{max: 0, want: []int{2, 3, 4, 5, 6}},
		{max: 10, want: []int{2, 3, 4, 5, 6}},
		{max: 2, want: []int{3, 6}},
		{max: 3, want: []int{3, 4, 6}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, selectPages(conf, tt.max)); diff != "" {
			t.Errorf("selectPages(max=%d) mismatch (-want +got):\n%s", tt.max, diff)
		}
	}
}

func TestReplaced(t *testing.T) {
	repl := &document.Document{
		Content: []document.ContentElement{el("v4", 4, "four"), el("v7", 7, "not requested"), {ID: "nobox"}},
		Tables:  []document.Table{{ID: "t2", BBox: box(2, 0, 0, 10, 10)}},
		Figures: []document.Figure{{ID: "f4", BBox: box(4, 0, 0, 10, 10)}},
	}
	tests := []struct {
		name   string
		repl   *document.Document
		pages  []int
		policy pipeline.PagelessPolicy
		want   []int
	}{
		{"page one policy", repl, []int{1, 2, 3, 4}, pipeline.PagelessAsPageOne, []int{1, 2, 4}},
		{"keep policy", repl, []int{1, 2, 3, 4}, pipeline.PagelessKeep, []int{2, 4}},
		{"nothing requested", repl, nil, pipeline.PagelessAsPageOne, nil},
		{"empty replacement", &document.Document{}, []int{2}, pipeline.PagelessAsPageOne, nil},
		{"only stray pages", &document.Document{Content: []document.ContentElement{el("v9", 9, "stray")}}, []int{2, 3}, pipeline.PagelessAsPageOne, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Replaced(tt.repl, tt.pages, tt.policy)); diff != "" {
				t.Errorf("Replaced() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
