package adaptive

import (
	"sort"

	"github.com/thywilljoshua/docladder/internal/confidence"
	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/pipeline"
)

// selectPages picks the flagged pages to send to the vision tier. When more
// pages are flagged than max allows, the lowest-scoring ones win, ties going
// to the lower page number. The result is in page order.
func selectPages(conf confidence.ExtractionConfidence, max int) []int {
	var flagged []confidence.PageConfidence
	for _, p := range conf.Pages {
		if p.NeedsVision {
			flagged = append(flagged, p)
		}
	}
	if max > 0 && len(flagged) > max {
		sort.SliceStable(flagged, func(i, j int) bool {
			if flagged[i].Overall != flagged[j].Overall {
				return flagged[i].Overall < flagged[j].Overall
			}
			return flagged[i].Page < flagged[j].Page
		})
		flagged = flagged[:max]
	}
	pages := make([]int, len(flagged))
	for i, p := range flagged {
		pages[i] = p.Page
	}
	sort.Ints(pages)
	return pages
}

// Replaced lists, in page order, the requested pages on which repl has at
// least one entity. These are the pages Merge takes from repl.
func Replaced(repl *document.Document, pages []int, policy pipeline.PagelessPolicy) []int {
	requested := map[int]bool{}
	for _, p := range pages {
		requested[p] = true
	}
	seen := map[int]bool{}
	var out []int
	mark := func(b *document.BoundingBox) {
		if b == nil && policy == pipeline.PagelessKeep {
			return
		}
		if p := document.PageOf(b); requested[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, e := range repl.Content {
		mark(e.BBox)
	}
	for _, t := range repl.Tables {
		mark(t.BBox)
	}
	for _, f := range repl.Figures {
		mark(f.BBox)
	}
	sort.Ints(out)
	return out
}

// Merge replaces the requested pages of base with the entities repl
// produced for them. A page is replaced only if repl has at least one entity
// on it; entities repl returned for other pages are dropped. The merged
// entity lists are the kept base entities in their original order followed
// by the replacement entities sorted by page. Every other field comes from
// base, and neither input is modified.
func Merge(base, repl *document.Document, pages []int, policy pipeline.PagelessPolicy) *document.Document {
	requested := map[int]bool{}
	for _, p := range pages {
		requested[p] = true
	}
	pageOf := func(b *document.BoundingBox) (int, bool) {
		if b == nil && policy == pipeline.PagelessKeep {
			return 0, false
		}
		return document.PageOf(b), true
	}
	inScope := func(b *document.BoundingBox) bool {
		p, ok := pageOf(b)
		return ok && requested[p]
	}

	replaced := map[int]bool{}
	for _, p := range Replaced(repl, pages, policy) {
		replaced[p] = true
	}
	keep := func(b *document.BoundingBox) bool {
		p, ok := pageOf(b)
		return !ok || !replaced[p]
	}

	merged := *base
	merged.Content = mergeEntities(base.Content, repl.Content,
		func(e document.ContentElement) *document.BoundingBox { return e.BBox }, keep, inScope)
	merged.Tables = mergeEntities(base.Tables, repl.Tables,
		func(t document.Table) *document.BoundingBox { return t.BBox }, keep, inScope)
	merged.Figures = mergeEntities(base.Figures, repl.Figures,
		func(f document.Figure) *document.BoundingBox { return f.BBox }, keep, inScope)
	merged.Links = append([]document.Link(nil), base.Links...)
	return &merged
}

func mergeEntities[T any](base, repl []T, bbox func(T) *document.BoundingBox, keep, inScope func(*document.BoundingBox) bool) []T {
	out := make([]T, 0, len(base)+len(repl))
	for _, v := range base {
		if keep(bbox(v)) {
			out = append(out, v)
		}
	}
	var add []T
	for _, v := range repl {
		if inScope(bbox(v)) {
			add = append(add, v)
		}
	}
	sort.SliceStable(add, func(i, j int) bool {
		return document.PageOf(bbox(add[i])) < document.PageOf(bbox(add[j]))
	})
	return append(out, add...)
}
