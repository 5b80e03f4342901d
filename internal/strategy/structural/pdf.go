package structural

import (
	"context"
	"fmt"
	"os"
	"strings"

	"rsc.io/pdf"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

// US Letter, used when a page carries no usable MediaBox.
const (
	fallbackWidth  = 612.0
	fallbackHeight = 792.0
)

func (s *Strategy) extractPDF(ctx context.Context, req strategy.Request) (doc *document.Document, err error) {
	// The reader panics on malformed input.
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("structural: reading %s: %v", req.Source, p)
		}
	}()

	f, err := os.Open(req.Source)
	if err != nil {
		return nil, fmt.Errorf("structural: open pdf: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("structural: stat pdf: %w", err)
	}
	r, err := pdf.NewReader(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("structural: open pdf: %w", err)
	}

	doc = strategy.NewDocument(req, document.FormatPDF)
	info := r.Trailer().Key("Info")
	doc.Metadata.Title = textlayout.Normalize(info.Key("Title").Text())
	if a := textlayout.Normalize(info.Key("Author").Text()); a != "" {
		doc.Metadata.Authors = []document.Author{{Name: a}}
	}
	doc.Metadata.Keywords = splitKeywords(info.Key("Keywords").Text())

	n := r.NumPage()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !req.Wants(i) {
			continue
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		_, height := pageSize(p.V)
		lines := textlayout.Lines(glyphs(p.Content().Text, height), s.layout)
		textlayout.Append(doc, i, textlayout.Blocks(lines))
	}
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = textlayout.FirstHeading(doc)
	}

	s.logger.Debug("structural.pdf.done",
		"source", req.Source,
		"pages", n,
		"elements", len(doc.Content),
		"tables", len(doc.Tables))
	return doc, nil
}

// glyphs converts text runs from the bottom-left origin used by PDF to the
// top-left origin of the document model.
func glyphs(texts []pdf.Text, height float64) []textlayout.Glyph {
	out := make([]textlayout.Glyph, 0, len(texts))
	for _, t := range texts {
		out = append(out, textlayout.Glyph{
			Text: t.S,
			X:    t.X,
			Y:    height - t.Y - t.FontSize,
			W:    t.W,
			Size: t.FontSize,
		})
	}
	return out
}

// pageSize reads the MediaBox, following the page tree for inherited boxes.
func pageSize(page pdf.Value) (w, h float64) {
	for v := page; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() != 4 {
			continue
		}
		w = box.Index(2).Float64() - box.Index(0).Float64()
		h = box.Index(3).Float64() - box.Index(1).Float64()
		if w > 0 && h > 0 {
			return w, h
		}
	}
	return fallbackWidth, fallbackHeight
}

func splitKeywords(s string) []string {
	var out []string
	for _, k := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if k = textlayout.Normalize(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
