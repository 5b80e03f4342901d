// Package layout is the layout-aware PDF tier. It groups positioned text
// into rows, splits two-column pages at their gutter and detects
// column-aligned tables.
package layout

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

const (
	// DefaultColumnGap is the horizontal gap, in points, that separates
	// columns and table cells.
	DefaultColumnGap = 30.0

	defaultSize    = 10.0
	minColumnRunes = 20
	charWidth      = 0.5
)

type Strategy struct {
	logger    *slog.Logger
	columnGap float64
}

type Option func(*Strategy)

func WithLogger(l *slog.Logger) Option {
	return func(s *Strategy) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithColumnGap(points float64) Option {
	return func(s *Strategy) {
		if points > 0 {
			s.columnGap = points
		}
	}
}

func New(opts ...Option) *Strategy {
	s := &Strategy{logger: slog.Default(), columnGap: DefaultColumnGap}
	for _, o := range opts {
		o(s)
	}
	return s
}

func Provider(opts ...Option) strategy.Provider {
	return func(context.Context) (strategy.Strategy, error) { return New(opts...), nil }
}

func (s *Strategy) Extract(ctx context.Context, req strategy.Request) (doc *document.Document, err error) {
	if f := document.FormatFromPath(req.Source); f != document.FormatPDF {
		return nil, fmt.Errorf("layout: %w: %s", strategy.ErrUnsupportedFormat, f)
	}
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("layout: reading %s: %v", req.Source, p)
		}
	}()

	f, err := os.Open(req.Source)
	if err != nil {
		return nil, fmt.Errorf("layout: open pdf: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("layout: stat pdf: %w", err)
	}
	r, err := pdf.NewReader(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("layout: open pdf: %w", err)
	}

	doc = strategy.NewDocument(req, document.FormatPDF)
	doc.Metadata.Title = textlayout.Normalize(r.Trailer().Key("Info").Key("Title").Text())

	opts := textlayout.Options{CellGap: s.columnGap}
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
		texts, err := pageText(p)
		if err != nil {
			s.logger.Warn("layout.page.failed", "source", req.Source, "page", i, "error", err)
			continue
		}
		lines := textlayout.Lines(glyphs(texts, pageHeight(p.V)), opts)
		for _, col := range columns(lines) {
			textlayout.Append(doc, i, textlayout.Blocks(col))
		}
	}
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = textlayout.FirstHeading(doc)
	}

	s.logger.Debug("layout.pdf.done",
		"source", req.Source,
		"pages", n,
		"elements", len(doc.Content),
		"tables", len(doc.Tables))
	return doc, nil
}

// pageText interprets the page content stream. The reader panics on
// operators it cannot parse; that fails the page, not the document.
func pageText(p pdf.Page) (texts []pdf.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("content stream: %v", r)
		}
	}()
	return p.Content().Text, nil
}

// glyphs converts text from the bottom-left origin used by PDF to the
// top-left origin of the document model. Fonts without a Widths array
// report zero advance, so widths are estimated from the size.
func glyphs(texts []pdf.Text, height float64) []textlayout.Glyph {
	out := make([]textlayout.Glyph, 0, len(texts))
	for _, t := range texts {
		size := t.FontSize
		if size <= 0 {
			size = defaultSize
		}
		w := t.W
		if w <= 0 {
			w = float64(utf8.RuneCountInString(strings.TrimSpace(t.S))) * size * charWidth
		}
		out = append(out, textlayout.Glyph{
			Text: t.S,
			X:    t.X,
			Y:    height - t.Y - size,
			W:    w,
			Size: size,
		})
	}
	return out
}

func pageHeight(page pdf.Value) float64 {
	for v := page; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() != 4 {
			continue
		}
		if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
			return h
		}
	}
	return 792
}

// columns splits a page at its gutter when most multi-cell lines are two
// long runs of prose. The left column comes first. Lines that do not reach
// the gutter stay in the left column.
func columns(lines []textlayout.Line) [][]textlayout.Line {
	var multi int
	var gutters []float64
	for _, l := range lines {
		if len(l.Cells) < 2 {
			continue
		}
		multi++
		if len(l.Cells) == 2 && runes(l.Cells[0].Text) >= minColumnRunes && runes(l.Cells[1].Text) >= minColumnRunes {
			gutters = append(gutters, l.Cells[1].X)
		}
	}
	if len(gutters) < 3 || len(gutters)*2 < multi {
		return [][]textlayout.Line{lines}
	}
	sort.Float64s(gutters)
	gutter := gutters[len(gutters)/2] - 5

	var left, right []textlayout.Line
	for _, l := range lines {
		var lc, rc []textlayout.Cell
		for _, c := range l.Cells {
			if c.X >= gutter {
				rc = append(rc, c)
			} else {
				lc = append(lc, c)
			}
		}
		if len(lc) > 0 {
			left = append(left, textlayout.Line{Cells: lc, Y: l.Y, Size: l.Size})
		}
		if len(rc) > 0 {
			right = append(right, textlayout.Line{Cells: rc, Y: l.Y, Size: l.Size})
		}
	}
	return [][]textlayout.Line{left, right}
}

func runes(s string) int { return utf8.RuneCountInString(s) }
