// Package confidence scores how trustworthy an extracted document looks.
//
// Scores are heuristic estimates in [0,1] derived from text, layout, table
// and figure signals. They are not probabilities.
package confidence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thywilljoshua/docladder/internal/document"
)

const (
	DefaultMinText  = 0.65
	DefaultMinTable = 0.60
	DefaultMinPage  = 0.65

	// Page size used to normalize x variance and image density, in points.
	DefaultPageWidth  = 600.0
	DefaultPageHeight = 842.0

	multiColumnVariance = 0.02
	shortContentRunes   = 50
	shortElementRunes   = 10
)

// Calculator computes ExtractionConfidence. It holds only thresholds and is
// safe for concurrent use.
type Calculator struct {
	minText    float64
	minTable   float64
	minPage    float64
	pageWidth  float64
	pageHeight float64
}

type Option func(*Calculator)

// WithMinText sets the text score below which a page issue is reported.
func WithMinText(v float64) Option { return func(c *Calculator) { c.minText = v } }

// WithMinTable sets the table score below which a page issue is reported.
func WithMinTable(v float64) Option { return func(c *Calculator) { c.minTable = v } }

// WithMinPage sets the page score below which a page needs vision.
func WithMinPage(v float64) Option { return func(c *Calculator) { c.minPage = v } }

// WithPageSize overrides the assumed page size in points.
func WithPageSize(width, height float64) Option {
	return func(c *Calculator) {
		if width > 0 {
			c.pageWidth = width
		}
		if height > 0 {
			c.pageHeight = height
		}
	}
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		minText:    DefaultMinText,
		minTable:   DefaultMinTable,
		minPage:    DefaultMinPage,
		pageWidth:  DefaultPageWidth,
		pageHeight: DefaultPageHeight,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Calculate scores doc. It never fails; missing data yields neutral scores.
func (c *Calculator) Calculate(doc *document.Document) ExtractionConfidence {
	if doc == nil {
		doc = &document.Document{}
	}
	byPage := groupByPage(doc)

	pages := make([]PageConfidence, 0, len(byPage))
	for _, pg := range sortedPages(byPage) {
		pages = append(pages, c.pageConfidence(pg, byPage[pg]))
	}

	var flagged int
	var issues []string
	seen := map[string]bool{}
	for _, p := range pages {
		if p.NeedsVision {
			flagged++
		}
		for _, is := range p.Issues {
			if !seen[is] {
				seen[is] = true
				issues = append(issues, is)
			}
		}
	}

	out := ExtractionConfidence{
		Content:            c.contentScore(doc),
		Structure:          structureScore(doc),
		Pages:              pages,
		TotalPages:         len(pages),
		PagesNeedingVision: flagged,
		Issues:             issues,
	}
	scores := []float64{out.Content, out.Structure}
	weights := []float64{0.5, 0.3}
	if len(doc.Tables) > 0 {
		v := TablesScore(doc.Tables)
		out.Table = &v
		scores = append(scores, v)
		weights = append(weights, 0.1)
	}
	if len(doc.Figures) > 0 {
		v := FiguresScore(doc.Figures)
		out.Figure = &v
		scores = append(scores, v)
		weights = append(weights, 0.1)
	}
	var total, sum float64
	for _, w := range weights {
		total += w
	}
	for i, s := range scores {
		sum += s * weights[i] / total
	}
	out.Overall = clamp(sum)
	return out
}

type pageEntities struct {
	content []document.ContentElement
	tables  []document.Table
	figures []document.Figure
}

// groupByPage partitions every entity by page. Entities without a bounding
// box land on page 1, and a document with no entities still yields page 1.
func groupByPage(doc *document.Document) map[int]*pageEntities {
	out := map[int]*pageEntities{}
	get := func(p int) *pageEntities {
		pe, ok := out[p]
		if !ok {
			pe = &pageEntities{}
			out[p] = pe
		}
		return pe
	}
	for _, e := range doc.Content {
		pe := get(document.PageOf(e.BBox))
		pe.content = append(pe.content, e)
	}
	for _, t := range doc.Tables {
		pe := get(document.PageOf(t.BBox))
		pe.tables = append(pe.tables, t)
	}
	for _, f := range doc.Figures {
		pe := get(document.PageOf(f.BBox))
		pe.figures = append(pe.figures, f)
	}
	if len(out) == 0 {
		get(1)
	}
	return out
}

func sortedPages(m map[int]*pageEntities) []int {
	out := make([]int, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

func (c *Calculator) pageConfidence(page int, pe *pageEntities) PageConfidence {
	pc := PageConfidence{Page: page}

	pc.Text = TextMetrics(pe.content)
	pc.TextScore = TextScore(pc.Text)
	if pc.TextScore < c.minText {
		pc.Issues = append(pc.Issues, fmt.Sprintf("Page %d: Low text quality (%.2f)", page, pc.TextScore))
	}

	pc.Layout = c.layoutMetrics(pe)
	pc.LayoutScore = LayoutScore(pc.Layout)
	if pc.Layout.MultiColumn {
		pc.Issues = append(pc.Issues, fmt.Sprintf("Page %d: Multi-column layout detected", page))
	}
	if pc.Layout.OverlappingBlocks {
		pc.Issues = append(pc.Issues, fmt.Sprintf("Page %d: Overlapping blocks detected", page))
	}

	scores := []float64{pc.TextScore, pc.LayoutScore}
	if len(pe.tables) > 0 {
		v := TablesScore(pe.tables)
		pc.TableScore = &v
		scores = append(scores, v)
		if v < c.minTable {
			pc.Issues = append(pc.Issues, fmt.Sprintf("Page %d: Low table confidence (%.2f)", page, v))
		}
	}
	if len(pe.figures) > 0 {
		v := FiguresScore(pe.figures)
		pc.FigureScore = &v
		scores = append(scores, v)
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	pc.Overall = clamp(sum / float64(len(scores)))
	pc.NeedsVision = pc.Overall < c.minPage
	return pc
}

// layoutMetrics runs a pairwise overlap test, quadratic in the number of
// boxed elements on the page. Pages carry tens of elements, not thousands.
func (c *Calculator) layoutMetrics(pe *pageEntities) LayoutMetrics {
	var m LayoutMetrics
	var xs []float64
	var boxes []document.BoundingBox
	for _, e := range pe.content {
		if e.Kind == document.KindHeading {
			m.HeadingCount++
		}
		if e.BBox != nil {
			xs = append(xs, e.BBox.X)
			boxes = append(boxes, *e.BBox)
		}
	}
	m.XPositionVariance = sampleVariance(xs)
	m.MultiColumn = m.XPositionVariance/(c.pageWidth*c.pageWidth) > multiColumnVariance

outer:
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if boxes[i].Overlaps(boxes[j]) {
				m.OverlappingBlocks = true
				break outer
			}
		}
	}

	var imageArea float64
	for _, f := range pe.figures {
		if f.BBox != nil {
			imageArea += f.BBox.Area()
		}
	}
	if pageArea := c.pageWidth * c.pageHeight; pageArea > 0 {
		m.ImageDensity = clamp(imageArea / pageArea)
	}
	return m
}

// LayoutScore converts layout metrics into a score.
func LayoutScore(m LayoutMetrics) float64 {
	score := 1.0
	if m.MultiColumn {
		score -= 0.2
	}
	if m.OverlappingBlocks {
		score -= 0.3
	}
	if m.ImageDensity > 0.5 {
		score -= 0.2
	}
	return clamp(score)
}

func (c *Calculator) contentScore(doc *document.Document) float64 {
	if len(doc.Content) == 0 {
		return 0.3
	}
	if runeLen(strings.TrimSpace(joinText(doc.Content))) < shortContentRunes {
		return 0.4
	}
	return TextScore(TextMetrics(doc.Content))
}

func structureScore(doc *document.Document) float64 {
	score := 1.0
	if !doc.HasHeading() {
		score -= 0.1
	}
	if strings.TrimSpace(doc.Metadata.Title) == "" {
		score -= 0.1
	}
	if len(doc.Content) > 0 {
		var total int
		for _, e := range doc.Content {
			total += runeLen(e.Text)
		}
		if float64(total)/float64(len(doc.Content)) < shortElementRunes {
			score -= 0.2
		}
	}
	return clamp(score)
}

func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
