package confidence

import "math"

// Level is a discrete bucket of an overall score, for reporting only.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelVeryLow Level = "very_low"
)

// LevelFor maps a score onto its level.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.85:
		return LevelHigh
	case score >= 0.70:
		return LevelMedium
	case score >= 0.50:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// TextQualityMetrics are character and word statistics over a run of text.
type TextQualityMetrics struct {
	AlphanumericRatio float64 `json:"alphanumeric_ratio"`
	ReplacementRatio  float64 `json:"replacement_char_ratio"`
	WhitespaceRatio   float64 `json:"whitespace_ratio"`
	AvgWordLength     float64 `json:"avg_word_length"`
	BrokenWordRatio   float64 `json:"broken_word_ratio"`
	EmptyBlockRatio   float64 `json:"empty_block_ratio"`
}

// LayoutMetrics describe how complex a page layout looks.
type LayoutMetrics struct {
	XPositionVariance float64 `json:"x_position_variance"`
	HeadingCount      int     `json:"heading_count"`
	MultiColumn       bool    `json:"has_multi_column"`
	OverlappingBlocks bool    `json:"has_overlapping_blocks"`
	ImageDensity      float64 `json:"image_density"`
}

type TableConfidenceMetrics struct {
	RowConsistency float64 `json:"row_consistency"`
	EmptyCellRatio float64 `json:"empty_cell_ratio"`
	RowCount       int     `json:"row_count"`
	ModalColumns   int     `json:"modal_columns"`
	Score          float64 `json:"score"`
}

type FigureConfidenceMetrics struct {
	HasCaption  bool    `json:"has_caption"`
	HasLabel    bool    `json:"has_label"`
	InvalidBBox bool    `json:"invalid_bbox"`
	Score       float64 `json:"score"`
}

// PageConfidence is the score of one page. Overall is the unweighted mean of
// the available sub-scores.
type PageConfidence struct {
	Page        int                `json:"page_number"`
	TextScore   float64            `json:"text_score"`
	LayoutScore float64            `json:"layout_score"`
	TableScore  *float64           `json:"table_score,omitempty"`
	FigureScore *float64           `json:"figure_score,omitempty"`
	Overall     float64            `json:"overall_score"`
	Text        TextQualityMetrics `json:"text_metrics"`
	Layout      LayoutMetrics      `json:"layout_metrics"`
	NeedsVision bool               `json:"needs_vision"`
	Issues      []string           `json:"issues,omitempty"`
}

// ExtractionConfidence is the document-level score. Table and figure scores
// are nil when the document has no tables or figures.
type ExtractionConfidence struct {
	Overall            float64          `json:"overall_score"`
	Content            float64          `json:"content_score"`
	Structure          float64          `json:"structure_score"`
	Table              *float64         `json:"table_score,omitempty"`
	Figure             *float64         `json:"figure_score,omitempty"`
	Pages              []PageConfidence `json:"page_confidences"`
	TotalPages         int              `json:"total_pages"`
	PagesNeedingVision int              `json:"pages_needing_vision"`
	Issues             []string         `json:"issues"`
}

// Level buckets the overall score.
func (c ExtractionConfidence) Level() Level { return LevelFor(c.Overall) }

// VisionPageRatio is the share of pages flagged for vision, 0 for no pages.
func (c ExtractionConfidence) VisionPageRatio() float64 {
	if c.TotalPages == 0 {
		return 0
	}
	return float64(c.PagesNeedingVision) / float64(c.TotalPages)
}

// NeedsFullVision reports whether the flagged share exceeds maxRatio, in which
// case a partial merge is not worthwhile.
func (c ExtractionConfidence) NeedsFullVision(maxRatio float64) bool {
	return c.VisionPageRatio() > maxRatio
}

// VisionPages lists flagged pages in page order.
func (c ExtractionConfidence) VisionPages() []int {
	var out []int
	for _, p := range c.Pages {
		if p.NeedsVision {
			out = append(out, p.Page)
		}
	}
	return out
}

// GoodPages lists pages that were not flagged.
func (c ExtractionConfidence) GoodPages() []int {
	var out []int
	for _, p := range c.Pages {
		if !p.NeedsVision {
			out = append(out, p.Page)
		}
	}
	return out
}

// Page returns the confidence of page n.
func (c ExtractionConfidence) Page(n int) (PageConfidence, bool) {
	for _, p := range c.Pages {
		if p.Page == n {
			return p, true
		}
	}
	return PageConfidence{}, false
}

// Summary is the flattened reporting view of an ExtractionConfidence.
type Summary struct {
	OverallScore       float64  `json:"overall_score"`
	Level              Level    `json:"level"`
	TotalPages         int      `json:"total_pages"`
	PagesNeedingVision int      `json:"pages_needing_vision"`
	VisionPageRatio    float64  `json:"vision_page_ratio"`
	NeedsFullVision    bool     `json:"needs_full_vision"`
	Issues             []string `json:"issues"`
}

// DefaultFullVisionRatio is the flagged-page share above which a full vision
// pass is recommended.
const DefaultFullVisionRatio = 0.30

// Summary reports against DefaultFullVisionRatio.
func (c ExtractionConfidence) Summary() Summary { return c.SummaryAt(DefaultFullVisionRatio) }

// SummaryAt reports NeedsFullVision against maxRatio.
func (c ExtractionConfidence) SummaryAt(maxRatio float64) Summary {
	issues := c.Issues
	if issues == nil {
		issues = []string{}
	}
	return Summary{
		OverallScore:       Round(c.Overall, 3),
		Level:              c.Level(),
		TotalPages:         c.TotalPages,
		PagesNeedingVision: c.PagesNeedingVision,
		VisionPageRatio:    Round(c.VisionPageRatio(), 3),
		NeedsFullVision:    c.NeedsFullVision(maxRatio),
		Issues:             issues,
	}
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
