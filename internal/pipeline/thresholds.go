package pipeline

import "github.com/thywilljoshua/docladder/internal/document"

// Thresholds are the confidence floors below which a result is escalated.
type Thresholds struct {
	MinOverall float64 `json:"min_overall_confidence"`
	MinContent float64 `json:"min_content_confidence"`
	MinTable   float64 `json:"min_table_confidence"`
	MinFigure  float64 `json:"min_figure_confidence"`
	MinPage    float64 `json:"min_page_confidence"`

	// MaxVisionPageRatio caps the share of flagged pages that may be merged
	// from the vision tier. Above it the document needs a full vision pass.
	MaxVisionPageRatio float64 `json:"max_vision_page_ratio"`
}

// DefaultThresholds returns the profile used when no category matches.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinOverall:         0.70,
		MinContent:         0.75,
		MinTable:           0.65,
		MinFigure:          0.70,
		MinPage:            0.65,
		MaxVisionPageRatio: 0.30,
	}
}

// ShouldEscalate reports whether any supplied score is below its floor.
// A nil score is not applicable and never triggers escalation. This is an
// OR over dimensions, not a check on a weighted average.
func (t Thresholds) ShouldEscalate(overall float64, content, table, figure *float64) bool {
	if overall < t.MinOverall {
		return true
	}
	if content != nil && *content < t.MinContent {
		return true
	}
	if table != nil && *table < t.MinTable {
		return true
	}
	if figure != nil && *figure < t.MinFigure {
		return true
	}
	return false
}

// CategoryThresholds maps categories onto threshold profiles. The zero value
// is not useful; use DefaultCategoryThresholds.
type CategoryThresholds struct {
	byCategory map[document.Category]Thresholds
	fallback   Thresholds
}

func with(base Thresholds, overall, content, table, figure float64) Thresholds {
	base.MinOverall = overall
	base.MinContent = content
	base.MinTable = table
	base.MinFigure = figure
	return base
}

// DefaultCategoryThresholds registers the built-in profiles. News articles
// share the blog profile.
func DefaultCategoryThresholds() CategoryThresholds {
	d := DefaultThresholds()
	blog := with(d, 0.65, 0.70, 0.60, 0.60)
	return NewCategoryThresholds(d, map[document.Category]Thresholds{
		document.CategoryAcademicPaper: with(d, 0.75, 0.80, 0.75, 0.75),
		document.CategoryPlot:          with(d, 0.80, 0.70, 0.80, 0.90),
		document.CategoryTechnicalDoc:  with(d, 0.75, 0.80, 0.70, 0.70),
		document.CategoryBlogPost:      blog,
		document.CategoryNewsArticle:   blog,
	})
}

// NewCategoryThresholds builds a registry from explicit profiles. The map
// is copied.
func NewCategoryThresholds(fallback Thresholds, profiles map[document.Category]Thresholds) CategoryThresholds {
	m := make(map[document.Category]Thresholds, len(profiles))
	for k, v := range profiles {
		m[k] = v
	}
	return CategoryThresholds{byCategory: m, fallback: fallback}
}

// ForCategory returns the registered profile for c, else the default.
func (ct CategoryThresholds) ForCategory(c document.Category) Thresholds {
	if t, ok := ct.byCategory[c]; ok {
		return t
	}
	return ct.Default()
}

func (ct CategoryThresholds) Default() Thresholds {
	if ct.byCategory == nil && ct.fallback == (Thresholds{}) {
		return DefaultThresholds()
	}
	return ct.fallback
}

// Registered reports whether c has its own profile.
func (ct CategoryThresholds) Registered(c document.Category) bool {
	_, ok := ct.byCategory[c]
	return ok
}

// Profiles returns a copy of the registered profiles.
func (ct CategoryThresholds) Profiles() map[document.Category]Thresholds {
	out := make(map[document.Category]Thresholds, len(ct.byCategory))
	for k, v := range ct.byCategory {
		out[k] = v
	}
	return out
}
