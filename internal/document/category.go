package document

import (
	"fmt"
	"strings"
)

// Category is the document genre used to select escalation thresholds.
type Category string

const (
	CategoryAcademicPaper  Category = "academic_paper"
	CategoryBlogPost       Category = "blog_post"
	CategoryNewsArticle    Category = "news_article"
	CategoryTechnicalDoc   Category = "technical_documentation"
	CategoryBookChapter    Category = "book_chapter"
	CategoryPresentation   Category = "presentation"
	CategoryReport         Category = "report"
	CategoryTutorial       Category = "tutorial"
	CategoryPlot           Category = "plot_visualization"
	CategoryInfographic    Category = "infographic"
	CategoryWebpageGeneral Category = "webpage_general"
	CategoryOther          Category = "other"
)

var categories = []Category{
	CategoryAcademicPaper,
	CategoryBlogPost,
	CategoryNewsArticle,
	CategoryTechnicalDoc,
	CategoryBookChapter,
	CategoryPresentation,
	CategoryReport,
	CategoryTutorial,
	CategoryPlot,
	CategoryInfographic,
	CategoryWebpageGeneral,
	CategoryOther,
}

// Categories lists every known category.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory accepts a category name case-insensitively. The empty string
// parses to the empty category, meaning "no category given".
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	s = strings.ReplaceAll(s, "-", "_")
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
