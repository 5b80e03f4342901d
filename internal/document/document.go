// Package document holds the extraction-neutral document model produced by
// every extraction strategy and consumed by the confidence calculator.
package document

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind classifies a content element.
type Kind string

const (
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindListItem  Kind = "list_item"
	KindCode      Kind = "code"
	KindCaption   Kind = "caption"
	KindSection   Kind = "section"
)

// Format is the source format of a document.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatHTML     Format = "html"
	FormatPNG      Format = "png"
	FormatJPG      Format = "jpg"
	FormatTIFF     Format = "tiff"
	FormatBMP      Format = "bmp"
	FormatWebP     Format = "webp"
	FormatMarkdown Format = "markdown"
	FormatOther    Format = "other"
)

// FormatFromPath guesses the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".png":
		return FormatPNG
	case ".jpg", ".jpeg":
		return FormatJPG
	case ".tif", ".tiff":
		return FormatTIFF
	case ".bmp":
		return FormatBMP
	case ".webp":
		return FormatWebP
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatOther
	}
}

// IsImage reports whether the format is a raster image.
func (f Format) IsImage() bool {
	switch f {
	case FormatPNG, FormatJPG, FormatTIFF, FormatBMP, FormatWebP:
		return true
	}
	return false
}

// Source records where a document came from.
type Source struct {
	Path       string    `json:"path,omitempty"`
	URL        string    `json:"url,omitempty"`
	AccessedAt time.Time `json:"accessed_at,omitempty"`
}

type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Authors  []Author `json:"authors,omitempty"`
	Date     string   `json:"date,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// ContentElement is a unit of textual content. Level is the heading depth,
// 0 when unset.
type ContentElement struct {
	ID    string       `json:"id"`
	Kind  Kind         `json:"type"`
	Text  string       `json:"content"`
	Level int          `json:"level,omitempty"`
	BBox  *BoundingBox `json:"bbox,omitempty"`
}

// Table rows may be ragged.
type Table struct {
	ID      string       `json:"id"`
	Rows    [][]string   `json:"rows"`
	Caption string       `json:"caption,omitempty"`
	Label   string       `json:"label,omitempty"`
	BBox    *BoundingBox `json:"bbox,omitempty"`
}

type Figure struct {
	ID      string       `json:"id"`
	Caption string       `json:"caption,omitempty"`
	Label   string       `json:"label,omitempty"`
	BBox    *BoundingBox `json:"bbox,omitempty"`
}

type Link struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Document is the output of one extraction attempt, or of a hybrid merge.
// It is treated as read-only once returned by a strategy.
type Document struct {
	ID       string           `json:"id"`
	Format   Format           `json:"format"`
	Category Category         `json:"category,omitempty"`
	Source   Source           `json:"source"`
	Metadata Metadata         `json:"metadata"`
	Content  []ContentElement `json:"content"`
	Tables   []Table          `json:"tables,omitempty"`
	Figures  []Figure         `json:"figures,omitempty"`
	Links    []Link           `json:"links,omitempty"`
}

// HasHeading reports whether any content element is a heading.
func (d *Document) HasHeading() bool {
	for _, e := range d.Content {
		if e.Kind == KindHeading {
			return true
		}
	}
	return false
}

// Pages returns the distinct pages referenced by content, tables and
// figures in ascending order. Entities without a bounding box count as
// page 1.
func (d *Document) Pages() []int {
	seen := map[int]bool{}
	for _, e := range d.Content {
		seen[PageOf(e.BBox)] = true
	}
	for _, t := range d.Tables {
		seen[PageOf(t.BBox)] = true
	}
	for _, f := range d.Figures {
		seen[PageOf(f.BBox)] = true
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// PageOf returns the page of a bounding box, 1 when absent.
func PageOf(b *BoundingBox) int {
	if b == nil || b.Page < 1 {
		return 1
	}
	return b.Page
}
