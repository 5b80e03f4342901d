package structural

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

// HTML has no pages. Every entity is page-less and so counts as page 1.
func (s *Strategy) extractHTML(ctx context.Context, req strategy.Request) (*document.Document, error) {
	f, err := os.Open(req.Source)
	if err != nil {
		return nil, fmt.Errorf("structural: %w", err)
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("structural: parsing html: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := strategy.NewDocument(req, document.FormatHTML)
	if !req.Wants(1) {
		return doc, nil
	}
	w := &htmlWalker{doc: doc}
	w.head(root)
	body := findElement(root, "body")
	if body == nil {
		body = root
	}
	w.walk(body)
	w.links(body)
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = textlayout.FirstHeading(doc)
	}

	s.logger.Debug("structural.html.done",
		"source", req.Source,
		"elements", len(doc.Content),
		"tables", len(doc.Tables),
		"figures", len(doc.Figures))
	return doc, nil
}

type htmlWalker struct {
	doc                    *document.Document
	elems, tables, figures int
	linksSeen              int
}

func (w *htmlWalker) add(kind document.Kind, text string, level int) {
	if text == "" {
		return
	}
	w.elems++
	w.doc.Content = append(w.doc.Content, document.ContentElement{
		ID:    strategy.ElementID("e", 1, w.elems),
		Kind:  kind,
		Text:  text,
		Level: level,
	})
}

func (w *htmlWalker) head(n *html.Node) {
	if n.Type == html.ElementNode && n.Data == "head" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "title":
				w.doc.Metadata.Title = textContent(c)
			case "meta":
				w.meta(attr(c, "name")+attr(c, "property"), attr(c, "content"))
			}
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.head(c)
	}
}

func (w *htmlWalker) meta(name, content string) {
	content = textlayout.Normalize(content)
	if content == "" {
		return
	}
	switch strings.ToLower(name) {
	case "author", "article:author":
		w.doc.Metadata.Authors = append(w.doc.Metadata.Authors, document.Author{Name: content})
	case "keywords":
		w.doc.Metadata.Keywords = splitKeywords(content)
	case "date", "article:published_time":
		w.doc.Metadata.Date = content
	case "og:title":
		if w.doc.Metadata.Title == "" {
			w.doc.Metadata.Title = content
		}
	}
}

func (w *htmlWalker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed", "head":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			w.add(document.KindHeading, textContent(n), int(n.Data[1]-'0'))
			return
		case "p", "blockquote":
			w.add(document.KindParagraph, textContent(n), 0)
			return
		case "div":
			if !isBlockContainer(n) {
				w.add(document.KindParagraph, textContent(n), 0)
				return
			}
		case "li":
			w.add(document.KindListItem, directText(n), 0)
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
					w.walk(c)
				}
			}
			return
		case "pre":
			w.add(document.KindCode, strings.Trim(rawText(n), "\n"), 0)
			return
		case "table":
			w.table(n)
			return
		case "figure":
			w.figure(n)
			return
		case "img":
			w.image(attr(n, "alt"))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWalker) table(n *html.Node) {
	t := document.Table{}
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "caption":
				t.Caption = textContent(c)
			case "thead", "tbody", "tfoot":
				visit(c)
			case "tr":
				var row []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.Data == "td" || td.Data == "th") {
						row = append(row, textContent(td))
						for span := colspan(td); span > 1; span-- {
							row = append(row, "")
						}
					}
				}
				if len(row) > 0 {
					t.Rows = append(t.Rows, row)
				}
			}
		}
	}
	visit(n)
	if len(t.Rows) == 0 {
		return
	}
	w.tables++
	t.ID = strategy.ElementID("t", 1, w.tables)
	t.Label = textlayout.TableLabel(t.Caption)
	w.doc.Tables = append(w.doc.Tables, t)
}

func (w *htmlWalker) figure(n *html.Node) {
	var caption, alt string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "figcaption":
				caption = textContent(c)
			case "img":
				if alt == "" {
					alt = textlayout.Normalize(attr(c, "alt"))
				}
			case "table":
				w.table(c)
			default:
				visit(c)
			}
		}
	}
	visit(n)
	if caption == "" {
		w.image(alt)
		return
	}
	w.add(document.KindCaption, caption, 0)
	w.figures++
	w.doc.Figures = append(w.doc.Figures, document.Figure{
		ID:      strategy.ElementID("f", 1, w.figures),
		Caption: caption,
		Label:   textlayout.FigureLabel(caption),
	})
}

func (w *htmlWalker) image(alt string) {
	w.figures++
	w.doc.Figures = append(w.doc.Figures, document.Figure{
		ID:      strategy.ElementID("f", 1, w.figures),
		Caption: textlayout.Normalize(alt),
	})
}

func (w *htmlWalker) links(n *html.Node) {
	if n.Type == html.ElementNode && n.Data == "a" {
		if href := strings.TrimSpace(attr(n, "href")); href != "" && !strings.HasPrefix(href, "#") {
			w.linksSeen++
			w.doc.Links = append(w.doc.Links, document.Link{
				ID:   fmt.Sprintf("l%d", w.linksSeen),
				Text: textContent(n),
				URL:  href,
			})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.links(c)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func isBlockContainer(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "div", "p", "ul", "ol", "table", "figure", "pre", "blockquote",
			"h1", "h2", "h3", "h4", "h5", "h6", "article", "section":
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func colspan(n *html.Node) int {
	v, err := strconv.Atoi(attr(n, "colspan"))
	if err != nil || v < 1 {
		return 1
	}
	return v
}

// textContent is the normalized text of n and its descendants.
func textContent(n *html.Node) string {
	return textlayout.Normalize(rawText(n))
}

func rawText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteByte('\n')
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// directText is the text of a list item without its nested lists.
func directText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
			continue
		}
		b.WriteString(rawText(c))
		b.WriteByte(' ')
	}
	return textlayout.Normalize(b.String())
}
