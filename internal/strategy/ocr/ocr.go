// Package ocr is the optical character recognition tier. Images are read
// directly, transcoded to PNG when Tesseract may not take them; PDFs are
// rasterized with pdftoppm first. Recognition is done by
// an Engine, backed by Tesseract when built with the "ocr" tag.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/raster"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

type Config struct {
	Pdftoppm       string   // binary name or absolute path; default "pdftoppm"
	DPI            int      // rasterization DPI, default 300
	Languages      []string // default ["eng"]
	TessdataPrefix string
	MaxPages       int // 0 = no limit
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"eng"}
	}
	return c
}

// Box is one recognized paragraph in image pixels. Confidence is in [0,1].
type Box struct {
	Text       string
	X, Y, W, H int
	Confidence float64
}

// Engine recognizes paragraphs in an encoded image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) ([]Box, error)
	Close() error
}

type Strategy struct {
	cfg    Config
	engine Engine
	runner Runner
	logger *slog.Logger
}

type Option func(*Strategy)

func WithLogger(l *slog.Logger) Option {
	return func(s *Strategy) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRunner(r Runner) Option { return func(s *Strategy) { s.runner = r } }

func New(cfg Config, engine Engine, opts ...Option) *Strategy {
	s := &Strategy{cfg: cfg.withDefaults(), engine: engine, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = execRunner{logger: s.logger}
	}
	return s
}

// Provider builds the Tesseract engine on first use. Without OCR support
// compiled in, it fails with ErrOCRNotEnabled.
func Provider(cfg Config, opts ...Option) strategy.Provider {
	return func(context.Context) (strategy.Strategy, error) {
		eng, err := NewEngine(cfg.withDefaults())
		if err != nil {
			return nil, err
		}
		return New(cfg, eng, opts...), nil
	}
}

// Close releases the engine.
func (s *Strategy) Close() error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Close()
}

func (s *Strategy) Extract(ctx context.Context, req strategy.Request) (*document.Document, error) {
	format := document.FormatFromPath(req.Source)
	doc := strategy.NewDocument(req, format)

	switch {
	case format.IsImage():
		if !req.Wants(1) {
			return doc, nil
		}
		img, err := raster.Load(req.Source, 0)
		if err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}
		if err := s.recognize(ctx, doc, 1, img.Data); err != nil {
			return nil, err
		}
		return doc, nil
	case format == document.FormatPDF:
		return doc, s.extractPDF(ctx, req, doc)
	default:
		return nil, fmt.Errorf("ocr: %w: %s", strategy.ErrUnsupportedFormat, format)
	}
}

func (s *Strategy) extractPDF(ctx context.Context, req strategy.Request, doc *document.Document) error {
	dir, err := os.MkdirTemp("", "docladder-ocr-*")
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("ocr.cleanup.failed", "dir", dir, "error", err)
		}
	}()

	images, err := s.render(ctx, req.Source, dir, req.Pages)
	if err != nil {
		return err
	}
	pages := make([]int, 0, len(images))
	for p := range images {
		if req.Wants(p) {
			pages = append(pages, p)
		}
	}
	sort.Ints(pages)
	if s.cfg.MaxPages > 0 && len(pages) > s.cfg.MaxPages {
		pages = pages[:s.cfg.MaxPages]
	}

	var failed []error
	for _, p := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := os.ReadFile(images[p])
		if err == nil {
			err = s.recognize(ctx, doc, p, img)
		}
		if err != nil {
			s.logger.Warn("ocr.page.failed", "source", req.Source, "page", p, "error", err)
			failed = append(failed, fmt.Errorf("page %d: %w", p, err))
		}
	}
	if len(failed) == len(pages) {
		return fmt.Errorf("ocr: no page recognized: %w", errors.Join(failed...))
	}
	s.logger.Debug("ocr.pdf.done", "source", req.Source, "pages", len(pages), "failed", len(failed), "elements", len(doc.Content))
	return nil
}

// render rasterizes the requested pages, or every page when none are
// requested, and returns the image path per page.
func (s *Strategy) render(ctx context.Context, src, dir string, pages []int) (map[int]string, error) {
	prefix := filepath.Join(dir, "page")
	base := []string{"-r", strconv.Itoa(s.cfg.DPI), "-png"}

	var calls [][]string
	if len(pages) == 0 {
		calls = append(calls, append(base, src, prefix))
	}
	for _, p := range pages {
		n := strconv.Itoa(p)
		calls = append(calls, append(append([]string(nil), base...), "-f", n, "-l", n, src, prefix))
	}
	for _, args := range calls {
		if _, errb, err := s.runner.Run(ctx, s.cfg.Pdftoppm, args...); err != nil {
			return nil, fmt.Errorf("ocr: pdftoppm: %w: %s", err, truncate(string(errb), 512))
		}
	}

	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	out := map[int]string{}
	for _, m := range matches {
		if p := pageFromName(m); p > 0 {
			out[p] = m
		}
	}
	if len(out) == 0 {
		return nil, errors.New("ocr: pdftoppm produced no images")
	}
	return out, nil
}

var pageNameRe = regexp.MustCompile(`-(\d+)\.png$`)

// pageFromName reads the page number pdftoppm puts in its output names,
// which may be zero-padded.
func pageFromName(name string) int {
	m := pageNameRe.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// recognize appends one paragraph element per recognized box, converting
// pixels to points at the configured DPI.
func (s *Strategy) recognize(ctx context.Context, doc *document.Document, page int, img []byte) error {
	boxes, err := s.engine.Recognize(ctx, img)
	if err != nil {
		return fmt.Errorf("ocr: recognize: %w", err)
	}
	scale := 72 / float64(s.cfg.DPI)
	n := 0
	for _, b := range boxes {
		text := textlayout.Normalize(b.Text)
		if text == "" {
			continue
		}
		n++
		doc.Content = append(doc.Content, document.ContentElement{
			ID:   strategy.ElementID("e", page, n),
			Kind: document.KindParagraph,
			Text: text,
			BBox: &document.BoundingBox{
				Page:       page,
				X:          float64(b.X) * scale,
				Y:          float64(b.Y) * scale,
				Width:      float64(b.W) * scale,
				Height:     float64(b.H) * scale,
				Confidence: b.Confidence,
			},
		})
	}
	return nil
}
