// Package vision is the vision-language tier. The source file is sent
// inline to a Gemini model, which returns per-page markdown that is parsed
// back into document entities.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	genai "google.golang.org/genai"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/raster"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultBatchSize   = 4
	DefaultConcurrency = 2
	// DefaultMaxImageSide bounds the longest side of image sources in
	// pixels.
	DefaultMaxImageSide = 3072
)

// Generator is the subset of the genai models service used here.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey      string
	Model       string
	BatchSize   int           // pages per request
	Concurrency int           // requests in flight
	Timeout     time.Duration // per request, 0 = none
	// MaxImageSide downscales larger image sources. Negative disables.
	MaxImageSide int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxImageSide == 0 {
		c.MaxImageSide = DefaultMaxImageSide
	}
	return c
}

type Strategy struct {
	gen    Generator
	cfg    Config
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

func New(gen Generator, cfg Config, opts ...Option) *Strategy {
	s := &Strategy{gen: gen, cfg: cfg.withDefaults(), logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Provider creates the Gemini client on first use.
func Provider(cfg Config, opts ...Option) strategy.Provider {
	return func(ctx context.Context) (strategy.Strategy, error) {
		if cfg.APIKey == "" {
			return nil, errors.New("vision: missing GEMINI_API_KEY")
		}
		c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return nil, fmt.Errorf("vision: new client: %w", err)
		}
		return New(c.Models, cfg, opts...), nil
	}
}

func (s *Strategy) Extract(ctx context.Context, req strategy.Request) (*document.Document, error) {
	format := document.FormatFromPath(req.Source)
	if format != document.FormatPDF && !format.IsImage() {
		return nil, fmt.Errorf("vision: %w: %s", strategy.ErrUnsupportedFormat, format)
	}
	doc := strategy.NewDocument(req, format)
	if format.IsImage() && !req.Wants(1) {
		return doc, nil
	}

	data, mt, err := s.load(req.Source, format)
	if err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}

	batches := s.batches(req, format)
	results := make([]*response, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, pages := range batches {
		g.Go(func() error {
			r, err := s.request(gctx, data, mt, pages)
			if err != nil {
				return fmt.Errorf("pages %v: %w", pages, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("vision: %w", err)
	}

	seen := map[int]bool{}
	var pages []page
	for _, r := range results {
		if doc.Metadata.Title == "" {
			doc.Metadata.Title = textlayout.Normalize(r.Title)
		}
		for _, p := range r.Pages {
			if format.IsImage() {
				p.Page = 1
			}
			if seen[p.Page] || !req.Wants(p.Page) {
				continue
			}
			seen[p.Page] = true
			pages = append(pages, p)
		}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	for _, p := range pages {
		if err := appendPage(doc, p); err != nil {
			return nil, fmt.Errorf("vision: page %d: %w", p.Page, err)
		}
	}
	if doc.Metadata.Title == "" {
		doc.Metadata.Title = textlayout.FirstHeading(doc)
	}

	s.logger.Debug("vision.done",
		"source", req.Source,
		"model", s.cfg.Model,
		"requests", len(batches),
		"pages", len(pages),
		"elements", len(doc.Content))
	return doc, nil
}

// batches splits the requested pages into groups of BatchSize. With no
// pages requested a PDF is sent as a single whole-document request.
func (s *Strategy) batches(req strategy.Request, format document.Format) [][]int {
	if format.IsImage() {
		return [][]int{{1}}
	}
	seen := map[int]bool{}
	var pages []int
	for _, p := range req.Pages {
		if p > 0 && !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}
	if len(pages) == 0 {
		return [][]int{nil}
	}
	sort.Ints(pages)
	var out [][]int
	for len(pages) > 0 {
		n := min(s.cfg.BatchSize, len(pages))
		out = append(out, pages[:n:n])
		pages = pages[n:]
	}
	return out
}

func (s *Strategy) request(ctx context.Context, data []byte, mimeType string, pages []int) (*response, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	content := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: prompt(pages)},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		},
	}}
	res, err := s.gen.GenerateContent(ctx, s.cfg.Model, content, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	r, err := parseResponse(res.Text())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("vision.request.ok",
		"pages", pages,
		"returned", len(r.Pages),
		"elapsed_ms", time.Since(start).Milliseconds())
	return r, nil
}

// load returns the bytes sent to the model. Images go through raster so
// formats the model does not take arrive as PNG and large scans are
// downscaled.
func (s *Strategy) load(path string, format document.Format) ([]byte, string, error) {
	if format.IsImage() {
		img, err := raster.Load(path, s.cfg.MaxImageSide)
		if err != nil {
			return nil, "", err
		}
		return img.Data, img.MIMEType, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, "application/pdf", nil
}
