// Package structural is the cheapest extraction tier. It reads the text
// layer of a PDF, or the DOM of an HTML page, without any layout analysis
// beyond line grouping.
package structural

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/textlayout"
)

type Strategy struct {
	logger *slog.Logger
	layout textlayout.Options
}

type Option func(*Strategy)

func WithLogger(l *slog.Logger) Option {
	return func(s *Strategy) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLayout overrides line grouping tolerances for PDF sources.
func WithLayout(o textlayout.Options) Option { return func(s *Strategy) { s.layout = o } }

func New(opts ...Option) *Strategy {
	s := &Strategy{logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Provider builds the strategy on first use. Construction cannot fail.
func Provider(opts ...Option) strategy.Provider {
	return func(context.Context) (strategy.Strategy, error) { return New(opts...), nil }
}

func (s *Strategy) Extract(ctx context.Context, req strategy.Request) (*document.Document, error) {
	switch f := document.FormatFromPath(req.Source); f {
	case document.FormatPDF:
		return s.extractPDF(ctx, req)
	case document.FormatHTML:
		return s.extractHTML(ctx, req)
	default:
		return nil, fmt.Errorf("structural: %w: %s", strategy.ErrUnsupportedFormat, f)
	}
}
