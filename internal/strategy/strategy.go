// Package strategy defines the contract every extraction tier implements.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/thywilljoshua/docladder/internal/document"
)

// ErrUnsupportedFormat is returned by strategies that cannot read a source
// format.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Request scopes one extraction call. Pages, when set, restricts extraction
// to those 1-indexed pages; strategies that cannot scope must still return
// entities bound to the right pages.
type Request struct {
	Source   string
	Category document.Category
	Pages    []int
}

// Wants reports whether page p is in scope.
func (r Request) Wants(p int) bool {
	if len(r.Pages) == 0 {
		return true
	}
	for _, q := range r.Pages {
		if q == p {
			return true
		}
	}
	return false
}

// Strategy extracts a document from a source.
type Strategy interface {
	Extract(ctx context.Context, req Request) (*document.Document, error)
}

// Func adapts a function to Strategy.
type Func func(ctx context.Context, req Request) (*document.Document, error)

func (f Func) Extract(ctx context.Context, req Request) (*document.Document, error) {
	return f(ctx, req)
}

// Provider builds a strategy on first use. Expensive setup such as model
// clients belongs here so pipelines that never escalate never pay for it.
type Provider func(ctx context.Context) (Strategy, error)

// Static wraps an already-built strategy.
func Static(s Strategy) Provider {
	return func(context.Context) (Strategy, error) { return s, nil }
}

// Unavailable is a provider that always fails with err.
func Unavailable(err error) Provider {
	return func(context.Context) (Strategy, error) { return nil, err }
}

// NewDocument seeds a document for source with a fresh id.
func NewDocument(req Request, format document.Format) *document.Document {
	return &document.Document{
		ID:       uuid.NewString(),
		Format:   format,
		Category: req.Category,
		Source:   document.Source{Path: req.Source},
	}
}

// ElementID builds a stable element id such as "p3-e12".
func ElementID(prefix string, page, n int) string {
	return fmt.Sprintf("p%d-%s%d", page, prefix, n)
}

// TitleFromPath derives a fallback title from a file name.
func TitleFromPath(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}
