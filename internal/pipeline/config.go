package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/thywilljoshua/docladder/internal/document"
)

var ErrInvalidOrder = errors.New("pipeline order must be non-empty and strictly increasing in cost")

// PagelessPolicy decides how entities without a bounding box are treated when
// a hybrid merge replaces pages.
type PagelessPolicy int

const (
	// PagelessAsPageOne treats page-less entities as page 1, so they are
	// replaced when page 1 is replaced.
	PagelessAsPageOne PagelessPolicy = iota
	// PagelessKeep always keeps page-less entities from the base document.
	PagelessKeep
)

func (p PagelessPolicy) String() string {
	if p == PagelessKeep {
		return "keep"
	}
	return "page_one"
}

// ParsePagelessPolicy accepts the String forms, case-insensitively.
func ParsePagelessPolicy(s string) (PagelessPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "page_one", "page-one":
		return PagelessAsPageOne, nil
	case "keep":
		return PagelessKeep, nil
	}
	return 0, fmt.Errorf("unknown pageless policy %q (want page_one or keep)", s)
}

// DefaultVisionBatchSize is the number of pages sent per vision request.
const DefaultVisionBatchSize = 4

// Config is an adaptive pipeline configuration. It is a value: copying it and
// editing the copy's fields never affects the original. The strategy order is
// only reachable through methods that return fresh slices.
type Config struct {
	order []Tag

	Thresholds Thresholds
	Categories CategoryThresholds

	StopOnSuccess bool
	EnableHybrid  bool
	EnablePerPage bool
	CacheResults  bool

	// MaxVisionPages caps the pages sent to the vision tier in a hybrid
	// merge. Zero means unlimited.
	MaxVisionPages  int
	VisionBatchSize int
	Pageless        PagelessPolicy
}

// New builds a configuration with default flags and thresholds.
func New(order ...Tag) (Config, error) {
	c := Config{
		order:           append([]Tag(nil), order...),
		Thresholds:      DefaultThresholds(),
		Categories:      DefaultCategoryThresholds(),
		StopOnSuccess:   true,
		EnableHybrid:    true,
		EnablePerPage:   true,
		CacheResults:    true,
		VisionBatchSize: DefaultVisionBatchSize,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// MustNew is New for static configurations.
func MustNew(order ...Tag) Config {
	c, err := New(order...)
	if err != nil {
		panic(err)
	}
	return c
}

// Validate checks the order and numeric fields.
func (c Config) Validate() error {
	if len(c.order) == 0 {
		return ErrInvalidOrder
	}
	for i, t := range c.order {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown tag %d", ErrInvalidOrder, int(t))
		}
		if i > 0 && t <= c.order[i-1] {
			return fmt.Errorf("%w: %s after %s", ErrInvalidOrder, t, c.order[i-1])
		}
	}
	if c.MaxVisionPages < 0 {
		return fmt.Errorf("max vision pages must be >= 0, got %d", c.MaxVisionPages)
	}
	if c.VisionBatchSize < 0 {
		return fmt.Errorf("vision batch size must be >= 0, got %d", c.VisionBatchSize)
	}
	return nil
}

// Order returns a copy of the strategy order.
func (c Config) Order() []Tag { return append([]Tag(nil), c.order...) }

// Contains reports whether t is part of the pipeline.
func (c Config) Contains(t Tag) bool {
	for _, o := range c.order {
		if o == t {
			return true
		}
	}
	return false
}

// HasLater reports whether target runs after tag in this pipeline.
func (c Config) HasLater(tag, target Tag) bool {
	return target > tag && c.Contains(target)
}

// LimitTo returns a configuration keeping only the tags up to and including
// max. The receiver is left untouched and applying it twice is a no-op.
func (c Config) LimitTo(max Tag) Config {
	out := c
	out.order = nil
	for _, t := range c.order {
		if t <= max {
			out.order = append(out.order, t)
		}
	}
	return out
}

// ThresholdsFor returns the category profile when a category is given, else
// the configuration's own thresholds.
func (c Config) ThresholdsFor(cat document.Category) Thresholds {
	if cat == "" {
		return c.Thresholds
	}
	return c.Categories.ForCategory(cat)
}

// Info describes a configuration for display. Categories holds the
// per-category profiles that override Thresholds.
type Info struct {
	Order           []string                         `json:"pipeline_order"`
	Thresholds      Thresholds                       `json:"thresholds"`
	Categories      map[document.Category]Thresholds `json:"category_thresholds,omitempty"`
	StopOnSuccess   bool                             `json:"stop_on_success"`
	EnableHybrid    bool                             `json:"enable_hybrid_extraction"`
	EnablePerPage   bool                             `json:"enable_per_page_decisions"`
	CacheResults    bool                             `json:"cache_parser_results"`
	MaxVisionPages  int                              `json:"max_vision_pages"`
	VisionBatchSize int                              `json:"vision_batch_size"`
	Pageless        string                           `json:"pageless_policy"`
}

func (c Config) Info() Info {
	names := make([]string, len(c.order))
	for i, t := range c.order {
		names[i] = t.String()
	}
	return Info{
		Order:           names,
		Thresholds:      c.Thresholds,
		Categories:      c.Categories.Profiles(),
		StopOnSuccess:   c.StopOnSuccess,
		EnableHybrid:    c.EnableHybrid,
		EnablePerPage:   c.EnablePerPage,
		CacheResults:    c.CacheResults,
		MaxVisionPages:  c.MaxVisionPages,
		VisionBatchSize: c.VisionBatchSize,
		Pageless:        c.Pageless.String(),
	}
}

// Fast runs the structural tier only, without hybrid merging.
func Fast() Config {
	c := MustNew(TagStructural)
	c.EnableHybrid = false
	return c
}

// Balanced adds the layout-aware tier.
func Balanced() Config { return MustNew(TagStructural, TagLayout) }

// Quality runs every local tier.
func Quality() Config { return MustNew(TagStructural, TagLayout, TagOCR) }

// Full runs every tier including vision.
func Full() Config { return MustNew(AllTags()...) }

var profiles = map[string]func() Config{
	"fast":     Fast,
	"balanced": Balanced,
	"quality":  Quality,
	"full":     Full,
}

// Profile returns a named prebuilt configuration.
func Profile(name string) (Config, error) {
	f, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, fmt.Errorf("unknown profile %q (want one of %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return f(), nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
