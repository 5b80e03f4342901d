// Package adaptive runs extraction strategies cheapest first and escalates
// while the confidence of the best result stays below threshold.
package adaptive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thywilljoshua/docladder/internal/confidence"
	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/pipeline"
	"github.com/thywilljoshua/docladder/internal/strategy"
)

// Recorder persists attempts for later inspection. It is only consulted
// when the configuration enables result caching.
type Recorder interface {
	RecordAttempt(ctx context.Context, runID, source string, a Attempt) error
}

// Cache returns a document a strategy already extracted from the same
// content, or an error when it has none. It is only consulted when the
// configuration enables result caching, and never for page-scoped calls.
type Cache interface {
	CachedDocument(ctx context.Context, source string, tag pipeline.Tag) (*document.Document, error)
}

// Orchestrator drives one pipeline configuration over a set of strategy
// providers. Strategies are built lazily on first use and cached for the
// lifetime of the Orchestrator.
//
// An Orchestrator is not safe for concurrent use. Run one per worker.
type Orchestrator struct {
	cfg       pipeline.Config
	providers map[pipeline.Tag]strategy.Provider
	handles   map[pipeline.Tag]strategy.Strategy
	logger    *slog.Logger
	recorder  Recorder
	cache     Cache
}

type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

func WithCache(c Cache) Option { return func(o *Orchestrator) { o.cache = c } }

// New validates cfg and takes a private copy of providers.
func New(cfg pipeline.Config, providers map[pipeline.Tag]strategy.Provider, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("adaptive: %w", err)
	}
	o := &Orchestrator{
		cfg:       cfg,
		providers: make(map[pipeline.Tag]strategy.Provider, len(providers)),
		handles:   map[pipeline.Tag]strategy.Strategy{},
		logger:    slog.Default(),
	}
	for t, p := range providers {
		if p != nil {
			o.providers[t] = p
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ParseOptions tune a single Parse call. MaxLevel zero means no limit.
type ParseOptions struct {
	Category    document.Category
	ForceVision bool
	MaxLevel    pipeline.Tag
}

// run carries the state of one Parse call.
type run struct {
	id         string
	source     string
	category   document.Category
	cfg        pipeline.Config
	thresholds pipeline.Thresholds
	calc       *confidence.Calculator
	attempts   []Attempt
	log        *slog.Logger
}

// Parse extracts source, escalating through the pipeline until the best
// result satisfies the thresholds. Strategy failures are recorded on the
// result's attempts. Parse itself fails with ErrSourceNotFound,
// ErrAllStrategiesFailed or ErrUnsupportedOperation, and with
// pipeline.ErrInvalidOrder when MaxLevel leaves no strategy to run.
func (o *Orchestrator) Parse(ctx context.Context, source string, opts ParseOptions) (*Result, error) {
	start := time.Now()
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, source, err)
	}

	r := &run{
		id:         uuid.NewString(),
		source:     source,
		category:   opts.Category,
		cfg:        o.cfg,
		thresholds: o.cfg.ThresholdsFor(opts.Category),
	}
	if opts.MaxLevel != 0 {
		r.cfg = r.cfg.LimitTo(opts.MaxLevel)
	}
	r.calc = confidence.NewCalculator(confidence.WithMinPage(r.thresholds.MinPage))
	r.log = o.logger.With("run_id", r.id, "source", source)
	if opts.Category != "" && !o.cfg.Categories.Registered(opts.Category) {
		r.log.Debug("adaptive.thresholds.default", "category", string(opts.Category))
	}

	if opts.ForceVision {
		return o.parseVisionOnly(ctx, r, start)
	}

	order := r.cfg.Order()
	if len(order) == 0 {
		return nil, fmt.Errorf("adaptive: max level %s is below every strategy in %v: %w",
			opts.MaxLevel, o.cfg.Info().Order, pipeline.ErrInvalidOrder)
	}
	r.log.Info("adaptive.parse.start", "pipeline", r.cfg.Info().Order, "category", string(opts.Category))

	best := -1
	var lastErr error
	for _, tag := range order {
		if err := ctx.Err(); err != nil {
			lastErr = err
			r.log.Warn("adaptive.parse.canceled", "before", tag.String(), "error", err)
			break
		}
		a := o.attempt(ctx, r, tag, nil)
		r.attempts = append(r.attempts, a)
		if !a.Success {
			lastErr = a.Err
			continue
		}
		if best < 0 || a.Confidence.Overall > r.attempts[best].Confidence.Overall {
			best = len(r.attempts) - 1
		}
		bc := r.attempts[best].Confidence
		if !r.thresholds.ShouldEscalate(bc.Overall, &bc.Content, bc.Table, bc.Figure) {
			if r.cfg.StopOnSuccess {
				r.log.Debug("adaptive.threshold.met", "strategy", r.attempts[best].Strategy.String(), "score", bc.Overall)
				break
			}
		} else {
			r.log.Debug("adaptive.escalate", "best", r.attempts[best].Strategy.String(), "score", bc.Overall)
		}
	}

	if best < 0 {
		r.log.Error("adaptive.parse.failed", "attempts", len(r.attempts), "error", lastErr)
		if lastErr == nil {
			return nil, ErrAllStrategiesFailed
		}
		return nil, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, lastErr)
	}

	b := r.attempts[best]
	res := &Result{
		RunID:          r.id,
		Source:         source,
		Document:       b.Document,
		Strategy:       b.Strategy,
		Confidence:     *b.Confidence,
		maxVisionRatio: r.thresholds.MaxVisionPageRatio,
		ratioSet:       true,
	}
	if err := o.hybrid(ctx, r, res); err != nil {
		return nil, err
	}
	res.Attempts = r.attempts
	res.Elapsed = time.Since(start)
	r.log.Info("adaptive.parse.done",
		"strategy", res.Strategy.String(),
		"score", res.Confidence.Overall,
		"attempts", len(res.Attempts),
		"hybrid", res.UsedHybrid,
		"elapsed_ms", res.Elapsed.Milliseconds())
	return res, nil
}

// hybrid replaces the worst pages of res with vision output when the
// configuration allows it and there are few enough of them.
func (o *Orchestrator) hybrid(ctx context.Context, r *run, res *Result) error {
	conf := res.Confidence
	switch {
	case !r.cfg.EnableHybrid || !r.cfg.EnablePerPage:
		return nil
	case conf.PagesNeedingVision == 0:
		return nil
	case conf.NeedsFullVision(r.thresholds.MaxVisionPageRatio):
		r.log.Info("adaptive.hybrid.skipped", "reason", "full vision recommended", "ratio", conf.VisionPageRatio())
		return nil
	case !r.cfg.HasLater(res.Strategy, pipeline.TagVision):
		return nil
	}
	if _, ok := o.providers[pipeline.TagVision]; !ok {
		return fmt.Errorf("%w: hybrid merge needs a vision strategy", ErrUnsupportedOperation)
	}
	if err := ctx.Err(); err != nil {
		r.log.Warn("adaptive.hybrid.skipped", "reason", "context done", "error", err)
		return nil
	}

	pages := selectPages(conf, r.cfg.MaxVisionPages)
	r.log.Info("adaptive.hybrid.start", "pages", pages, "flagged", conf.PagesNeedingVision)
	a := o.attempt(ctx, r, pipeline.TagVision, pages)
	r.attempts = append(r.attempts, a)
	if !a.Success {
		return nil
	}

	replaced := Replaced(a.Document, pages, r.cfg.Pageless)
	if len(replaced) == 0 {
		r.log.Info("adaptive.hybrid.skipped", "reason", "no vision entities on requested pages", "pages", pages)
		return nil
	}
	merged := Merge(res.Document, a.Document, pages, r.cfg.Pageless)
	res.BaseConfidence = &conf
	res.Document = merged
	res.Confidence = r.calc.Calculate(merged)
	res.UsedHybrid = true
	res.VisionPages = replaced
	for _, p := range replaced {
		before, _ := conf.Page(p)
		after, _ := res.Confidence.Page(p)
		r.log.Debug("adaptive.hybrid.page", "page", p, "before", before.Overall, "after", after.Overall)
	}
	return nil
}

func (o *Orchestrator) parseVisionOnly(ctx context.Context, r *run, start time.Time) (*Result, error) {
	if _, ok := o.providers[pipeline.TagVision]; !ok {
		return nil, fmt.Errorf("%w: forced vision without a vision strategy", ErrUnsupportedOperation)
	}
	r.log.Info("adaptive.parse.start", "pipeline", []string{pipeline.TagVision.String()}, "forced", true)
	a := o.attempt(ctx, r, pipeline.TagVision, nil)
	r.attempts = append(r.attempts, a)
	if !a.Success {
		return nil, fmt.Errorf("%w: %w", ErrAllStrategiesFailed, a.Err)
	}
	return &Result{
		RunID:          r.id,
		Source:         r.source,
		Document:       a.Document,
		Strategy:       pipeline.TagVision,
		Confidence:     *a.Confidence,
		Attempts:       r.attempts,
		Elapsed:        time.Since(start),
		maxVisionRatio: r.thresholds.MaxVisionPageRatio,
		ratioSet:       true,
	}, nil
}

// attempt invokes one strategy and scores its output. It never fails; the
// outcome is captured on the returned Attempt.
func (o *Orchestrator) attempt(ctx context.Context, r *run, tag pipeline.Tag, pages []int) (a Attempt) {
	start := time.Now()
	a = Attempt{Strategy: tag, Pages: pages}
	defer func() {
		if p := recover(); p != nil {
			a.Success = false
			a.Document = nil
			a.Confidence = nil
			a.Err = &StrategyError{Tag: tag, Kind: ErrStrategyExecution, Err: fmt.Errorf("panic: %v", p)}
		}
		a.Duration = time.Since(start)
		o.logAttempt(r, a)
		o.record(ctx, r, a)
	}()

	if doc := o.cached(ctx, r, tag, pages); doc != nil {
		conf := r.calc.Calculate(doc)
		a.Success = true
		a.Cached = true
		a.Document = doc
		a.Confidence = &conf
		return a
	}

	s, err := o.handle(ctx, tag)
	if err != nil {
		a.Err = &StrategyError{Tag: tag, Kind: ErrStrategyUnavailable, Err: err}
		return a
	}
	doc, err := s.Extract(ctx, strategy.Request{Source: r.source, Category: r.category, Pages: pages})
	if err == nil && doc == nil {
		err = errors.New("strategy returned no document")
	}
	if err != nil {
		a.Err = &StrategyError{Tag: tag, Kind: ErrStrategyExecution, Err: err}
		return a
	}
	conf := r.calc.Calculate(doc)
	a.Success = true
	a.Document = doc
	a.Confidence = &conf
	return a
}

// cached returns a reusable document for a whole-document attempt, or nil.
// Lookup failures fall through to a fresh extraction.
func (o *Orchestrator) cached(ctx context.Context, r *run, tag pipeline.Tag, pages []int) *document.Document {
	if o.cache == nil || !r.cfg.CacheResults || len(pages) > 0 {
		return nil
	}
	doc, err := o.cache.CachedDocument(ctx, r.source, tag)
	if err != nil {
		r.log.Debug("adaptive.cache.miss", "strategy", tag.String(), "error", err)
		return nil
	}
	if doc == nil {
		return nil
	}
	doc.Category = r.category
	doc.Source.Path = r.source
	r.log.Debug("adaptive.cache.hit", "strategy", tag.String(), "document", doc.ID)
	return doc
}

// handle returns the cached strategy for tag, building it on first use.
// Failed builds are not cached.
func (o *Orchestrator) handle(ctx context.Context, tag pipeline.Tag) (strategy.Strategy, error) {
	if s, ok := o.handles[tag]; ok {
		return s, nil
	}
	p, ok := o.providers[tag]
	if !ok {
		return nil, fmt.Errorf("no %s strategy registered", tag)
	}
	s, err := p(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%s provider returned no strategy", tag)
	}
	o.handles[tag] = s
	return s, nil
}

func (o *Orchestrator) logAttempt(r *run, a Attempt) {
	if a.Success {
		r.log.Info("adaptive.attempt.ok",
			"strategy", a.Strategy.String(),
			"cached", a.Cached,
			"score", a.Confidence.Overall,
			"pages_flagged", a.Confidence.PagesNeedingVision,
			"elapsed_ms", a.Duration.Milliseconds())
		return
	}
	r.log.Warn("adaptive.attempt.failed",
		"strategy", a.Strategy.String(),
		"elapsed_ms", a.Duration.Milliseconds(),
		"error", a.Err)
}

func (o *Orchestrator) record(ctx context.Context, r *run, a Attempt) {
	if o.recorder == nil || !r.cfg.CacheResults {
		return
	}
	if err := o.recorder.RecordAttempt(ctx, r.id, r.source, a); err != nil {
		r.log.Warn("adaptive.record.failed", "strategy", a.Strategy.String(), "error", err)
	}
}

// Close releases every cached strategy that implements io.Closer and empties
// the cache.
func (o *Orchestrator) Close() error {
	var errs []error
	for tag, s := range o.handles {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", tag, err))
			}
		}
	}
	o.handles = map[pipeline.Tag]strategy.Strategy{}
	return errors.Join(errs...)
}

// Info describes the configuration and which strategies are registered and
// already built.
type Info struct {
	pipeline.Info
	Registered  []string `json:"registered"`
	Initialized []string `json:"initialized"`
}

func (o *Orchestrator) Info() Info {
	return Info{
		Info:        o.cfg.Info(),
		Registered:  tagNames(o.providers),
		Initialized: tagNames(o.handles),
	}
}

func tagNames[V any](m map[pipeline.Tag]V) []string {
	tags := make([]pipeline.Tag, 0, len(m))
	for t := range m {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return names
}

// ParseFile runs a single Parse with a throwaway Orchestrator.
func ParseFile(ctx context.Context, source string, cfg pipeline.Config, providers map[pipeline.Tag]strategy.Provider, opts ParseOptions, options ...Option) (*Result, error) {
	o, err := New(cfg, providers, options...)
	if err != nil {
		return nil, err
	}
	defer o.Close()
	return o.Parse(ctx, source, opts)
}
