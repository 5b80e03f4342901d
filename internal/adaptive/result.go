package adaptive

import (
	"time"

	"github.com/thywilljoshua/docladder/internal/confidence"
	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/pipeline"
)

// Attempt records one strategy invocation. Document and Confidence are nil
// for failed attempts; Err is nil for successful ones. Pages is set for the
// page-scoped vision call of a hybrid merge. Cached attempts reused a
// document from an earlier run instead of calling the strategy.
type Attempt struct {
	Strategy   pipeline.Tag
	Success    bool
	Cached     bool
	Document   *document.Document
	Confidence *confidence.ExtractionConfidence
	Duration   time.Duration
	Err        error
	Pages      []int
}

type AttemptSummary struct {
	Strategy        string   `json:"strategy"`
	Success         bool     `json:"success"`
	Cached          bool     `json:"cached,omitempty"`
	DurationSeconds float64  `json:"duration_seconds"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Error           string   `json:"error,omitempty"`
	Pages           []int    `json:"pages,omitempty"`
}

func (a Attempt) Summary() AttemptSummary {
	s := AttemptSummary{
		Strategy:        a.Strategy.String(),
		Success:         a.Success,
		Cached:          a.Cached,
		DurationSeconds: confidence.Round(a.Duration.Seconds(), 3),
		Pages:           a.Pages,
	}
	if a.Confidence != nil {
		v := confidence.Round(a.Confidence.Overall, 3)
		s.ConfidenceScore = &v
	}
	if a.Err != nil {
		s.Error = a.Err.Error()
	}
	return s
}

// Result is the outcome of one Parse call.
type Result struct {
	RunID       string
	Source      string
	Document    *document.Document
	Strategy    pipeline.Tag
	Confidence  confidence.ExtractionConfidence
	Attempts    []Attempt
	Elapsed     time.Duration
	UsedHybrid  bool
	VisionPages []int

	// BaseConfidence scores the selected strategy's own output. It is only
	// set when a hybrid merge replaced pages.
	BaseConfidence *confidence.ExtractionConfidence

	// maxVisionRatio is the ratio in force for this run. Results built
	// outside Parse leave ratioSet false and report against the default.
	maxVisionRatio float64
	ratioSet       bool
}

// Summary is a flattened view for logs and reports. It is not meant for
// further branching.
type Summary struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	FinalStrategy string `json:"final_strategy"`
	confidence.Summary
	DurationSeconds float64          `json:"total_duration_seconds"`
	UsedHybrid      bool             `json:"used_hybrid"`
	VisionPages     []int            `json:"vision_pages"`
	Attempts        []AttemptSummary `json:"attempts"`
}

func (r *Result) Summary() Summary {
	attempts := make([]AttemptSummary, len(r.Attempts))
	for i, a := range r.Attempts {
		attempts[i] = a.Summary()
	}
	ratio := confidence.DefaultFullVisionRatio
	if r.ratioSet {
		ratio = r.maxVisionRatio
	}
	pages := r.VisionPages
	if pages == nil {
		pages = []int{}
	}
	return Summary{
		RunID:           r.RunID,
		Source:          r.Source,
		FinalStrategy:   r.Strategy.String(),
		Summary:         r.Confidence.SummaryAt(ratio),
		DurationSeconds: confidence.Round(r.Elapsed.Seconds(), 3),
		UsedHybrid:      r.UsedHybrid,
		VisionPages:     pages,
		Attempts:        attempts,
	}
}

// Failed returns the failed attempts in order.
func (r *Result) Failed() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if !a.Success {
			out = append(out, a)
		}
	}
	return out
}
