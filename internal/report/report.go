// Package report writes run summaries as JSON or as an XLSX workbook.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/thywilljoshua/docladder/internal/adaptive"
	"github.com/thywilljoshua/docladder/internal/confidence"
)

const (
	sheetSummary  = "Summary"
	sheetAttempts = "Attempts"
	sheetPages    = "Pages"
)

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s adaptive.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteXLSX writes one workbook covering results: a row per run on the
// Summary sheet, a row per attempt on Attempts, and a row per scored page
// on Pages.
func WriteXLSX(w io.Writer, results []*adaptive.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name    string
		headers []string
		widths  []float64
	}{
		{sheetSummary, []string{"Run ID", "Source", "Final Strategy", "Score", "Level", "Pages", "Pages Needing Vision", "Vision Ratio", "Needs Full Vision", "Used Hybrid", "Vision Pages", "Duration (s)", "Issues"},
			[]float64{38, 48, 14, 8, 10, 8, 12, 12, 12, 12, 14, 12, 80}},
		{sheetAttempts, []string{"Run ID", "#", "Strategy", "Success", "Cached", "Score", "Duration (s)", "Pages", "Error"},
			[]float64{38, 4, 12, 10, 8, 8, 12, 14, 80}},
		{sheetPages, []string{"Run ID", "Page", "Score", "Score Before Merge", "Text", "Layout", "Table", "Figure", "Needs Vision", "Issues"},
			[]float64{38, 6, 8, 12, 8, 8, 8, 8, 12, 80}},
	}
	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("report: new sheet %s: %w", s.name, err)
		}
		for i, h := range s.headers {
			if err := setCell(f, s.name, i+1, 1, h); err != nil {
				return err
			}
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(s.name, col, col, s.widths[i])
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	idx, _ := f.GetSheetIndex(sheetSummary)
	f.SetActiveSheet(idx)

	attemptRow, pageRow := 2, 2
	for i, r := range results {
		s := r.Summary()
		if err := setRow(f, sheetSummary, i+2,
			s.RunID, s.Source, s.FinalStrategy, s.OverallScore, string(s.Level), s.TotalPages,
			s.PagesNeedingVision, s.VisionPageRatio, s.NeedsFullVision, s.UsedHybrid,
			joinInts(s.VisionPages), s.DurationSeconds, strings.Join(s.Issues, "; "),
		); err != nil {
			return err
		}

		for n, a := range s.Attempts {
			var score any = ""
			if a.ConfidenceScore != nil {
				score = *a.ConfidenceScore
			}
			if err := setRow(f, sheetAttempts, attemptRow,
				s.RunID, n+1, a.Strategy, a.Success, a.Cached, score, a.DurationSeconds, joinInts(a.Pages), a.Error,
			); err != nil {
				return err
			}
			attemptRow++
		}

		for _, p := range r.Confidence.Pages {
			var before any = ""
			if r.BaseConfidence != nil {
				if b, ok := r.BaseConfidence.Page(p.Page); ok {
					before = round(b.Overall)
				}
			}
			if err := setRow(f, sheetPages, pageRow,
				s.RunID, p.Page, round(p.Overall), before, round(p.TextScore), round(p.LayoutScore),
				optional(p.TableScore), optional(p.FigureScore), p.NeedsVision, strings.Join(p.Issues, "; "),
			); err != nil {
				return err
			}
			pageRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: xlsx write: %w", err)
	}
	return nil
}

// Save writes r to path, choosing the format from the extension.
func Save(path string, r *adaptive.Result) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".json" && ext != ".xlsx" {
		return fmt.Errorf("report: unsupported report format %q (want .json or .xlsx)", ext)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if ext == ".json" {
		err = WriteJSON(out, r.Summary())
	} else {
		err = WriteXLSX(out, []*adaptive.Result{r})
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := f.SetCellValue(sheet, cell, v); err != nil {
		return fmt.Errorf("report: set %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	for i, v := range values {
		if err := setCell(f, sheet, i+1, row, v); err != nil {
			return err
		}
	}
	return nil
}

func round(v float64) float64 { return confidence.Round(v, 3) }

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return round(*v)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}
