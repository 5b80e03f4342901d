package confidence

import (
	"strings"

	"github.com/thywilljoshua/docladder/internal/document"
)

// TableMetrics scores one table. An empty table scores a flat 0.3.
func TableMetrics(t document.Table) TableConfidenceMetrics {
	m := TableConfidenceMetrics{RowCount: len(t.Rows)}
	if len(t.Rows) == 0 {
		m.Score = 0.3
		return m
	}

	// Modal column count; ties resolve to the count seen first.
	counts := map[int]int{}
	var order []int
	var cells, empty int
	for _, row := range t.Rows {
		if _, ok := counts[len(row)]; !ok {
			order = append(order, len(row))
		}
		counts[len(row)]++
		cells += len(row)
		for _, c := range row {
			if strings.TrimSpace(c) == "" {
				empty++
			}
		}
	}
	m.ModalColumns = order[0]
	for _, n := range order[1:] {
		if counts[n] > counts[m.ModalColumns] {
			m.ModalColumns = n
		}
	}
	m.RowConsistency = float64(counts[m.ModalColumns]) / float64(len(t.Rows))
	if cells > 0 {
		m.EmptyCellRatio = float64(empty) / float64(cells)
	}

	score := 1.0
	if m.RowConsistency < 0.8 {
		score -= 0.3
	}
	switch {
	case m.EmptyCellRatio > 0.5:
		score -= 0.3
	case m.EmptyCellRatio > 0.3:
		score -= 0.15
	}
	if len(t.Rows) < 2 {
		score -= 0.1
	}
	m.Score = clamp(score)
	return m
}

// TablesScore is the mean table score, 1.0 for no tables.
func TablesScore(tables []document.Table) float64 {
	if len(tables) == 0 {
		return 1
	}
	var sum float64
	for _, t := range tables {
		sum += TableMetrics(t).Score
	}
	return sum / float64(len(tables))
}

// FigureMetrics scores one figure.
func FigureMetrics(f document.Figure) FigureConfidenceMetrics {
	m := FigureConfidenceMetrics{
		HasCaption:  strings.TrimSpace(f.Caption) != "",
		HasLabel:    strings.TrimSpace(f.Label) != "",
		InvalidBBox: f.BBox != nil && !f.BBox.Valid(),
	}
	score := 1.0
	if !m.HasCaption {
		score -= 0.1
	}
	if !m.HasLabel {
		score -= 0.1
	}
	if m.InvalidBBox {
		score -= 0.3
	}
	m.Score = clamp(score)
	return m
}

// FiguresScore is the mean figure score, 1.0 for no figures.
func FiguresScore(figs []document.Figure) float64 {
	if len(figs) == 0 {
		return 1
	}
	var sum float64
	for _, f := range figs {
		sum += FigureMetrics(f).Score
	}
	return sum / float64(len(figs))
}
