package confidence

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/thywilljoshua/docladder/internal/document"
)

// isReplacement reports characters that signal a broken text layer.
func isReplacement(r rune) bool {
	switch r {
	case '\uFFFD', '\x00', '\uFFFE', '\uFFFF':
		return true
	}
	return false
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }

// TextMetrics computes text statistics over elements joined by single spaces.
// Text is NFC-normalized first so decomposed accents count as one character.
func TextMetrics(elems []document.ContentElement) TextQualityMetrics {
	empty := TextQualityMetrics{AlphanumericRatio: 1, AvgWordLength: 5, EmptyBlockRatio: 1}
	if len(elems) == 0 {
		return empty
	}
	text := norm.NFC.String(joinText(elems))
	if strings.TrimSpace(text) == "" {
		return empty
	}

	var total, alnum, space, repl int
	for _, r := range text {
		total++
		switch {
		case isReplacement(r):
			repl++
		case unicode.IsSpace(r):
			space++
		case isAlnum(r):
			alnum++
		}
	}

	m := TextQualityMetrics{
		AlphanumericRatio: float64(alnum) / float64(total),
		ReplacementRatio:  float64(repl) / float64(total),
		WhitespaceRatio:   float64(space) / float64(total),
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		m.BrokenWordRatio = 1
	} else {
		var letters, broken int
		for _, w := range words {
			n := utf8.RuneCountInString(w)
			letters += n
			if n == 1 {
				r, _ := utf8.DecodeRuneInString(w)
				if !isAlnum(r) {
					broken++
				}
			}
		}
		m.AvgWordLength = float64(letters) / float64(len(words))
		m.BrokenWordRatio = float64(broken) / float64(len(words))
	}

	var emptyBlocks int
	for _, e := range elems {
		if strings.TrimSpace(e.Text) == "" {
			emptyBlocks++
		}
	}
	m.EmptyBlockRatio = float64(emptyBlocks) / float64(len(elems))
	return m
}

// TextScore applies the penalty bands to text metrics.
func TextScore(m TextQualityMetrics) float64 {
	score := 1.0
	switch {
	case m.AlphanumericRatio < 0.3:
		score -= 0.4
	case m.AlphanumericRatio < 0.5:
		score -= 0.2
	}
	switch {
	case m.ReplacementRatio > 0.05:
		score -= 0.5
	case m.ReplacementRatio > 0.01:
		score -= 0.2
	}
	switch {
	case m.AvgWordLength < 2:
		score -= 0.3
	case m.AvgWordLength < 3:
		score -= 0.1
	}
	switch {
	case m.BrokenWordRatio > 0.3:
		score -= 0.3
	case m.BrokenWordRatio > 0.1:
		score -= 0.1
	}
	switch {
	case m.EmptyBlockRatio > 0.5:
		score -= 0.3
	case m.EmptyBlockRatio > 0.2:
		score -= 0.1
	}
	return clamp(score)
}

func joinText(elems []document.ContentElement) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.Text
	}
	return strings.Join(parts, " ")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
