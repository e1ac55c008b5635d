package merge

import (
	"fmt"
	"strings"

	"media-transcriber/pkg/models"
)

// FormatTimestamped groups words into paragraphs. A paragraph starts at the
// first word and again whenever a word begins more than gap seconds after
// the current paragraph's first word. Each paragraph is prefixed with the
// timestamp of its first word and paragraphs are separated by a blank line.
func FormatTimestamped(words []models.WordToken, gap float64) string {
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	paraStart := 0
	for i, w := range words {
		if i == 0 || w.Start-words[paraStart].Start > gap {
			if i > 0 {
				b.WriteString("\n\n")
			}
			fmt.Fprintf(&b, "[%s] ", FormatTimestamp(w.Start))
			paraStart = i
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(w.Text)
	}
	return b.String()
}

// FormatTimestamp renders seconds as H:MM:SS, or M:SS under an hour.
// Fractions are truncated.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
