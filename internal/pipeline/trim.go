package pipeline

import (
	"regexp"
	"strings"

	"github.com/alnah/go-retell/internal/length"
)

// chapterHeading matches a line that opens a chapter of the output.
var chapterHeading = regexp.MustCompile(`(?m)^Chapter \d+`)

// TrimResult is the outcome of Trim.
type TrimResult struct {
	Text    string
	Applied bool
	// Removed is the number of trailing chapters dropped.
	Removed int
	// Warning is set when the text is over the ceiling but could not be
	// trimmed.
	Warning string
}

// Trim drops whole trailing chapters while text is longer than ceiling and
// more than one chapter remains. Text with fewer than two chapter headings
// is returned unchanged with a warning. Text within the ceiling is always
// returned unchanged, so Trim is idempotent.
func Trim(text string, ceiling int) TrimResult {
	if length.Count(text) <= ceiling {
		return TrimResult{Text: text}
	}

	headings := chapterHeading.FindAllStringIndex(text, -1)
	if len(headings) < 2 {
		return TrimResult{
			Text:    text,
			Warning: "output exceeds the length ceiling but has fewer than two chapter headings; left untrimmed",
		}
	}

	out := text
	removed := 0
	for k := len(headings) - 1; k >= 1 && length.Count(out) > ceiling; k-- {
		out = strings.TrimRight(text[:headings[k][0]], " \t\r\n")
		removed++
	}
	return TrimResult{Text: out, Applied: true, Removed: removed}
}
