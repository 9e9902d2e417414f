package prompt

import (
	"fmt"
	"strings"

	"github.com/alnah/go-retell/internal/length"
)

// ChapterRef names a chapter covered by a span.
type ChapterRef struct {
	Number int
	Title  string
}

// SpanParams configures Span.
type SpanParams struct {
	Style    Style
	Language string

	// Index is 0-based; Total is the number of spans in the job.
	Index, Total int

	// Outline is the complete structure index, shared by every span.
	Outline string
	// Chapters lists the chapters this span covers, if known.
	Chapters []ChapterRef

	Budget length.Budget
	// Last exempts the span from the upper bound.
	Last bool

	// PreviousTail is the end of the previous span's accepted output.
	PreviousTail string

	Corrections []Correction
}

// Span renders the instruction for rewriting one span of the source.
func Span(p SpanParams) string {
	var sb strings.Builder
	sb.WriteString(languageLine(p.Language))

	sb.WriteString("# TRANSCRIPT REWRITE DIRECTIVE\n")
	fmt.Fprintf(&sb, "\nYou are rewriting PART %d of %d of a transcript.\n", p.Index+1, p.Total)

	if strings.TrimSpace(p.Outline) != "" {
		fmt.Fprintf(&sb, "\n## MASTER DOCUMENT\n%s\n", strings.TrimSpace(p.Outline))
	}
	if len(p.Chapters) > 0 {
		sb.WriteString("\n## CHAPTERS IN THIS PART\n")
		for _, c := range p.Chapters {
			if c.Title != "" {
				fmt.Fprintf(&sb, "- Chapter %d: %s\n", c.Number, c.Title)
			} else {
				fmt.Fprintf(&sb, "- Chapter %d\n", c.Number)
			}
		}
		sb.WriteString("Begin each chapter with its heading on its own line, for example \"Chapter 3: Title\".\n")
	}

	renderStyle(&sb, p.Style)

	b := p.Budget
	sb.WriteString("\n## LENGTH REQUIREMENT\n")
	fmt.Fprintf(&sb, "The source part is %d characters. Your output MUST be %d characters (%.2fx, %s).\n",
		b.Source, b.Target, b.ScalingFactor, length.Direction(b.ScalingFactor))
	if p.Last {
		fmt.Fprintf(&sb, "Write at least %d characters. This is the final part, so it may run longer to reach a natural conclusion.\n", b.Min)
	} else {
		fmt.Fprintf(&sb, "Acceptable range: %d to %d characters.\n", b.Min, b.Max)
	}

	if p.PreviousTail != "" {
		fmt.Fprintf(&sb, "\n## CONTINUITY\nThe previous part ended with:\n\"\"\"\n%s\n\"\"\"\n", p.PreviousTail)
		sb.WriteString("Continue naturally from this point. Do not repeat it and do not reintroduce the topic.\n")
	} else if p.Index == 0 {
		sb.WriteString("\n## CONTINUITY\nThis is the opening part. Introduce the subject before the first chapter.\n")
	}
	if !p.Last {
		sb.WriteString("Do not conclude the whole narrative; later parts follow.\n")
	}

	renderCorrections(&sb, p.Corrections)

	sb.WriteString(`
## FORMATTING
- Plain text with proper paragraphs and punctuation.
- Remove speech disfluencies ("um", "uh", repeated phrases).
- Output only the rewritten text.
`)
	return sb.String()
}

// SimplifiedParams configures Simplified.
type SimplifiedParams struct {
	Language string
	Budget   length.Budget
	// ChapterInfo describes the content of the span, e.g. "Chapters 3-5".
	ChapterInfo string
	// PreviousLength is the length of the last rejected output, or 0.
	PreviousLength int
}

// Simplified renders the short fallback instruction used once a span has
// exhausted its regular attempts.
func Simplified(p SimplifiedParams) string {
	var sb strings.Builder
	sb.WriteString(languageLine(p.Language))

	b := p.Budget
	info := p.ChapterInfo
	if info == "" {
		info = "this section"
	}
	sb.WriteString("# SIMPLIFIED REWRITE INSTRUCTION\n")
	fmt.Fprintf(&sb, "\nRewrite %s of a transcript as clear narrative prose.\n", info)
	fmt.Fprintf(&sb, "Your output MUST be %d characters (range %d-%d), %.2fx the input, a %s.\n",
		b.Target, b.Min, b.Max, b.ScalingFactor, length.Direction(b.ScalingFactor))
	sb.WriteString("Keep chapter headings such as \"Chapter 1\" if they appear. Remove speech disfluencies.\n")
	if p.PreviousLength > 0 {
		issue := "long"
		if p.PreviousLength < b.Min {
			issue = "short"
		}
		fmt.Fprintf(&sb, "Your last output was too %s at %d characters.\n", issue, p.PreviousLength)
	}
	return sb.String()
}
