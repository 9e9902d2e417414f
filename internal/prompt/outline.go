package prompt

import (
	"fmt"
	"strings"
)

// OutlinePart selects the variant of the structure-index instruction.
type OutlinePart int

const (
	// Whole analyzes the complete source in one call.
	Whole OutlinePart = iota
	// First analyzes the first window of a source split for analysis.
	First
	// Continuation analyzes a later window and continues numbering.
	Continuation
)

// OutlineParams configures Outline.
type OutlineParams struct {
	Part OutlinePart
	// SourceLength is the length of the complete source.
	SourceLength int
	// WindowStart and WindowEnd locate the analyzed window in the source.
	WindowStart, WindowEnd int
	// WindowIndex is 1-based; WindowCount is the number of windows.
	WindowIndex, WindowCount int
	// SuggestedChapters is the chapter count to aim for in this call.
	SuggestedChapters int
	// LastChapter is the highest chapter number produced so far.
	LastChapter int
}

// Outline renders the instruction that asks the generator for a chapter
// outline ("master document") of the source.
func Outline(p OutlineParams) string {
	var sb strings.Builder

	sb.WriteString("# MASTER DOCUMENT CREATION\n\n")
	switch p.Part {
	case First:
		fmt.Fprintf(&sb, "You are analyzing PART %d of %d of a long transcript (characters %d-%d of %d).\n",
			p.WindowIndex, p.WindowCount, p.WindowStart, p.WindowEnd, p.SourceLength)
		sb.WriteString("Start numbering chapters at 1. Later parts will continue the numbering.\n")
	case Continuation:
		fmt.Fprintf(&sb, "You are analyzing PART %d of %d of a long transcript (characters %d-%d of %d).\n",
			p.WindowIndex, p.WindowCount, p.WindowStart, p.WindowEnd, p.SourceLength)
		fmt.Fprintf(&sb, "The previous parts ended with Chapter %d. Continue numbering from Chapter %d.\n",
			p.LastChapter, p.LastChapter+1)
		sb.WriteString("Do not repeat chapters that belong to earlier parts.\n")
	default:
		fmt.Fprintf(&sb, "You are analyzing a complete transcript of %d characters.\n", p.SourceLength)
	}

	sb.WriteString(`
## YOUR TASK
Divide the transcript into logical chapters that follow its natural topic changes.
`)
	if p.SuggestedChapters > 0 {
		fmt.Fprintf(&sb, "Aim for about %d chapters.\n", p.SuggestedChapters)
	}

	sb.WriteString(`
## OUTPUT FORMAT
For every chapter write exactly:

Chapter N: Title (approximate characters START-END)

A description of two to four sentences covering the key points, names and events of the chapter.

Separate chapters with one blank line.
Character ranges are positions in the transcript and must increase from chapter to chapter.

## RULES
- Plain text only. Do not use markdown, asterisks or pound signs.
- Number chapters sequentially without gaps.
- Cover the whole text from beginning to end.
- Output only the chapters, with no introduction or closing remarks.
`)
	return sb.String()
}

// SuggestedChapters returns the chapter count to request for a text of n
// characters when chapters should hold about perChapter characters.
func SuggestedChapters(n, perChapter int) int {
	if perChapter <= 0 || n <= 0 {
		return 1
	}
	return max(1, (n+perChapter-1)/perChapter)
}
