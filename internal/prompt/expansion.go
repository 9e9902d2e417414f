package prompt

import (
	"fmt"
	"strings"

	"github.com/alnah/go-retell/internal/length"
)

// TopicParams configures Topics.
type TopicParams struct {
	ChapterNumber int
	ChapterCount  int
	SegmentLength int
	TargetLength  int
}

// Topics renders the instruction asking for a topic outline of one
// expansion segment.
func Topics(p TopicParams) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# TOPIC OUTLINE FOR CHAPTER %d OF %d\n\n", p.ChapterNumber, p.ChapterCount)
	fmt.Fprintf(&sb, "The segment below is %d characters. It will be expanded into a chapter of about %d characters.\n",
		p.SegmentLength, p.TargetLength)
	sb.WriteString(`
List the topics the chapter should develop, one per line, starting each line with "- ".
Include the topics present in the segment, then related background, history, explanations
and examples that would let the chapter reach its length without padding.
Give between five and ten topics. Output only the list.
`)
	return sb.String()
}

// ExpansionParams configures Expansion.
type ExpansionParams struct {
	Style    Style
	Language string

	ChapterNumber int
	ChapterCount  int
	SegmentLength int

	Budget length.Budget
	// OutlineExtract is this chapter's block of the expansion index.
	OutlineExtract string
	PreviousTail   string

	Corrections []Correction
}

// Expansion renders the instruction for expanding one segment into a
// single long chapter.
func Expansion(p ExpansionParams) string {
	var sb strings.Builder
	sb.WriteString(languageLine(p.Language))

	b := p.Budget
	ratio := 0.0
	if p.SegmentLength > 0 {
		ratio = float64(b.Target) / float64(p.SegmentLength)
	}

	sb.WriteString("# CHAPTER EXPANSION DIRECTIVE\n")
	if extract := strings.TrimSpace(p.OutlineExtract); extract != "" {
		fmt.Fprintf(&sb, "\n## MASTER DOCUMENT OUTLINE\n%s\n", extract)
	}

	renderStyle(&sb, p.Style)

	sb.WriteString("\n## LENGTH REQUIREMENT\n")
	fmt.Fprintf(&sb, "Your output MUST be at least %d characters and at most %d characters. Aim for %d.\n",
		b.Min, b.Max, b.Target)
	fmt.Fprintf(&sb, "The segment is %d characters, so this is a %.1fx expansion.\n", p.SegmentLength, ratio)

	sb.WriteString("\n## YOUR TASK\n")
	fmt.Fprintf(&sb, "1. Write Chapter %d of %d ONLY. Start with \"Chapter %d: \" followed by an engaging title.\n",
		p.ChapterNumber, p.ChapterCount, p.ChapterNumber)
	sb.WriteString(`2. Expand the segment into one comprehensive chapter covering every topic of the outline.
3. Elaborate: add historical background, explanations, examples and descriptive detail.
4. Keep the core message of the segment intact.
`)

	if p.PreviousTail != "" {
		fmt.Fprintf(&sb, "\n## CONTINUITY\nThe previous chapter ended with:\n\"\"\"\n%s\n\"\"\"\nDo not repeat it.\n", p.PreviousTail)
	}

	renderCorrections(&sb, p.Corrections)

	sb.WriteString(`
## FORMATTING
- Plain text meant to be read aloud. No markdown, brackets or asterisks.
- Mark subsections with a line of the form "- Subsection Title -", at most three per chapter.
`)
	return sb.String()
}
