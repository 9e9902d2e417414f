package outline

import (
	"context"
	"fmt"
	"strings"

	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/prompt"
)

// expansionHeader opens every expansion index.
const expansionHeader = "# MASTER DOCUMENT FOR EXTREME EXPANSION"

// fallbackTopics is used for a segment whose topic call failed or
// returned no usable list.
var fallbackTopics = []string{
	"The main subject of this part and why it matters",
	"Historical background and context",
	"Key events, ideas and turning points",
	"The people involved and their roles",
	"Causes, consequences and connections to the rest of the story",
	"Concrete examples and descriptive detail",
	"Lessons and lasting significance",
}

// Segment is one equal slice of the source in an expansion index.
type Segment struct {
	Number int      `json:"number"`
	Start  int      `json:"start"`
	End    int      `json:"end"`
	Source string   `json:"-"`
	Topics []string `json:"topics"`
	// Fallback is set when Topics is the generic list.
	Fallback bool `json:"fallback,omitempty"`
}

// Expansion is the synthetic structure index used when the output must
// be longer than the source.
type Expansion struct {
	Segments []Segment
	// TargetLength is the length of the complete output.
	TargetLength int
	// PerSegment is the output length each segment aims for: the per-call
	// output ceiling.
	PerSegment int
}

// SegmentCount returns how many segments a target of the given length
// needs when one call produces at most perCall characters.
func SegmentCount(target, perCall int) int {
	if perCall <= 0 || target <= 0 {
		return 1
	}
	return max(1, (target+perCall-1)/perCall)
}

// SplitSegments divides a source of sourceLength runes into
// SegmentCount(target, perCall) equal segments. The last one takes the
// remainder. Topics are left empty.
func SplitSegments(sourceLength, target, perCall int) []Segment {
	n := SegmentCount(target, perCall)
	size := sourceLength / n
	segments := make([]Segment, n)
	for i := range n {
		start := i * size
		end := start + size
		if i == n-1 {
			end = sourceLength
		}
		segments[i] = Segment{Number: i + 1, Start: start, End: end}
	}
	return segments
}

// BuildExpansion splits text into SegmentCount(target, perCall) equal
// segments and asks the generator for a topic list for each one.
func (b *Builder) BuildExpansion(ctx context.Context, text string, target, perCall int) (Expansion, error) {
	runes := []rune(text)
	segments := SplitSegments(len(runes), target, perCall)
	n := len(segments)
	per := perCall
	if per <= 0 {
		per = target
	}
	exp := Expansion{TargetLength: target, PerSegment: per, Segments: segments}

	for i, seg := range segments {
		start, end := seg.Start, seg.End
		seg.Source = string(runes[start:end])

		out, err := b.gen.Generate(ctx, generate.Request{
			Source: seg.Source,
			Instructions: prompt.Topics(prompt.TopicParams{
				ChapterNumber: seg.Number,
				ChapterCount:  n,
				SegmentLength: end - start,
				TargetLength:  per,
			}),
			Model:           b.model,
			MaxOutputTokens: b.maxTokens,
			Temperature:     b.temperature,
		})
		switch {
		case err != nil && generate.IsFatal(err):
			return Expansion{}, err
		case err != nil:
			b.logger.Warn("topic outline failed", "segment", seg.Number, "error", err)
		default:
			seg.Topics = ParseTopics(out)
		}
		if len(seg.Topics) == 0 {
			seg.Topics = append([]string(nil), fallbackTopics...)
			seg.Fallback = true
		}
		exp.Segments[i] = seg
	}
	return exp, nil
}

// ParseTopics extracts list items from a topic outline. Bulleted and
// numbered lines are accepted; other lines are ignored.
func ParseTopics(out string) []string {
	var topics []string
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "- "), strings.HasPrefix(s, "* "), strings.HasPrefix(s, "• "):
			_, s, _ = strings.Cut(s, " ")
		case len(s) > 2 && s[0] >= '0' && s[0] <= '9':
			i := strings.IndexAny(s, ".)")
			if i < 1 || i > 3 {
				continue
			}
			s = s[i+1:]
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			topics = append(topics, s)
		}
	}
	return topics
}

// Text renders the whole expansion index.
func (e Expansion) Text() string {
	var sb strings.Builder
	sb.WriteString(expansionHeader)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Target length: %d characters across %d chapters of about %d characters each.\n",
		e.TargetLength, len(e.Segments), e.PerSegment)
	sb.WriteString("Every chapter expands its source segment with background, explanation and examples.\n")
	for _, s := range e.Segments {
		sb.WriteString("\n")
		sb.WriteString(e.block(s))
	}
	return sb.String()
}

// ChapterExtract returns the block of chapter number, or "" if the index
// has no such chapter.
func (e Expansion) ChapterExtract(number int) string {
	if number < 1 || number > len(e.Segments) {
		return ""
	}
	return e.block(e.Segments[number-1])
}

func (e Expansion) block(s Segment) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Chapter %d: %s (%d-%d)\n", s.Number, preview(s.Source, 50), s.Start, s.End)
	fmt.Fprintf(&sb, "Target: about %d characters.\n", e.PerSegment)
	sb.WriteString("Topics to develop:\n")
	for _, t := range s.Topics {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	return sb.String()
}

// preview returns the first n runes of s on one line, with an ellipsis
// when s is longer.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
