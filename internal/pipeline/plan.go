package pipeline

import (
	"fmt"
	"strings"

	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/outline"
	"github.com/alnah/go-retell/internal/segment"
	"github.com/alnah/go-retell/internal/span"
)

// Plan describes how a job would be processed. It is computed without
// calling a generator.
type Plan struct {
	Budget   length.Budget     `json:"budget"`
	Path     Path              `json:"path"`
	Strategy outline.Strategy  `json:"strategy"`
	Chapters []outline.Chapter `json:"chapters,omitempty"`
	Spans    []PlannedSpan     `json:"spans"`
}

// PlannedSpan is one generator call of a plan.
type PlannedSpan struct {
	Start    int           `json:"start"`
	End      int           `json:"end"`
	Chapters []int         `json:"chapters,omitempty"`
	Label    string        `json:"label"`
	Budget   length.Budget `json:"budget"`
}

// Plan computes the processing plan for source and target. outlineDoc is
// an existing structure index; when empty, non-expansion jobs are planned
// with the segmenter as if the index had no chapters.
func (c Config) Plan(source string, target int, outlineDoc string) (Plan, error) {
	if strings.TrimSpace(source) == "" {
		return Plan{}, ErrEmptySource
	}
	if target <= 0 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	if err := c.Validate(); err != nil {
		return Plan{}, err
	}

	n := length.Count(source)
	p := Plan{Budget: length.ComputeBudget(n, target)}

	if p.Budget.ScalingFactor > 1.0 {
		p.Path = Expansion
		segs := outline.SplitSegments(n, target, c.PerCallCeiling)
		per := c.PerCallCeiling
		for _, s := range segs {
			p.Spans = append(p.Spans, PlannedSpan{
				Start:    s.Start,
				End:      s.End,
				Chapters: []int{s.Number},
				Label:    fmt.Sprintf("Chapter %d", s.Number),
				Budget:   length.SegmentBudget(s.End-s.Start, per),
			})
		}
		return p, nil
	}

	parsed := outline.Parse(outlineDoc)
	p.Strategy = parsed.Strategy
	p.Chapters = parsed.Chapters

	var spans []span.Span
	p.Path, spans = c.spans(parsed, source, n)
	if err := span.Validate(spans, n); err != nil {
		return Plan{}, err
	}
	for _, sp := range spans {
		p.Spans = append(p.Spans, PlannedSpan{
			Start:    sp.Start,
			End:      sp.End,
			Chapters: sp.Chapters,
			Label:    sp.Label(),
			Budget:   length.ComputeBudget(sp.Len(), length.SpanTarget(sp.Len(), p.Budget.ScalingFactor)),
		})
	}
	return p, nil
}

// spans picks the span source for a non-expansion job: chapters when
// enabled and parsed, the segmenter otherwise.
func (c Config) spans(parsed outline.Result, source string, n int) (Path, []span.Span) {
	if c.ChapterAligned && !parsed.IsEmpty() {
		return ChapterAligned, span.FromChapters(parsed.Chapters, n, c.MaxChapterChunk, c.TargetChapter)
	}
	return Segmented, segment.New(c.Segmenter).Segment(source)
}
