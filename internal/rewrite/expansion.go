package rewrite

import (
	"context"
	"fmt"

	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/prompt"
)

// ExpansionTail is how much of the previous chapter is quoted when
// expanding the next one.
const ExpansionTail = 400

// ExpansionTask is one segment of an expansion job.
type ExpansionTask struct {
	// Number is the 1-based chapter number; Count the number of chapters.
	Number, Count int
	Segment       string
	// Budget is the wide segment band (see length.SegmentBudget).
	Budget         length.Budget
	OutlineExtract string
	PreviousOutput string
}

// ExpansionRewriter expands one segment into one long chapter.
type ExpansionRewriter struct {
	engine
}

// NewExpansionRewriter creates an ExpansionRewriter that calls gen.
func NewExpansionRewriter(gen generate.Generator, opts ...Option) *ExpansionRewriter {
	r := &ExpansionRewriter{engine: newEngine(gen)}
	for _, opt := range opts {
		opt(&r.engine)
	}
	return r
}

// Placeholder is the output of a segment for which no text was produced.
func Placeholder(number int, segment string) string {
	return fmt.Sprintf("Chapter %d\n\n[Unable to generate content for this chapter]\n\n%s", number, segment)
}

// Rewrite expands the segment. Once the regular attempts are used up a
// simplified instruction is tried; if that call fails too, the last
// response is kept, or the segment is preserved behind a placeholder
// heading when no response was produced at all. The returned error is
// non-nil only for failures that must stop the job.
func (r *ExpansionRewriter) Rewrite(ctx context.Context, t ExpansionTask) (Result, error) {
	res := Result{Index: t.Number - 1, Source: t.Segment, Budget: t.Budget}
	tail := prompt.Tail(t.PreviousOutput, ExpansionTail)

	a, out, ok, err := r.run(ctx, t.Segment, t.Budget, false, func(cs []prompt.Correction) string {
		return prompt.Expansion(prompt.ExpansionParams{
			Style:          r.style,
			Language:       r.language,
			ChapterNumber:  t.Number,
			ChapterCount:   t.Count,
			SegmentLength:  length.Count(t.Segment),
			Budget:         t.Budget,
			OutlineExtract: t.OutlineExtract,
			PreviousTail:   tail,
			Corrections:    cs,
		})
	}, "chapter", t.Number)
	res.Attempts, res.Corrections, res.Prompt = a.count, len(a.corrections), a.prompt
	if err != nil {
		return Result{}, fmt.Errorf("chapter %d: %w", t.Number, err)
	}
	if ok {
		res.Output = out
		res.OutputLength = length.Count(out)
		res.WithinBounds = true
		return res, nil
	}

	r.logger.Warn("chapter exhausted its attempts, using simplified instruction", "chapter", t.Number, "attempts", a.count)
	previous := 0
	if a.produced {
		previous = length.Count(a.last)
	}
	res.Prompt = prompt.Simplified(prompt.SimplifiedParams{
		Language:       r.language,
		Budget:         t.Budget,
		ChapterInfo:    fmt.Sprintf("Chapter %d of %d", t.Number, t.Count),
		PreviousLength: previous,
	})
	res.Attempts++

	out, err = r.generate(ctx, t.Segment, res.Prompt)
	switch {
	case err != nil && (generate.IsFatal(err) || ctx.Err() != nil):
		return Result{}, fmt.Errorf("chapter %d: %w", t.Number, err)
	case err == nil && out != "":
		res.Output = out
		res.Degraded = SimplifiedFallback
	case a.produced && a.last != "":
		r.logger.Warn("simplified instruction failed, keeping last output",
			"chapter", t.Number, "length", previous, "error", err)
		res.Output = a.last
		res.Degraded = SimplifiedFallback
	default:
		r.logger.Error("no output for chapter, preserving segment", "chapter", t.Number, "error", err)
		res.Output = Placeholder(t.Number, t.Segment)
		res.Degraded = OriginalPreserved
	}
	res.OutputLength = length.Count(res.Output)
	res.WithinBounds = res.Degraded != OriginalPreserved &&
		t.Budget.Check(res.OutputLength, false) == length.Within
	return res, nil
}
