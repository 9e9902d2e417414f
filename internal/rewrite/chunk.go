package rewrite

import (
	"context"
	"fmt"

	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/prompt"
)

// ContinuityTail is how much of the previous span's output is quoted in
// the next span's instruction.
const ContinuityTail = 1000

// Task is one span to rewrite.
type Task struct {
	// Index is 0-based; Total is the number of spans in the job.
	Index, Total int
	Source       string
	Budget       length.Budget
	// Outline is the structure index shared by every span.
	Outline  string
	Chapters []prompt.ChapterRef
	// ChapterInfo labels the span in the simplified instruction.
	ChapterInfo string
	// PreviousOutput is the accepted output of the preceding span.
	PreviousOutput string
}

// Last reports whether the task is the final span of the job.
func (t Task) Last() bool { return t.Index == t.Total-1 }

// ChunkRewriter rewrites one span of a regular job.
type ChunkRewriter struct {
	engine
}

// NewChunkRewriter creates a ChunkRewriter that calls gen.
func NewChunkRewriter(gen generate.Generator, opts ...Option) *ChunkRewriter {
	r := &ChunkRewriter{engine: newEngine(gen)}
	for _, opt := range opts {
		opt(&r.engine)
	}
	return r
}

// Rewrite produces the span's output. Every span ends accepted, accepted
// through the simplified instruction, or preserved; the returned error is
// non-nil only for failures that must stop the job.
func (r *ChunkRewriter) Rewrite(ctx context.Context, t Task) (Result, error) {
	res := Result{Index: t.Index, Source: t.Source, Budget: t.Budget}
	tail := prompt.Tail(t.PreviousOutput, ContinuityTail)
	last := t.Last()

	a, out, ok, err := r.run(ctx, t.Source, t.Budget, last, func(cs []prompt.Correction) string {
		return prompt.Span(prompt.SpanParams{
			Style:        r.style,
			Language:     r.language,
			Index:        t.Index,
			Total:        t.Total,
			Outline:      t.Outline,
			Chapters:     t.Chapters,
			Budget:       t.Budget,
			Last:         last,
			PreviousTail: tail,
			Corrections:  cs,
		})
	}, "span", t.Index+1)
	res.Attempts, res.Corrections, res.Prompt = a.count, len(a.corrections), a.prompt
	if err != nil {
		return Result{}, fmt.Errorf("span %d: %w", t.Index+1, err)
	}
	if ok {
		res.Output = out
		res.OutputLength = length.Count(out)
		res.WithinBounds = true
		return res, nil
	}

	r.logger.Warn("span exhausted its attempts, using simplified instruction", "span", t.Index+1, "attempts", a.count)
	previous := 0
	if a.produced {
		previous = length.Count(a.last)
	}
	res.Prompt = prompt.Simplified(prompt.SimplifiedParams{
		Language:       r.language,
		Budget:         t.Budget,
		ChapterInfo:    t.ChapterInfo,
		PreviousLength: previous,
	})
	res.Attempts++

	out, err = r.generate(ctx, t.Source, res.Prompt)
	if err != nil {
		if generate.IsFatal(err) || ctx.Err() != nil {
			return Result{}, fmt.Errorf("span %d: %w", t.Index+1, err)
		}
		r.logger.Error("simplified instruction failed, preserving source", "span", t.Index+1, "error", err)
		res.Output = PreservedNotice + t.Source
		res.OutputLength = length.Count(res.Output)
		res.Degraded = OriginalPreserved
		return res, nil
	}

	res.Output = out
	res.OutputLength = length.Count(out)
	res.WithinBounds = t.Budget.Check(res.OutputLength, last) == length.Within
	res.Degraded = SimplifiedFallback
	return res, nil
}
