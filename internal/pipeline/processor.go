package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alnah/go-retell/internal/artifact"
	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/outline"
	"github.com/alnah/go-retell/internal/prompt"
	"github.com/alnah/go-retell/internal/rewrite"
	"github.com/alnah/go-retell/internal/span"
)

// Artifact names.
const (
	ArtifactOutline  = "master_document.txt"
	ArtifactFinal    = "final.txt"
	ArtifactTrimmed  = "trimmed.txt"
	ArtifactMetadata = "metadata.json"
)

// Progress phases.
const (
	PhaseAnalyze = "analyze"
	PhaseRewrite = "rewrite"
	PhaseExpand  = "expand"
)

// Job is one rewrite request.
type Job struct {
	// ID identifies the job in its record; a random one is used if empty.
	ID           string
	Name         string
	Source       string
	TargetLength int
	Model        string
	Style        prompt.Style
	// Language is the display name of the output language, or "" for the
	// source language.
	Language string
}

// Output is the result of a job.
type Output struct {
	Text   string
	Record Record
}

// ProgressFunc receives phase updates. current is 1-based.
type ProgressFunc func(phase string, current, total int)

// Processor runs jobs against a generator.
type Processor struct {
	gen      generate.Generator
	cfg      Config
	logger   *slog.Logger
	progress ProgressFunc
	now      func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(p *Processor) { p.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) { p.progress = fn }
}

// withNow overrides the clock (for testing).
func withNow(fn func() time.Time) Option {
	return func(p *Processor) { p.now = fn }
}

// New creates a Processor that calls gen.
func New(gen generate.Generator, opts ...Option) *Processor {
	p := &Processor{
		gen:      gen,
		cfg:      DefaultConfig(),
		logger:   slog.New(slog.DiscardHandler),
		progress: func(string, int, int) {},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run holds the state of one job.
type run struct {
	*Processor
	job     Job
	store   artifact.Store
	runes   []rune
	record  Record
	builder *outline.Builder
	opts    []rewrite.Option
}

// Run processes job, writing artifacts to store (which may be nil).
// The returned error is non-nil only for invalid jobs and failures that
// stop the whole job: missing credentials, unknown models, cancellation.
// Span failures degrade the span and are reported in the record.
func (p *Processor) Run(ctx context.Context, job Job, store artifact.Store) (Output, error) {
	if strings.TrimSpace(job.Source) == "" {
		return Output{}, ErrEmptySource
	}
	if job.TargetLength <= 0 {
		return Output{}, fmt.Errorf("%w: %d", ErrInvalidTarget, job.TargetLength)
	}
	if err := p.cfg.Validate(); err != nil {
		return Output{}, err
	}
	if store == nil {
		store = artifact.Nop{}
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	r := &run{Processor: p, job: job, store: store, runes: []rune(job.Source)}
	r.record = Record{
		ID:           job.ID,
		Name:         job.Name,
		Model:        job.Model,
		StartedAt:    p.now(),
		SourceLength: len(r.runes),
		TargetLength: job.TargetLength,
		Budget:       length.ComputeBudget(len(r.runes), job.TargetLength),
	}
	r.builder = outline.NewBuilder(p.gen,
		outline.WithModel(job.Model),
		outline.WithAnalysisCeiling(p.cfg.AnalysisCeiling),
		outline.WithChapterSize(p.cfg.TargetChapter),
		outline.WithParallel(p.cfg.ParallelWindows),
		outline.WithLogger(p.logger),
	)
	r.opts = []rewrite.Option{
		rewrite.WithModel(job.Model),
		rewrite.WithStyle(job.Style),
		rewrite.WithLanguage(job.Language),
		rewrite.WithMaxRetries(p.cfg.MaxRetries),
		rewrite.WithTransientDelay(p.cfg.TransientDelay),
		rewrite.WithLogger(p.logger),
	}

	p.logger.Info("job started",
		"id", job.ID,
		"source_length", r.record.SourceLength,
		"target_length", job.TargetLength,
		"scaling_factor", r.record.Budget.ScalingFactor,
		"class", r.record.Budget.Class,
	)

	var (
		outputs []string
		err     error
	)
	if r.record.Budget.ScalingFactor > 1.0 {
		outputs, err = r.expand(ctx)
	} else {
		outputs, err = r.rewrite(ctx)
	}
	if err != nil {
		return Output{}, err
	}

	text := outline.Join(outputs...)
	r.write(ArtifactFinal, text)

	trim := Trim(text, job.TargetLength+p.cfg.Overage)
	r.record.Trim = TrimRecord{
		Ceiling:         job.TargetLength + p.cfg.Overage,
		Applied:         trim.Applied,
		RemovedChapters: trim.Removed,
		LengthBefore:    length.Count(text),
	}
	if trim.Warning != "" {
		p.logger.Warn(trim.Warning, "length", r.record.Trim.LengthBefore, "ceiling", r.record.Trim.Ceiling)
		r.record.Warnings = append(r.record.Warnings, trim.Warning)
	}
	if trim.Applied {
		p.logger.Info("trimmed trailing chapters", "removed", trim.Removed)
		r.write(ArtifactTrimmed, trim.Text)
	}

	if r.record.AllPreserved() {
		r.record.Warnings = append(r.record.Warnings, "no span could be rewritten; the output is the source text")
	}
	r.record.OutputLength = length.Count(trim.Text)
	r.record.Duration = p.now().Sub(r.record.StartedAt)
	if err := store.WriteJSON(ArtifactMetadata, r.record); err != nil {
		p.logger.Warn("cannot write artifact", "name", ArtifactMetadata, "error", err)
	}

	p.logger.Info("job finished",
		"id", job.ID,
		"path", r.record.Path,
		"output_length", r.record.OutputLength,
		"degraded_spans", r.record.DegradedSpans(),
	)
	return Output{Text: trim.Text, Record: r.record}, nil
}

// rewrite runs the chapter-aligned or segmented path.
func (r *run) rewrite(ctx context.Context) ([]string, error) {
	r.progress(PhaseAnalyze, 1, 1)
	idx, err := r.builder.Build(ctx, r.job.Source)
	if err != nil {
		return nil, fmt.Errorf("structure index: %w", err)
	}
	r.write(ArtifactOutline, idx.Text)
	if len(idx.Windows) > 1 {
		for i, w := range idx.Windows {
			r.write(fmt.Sprintf("master_chunks/window_%03d.txt", i+1), w)
		}
	}

	parsed := idx.Parse()
	r.record.Outline = OutlineRecord{
		Strategy:      parsed.Strategy,
		Chapters:      parsed.Chapters,
		Duplicates:    parsed.Duplicates,
		Windows:       len(idx.Windows),
		FailedWindows: idx.Failed,
	}
	if parsed.Duplicates > 0 {
		r.logger.Warn("structure index repeats chapter numbers; kept first occurrences", "duplicates", parsed.Duplicates)
	}

	spans := r.plan(parsed)
	if err := span.Validate(spans, len(r.runes)); err != nil {
		return nil, err
	}
	r.logger.Info("spans planned", "path", r.record.Path, "spans", len(spans))

	titles := make(map[int]string, len(parsed.Chapters))
	for _, c := range parsed.Chapters {
		titles[c.Number] = c.Title
	}

	rw := rewrite.NewChunkRewriter(r.gen, r.opts...)
	outputs := make([]string, 0, len(spans))
	previous := ""
	for i, sp := range spans {
		r.progress(PhaseRewrite, i+1, len(spans))

		src := sp.Source(r.runes)
		n := sp.Len()
		refs := make([]prompt.ChapterRef, len(sp.Chapters))
		for j, num := range sp.Chapters {
			refs[j] = prompt.ChapterRef{Number: num, Title: titles[num]}
		}

		res, err := rw.Rewrite(ctx, rewrite.Task{
			Index:          i,
			Total:          len(spans),
			Source:         src,
			Budget:         length.ComputeBudget(n, length.SpanTarget(n, r.record.Budget.ScalingFactor)),
			Outline:        idx.Text,
			Chapters:       refs,
			ChapterInfo:    sp.Label(),
			PreviousOutput: previous,
		})
		if err != nil {
			return nil, err
		}

		r.writeSpan(i, res)
		r.record.Spans = append(r.record.Spans, spanRecord(res, sp.Start, sp.End, sp.Chapters, i == len(spans)-1))
		outputs = append(outputs, res.Output)
		previous = res.Output
	}
	return outputs, nil
}

// plan picks the span source for a non-expansion job.
func (r *run) plan(parsed outline.Result) []span.Span {
	path, spans := r.cfg.spans(parsed, r.job.Source, len(r.runes))
	r.record.Path = path
	if path == Segmented && r.cfg.ChapterAligned {
		r.logger.Warn("structure index has no chapters, falling back to segmenter")
	}
	return spans
}

// expand runs the expansion path.
func (r *run) expand(ctx context.Context) ([]string, error) {
	r.record.Path = Expansion
	r.progress(PhaseAnalyze, 1, 1)

	exp, err := r.builder.BuildExpansion(ctx, r.job.Source, r.job.TargetLength, r.cfg.PerCallCeiling)
	if err != nil {
		return nil, fmt.Errorf("expansion index: %w", err)
	}
	r.write(ArtifactOutline, exp.Text())
	r.record.Outline = OutlineRecord{
		Windows:  len(exp.Segments),
		Segments: exp.Segments,
	}
	r.logger.Info("expansion planned", "chapters", len(exp.Segments), "per_chapter", exp.PerSegment)

	rw := rewrite.NewExpansionRewriter(r.gen, r.opts...)
	outputs := make([]string, 0, len(exp.Segments))
	previous := ""
	for i, seg := range exp.Segments {
		r.progress(PhaseExpand, i+1, len(exp.Segments))

		res, err := rw.Rewrite(ctx, rewrite.ExpansionTask{
			Number:         seg.Number,
			Count:          len(exp.Segments),
			Segment:        seg.Source,
			Budget:         length.SegmentBudget(seg.End-seg.Start, exp.PerSegment),
			OutlineExtract: exp.ChapterExtract(seg.Number),
			PreviousOutput: previous,
		})
		if err != nil {
			return nil, err
		}

		r.writeSpan(i, res)
		last := i == len(exp.Segments)-1
		r.record.Spans = append(r.record.Spans, spanRecord(res, seg.Start, seg.End, []int{seg.Number}, last))
		outputs = append(outputs, res.Output)
		previous = res.Output
	}
	return outputs, nil
}

func (r *run) writeSpan(i int, res rewrite.Result) {
	r.write(artifact.SpanName(i, "source"), res.Source)
	r.write(artifact.SpanName(i, "prompt"), res.Prompt)
	r.write(artifact.SpanName(i, "output"), res.Output)
}

// write stores an artifact, logging failures.
func (r *run) write(name, text string) {
	if err := r.store.Write(name, []byte(text)); err != nil {
		r.logger.Warn("cannot write artifact", "name", name, "error", err)
	}
}
