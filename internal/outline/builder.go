package outline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/prompt"
)

// Defaults for Builder.
const (
	// DefaultAnalysisCeiling is the largest source analyzed in one call.
	DefaultAnalysisCeiling = 2_000_000
	// DefaultChapterSize is the chapter length used to suggest a chapter count.
	DefaultChapterSize = 15_000
)

// Index is a built structure index.
type Index struct {
	// Text is the joined structure index.
	Text string
	// Windows holds the raw output of each analysis call, in order.
	// Failed windows hold an empty string.
	Windows []string
	// Failed counts analysis calls that returned a non-fatal error.
	Failed int
}

// Parse parses the index text.
func (x Index) Parse() Result {
	return Parse(x.Text)
}

// Builder asks a generator for the structure index of a source.
type Builder struct {
	gen         generate.Generator
	model       string
	ceiling     int
	chapterSize int
	maxTokens   int
	temperature float32
	parallel    int
	logger      *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithModel sets the model used for analysis calls.
func WithModel(model string) Option {
	return func(b *Builder) { b.model = model }
}

// WithAnalysisCeiling sets the largest source analyzed in one call.
// Larger sources are analyzed in windows of half the ceiling.
func WithAnalysisCeiling(n int) Option {
	return func(b *Builder) {
		if n > 1 {
			b.ceiling = n
		}
	}
}

// WithChapterSize sets the chapter length used to suggest chapter counts.
func WithChapterSize(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.chapterSize = n
		}
	}
}

// WithParallel analyzes up to n windows concurrently. Chapter numbers are
// then stitched after all windows return. n <= 1 keeps windows sequential.
func WithParallel(n int) Option {
	return func(b *Builder) { b.parallel = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder that calls gen.
func NewBuilder(gen generate.Generator, opts ...Option) *Builder {
	b := &Builder{
		gen:         gen,
		ceiling:     DefaultAnalysisCeiling,
		chapterSize: DefaultChapterSize,
		maxTokens:   generate.DefaultMaxOutputTokens,
		temperature: generate.DefaultTemperature,
		parallel:    1,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// window is a slice of the source handed to one analysis call.
type window struct {
	index      int
	start, end int
	text       string
}

// Build produces the structure index of text. Non-fatal generator errors
// leave the failed window empty; only fatal errors (see generate.IsFatal)
// are returned.
func (b *Builder) Build(ctx context.Context, text string) (Index, error) {
	runes := []rune(text)
	total := len(runes)

	if total <= b.ceiling {
		out, err := b.call(ctx, text, prompt.OutlineParams{
			Part:              prompt.Whole,
			SourceLength:      total,
			WindowEnd:         total,
			WindowIndex:       1,
			WindowCount:       1,
			SuggestedChapters: prompt.SuggestedChapters(total, b.chapterSize),
		})
		if err != nil {
			if generate.IsFatal(err) {
				return Index{}, err
			}
			b.logger.Warn("structure index failed", "error", err)
			return Index{Windows: []string{""}, Failed: 1}, nil
		}
		return Index{Text: CollapseBlankLines(strings.TrimSpace(out)), Windows: []string{out}}, nil
	}

	windows := split(runes, b.ceiling/2)
	b.logger.Info("analyzing source in windows", "windows", len(windows), "source_length", total)
	if b.parallel > 1 {
		return b.buildParallel(ctx, windows, total)
	}
	return b.buildSequential(ctx, windows, total)
}

func (b *Builder) buildSequential(ctx context.Context, windows []window, total int) (Index, error) {
	idx := Index{Windows: make([]string, len(windows))}
	last := 0
	for _, w := range windows {
		out, err := b.call(ctx, w.text, b.windowParams(w, len(windows), total, last))
		if err != nil {
			if generate.IsFatal(err) {
				return Index{}, err
			}
			b.logger.Warn("structure index window failed", "window", w.index+1, "error", err)
			idx.Failed++
			continue
		}
		idx.Windows[w.index] = out
		if n := LastChapterNumber(out); n > 0 {
			last = n
		}
	}
	idx.Text = Join(idx.Windows...)
	return idx, nil
}

func (b *Builder) buildParallel(ctx context.Context, windows []window, total int) (Index, error) {
	outs := make([]string, len(windows))
	errs := make([]error, len(windows))
	sem := make(chan struct{}, b.parallel)

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range windows {
		// Numbering is rewritten after the fact; the estimate only keeps
		// the prompt coherent.
		estimate := w.start / b.chapterSize
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			out, err := b.call(gctx, w.text, b.windowParams(w, len(windows), total, estimate))
			if err != nil {
				if generate.IsFatal(err) {
					return fmt.Errorf("window %d: %w", w.index+1, err)
				}
				errs[w.index] = err
				return nil
			}
			outs[w.index] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Index{}, err
	}

	idx := Index{Windows: outs}
	var chapters []Chapter
	for i, out := range outs {
		if errs[i] != nil {
			b.logger.Warn("structure index window failed", "window", i+1, "error", errs[i])
			idx.Failed++
			continue
		}
		chapters = append(chapters, Parse(out).Chapters...)
	}
	idx.Text = Render(Renumber(chapters))
	return idx, nil
}

func (b *Builder) windowParams(w window, count, total, last int) prompt.OutlineParams {
	part := prompt.Continuation
	if w.index == 0 {
		part = prompt.First
	}
	return prompt.OutlineParams{
		Part:              part,
		SourceLength:      total,
		WindowStart:       w.start,
		WindowEnd:         w.end,
		WindowIndex:       w.index + 1,
		WindowCount:       count,
		SuggestedChapters: prompt.SuggestedChapters(w.end-w.start, b.chapterSize),
		LastChapter:       last,
	}
}

func (b *Builder) call(ctx context.Context, source string, p prompt.OutlineParams) (string, error) {
	return b.gen.Generate(ctx, generate.Request{
		Source:          source,
		Instructions:    prompt.Outline(p),
		Model:           b.model,
		MaxOutputTokens: b.maxTokens,
		Temperature:     b.temperature,
	})
}

// split cuts runes into consecutive windows of at most size runes.
func split(runes []rune, size int) []window {
	if size < 1 {
		size = 1
	}
	var out []window
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, window{index: len(out), start: start, end: end, text: string(runes[start:end])})
	}
	return out
}

// Renumber assigns consecutive numbers starting at 1, keeping order.
func Renumber(chapters []Chapter) []Chapter {
	out := make([]Chapter, len(chapters))
	for i, c := range chapters {
		c.Number = i + 1
		out[i] = c
	}
	return out
}

// LastChapterNumber returns the number of the last chapter heading in
// doc, or 0 when there is none.
func LastChapterNumber(doc string) int {
	r := Parse(doc)
	if r.IsEmpty() {
		return 0
	}
	// Parse sorts by number, so the last element is the highest.
	return r.Chapters[len(r.Chapters)-1].Number
}
