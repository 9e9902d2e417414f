package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-retell/internal/artifact"
	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/outline"
	"github.com/alnah/go-retell/internal/pipeline"
	"github.com/alnah/go-retell/internal/rewrite"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// stubGenerator answers structure-index calls with outline and every
// other call with rewrite. It keeps a log of requests.
type stubGenerator struct {
	mu      sync.Mutex
	calls   []generate.Request
	outline func(req generate.Request) (string, error)
	rewrite func(req generate.Request) (string, error)
}

func (g *stubGenerator) Generate(ctx context.Context, req generate.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(req.Instructions, "MASTER DOCUMENT CREATION") ||
		strings.Contains(req.Instructions, "TOPIC OUTLINE") {
		return g.outline(req)
	}
	return g.rewrite(req)
}

func (g *stubGenerator) Calls() []generate.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generate.Request(nil), g.calls...)
}

func echo(req generate.Request) (string, error) { return req.Source, nil }

func answer(s string) func(generate.Request) (string, error) {
	return func(generate.Request) (string, error) { return s, nil }
}

var errFlaky = fmt.Errorf("openai: %w: service unavailable", generate.ErrGeneration)

func testConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.TransientDelay = 0
	return cfg
}

func paragraphs(count int) string {
	paras := make([]string, count)
	for i := range paras {
		paras[i] = strings.Repeat("a", 997) + "."
	}
	return strings.Join(paras, "\n\n")
}

// ---------------------------------------------------------------------------
// TestRun - end-to-end scenarios
// ---------------------------------------------------------------------------

func TestRun_AdjustmentWithEcho(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		outline: answer("Chapter 1: Opening (approximate characters 0-5000)\n\nFirst half.\n\n" +
			"Chapter 2: Closing (approximate characters 5000-10000)\n\nSecond half."),
		rewrite: echo,
	}
	source := strings.Repeat("word ", 2000)

	out, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: source, TargetLength: 10000}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	n := len(out.Text)
	if n < 9000 || n > 11000 {
		t.Errorf("output length = %d, want within 10%% of 10000", n)
	}
	rec := out.Record
	if rec.Path != pipeline.ChapterAligned {
		t.Errorf("Path = %v, want chapter_aligned", rec.Path)
	}
	if rec.DegradedSpans() != 0 {
		t.Errorf("DegradedSpans() = %d, want 0", rec.DegradedSpans())
	}
	var chapters []int
	for _, s := range rec.Spans {
		chapters = append(chapters, s.Chapters...)
	}
	if !slices.Equal(chapters, []int{1, 2}) {
		t.Errorf("span chapters = %v, want [1 2]", chapters)
	}
	if rec.OutputLength != n || rec.ID == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestRun_ExpansionPath(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		outline: answer("- Origins\n- Context\n- Legacy"),
		rewrite: func(req generate.Request) (string, error) {
			return "Chapter: Expanded\n\n" + strings.Repeat("z", 15000), nil
		},
	}
	source := strings.Repeat("s", 5000)

	out, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: source, TargetLength: 50000}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rec := out.Record
	if rec.Path != pipeline.Expansion {
		t.Errorf("Path = %v, want expansion", rec.Path)
	}
	if len(rec.Spans) != 4 || len(rec.Outline.Segments) != 4 {
		t.Fatalf("spans = %d, segments = %d, want 4", len(rec.Spans), len(rec.Outline.Segments))
	}
	if len(out.Text) > 100000 {
		t.Errorf("output length = %d, above the 100000 ceiling", len(out.Text))
	}
	for i, s := range rec.Spans {
		if !s.WithinBounds || s.Chapters[0] != i+1 {
			t.Errorf("span %d = %+v", i, s)
		}
	}

	var expansions int
	for _, c := range gen.Calls() {
		if strings.Contains(c.Instructions, "CHAPTER EXPANSION DIRECTIVE") {
			expansions++
			if !strings.Contains(c.Instructions, "- Origins") {
				t.Error("expansion instructions should carry the segment's topics")
			}
		}
	}
	if expansions != 4 {
		t.Errorf("expansion calls = %d, want 4", expansions)
	}
}

func TestRun_ExpansionShortChaptersAreDegraded(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		outline: answer("- Origins\n- Context\n- Legacy"),
		rewrite: answer("Chapter 1: too short"),
	}

	out, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: strings.Repeat("s", 5000), TargetLength: 50000}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rec := out.Record
	if got := rec.DegradedSpans(); got != 4 {
		t.Errorf("DegradedSpans() = %d, want 4", got)
	}
	for i, s := range rec.Spans {
		if s.Degraded != rewrite.SimplifiedFallback || s.WithinBounds {
			t.Errorf("span %d degraded %v within %v, want simplified_fallback outside", i, s.Degraded, s.WithinBounds)
		}
	}
	var simplified int
	for _, c := range gen.Calls() {
		if strings.Contains(c.Instructions, "SIMPLIFIED REWRITE INSTRUCTION") {
			simplified++
		}
	}
	if simplified != 4 {
		t.Errorf("simplified calls = %d, want 4", simplified)
	}
}

func TestRun_ExpansionWithMockGenerator(t *testing.T) {
	t.Parallel()

	out, err := pipeline.New(generate.NewMockGenerator(), pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: strings.Repeat("s", 5000), TargetLength: 50000}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Record.Spans) != 4 {
		t.Errorf("spans = %d, want 4", len(out.Record.Spans))
	}
	if strings.Count(out.Text, generate.MockText) != 4 {
		t.Errorf("output = %q, want four mock chapters", out.Text)
	}
}

func TestRun_EmptyOutlineFallsBackToSegmenter(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{outline: answer("I could not find any structure."), rewrite: echo}
	source := paragraphs(41)

	out, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: source, TargetLength: len(source)}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rec := out.Record
	if rec.Path != pipeline.Segmented || rec.Outline.Strategy != outline.Empty {
		t.Errorf("Path = %v, Strategy = %v, want segmented/empty", rec.Path, rec.Outline.Strategy)
	}
	if len(rec.Spans) != 2 {
		t.Errorf("spans = %d, want 2", len(rec.Spans))
	}
	if rec.DegradedSpans() != 0 {
		t.Errorf("DegradedSpans() = %d, want 0", rec.DegradedSpans())
	}
}

func TestRun_FailingSpanIsPreserved(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		outline: answer("Chapter 1: A\n\nOne.\n\nChapter 2: B\n\nTwo.\n\nChapter 3: C\n\nThree."),
		rewrite: func(req generate.Request) (string, error) {
			if strings.HasPrefix(req.Source, "b") {
				return "", errFlaky
			}
			return req.Source, nil
		},
	}
	source := strings.Repeat("a", 15000) + strings.Repeat("b", 15000) + strings.Repeat("c", 15000)

	out, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: source, TargetLength: len(source)}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := out.Record.Spans
	if len(spans) != 3 {
		t.Fatalf("spans = %d, want 3", len(spans))
	}
	want := []rewrite.Degradation{rewrite.None, rewrite.OriginalPreserved, rewrite.None}
	for i, s := range spans {
		if s.Degraded != want[i] {
			t.Errorf("span %d Degraded = %v, want %v", i, s.Degraded, want[i])
		}
	}
	if !strings.Contains(out.Text, rewrite.PreservedNotice+strings.Repeat("b", 15000)) {
		t.Error("output should contain the preserved source of the failing span")
	}
	if out.Record.AllPreserved() {
		t.Error("AllPreserved() = true, want false")
	}
}

func TestRun_AllSpansPreserved(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		outline: func(generate.Request) (string, error) { return "", errFlaky },
		rewrite: func(generate.Request) (string, error) { return "", errFlaky },
	}

	out, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: "short source", TargetLength: 12}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !out.Record.AllPreserved() || len(out.Record.Warnings) == 0 {
		t.Errorf("record = %+v, want all spans preserved with a warning", out.Record)
	}
	if out.Text != rewrite.PreservedNotice+"short source" {
		t.Errorf("Text = %q", out.Text)
	}
}

func TestRun_TrimsOverlongOutput(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		outline: answer("Chapter 1: A\n\nOne."),
		rewrite: func(generate.Request) (string, error) {
			return chaptersText(4, 20000), nil
		},
	}
	cfg := testConfig()
	cfg.Overage = 0

	out, err := pipeline.New(gen, pipeline.WithConfig(cfg)).
		Run(context.Background(), pipeline.Job{Source: strings.Repeat("s", 70000), TargetLength: 70000}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	trim := out.Record.Trim
	if !trim.Applied || trim.RemovedChapters != 1 || trim.Ceiling != 70000 {
		t.Errorf("Trim = %+v", trim)
	}
	if len(out.Text) > 70000 {
		t.Errorf("output length = %d, above ceiling", len(out.Text))
	}
}

// ---------------------------------------------------------------------------
// TestRun - errors and side effects
// ---------------------------------------------------------------------------

func TestRun_InvalidJob(t *testing.T) {
	t.Parallel()

	p := pipeline.New(generate.NewMockGenerator())
	if _, err := p.Run(context.Background(), pipeline.Job{Source: "  \n", TargetLength: 10}, nil); !errors.Is(err, pipeline.ErrEmptySource) {
		t.Errorf("empty source error = %v", err)
	}
	if _, err := p.Run(context.Background(), pipeline.Job{Source: "text", TargetLength: 0}, nil); !errors.Is(err, pipeline.ErrInvalidTarget) {
		t.Errorf("zero target error = %v", err)
	}

	cfg := pipeline.DefaultConfig()
	cfg.MaxRetries = 0
	_, err := pipeline.New(generate.NewMockGenerator(), pipeline.WithConfig(cfg)).
		Run(context.Background(), pipeline.Job{Source: "text", TargetLength: 4}, nil)
	if !errors.Is(err, pipeline.ErrInvalidConfig) {
		t.Errorf("invalid config error = %v", err)
	}
}

func TestRun_FatalErrorStopsJob(t *testing.T) {
	t.Parallel()

	missing := fmt.Errorf("%w for openai (set it with: export OPENAI_API_KEY=...)", generate.ErrMissingCredential)
	gen := &stubGenerator{
		outline: answer("Chapter 1: A\n\nOne."),
		rewrite: func(generate.Request) (string, error) { return "", missing },
	}

	_, err := pipeline.New(gen, pipeline.WithConfig(testConfig())).
		Run(context.Background(), pipeline.Job{Source: "some text", TargetLength: 9}, nil)
	if !errors.Is(err, generate.ErrMissingCredential) {
		t.Errorf("Run() error = %v, want ErrMissingCredential", err)
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.New(generate.NewMockGenerator()).
		Run(ctx, pipeline.Job{Source: "some text", TargetLength: 9}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_WritesArtifactsAndProgress(t *testing.T) {
	t.Parallel()

	store, err := artifact.NewFS(t.TempDir(), "job")
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}
	gen := &stubGenerator{outline: answer("Chapter 1: A (0-100)\n\nAll of it."), rewrite: echo}

	var mu sync.Mutex
	var phases []string
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := pipeline.New(gen,
		pipeline.WithConfig(testConfig()),
		pipeline.WithProgress(func(phase string, current, total int) {
			mu.Lock()
			defer mu.Unlock()
			phases = append(phases, fmt.Sprintf("%s %d/%d", phase, current, total))
		}),
		pipeline.WithNow(func() time.Time { return start }),
	)

	out, err := p.Run(context.Background(), pipeline.Job{ID: "job-1", Source: strings.Repeat("q", 100), TargetLength: 100}, store)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Record.ID != "job-1" || !out.Record.StartedAt.Equal(start) {
		t.Errorf("record = %+v", out.Record)
	}

	for _, name := range []string{
		pipeline.ArtifactOutline,
		artifact.SpanName(0, "source"),
		artifact.SpanName(0, "prompt"),
		artifact.SpanName(0, "output"),
		pipeline.ArtifactFinal,
		pipeline.ArtifactMetadata,
	} {
		if _, err := os.Stat(store.Path(name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(store.Path(pipeline.ArtifactTrimmed)); !os.IsNotExist(err) {
		t.Error("trimmed.txt should only exist when the output was trimmed")
	}

	meta, _ := os.ReadFile(store.Path(pipeline.ArtifactMetadata))
	for _, want := range []string{`"path": "chapter_aligned"`, `"strategy": "strict"`, `"degraded": "none"`} {
		if !strings.Contains(string(meta), want) {
			t.Errorf("metadata.json missing %s", want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"analyze 1/1", "rewrite 1/1"}; strings.Join(phases, ",") != strings.Join(want, ",") {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}
