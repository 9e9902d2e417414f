package pipeline_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/outline"
	"github.com/alnah/go-retell/internal/pipeline"
)

const twoChapters = "Chapter 1: Opening (approximate characters 0-500)\n\nThe setting.\n\n" +
	"Chapter 2: Ending (approximate characters 500-1000)\n\nThe resolution."

// ---------------------------------------------------------------------------
// TestConfig_Plan
// ---------------------------------------------------------------------------

func TestConfig_Plan_Expansion(t *testing.T) {
	t.Parallel()

	p, err := pipeline.DefaultConfig().Plan(strings.Repeat("x", 100), 45000, "")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if p.Path != pipeline.Expansion {
		t.Fatalf("Path = %v, want expansion", p.Path)
	}
	want := [][2]int{{0, 33}, {33, 66}, {66, 100}}
	if len(p.Spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(p.Spans), len(want))
	}
	for i, w := range want {
		sp := p.Spans[i]
		if sp.Start != w[0] || sp.End != w[1] {
			t.Errorf("span %d = [%d, %d), want [%d, %d)", i, sp.Start, sp.End, w[0], w[1])
		}
		if sp.Budget.Target != 15000 || sp.Budget.Min != 10500 || sp.Budget.Max != 25500 {
			t.Errorf("span %d budget = %+v, want 15000 in [10500, 25500]", i, sp.Budget)
		}
	}
	if p.Spans[2].Label != "Chapter 3" {
		t.Errorf("Label = %q, want Chapter 3", p.Spans[2].Label)
	}
}

func TestConfig_Plan_ChapterAligned(t *testing.T) {
	t.Parallel()

	source := strings.Repeat("y", 1000)
	p, err := pipeline.DefaultConfig().Plan(source, 500, twoChapters)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if p.Path != pipeline.ChapterAligned {
		t.Fatalf("Path = %v, want chapter_aligned", p.Path)
	}
	if p.Strategy != outline.Strict || len(p.Chapters) != 2 {
		t.Errorf("Strategy = %v, chapters = %d; want strict, 2", p.Strategy, len(p.Chapters))
	}
	if len(p.Spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(p.Spans))
	}
	sp := p.Spans[0]
	if sp.Start != 0 || sp.End != 1000 || sp.Label != "Chapters 1-2" {
		t.Errorf("span = %+v", sp)
	}
	want := length.ComputeBudget(1000, 500)
	if sp.Budget != want {
		t.Errorf("span budget = %+v, want %+v", sp.Budget, want)
	}
}

func TestConfig_Plan_Segmented(t *testing.T) {
	t.Parallel()

	source := strings.Repeat("z", 1000)
	cfg := pipeline.DefaultConfig()

	tests := []struct {
		name       string
		aligned    bool
		outlineDoc string
	}{
		{"no structure index", true, ""},
		{"unparseable structure index", true, "just some notes"},
		{"chapter alignment disabled", false, twoChapters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := cfg
			c.ChapterAligned = tt.aligned

			p, err := c.Plan(source, 800, tt.outlineDoc)
			if err != nil {
				t.Fatalf("Plan() error = %v", err)
			}
			if p.Path != pipeline.Segmented {
				t.Errorf("Path = %v, want segmented", p.Path)
			}
			if len(p.Spans) != 1 || p.Spans[0].End != 1000 {
				t.Errorf("Spans = %+v, want one span covering the source", p.Spans)
			}
		})
	}
}

func TestConfig_Plan_Errors(t *testing.T) {
	t.Parallel()

	bad := pipeline.DefaultConfig()
	bad.MaxRetries = 0

	tests := []struct {
		name   string
		cfg    pipeline.Config
		source string
		target int
		want   error
	}{
		{"empty source", pipeline.DefaultConfig(), "  \n", 100, pipeline.ErrEmptySource},
		{"zero target", pipeline.DefaultConfig(), "text", 0, pipeline.ErrInvalidTarget},
		{"invalid config", bad, "text", 100, pipeline.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.cfg.Plan(tt.source, tt.target, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("Plan() error = %v, want %v", err, tt.want)
			}
		})
	}
}
