package prompt_test

import (
	"strings"
	"testing"

	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/prompt"
)

// ---------------------------------------------------------------------------
// TestCorrection - directive wording
// ---------------------------------------------------------------------------

func TestCorrection_Directive(t *testing.T) {
	t.Parallel()

	b := length.ComputeBudget(10000, 10000)

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{"too short", 5000, []string{"TOO SHORT (5000 characters)", "LONGER by approximately 100% or 5000 characters"}},
		{"too long", 12500, []string{"TOO LONG (12500 characters)", "SHORTER by approximately 20% or 2500 characters"}},
		{"within", 10000, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := prompt.NewCorrection(b, tt.n).Directive()
			if tt.want == nil && got != "" {
				t.Errorf("Directive() = %q, want empty", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Directive() = %q, missing %q", got, w)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestSpan - rewrite instruction
// ---------------------------------------------------------------------------

func spanParams() prompt.SpanParams {
	return prompt.SpanParams{
		Index:    1,
		Total:    3,
		Outline:  "Chapter 1: A (0-100)\n\nDesc.",
		Chapters: []prompt.ChapterRef{{Number: 2, Title: "Second"}, {Number: 3}},
		Budget:   length.ComputeBudget(8000, 4000),
	}
}

func TestSpan(t *testing.T) {
	t.Parallel()

	t.Run("embeds outline, chapters and bounds", func(t *testing.T) {
		t.Parallel()

		got := prompt.Span(spanParams())
		for _, want := range []string{
			"PART 2 of 3",
			"Chapter 1: A (0-100)",
			"- Chapter 2: Second",
			"- Chapter 3\n",
			"MUST be 4000 characters",
			"Acceptable range: 2800 to 5200 characters",
			"condensation",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("Span() missing %q", want)
			}
		}
		if strings.Contains(got, "CORRECTIONS") {
			t.Error("Span() without corrections should not render the section")
		}
	})

	t.Run("last span has no upper bound", func(t *testing.T) {
		t.Parallel()

		p := spanParams()
		p.Last = true
		got := prompt.Span(p)
		if strings.Contains(got, "Acceptable range") {
			t.Error("last span should not state an upper bound")
		}
		if !strings.Contains(got, "at least 2800 characters") {
			t.Error("last span should state the lower bound")
		}
	})

	t.Run("continuity tail and language", func(t *testing.T) {
		t.Parallel()

		p := spanParams()
		p.PreviousTail = "and that was the end of the war."
		p.Language = "French"
		got := prompt.Span(p)
		if !strings.HasPrefix(got, "Respond in French.") {
			t.Errorf("Span() should start with the language line, got %q", got[:40])
		}
		if !strings.Contains(got, "and that was the end of the war.") {
			t.Error("Span() missing continuity tail")
		}
	})

	t.Run("accumulated corrections render once each in order", func(t *testing.T) {
		t.Parallel()

		p := spanParams()
		p.Corrections = []prompt.Correction{
			prompt.NewCorrection(p.Budget, 1000),
			prompt.NewCorrection(p.Budget, 9000),
		}
		got := prompt.Span(p)
		if strings.Count(got, "## CORRECTIONS FROM PREVIOUS ATTEMPTS") != 1 {
			t.Error("corrections section should appear exactly once")
		}
		first := strings.Index(got, "1. Your previous output was TOO SHORT (1000")
		second := strings.Index(got, "2. Your previous output was TOO LONG (9000")
		if first < 0 || second < 0 || second < first {
			t.Errorf("corrections not rendered in order:\n%s", got)
		}
	})

	t.Run("rendering is deterministic", func(t *testing.T) {
		t.Parallel()

		if prompt.Span(spanParams()) != prompt.Span(spanParams()) {
			t.Error("Span() should be pure")
		}
	})
}

func TestSimplified(t *testing.T) {
	t.Parallel()

	got := prompt.Simplified(prompt.SimplifiedParams{
		Budget:         length.ComputeBudget(10000, 10000),
		ChapterInfo:    "Chapters 4-5",
		PreviousLength: 3000,
	})
	for _, want := range []string{"Chapters 4-5", "range 9000-11000", "too short at 3000"} {
		if !strings.Contains(got, want) {
			t.Errorf("Simplified() missing %q", want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestOutline - master document instruction
// ---------------------------------------------------------------------------

func TestOutline(t *testing.T) {
	t.Parallel()

	whole := prompt.Outline(prompt.OutlineParams{Part: prompt.Whole, SourceLength: 45000, SuggestedChapters: 3})
	if !strings.Contains(whole, "complete transcript of 45000 characters") || !strings.Contains(whole, "about 3 chapters") {
		t.Errorf("whole outline prompt unexpected:\n%s", whole)
	}

	cont := prompt.Outline(prompt.OutlineParams{
		Part: prompt.Continuation, SourceLength: 3000000,
		WindowStart: 1000000, WindowEnd: 2000000, WindowIndex: 2, WindowCount: 3, LastChapter: 67,
	})
	for _, want := range []string{"PART 2 of 3", "ended with Chapter 67", "from Chapter 68"} {
		if !strings.Contains(cont, want) {
			t.Errorf("continuation prompt missing %q", want)
		}
	}
}

func TestSuggestedChapters(t *testing.T) {
	t.Parallel()

	tests := []struct{ n, per, want int }{
		{45000, 15000, 3},
		{45001, 15000, 4},
		{100, 15000, 1},
		{0, 15000, 1},
	}
	for _, tt := range tests {
		if got := prompt.SuggestedChapters(tt.n, tt.per); got != tt.want {
			t.Errorf("SuggestedChapters(%d, %d) = %d, want %d", tt.n, tt.per, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestExpansion / TestTopics
// ---------------------------------------------------------------------------

func TestExpansion(t *testing.T) {
	t.Parallel()

	got := prompt.Expansion(prompt.ExpansionParams{
		ChapterNumber:  2,
		ChapterCount:   4,
		SegmentLength:  1250,
		Budget:         length.SegmentBudget(1250, 15000),
		OutlineExtract: "## Chapter 2: Middle\n- topic",
	})
	for _, want := range []string{"Chapter 2 of 4 ONLY", "at least 10500 characters", "at most 25500", "12.0x", "## Chapter 2: Middle"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expansion() missing %q", want)
		}
	}
}

func TestTopics(t *testing.T) {
	t.Parallel()

	got := prompt.Topics(prompt.TopicParams{ChapterNumber: 1, ChapterCount: 4, SegmentLength: 1250, TargetLength: 15000})
	if !strings.Contains(got, "CHAPTER 1 OF 4") || !strings.Contains(got, "about 15000 characters") {
		t.Errorf("Topics() unexpected:\n%s", got)
	}
}

func TestStyleMerge(t *testing.T) {
	t.Parallel()

	got := prompt.Style{Role: "Historian", ToneStyle: "  "}.Merge(prompt.Style{Role: "Narrator", ToneStyle: "Warm"})
	if got.Role != "Historian" || got.ToneStyle != "Warm" {
		t.Errorf("Merge() = %+v", got)
	}
}

func TestTail(t *testing.T) {
	t.Parallel()

	if got := prompt.Tail("déjà vu", 4); got != "à vu" {
		t.Errorf("Tail() = %q, want %q", got, "à vu")
	}
	if got := prompt.Tail("short", 100); got != "short" {
		t.Errorf("Tail() = %q", got)
	}
	if got := prompt.Tail("x", 0); got != "" {
		t.Errorf("Tail(0) = %q", got)
	}
}
