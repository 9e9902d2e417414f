package pipeline_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/alnah/go-retell/internal/pipeline"
)

func chaptersText(count, size int) string {
	blocks := make([]string, count)
	for i := range blocks {
		head := fmt.Sprintf("Chapter %d: Title\n\n", i+1)
		blocks[i] = head + strings.Repeat("x", size-len(head))
	}
	return "Intro.\n\n" + strings.Join(blocks, "\n\n")
}

// ---------------------------------------------------------------------------
// TestTrim
// ---------------------------------------------------------------------------

func TestTrim(t *testing.T) {
	t.Parallel()

	text := chaptersText(5, 1000)

	tests := []struct {
		name        string
		text        string
		ceiling     int
		wantRemoved int
		wantApplied bool
		wantWarning bool
	}{
		{"within ceiling", text, len(text), 0, false, false},
		{"drops one chapter", text, len(text) - 500, 1, true, false},
		{"drops three chapters", text, 2100, 3, true, false},
		{"keeps the first chapter", text, 10, 4, true, false},
		{"single heading", chaptersText(1, 5000), 100, 0, false, true},
		{"no heading", strings.Repeat("y", 500), 100, 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := pipeline.Trim(tt.text, tt.ceiling)
			if got.Removed != tt.wantRemoved || got.Applied != tt.wantApplied || (got.Warning != "") != tt.wantWarning {
				t.Errorf("Trim() = removed %d applied %v warning %q", got.Removed, got.Applied, got.Warning)
			}
			if !strings.HasPrefix(tt.text, got.Text) {
				t.Error("Trim() must only remove a suffix")
			}
			if got.Applied && strings.HasSuffix(got.Text, "\n") {
				t.Error("trimmed text should not end with a newline")
			}
		})
	}
}

func TestTrim_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		chaptersText(5, 1000),
		chaptersText(12, 3000),
		chaptersText(1, 9000),
		"plain text",
	}
	for _, in := range inputs {
		for _, ceiling := range []int{10, 2500, 7000, 100000} {
			once := pipeline.Trim(in, ceiling).Text
			twice := pipeline.Trim(once, ceiling)
			if twice.Text != once || twice.Applied {
				t.Errorf("ceiling %d: second Trim() changed the text", ceiling)
			}
		}
	}
}
