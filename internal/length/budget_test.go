package length_test

import (
	"math"
	"testing"

	"github.com/alnah/go-retell/internal/length"
)

// ---------------------------------------------------------------------------
// TestComputeBudget - classification and bounds
// ---------------------------------------------------------------------------

func TestComputeBudget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		source    int
		target    int
		wantClass length.Class
		wantMin   int
		wantMax   int
	}{
		{"equal lengths adjust", 10000, 10000, length.Adjustment, 9000, 11000},
		{"upper adjustment edge", 10000, 13000, length.Adjustment, 11700, 14300},
		{"expansion", 5000, 50000, length.Expansion, 40000, 60000},
		{"condensation", 20000, 10000, length.Condensation, 7000, 13000},
		{"lower adjustment edge", 10000, 7000, length.Adjustment, 6300, 7700},
		{"zero source", 0, 5000, length.Adjustment, 4500, 5500},
		{"zero target", 1000, 0, length.Condensation, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := length.ComputeBudget(tt.source, tt.target)
			if b.Class != tt.wantClass {
				t.Errorf("Class = %v, want %v", b.Class, tt.wantClass)
			}
			if b.Min != tt.wantMin || b.Max != tt.wantMax {
				t.Errorf("bounds = [%d, %d], want [%d, %d]", b.Min, b.Max, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestComputeBudget_Properties(t *testing.T) {
	t.Parallel()

	sources := []int{1, 7, 999, 1000, 15000, 123457, 2000000}
	targets := []int{0, 1, 13, 5000, 10000, 49999, 300000}

	for _, src := range sources {
		for _, tgt := range targets {
			b := length.ComputeBudget(src, tgt)
			if b.Min > b.Target || b.Target > b.Max {
				t.Errorf("ComputeBudget(%d, %d) bounds [%d, %d] exclude target %d",
					src, tgt, b.Min, b.Max, b.Target)
			}
			want := float64(tgt) / float64(src)
			if math.Abs(b.ScalingFactor-want) > 1e-12 {
				t.Errorf("ComputeBudget(%d, %d).ScalingFactor = %v, want %v",
					src, tgt, b.ScalingFactor, want)
			}
		}
	}

	if f := length.ComputeBudget(0, 100).ScalingFactor; f != 1.0 {
		t.Errorf("zero source ScalingFactor = %v, want 1.0", f)
	}
}

// ---------------------------------------------------------------------------
// TestSegmentBudget / TestSpanTarget
// ---------------------------------------------------------------------------

func TestSegmentBudget(t *testing.T) {
	t.Parallel()

	b := length.SegmentBudget(1250, 15000)
	if b.Min != 10500 || b.Max != 25500 {
		t.Errorf("bounds = [%d, %d], want [10500, 25500]", b.Min, b.Max)
	}
	if b.Class != length.Expansion {
		t.Errorf("Class = %v, want expansion", b.Class)
	}
}

func TestSpanTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source int
		factor float64
		want   int
	}{
		{10000, 1.0, 10000},
		{3333, 0.5, 1667},
		{15000, 0.25, 3750},
		{0, 4.0, 0},
	}
	for _, tt := range tests {
		if got := length.SpanTarget(tt.source, tt.factor); got != tt.want {
			t.Errorf("SpanTarget(%d, %v) = %d, want %d", tt.source, tt.factor, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestBudgetCheck - validation verdicts
// ---------------------------------------------------------------------------

func TestBudgetCheck(t *testing.T) {
	t.Parallel()

	b := length.ComputeBudget(10000, 10000) // [9000, 11000]

	tests := []struct {
		name     string
		n        int
		uncapped bool
		want     length.Verdict
	}{
		{"at target", 10000, false, length.Within},
		{"at min", 9000, false, length.Within},
		{"at max", 11000, false, length.Within},
		{"below min", 8999, false, length.TooShort},
		{"above max", 11001, false, length.TooLong},
		{"above max uncapped", 50000, true, length.Within},
		{"below min uncapped", 10, true, length.TooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := b.Check(tt.n, tt.uncapped); got != tt.want {
				t.Errorf("Check(%d, %v) = %v, want %v", tt.n, tt.uncapped, got, tt.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	t.Parallel()

	if got := length.Count("Chapitre été"); got != 12 {
		t.Errorf("Count = %d, want 12 (runes, not bytes)", got)
	}
}

func TestDirection(t *testing.T) {
	t.Parallel()

	for factor, want := range map[float64]string{
		2.0: "expansion", 1.5: "adjustment", 1.0: "adjustment", 0.69: "condensation",
	} {
		if got := length.Direction(factor); got != want {
			t.Errorf("Direction(%v) = %q, want %q", factor, got, want)
		}
	}
}
