// Package length computes the length budgets that every rewrite call is
// validated against. Lengths are counted in characters (Unicode code
// points), never bytes.
package length

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Class is the scaling classification of a budget.
type Class int

const (
	// Adjustment keeps the text roughly the same size.
	Adjustment Class = iota
	// Expansion grows the text beyond ExpansionThreshold.
	Expansion
	// Condensation shrinks the text below CondensationThreshold.
	Condensation
)

// String returns the lowercase class name used in logs and metadata.
func (c Class) String() string {
	switch c {
	case Adjustment:
		return "adjustment"
	case Expansion:
		return "expansion"
	case Condensation:
		return "condensation"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Classification thresholds on the scaling factor.
const (
	ExpansionThreshold    = 1.3
	CondensationThreshold = 0.7
)

// Tolerance bands, as fractions of the target.
const (
	adjustmentLow    = 0.9
	adjustmentHigh   = 1.1
	expansionLow     = 0.8
	expansionHigh    = 1.2
	condensationLow  = 0.7
	condensationHigh = 1.3

	// Wide band for a single extreme-expansion segment.
	segmentLow  = 0.7
	segmentHigh = 1.7
)

// Budget is the accepted length window for one piece of output.
// Min <= Target <= Max always holds.
type Budget struct {
	Source        int     `json:"source_length"`
	Target        int     `json:"target_length"`
	Min           int     `json:"min_length"`
	Max           int     `json:"max_length"`
	ScalingFactor float64 `json:"scaling_factor"`
	Class         Class   `json:"class"`
}

// ComputeBudget classifies a source/target pair and derives its bounds.
// It never fails: a zero source length yields a scaling factor of 1.0 and
// negative inputs are treated as zero.
func ComputeBudget(sourceLength, targetLength int) Budget {
	sourceLength = max(sourceLength, 0)
	targetLength = max(targetLength, 0)

	factor := 1.0
	if sourceLength > 0 {
		factor = float64(targetLength) / float64(sourceLength)
	}

	b := Budget{
		Source:        sourceLength,
		Target:        targetLength,
		ScalingFactor: factor,
	}

	low, high := adjustmentLow, adjustmentHigh
	switch {
	case factor > ExpansionThreshold:
		b.Class = Expansion
		low, high = expansionLow, expansionHigh
	case factor < CondensationThreshold:
		b.Class = Condensation
		low, high = condensationLow, condensationHigh
	default:
		b.Class = Adjustment
	}
	b.Min, b.Max = bounds(targetLength, low, high)
	return b
}

// SegmentBudget returns the wide acceptance window used for one segment of
// an extreme-expansion job, where target is the per-call output size.
func SegmentBudget(sourceLength, target int) Budget {
	b := ComputeBudget(sourceLength, target)
	b.Class = Expansion
	b.Min, b.Max = bounds(b.Target, segmentLow, segmentHigh)
	return b
}

// SpanTarget scales a span's own source length by the job-wide factor.
func SpanTarget(spanSourceLength int, factor float64) int {
	return int(math.Round(float64(spanSourceLength) * factor))
}

func bounds(target int, low, high float64) (int, int) {
	lo := int(math.Round(float64(target) * low))
	hi := int(math.Round(float64(target) * high))
	return min(lo, target), max(hi, target)
}

// Verdict is the outcome of checking an output length against a budget.
type Verdict int

const (
	// Within means the output is acceptable.
	Within Verdict = iota
	// TooShort means the output is below Min.
	TooShort
	// TooLong means the output is above Max.
	TooLong
)

// String returns a short description of the verdict.
func (v Verdict) String() string {
	switch v {
	case Within:
		return "within bounds"
	case TooShort:
		return "too short"
	case TooLong:
		return "too long"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Check validates an output length. When uncapped is true only the lower
// bound applies; the final span of a job is checked this way so that its
// conclusion may run long.
func (b Budget) Check(n int, uncapped bool) Verdict {
	switch {
	case n < b.Min:
		return TooShort
	case !uncapped && n > b.Max:
		return TooLong
	default:
		return Within
	}
}

// Count returns the length of s in characters.
func Count(s string) int {
	return utf8.RuneCountInString(s)
}

// Direction names the kind of rewrite a scaling factor asks for, as worded
// in generation instructions.
func Direction(factor float64) string {
	switch {
	case factor > 1.5:
		return "expansion"
	case factor < 0.7:
		return "condensation"
	default:
		return "adjustment"
	}
}
