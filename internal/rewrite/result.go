// Package rewrite drives the generator over one span at a time, checking
// the length of every response and retrying with corrections until the
// output is acceptable or the span has to be degraded.
package rewrite

import (
	"fmt"

	"github.com/alnah/go-retell/internal/length"
)

// PreservedNotice prefixes the source of a span that could not be rewritten.
const PreservedNotice = "[Processing failed for this section. Original content preserved.]\n\n"

// Degradation records how a span's output was obtained when validation
// did not accept it.
type Degradation int

const (
	// None means the output came from a regular attempt.
	None Degradation = iota
	// SimplifiedFallback means the output came from the simplified
	// instruction after every regular attempt failed.
	SimplifiedFallback
	// OriginalPreserved means the output is the source behind a notice.
	OriginalPreserved
)

// String returns the degradation name.
func (d Degradation) String() string {
	switch d {
	case None:
		return "none"
	case SimplifiedFallback:
		return "simplified_fallback"
	case OriginalPreserved:
		return "original_preserved"
	default:
		return fmt.Sprintf("Degradation(%d)", int(d))
	}
}

// MarshalText encodes the degradation by name.
func (d Degradation) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Result is the outcome of rewriting one span.
type Result struct {
	Index  int    `json:"index"`
	Source string `json:"-"`
	Output string `json:"-"`
	// Prompt is the last instruction sent for the span.
	Prompt string `json:"-"`

	Budget       length.Budget `json:"budget"`
	OutputLength int           `json:"output_length"`
	Attempts     int           `json:"attempts"`
	Corrections  int           `json:"corrections"`
	WithinBounds bool          `json:"within_bounds"`
	Degraded     Degradation   `json:"degraded"`
}

// Ratio returns the output length over the source length.
func (r Result) Ratio() float64 {
	if r.Budget.Source == 0 {
		return 0
	}
	return float64(r.OutputLength) / float64(r.Budget.Source)
}

// lengthError signals a response outside its budget. It never leaves the
// package.
type lengthError struct {
	n       int
	verdict length.Verdict
}

func (e *lengthError) Error() string {
	return fmt.Sprintf("output of %d characters is %s", e.n, e.verdict)
}
