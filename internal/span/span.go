// Package span describes how a source is partitioned into the pieces that
// are rewritten one generator call at a time.
//
// Offsets count runes. Spans derived from chapters use proportional
// offsets: the structure index only estimates where chapters sit, so a
// span's range approximates its chapters' text rather than locating it.
package span

import (
	"errors"
	"fmt"

	"github.com/alnah/go-retell/internal/outline"
)

// Defaults for FromChapters.
const (
	DefaultMaxChunk      = 20_000
	DefaultTargetChapter = 15_000
)

// ErrInvalidPartition is returned by Validate.
var ErrInvalidPartition = errors.New("spans do not partition the source")

// Span is a contiguous range [Start, End) of the source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
	// Chapters lists the chapter numbers assigned to the span, ascending.
	Chapters []int `json:"chapters,omitempty"`
}

// Len returns the number of runes in the span.
func (s Span) Len() int { return s.End - s.Start }

// Source returns the span's text.
func (s Span) Source(runes []rune) string {
	return string(runes[s.Start:s.End])
}

// Label describes the span's chapters ("Chapter 3", "Chapters 3-5"), or
// "" when it has none.
func (s Span) Label() string {
	switch len(s.Chapters) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Chapter %d", s.Chapters[0])
	default:
		return fmt.Sprintf("Chapters %d-%d", s.Chapters[0], s.Chapters[len(s.Chapters)-1])
	}
}

// FromChapters packs chapters greedily into spans. Each chapter is
// assumed to cover min(targetChapter, sourceLength/count) characters; a
// span is closed when the next chapter would push it past maxChunk.
// Offsets are then assigned by dividing sourceLength equally, the last
// span ending at sourceLength. Chapters numbered below 1 are skipped.
//
// At least one span is always returned.
func FromChapters(chapters []outline.Chapter, sourceLength, maxChunk, targetChapter int) []Span {
	valid := make([]outline.Chapter, 0, len(chapters))
	for _, c := range chapters {
		if c.Number >= 1 {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return []Span{{Start: 0, End: sourceLength}}
	}

	est := min(targetChapter, sourceLength/len(valid))
	var groups [][]int
	var current []int
	for _, c := range valid {
		if len(current) > 0 && est*len(current)+est > maxChunk {
			groups = append(groups, current)
			current = nil
		}
		current = append(current, c.Number)
	}
	groups = append(groups, current)

	// More spans than runes would leave empty spans; fold the excess into
	// the last one.
	if limit := max(1, sourceLength); len(groups) > limit {
		tail := groups[limit-1]
		for _, g := range groups[limit:] {
			tail = append(tail, g...)
		}
		groups = append(groups[:limit-1], tail)
	}

	return divide(groups, sourceLength)
}

func divide(groups [][]int, sourceLength int) []Span {
	size := sourceLength / len(groups)
	out := make([]Span, len(groups))
	for i, g := range groups {
		end := (i + 1) * size
		if i == len(groups)-1 {
			end = sourceLength
		}
		out[i] = Span{Start: i * size, End: end, Chapters: g}
	}
	return out
}

// Validate checks that spans are non-empty, ascending, contiguous and
// cover [0, length) exactly.
func Validate(spans []Span, length int) error {
	if len(spans) == 0 {
		return fmt.Errorf("%w: no spans", ErrInvalidPartition)
	}
	pos := 0
	for i, s := range spans {
		switch {
		case s.Start != pos:
			return fmt.Errorf("%w: span %d starts at %d, want %d", ErrInvalidPartition, i, s.Start, pos)
		case s.End < s.Start:
			return fmt.Errorf("%w: span %d ends before it starts (%d-%d)", ErrInvalidPartition, i, s.Start, s.End)
		case s.End == s.Start && length > 0:
			return fmt.Errorf("%w: span %d is empty", ErrInvalidPartition, i)
		}
		pos = s.End
	}
	if pos != length {
		return fmt.Errorf("%w: spans end at %d, source has %d", ErrInvalidPartition, pos, length)
	}
	return nil
}
