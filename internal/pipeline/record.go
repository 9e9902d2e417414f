package pipeline

import (
	"fmt"
	"time"

	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/outline"
	"github.com/alnah/go-retell/internal/rewrite"
)

// Path is the processing strategy chosen for a job.
type Path int

const (
	// Segmented rewrites segmenter spans with continuity only.
	Segmented Path = iota
	// ChapterAligned rewrites spans packed from structure-index chapters.
	ChapterAligned
	// Expansion expands equal source segments into one chapter each.
	Expansion
)

// String returns the path name.
func (p Path) String() string {
	switch p {
	case Segmented:
		return "segmented"
	case ChapterAligned:
		return "chapter_aligned"
	case Expansion:
		return "expansion"
	default:
		return fmt.Sprintf("Path(%d)", int(p))
	}
}

// MarshalText encodes the path by name.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Record describes how a job was processed. It is written as
// metadata.json and returned with the output.
type Record struct {
	ID        string        `json:"id"`
	Name      string        `json:"name,omitempty"`
	Model     string        `json:"model,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`

	SourceLength int           `json:"source_length"`
	TargetLength int           `json:"target_length"`
	OutputLength int           `json:"output_length"`
	Budget       length.Budget `json:"budget"`
	Path         Path          `json:"path"`

	Outline OutlineRecord `json:"outline"`
	Spans   []SpanRecord  `json:"spans"`
	Trim    TrimRecord    `json:"trim"`

	Warnings []string `json:"warnings,omitempty"`
}

// OutlineRecord summarizes the structure index.
type OutlineRecord struct {
	Strategy      outline.Strategy  `json:"strategy"`
	Chapters      []outline.Chapter `json:"chapters,omitempty"`
	Duplicates    int               `json:"duplicates,omitempty"`
	Windows       int               `json:"windows"`
	FailedWindows int               `json:"failed_windows,omitempty"`
	// Segments is set on the expansion path.
	Segments []outline.Segment `json:"segments,omitempty"`
}

// SpanRecord is the processing record of one span.
type SpanRecord struct {
	Index        int                 `json:"index"`
	Start        int                 `json:"start"`
	End          int                 `json:"end"`
	Chapters     []int               `json:"chapters,omitempty"`
	SourceLength int                 `json:"source_length"`
	TargetLength int                 `json:"target_length"`
	MinLength    int                 `json:"min_length"`
	MaxLength    int                 `json:"max_length"`
	OutputLength int                 `json:"output_length"`
	Ratio        float64             `json:"ratio"`
	Attempts     int                 `json:"attempts"`
	Corrections  int                 `json:"corrections"`
	Last         bool                `json:"last,omitempty"`
	WithinBounds bool                `json:"within_bounds"`
	Degraded     rewrite.Degradation `json:"degraded"`
}

// TrimRecord describes the final trim.
type TrimRecord struct {
	Ceiling         int  `json:"ceiling"`
	Applied         bool `json:"applied"`
	RemovedChapters int  `json:"removed_chapters,omitempty"`
	LengthBefore    int  `json:"length_before"`
}

// DegradedSpans counts spans whose output did not come from a validated
// regular attempt.
func (r Record) DegradedSpans() int {
	n := 0
	for _, s := range r.Spans {
		if s.Degraded != rewrite.None {
			n++
		}
	}
	return n
}

// AllPreserved reports whether every span fell back to its source text.
func (r Record) AllPreserved() bool {
	if len(r.Spans) == 0 {
		return false
	}
	for _, s := range r.Spans {
		if s.Degraded != rewrite.OriginalPreserved {
			return false
		}
	}
	return true
}

func spanRecord(res rewrite.Result, start, end int, chapters []int, last bool) SpanRecord {
	return SpanRecord{
		Index:        res.Index,
		Start:        start,
		End:          end,
		Chapters:     chapters,
		SourceLength: res.Budget.Source,
		TargetLength: res.Budget.Target,
		MinLength:    res.Budget.Min,
		MaxLength:    res.Budget.Max,
		OutputLength: res.OutputLength,
		Ratio:        res.Ratio(),
		Attempts:     res.Attempts,
		Corrections:  res.Corrections,
		Last:         last,
		WithinBounds: res.WithinBounds,
		Degraded:     res.Degraded,
	}
}
