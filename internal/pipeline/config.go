// Package pipeline runs a complete rewrite job: it builds the structure
// index, plans spans, rewrites them in order and trims the result to the
// job's length ceiling.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/alnah/go-retell/internal/outline"
	"github.com/alnah/go-retell/internal/rewrite"
	"github.com/alnah/go-retell/internal/segment"
	"github.com/alnah/go-retell/internal/span"
)

// Sentinel errors.
var (
	// ErrEmptySource is returned for a job without source text.
	ErrEmptySource = errors.New("source text is empty")
	// ErrInvalidTarget is returned for a non-positive target length.
	ErrInvalidTarget = errors.New("target length must be positive")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")
)

// Default tuning values.
const (
	DefaultPerCallCeiling = 15_000
	DefaultOverage        = 50_000
)

// Config tunes a Processor. Lengths are in characters.
type Config struct {
	// ChapterAligned packs spans along the structure index's chapters
	// when it parses; otherwise the segmenter is used.
	ChapterAligned bool
	// MaxChapterChunk is the largest span built from chapters.
	MaxChapterChunk int
	// TargetChapter is the assumed size of one chapter when packing.
	TargetChapter int
	// PerCallCeiling is the output size one generator call aims for on
	// the expansion path.
	PerCallCeiling int
	// Overage is how far the final text may exceed the target before
	// trailing chapters are trimmed.
	Overage int
	// AnalysisCeiling is the largest source analyzed in one call.
	AnalysisCeiling int
	// ParallelWindows analyzes oversized sources with this many
	// concurrent calls; 1 keeps analysis sequential.
	ParallelWindows int
	// MaxRetries is the number of regular attempts per span.
	MaxRetries int
	// TransientDelay is the pause after a failed generator call.
	TransientDelay time.Duration
	// Segmenter configures the fallback segmenter.
	Segmenter segment.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChapterAligned:  true,
		MaxChapterChunk: span.DefaultMaxChunk,
		TargetChapter:   span.DefaultTargetChapter,
		PerCallCeiling:  DefaultPerCallCeiling,
		Overage:         DefaultOverage,
		AnalysisCeiling: outline.DefaultAnalysisCeiling,
		ParallelWindows: 1,
		MaxRetries:      rewrite.DefaultMaxRetries,
		TransientDelay:  rewrite.DefaultTransientDelay,
		Segmenter:       segment.DefaultConfig(),
	}
}

// Validate reports the first unusable value.
func (c Config) Validate() error {
	switch {
	case c.MaxChapterChunk <= 0:
		return fmt.Errorf("%w: max chapter chunk must be positive", ErrInvalidConfig)
	case c.TargetChapter <= 0:
		return fmt.Errorf("%w: target chapter size must be positive", ErrInvalidConfig)
	case c.PerCallCeiling <= 0:
		return fmt.Errorf("%w: per-call ceiling must be positive", ErrInvalidConfig)
	case c.Overage < 0:
		return fmt.Errorf("%w: overage cannot be negative", ErrInvalidConfig)
	case c.AnalysisCeiling < 2:
		return fmt.Errorf("%w: analysis ceiling must be at least 2", ErrInvalidConfig)
	case c.ParallelWindows < 1:
		return fmt.Errorf("%w: parallel windows must be at least 1", ErrInvalidConfig)
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: max retries must be at least 1", ErrInvalidConfig)
	case c.TransientDelay < 0:
		return fmt.Errorf("%w: retry delay cannot be negative", ErrInvalidConfig)
	case c.Segmenter.Min > c.Segmenter.Target || c.Segmenter.Target > c.Segmenter.Max:
		return fmt.Errorf("%w: segment sizes must satisfy min <= target <= max", ErrInvalidConfig)
	}
	return nil
}

// RegisterFlags binds the tuning flags shared by the commands that plan
// or run jobs.
func (c *Config) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.ChapterAligned, "chapter-aligned", c.ChapterAligned, "Align spans with the chapters of the structure index")
	fs.IntVar(&c.MaxChapterChunk, "max-chunk", c.MaxChapterChunk, "Largest span built from chapters, in characters")
	fs.IntVar(&c.TargetChapter, "chapter-size", c.TargetChapter, "Assumed chapter size when packing spans, in characters")
	fs.IntVar(&c.PerCallCeiling, "per-call", c.PerCallCeiling, "Output size of one call on the expansion path, in characters")
	fs.IntVar(&c.Overage, "overage", c.Overage, "Characters allowed above the target before trailing chapters are trimmed")
	fs.IntVar(&c.AnalysisCeiling, "analysis-ceiling", c.AnalysisCeiling, "Largest source analyzed in one call, in characters")
	fs.IntVar(&c.ParallelWindows, "parallel", c.ParallelWindows, "Concurrent analysis calls for sources above the analysis ceiling")
	fs.IntVar(&c.MaxRetries, "max-retries", c.MaxRetries, "Attempts per span before falling back")
	fs.DurationVar(&c.TransientDelay, "retry-delay", c.TransientDelay, "Pause after a failed generator call")
	fs.IntVar(&c.Segmenter.Target, "segment-size", c.Segmenter.Target, "Target span size when no chapters are available")
	fs.IntVar(&c.Segmenter.Min, "segment-min", c.Segmenter.Min, "Minimum span size when no chapters are available")
	fs.IntVar(&c.Segmenter.Max, "segment-max", c.Segmenter.Max, "Maximum span size when no chapters are available")
}
