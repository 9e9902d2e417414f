package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alnah/go-retell/internal/format"
	"github.com/alnah/go-retell/internal/pipeline"
)

// defaultProgressCallback returns a progress callback that writes status
// messages to w.
func defaultProgressCallback(w io.Writer) pipeline.ProgressFunc {
	return func(phase string, current, total int) {
		switch phase {
		case pipeline.PhaseAnalyze:
			_, _ = fmt.Fprintln(w, "  Building structure index...")
		case pipeline.PhaseExpand:
			_, _ = fmt.Fprintf(w, "  Expanding chapter %d/%d...\n", current, total)
		default:
			_, _ = fmt.Fprintf(w, "  Rewriting span %d/%d...\n", current, total)
		}
	}
}

// writeSummary prints the outcome of a job: lengths, path and any spans
// that did not pass validation.
func writeSummary(w io.Writer, rec pipeline.Record) {
	_, _ = fmt.Fprintf(w, "Path: %s, %d span(s), %s\n", rec.Path, len(rec.Spans), format.DurationHuman(rec.Duration))
	_, _ = fmt.Fprintf(w, "Length: %s of %s target (%s)\n",
		format.Chars(rec.OutputLength), format.Count(rec.TargetLength), format.Ratio(rec.OutputLength, rec.TargetLength))
	if rec.Trim.Applied {
		_, _ = fmt.Fprintf(w, "Trimmed %d trailing chapter(s) from %s\n", rec.Trim.RemovedChapters, format.Chars(rec.Trim.LengthBefore))
	}
	for _, s := range rec.Spans {
		if s.WithinBounds {
			continue
		}
		_, _ = fmt.Fprintf(w, "  span %d: %s of %s-%s after %d attempt(s) [%s]\n",
			s.Index+1, format.Count(s.OutputLength), format.Count(s.MinLength), format.Count(s.MaxLength), s.Attempts, s.Degraded)
	}
	for _, warning := range rec.Warnings {
		_, _ = fmt.Fprintf(w, "Warning: %s\n", warning)
	}
}

// writePlan prints a processing plan, one line per span.
func writePlan(w io.Writer, p pipeline.Plan) {
	b := p.Budget
	_, _ = fmt.Fprintf(w, "Source: %s, target: %s (factor %.2f, %s, accepted %s-%s)\n",
		format.Chars(b.Source), format.Chars(b.Target), b.ScalingFactor, b.Class, format.Count(b.Min), format.Count(b.Max))
	_, _ = fmt.Fprintf(w, "Path: %s\n", p.Path)
	if p.Path != pipeline.Expansion {
		_, _ = fmt.Fprintf(w, "Structure index: %s, %d chapter(s)\n", p.Strategy, len(p.Chapters))
	}
	_, _ = fmt.Fprintf(w, "Calls: %d\n", len(p.Spans))
	for i, s := range p.Spans {
		label := s.Label
		if label == "" {
			label = "-"
		}
		_, _ = fmt.Fprintf(w, "%4d  %9d-%-9d  %-16s  target %s (%s-%s)\n",
			i+1, s.Start, s.End, label, format.Count(s.Budget.Target), format.Count(s.Budget.Min), format.Count(s.Budget.Max))
	}
}

// writeFileAtomic writes content to path atomically.
// It fails if the file already exists (O_EXCL), preventing accidental overwrites.
// On write failure, the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}
