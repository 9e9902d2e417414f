// Package outline builds and parses the structure index ("master
// document") that lists the chapters of a source text.
//
// Chapter offsets are estimates reported by the generator, not positions
// located in the source. Callers that need spans derive them
// proportionally and must not treat the ranges as exact.
package outline

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Chapter is one entry of the structure index.
type Chapter struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// SourceStart and SourceEnd are the model's estimate of the chapter's
	// character range; zero when it gave none.
	SourceStart int `json:"source_start,omitempty"`
	SourceEnd   int `json:"source_end,omitempty"`
}

// Strategy records which grammar produced a parse result.
type Strategy int

const (
	// Empty means no chapter heading was recognized.
	Empty Strategy = iota
	// Strict means headings matched the full "Chapter N: Title (range)" grammar.
	Strict
	// Loose means only the heading-anywhere fallback matched.
	Loose
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Empty:
		return "empty"
	case Strict:
		return "strict"
	case Loose:
		return "loose"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// MarshalText encodes the strategy by name.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of Parse.
type Result struct {
	Chapters []Chapter
	Strategy Strategy
	// Duplicates counts headings dropped because their number was
	// already taken by an earlier heading.
	Duplicates int
}

// IsEmpty reports whether no chapter was parsed.
func (r Result) IsEmpty() bool {
	return r.Strategy == Empty || len(r.Chapters) == 0
}

// Numbers returns the chapter numbers in order.
func (r Result) Numbers() []int {
	out := make([]int, len(r.Chapters))
	for i, c := range r.Chapters {
		out[i] = c.Number
	}
	return out
}

var (
	// strictHeading matches a whole heading line once emphasis markers
	// and leading '#' are stripped.
	strictHeading = regexp.MustCompile(`^Chapter\s+(\d+)(?:\s*[:\-–]\s*|\s+|$)([^(]*?)\s*(?:\(([^)]*)\))?$`)
	// looseHeading finds "chapter N" anywhere on a line.
	looseHeading = regexp.MustCompile(`(?i)chapter\s+(\d+)(?:\s*[:\-–.]?\s*)(.*)$`)
	// rangePattern extracts "START-END" from a heading's parenthetical.
	rangePattern = regexp.MustCompile(`(\d[\d,]*)\s*(?:-|–|to)\s*(\d[\d,]*)`)
	// blankRuns matches runs of three or more newlines.
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// Parse extracts chapters from a structure index. The strict grammar is
// tried first; if it yields nothing, the loose grammar is tried. Chapters
// are returned sorted by number, keeping the first occurrence of any
// duplicated number.
func Parse(doc string) Result {
	lines := strings.Split(strings.ReplaceAll(doc, "\r\n", "\n"), "\n")

	if chapters := scan(lines, matchStrict); len(chapters) > 0 {
		return finish(chapters, Strict)
	}
	if chapters := scan(lines, matchLoose); len(chapters) > 0 {
		return finish(chapters, Loose)
	}
	return Result{Strategy: Empty}
}

type matcher func(line string) (Chapter, bool)

// scan walks the lines, opening a chapter at every heading and collecting
// the following lines as its description.
func scan(lines []string, match matcher) []Chapter {
	var (
		chapters []Chapter
		body     []string
		open     bool
	)
	flush := func() {
		if open {
			chapters[len(chapters)-1].Description = strings.TrimSpace(strings.Join(body, "\n"))
		}
		body = body[:0]
	}
	for _, line := range lines {
		if c, ok := match(line); ok {
			flush()
			chapters = append(chapters, c)
			open = true
			continue
		}
		if open {
			body = append(body, line)
		}
	}
	flush()
	return chapters
}

func matchStrict(line string) (Chapter, bool) {
	s := stripMarkers(line)
	m := strictHeading.FindStringSubmatch(s)
	if m == nil {
		return Chapter{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return Chapter{}, false
	}
	c := Chapter{Number: n, Title: cleanTitle(m[2])}
	c.SourceStart, c.SourceEnd = parseRange(m[3])
	return c, true
}

func matchLoose(line string) (Chapter, bool) {
	m := looseHeading.FindStringSubmatch(line)
	if m == nil {
		return Chapter{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return Chapter{}, false
	}
	title := m[2]
	var start, end int
	if i := strings.LastIndex(title, "("); i >= 0 {
		start, end = parseRange(title[i:])
		if end > 0 {
			title = title[:i]
		}
	}
	return Chapter{Number: n, Title: cleanTitle(title), SourceStart: start, SourceEnd: end}, true
}

// stripMarkers removes markdown heading and emphasis characters around a line.
func stripMarkers(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "# ")
	s = strings.Trim(s, "*_ ")
	return s
}

func cleanTitle(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_\"'"))
}

func parseRange(s string) (int, int) {
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0
	}
	start, err1 := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	end, err2 := strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	if err1 != nil || err2 != nil || end < start {
		return 0, 0
	}
	return start, end
}

func finish(chapters []Chapter, s Strategy) Result {
	seen := make(map[int]bool, len(chapters))
	kept := chapters[:0:0]
	dups := 0
	for _, c := range chapters {
		if seen[c.Number] {
			dups++
			continue
		}
		seen[c.Number] = true
		kept = append(kept, c)
	}
	slices.SortStableFunc(kept, func(a, b Chapter) int { return a.Number - b.Number })
	return Result{Chapters: kept, Strategy: s, Duplicates: dups}
}

// Render formats chapters in the canonical structure-index layout.
func Render(chapters []Chapter) string {
	blocks := make([]string, 0, len(chapters))
	for _, c := range chapters {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Chapter %d: %s", c.Number, c.Title)
		if c.SourceEnd > 0 {
			fmt.Fprintf(&sb, " (approximate characters %d-%d)", c.SourceStart, c.SourceEnd)
		}
		if c.Description != "" {
			sb.WriteString("\n\n")
			sb.WriteString(c.Description)
		}
		blocks = append(blocks, sb.String())
	}
	return strings.Join(blocks, "\n\n")
}

// Join concatenates index parts with a blank line and collapses runs of
// blank lines to one.
func Join(parts ...string) string {
	return CollapseBlankLines(strings.Join(parts, "\n\n"))
}

// CollapseBlankLines replaces every run of three or more newlines with
// exactly two.
func CollapseBlankLines(s string) string {
	return blankRuns.ReplaceAllString(s, "\n\n")
}
