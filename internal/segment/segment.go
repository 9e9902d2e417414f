// Package segment partitions a source into spans at natural boundaries
// without consulting a generator. It is used when no structure index is
// available.
package segment

import (
	"cmp"
	"regexp"
	"slices"
	"unicode"
	"unicode/utf8"

	"github.com/alnah/go-retell/internal/span"
)

// Config holds the segmenter's sizes (in runes) and boundary weights.
type Config struct {
	Target int
	Min    int
	Max    int

	SpeakerWeight   int
	TopicWeight     int
	ParagraphWeight int
	SentenceWeight  int

	// SearchWindow is how far from the midpoint a sentence end is looked
	// for when an oversized span is split.
	SearchWindow int
}

// DefaultConfig returns the default segmenter configuration.
func DefaultConfig() Config {
	return Config{
		Target:          20_000,
		Min:             17_000,
		Max:             23_000,
		SpeakerWeight:   5,
		TopicWeight:     4,
		ParagraphWeight: 3,
		SentenceWeight:  2,
		SearchWindow:    1_000,
	}
}

var (
	speakerLabel = regexp.MustCompile(`^[A-Z][a-z]*\s*:`)
	topicCue     = regexp.MustCompile(`(?i)\b(next|now|another|moving on|let's talk about|turning to|regarding|on another note|speaking of|in terms of|firstly|secondly|thirdly|finally|to begin with|lastly|in conclusion|to summarize)\b`)
	sentenceEnd  = regexp.MustCompile(`[.!?]\s+`)
)

// topicPrefix is how many runes at the start of a paragraph are searched
// for a topic cue.
const topicPrefix = 50

// Segmenter splits text into spans.
type Segmenter struct {
	cfg Config
}

// New returns a Segmenter. Zero fields of cfg take their default.
func New(cfg Config) *Segmenter {
	def := DefaultConfig()
	if cfg.Target <= 0 {
		cfg.Target = def.Target
	}
	if cfg.Min <= 0 {
		cfg.Min = def.Min
	}
	if cfg.Max <= 0 {
		cfg.Max = def.Max
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = def.SearchWindow
	}
	if cfg.SpeakerWeight == 0 && cfg.TopicWeight == 0 && cfg.ParagraphWeight == 0 && cfg.SentenceWeight == 0 {
		cfg.SpeakerWeight = def.SpeakerWeight
		cfg.TopicWeight = def.TopicWeight
		cfg.ParagraphWeight = def.ParagraphWeight
		cfg.SentenceWeight = def.SentenceWeight
	}
	return &Segmenter{cfg: cfg}
}

// Boundary is a candidate cut between two paragraphs.
type Boundary struct {
	// Position is the rune offset where the next paragraph starts.
	Position int
	Score    int
}

type paragraph struct {
	start, end int // text bounds, excluding the blank-line gap
}

// Segment partitions text. The result always covers [0, len) exactly and
// is identical for identical input.
func (s *Segmenter) Segment(text string) []span.Span {
	runes := []rune(text)
	total := len(runes)
	if total <= s.cfg.Target {
		return []span.Span{{Start: 0, End: total}}
	}

	boundaries := s.Boundaries(runes)
	want := (total+s.cfg.Target-1)/s.cfg.Target - 1
	cuts := s.choose(boundaries, want)

	// Cut where the resulting span is long enough.
	var spans []span.Span
	start := 0
	for _, pos := range cuts {
		if pos-start >= s.cfg.Min {
			spans = append(spans, span.Span{Start: start, End: pos})
			start = pos
		}
	}
	spans = append(spans, span.Span{Start: start, End: total})

	if n := len(spans); n > 1 && spans[n-1].Len() < s.cfg.Min {
		spans[n-2].End = total
		spans = spans[:n-1]
	}

	var out []span.Span
	for _, sp := range spans {
		out = append(out, s.split(runes, sp)...)
	}
	return out
}

// Boundaries scores every paragraph break in runes.
func (s *Segmenter) Boundaries(runes []rune) []Boundary {
	paras := paragraphs(runes)
	out := make([]Boundary, 0, max(0, len(paras)-1))
	for i := 1; i < len(paras); i++ {
		prev := string(runes[paras[i-1].start:paras[i-1].end])
		curr := string(runes[paras[i].start:paras[i].end])

		score := s.cfg.ParagraphWeight
		if speakerChange(prev, curr) {
			score += s.cfg.SpeakerWeight
		}
		head := runes[paras[i].start:min(paras[i].start+topicPrefix, paras[i].end)]
		if topicCue.MatchString(string(head)) {
			score += s.cfg.TopicWeight
		}
		if endsSentence(runes[paras[i-1].start:paras[i-1].end]) {
			score += s.cfg.SentenceWeight
		}
		out = append(out, Boundary{Position: paras[i].start, Score: score})
	}
	return out
}

// choose returns the positions of the n best boundaries in ascending
// order. Equal scores prefer the boundary nearest a multiple of the
// target size, then the earlier one.
func (s *Segmenter) choose(boundaries []Boundary, n int) []int {
	if n <= 0 || len(boundaries) == 0 {
		return nil
	}
	ranked := slices.Clone(boundaries)
	slices.SortStableFunc(ranked, func(a, b Boundary) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(s.offTarget(a.Position), s.offTarget(b.Position)); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	ranked = ranked[:min(n, len(ranked))]

	cuts := make([]int, len(ranked))
	for i, b := range ranked {
		cuts[i] = b.Position
	}
	slices.Sort(cuts)
	return cuts
}

func (s *Segmenter) offTarget(pos int) int {
	r := pos % s.cfg.Target
	return min(r, s.cfg.Target-r)
}

// split halves sp at the sentence end nearest its midpoint until every
// piece fits within Max.
func (s *Segmenter) split(runes []rune, sp span.Span) []span.Span {
	if sp.Len() <= s.cfg.Max {
		return []span.Span{sp}
	}
	cut := s.sentenceCut(runes, sp)
	left := span.Span{Start: sp.Start, End: cut}
	right := span.Span{Start: cut, End: sp.End}
	return append(s.split(runes, left), s.split(runes, right)...)
}

// sentenceCut returns the absolute offset of the sentence end nearest the
// middle of sp, or the middle itself when the search window has none.
func (s *Segmenter) sentenceCut(runes []rune, sp span.Span) int {
	mid := sp.Start + sp.Len()/2
	lo := max(sp.Start+1, mid-s.cfg.SearchWindow)
	hi := min(sp.End-1, mid+s.cfg.SearchWindow)
	if lo >= hi {
		return mid
	}

	window := string(runes[lo:hi])
	best, bestDist := mid, -1
	for _, m := range sentenceEnd.FindAllStringIndex(window, -1) {
		pos := lo + utf8.RuneCountInString(window[:m[1]])
		if pos <= sp.Start || pos >= sp.End {
			continue
		}
		d := pos - mid
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = pos, d
		}
	}
	return best
}

// paragraphs finds runs of text separated by whitespace containing at
// least two newlines. Leading and trailing whitespace belongs to no
// paragraph.
func paragraphs(runes []rune) []paragraph {
	var out []paragraph
	i := 0
	for i < len(runes) {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		start := i
		end := i
		for i < len(runes) {
			if !unicode.IsSpace(runes[i]) {
				i++
				end = i
				continue
			}
			j, newlines := i, 0
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				if runes[j] == '\n' {
					newlines++
				}
				j++
			}
			if newlines >= 2 || j >= len(runes) {
				i = j
				break
			}
			i = j
		}
		out = append(out, paragraph{start: start, end: end})
	}
	return out
}

func speakerChange(prev, curr string) bool {
	c := speakerLabel.FindString(curr)
	if c == "" {
		return false
	}
	p := speakerLabel.FindString(prev)
	return p == "" || p != c
}

func endsSentence(r []rune) bool {
	if len(r) == 0 {
		return false
	}
	switch r[len(r)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
