// Package prompt renders generation instructions. Every function is pure:
// the output depends only on the parameter struct passed in.
package prompt

import (
	"fmt"
	"strings"

	"github.com/alnah/go-retell/internal/length"
)

// Style holds the free-text fields describing how the rewrite should read.
// Empty fields are rendered with a neutral default.
type Style struct {
	Role                   string `yaml:"yourRole" json:"role"`
	ScriptStructure        string `yaml:"scriptStructure" json:"script_structure"`
	ToneStyle              string `yaml:"toneAndStyle" json:"tone_style"`
	RetentionFlow          string `yaml:"retentionAndFlow" json:"retention_flow"`
	AdditionalInstructions string `yaml:"additionalInstructions" json:"additional_instructions"`
}

// Merge returns s with empty fields taken from defaults.
func (s Style) Merge(defaults Style) Style {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Style{
		Role:                   pick(s.Role, defaults.Role),
		ScriptStructure:        pick(s.ScriptStructure, defaults.ScriptStructure),
		ToneStyle:              pick(s.ToneStyle, defaults.ToneStyle),
		RetentionFlow:          pick(s.RetentionFlow, defaults.RetentionFlow),
		AdditionalInstructions: pick(s.AdditionalInstructions, defaults.AdditionalInstructions),
	}
}

// Correction is one directive produced by a failed length check.
type Correction struct {
	Actual  int
	Target  int
	Verdict length.Verdict
}

// NewCorrection builds the correction for an output of n characters
// checked against b.
func NewCorrection(b length.Budget, n int) Correction {
	v := b.Check(n, false)
	return Correction{Actual: n, Target: b.Target, Verdict: v}
}

// Directive renders the correction as an instruction line.
func (c Correction) Directive() string {
	delta := c.Target - c.Actual
	if delta < 0 {
		delta = -delta
	}
	pct := 0
	if c.Actual > 0 {
		pct = delta * 100 / c.Actual
	}
	switch c.Verdict {
	case length.TooShort:
		return fmt.Sprintf("Your previous output was TOO SHORT (%d characters). Make it LONGER by approximately %d%% or %d characters to reach %d characters.",
			c.Actual, pct, delta, c.Target)
	case length.TooLong:
		return fmt.Sprintf("Your previous output was TOO LONG (%d characters). Make it SHORTER by approximately %d%% or %d characters to reach %d characters.",
			c.Actual, pct, delta, c.Target)
	default:
		return ""
	}
}

// renderCorrections writes every accumulated directive as one numbered
// section. Nothing is written when the list is empty.
func renderCorrections(sb *strings.Builder, corrections []Correction) {
	var lines []string
	for _, c := range corrections {
		if d := c.Directive(); d != "" {
			lines = append(lines, d)
		}
	}
	if len(lines) == 0 {
		return
	}
	sb.WriteString("\n## CORRECTIONS FROM PREVIOUS ATTEMPTS\n")
	for i, l := range lines {
		fmt.Fprintf(sb, "%d. %s\n", i+1, l)
	}
	last := corrections[len(corrections)-1]
	fmt.Fprintf(sb, "This attempt MUST be close to %d characters.\n", last.Target)
}

// renderStyle writes the five style sections.
func renderStyle(sb *strings.Builder, s Style) {
	s = s.Merge(neutral)
	fmt.Fprintf(sb, "\n## YOUR ROLE\n%s\n", s.Role)
	fmt.Fprintf(sb, "\n## SCRIPT STRUCTURE\n%s\n", s.ScriptStructure)
	fmt.Fprintf(sb, "\n## TONE & STYLE\n%s\n", s.ToneStyle)
	fmt.Fprintf(sb, "\n## RETENTION & FLOW TECHNIQUES\n%s\n", s.RetentionFlow)
	fmt.Fprintf(sb, "\n## ADDITIONAL INSTRUCTIONS\n%s\n", s.AdditionalInstructions)
}

// neutral fills style fields left empty by both the job and its preset.
var neutral = Style{
	Role:                   "You are an expert script writer turning a spoken transcript into a polished narrative.",
	ScriptStructure:        "Follow the order of the source. Group related ideas into clear sections.",
	ToneStyle:              "Clear, engaging and conversational, as if read aloud.",
	RetentionFlow:          "Use smooth transitions between sections and avoid repeating earlier points.",
	AdditionalInstructions: "None.",
}

// languageLine returns the output-language instruction, or "" for the
// source language.
func languageLine(language string) string {
	if language == "" {
		return ""
	}
	return fmt.Sprintf("Respond in %s.\n\n", language)
}

// Tail returns the last n characters of s, for continuity context.
func Tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
