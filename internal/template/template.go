// Package template holds the named style presets a job can start from.
// A preset supplies defaults for the five style fields; anything the job
// sets explicitly wins.
package template

import (
	"fmt"
	"strings"

	"github.com/alnah/go-retell/internal/prompt"
)

// Preset name constants.
const (
	Narrative   = "narrative"
	Documentary = "documentary"
	Lecture     = "lecture"
	Story       = "story"
)

// ---------------------------------------------------------------------------
// Name type - represents a validated preset name
// ---------------------------------------------------------------------------

// Name represents a validated preset name.
// The zero value means "no preset" and yields an empty Style.
type Name struct {
	name string
}

// Pre-parsed preset names.
var (
	NarrativeName   = Name{name: Narrative}
	DocumentaryName = Name{name: Documentary}
	LectureName     = Name{name: Lecture}
	StoryName       = Name{name: Story}
)

// ParseName validates a preset name. An empty string parses to the zero
// Name.
func ParseName(s string) (Name, error) {
	if s == "" {
		return Name{}, nil
	}
	if _, ok := presets[s]; !ok {
		return Name{}, fmt.Errorf("unknown style preset %q (use %s): %w",
			s, strings.Join(order, ", "), ErrUnknown)
	}
	return Name{name: s}, nil
}

// MustParseName parses a preset name, panicking if invalid.
// Use only for constants and tests.
func MustParseName(s string) Name {
	n, err := ParseName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the preset name, or "" for the zero value.
func (n Name) String() string {
	return n.name
}

// IsZero reports whether no preset is selected.
func (n Name) IsZero() bool {
	return n.name == ""
}

// Style returns the preset's style fields.
func (n Name) Style() prompt.Style {
	return presets[n.name]
}

// Names returns every preset name in display order.
func Names() []string {
	return append([]string(nil), order...)
}

var order = []string{Narrative, Documentary, Lecture, Story}

var presets = map[string]prompt.Style{
	Narrative: {
		Role: "You are a narrator turning a video transcript into a flowing spoken script for a single voice.",
		ScriptStructure: "Open each chapter with a short hook, develop its ideas in order, " +
			"and close with a line that leads into the next chapter.",
		ToneStyle:     "Warm, conversational and confident. Short sentences that sound natural when read aloud.",
		RetentionFlow: "Pose a question before answering it. Vary sentence length. Never restate a point already made.",
	},
	Documentary: {
		Role: "You are a documentary writer presenting the material of a transcript with authority and context.",
		ScriptStructure: "Set the scene, present the facts chronologically, " +
			"and explain the significance of each event before moving on.",
		ToneStyle:     "Measured, precise and vivid. Prefer concrete names, dates and places over generalities.",
		RetentionFlow: "Build tension toward turning points. Use transitions that connect causes to consequences.",
	},
	Lecture: {
		Role: "You are a teacher restating a recorded talk as a clear lesson.",
		ScriptStructure: "State the learning goal of each chapter, explain each concept with an example, " +
			"and end with a short recap.",
		ToneStyle:     "Patient and explicit. Define terms on first use.",
		RetentionFlow: "Signpost what comes next. Link new ideas to those already explained.",
	},
	Story: {
		Role:            "You are a storyteller retelling the events of a transcript as a story.",
		ScriptStructure: "Introduce characters and setting, follow the events in order, and give each chapter a clear arc.",
		ToneStyle:       "Evocative and rhythmic, with dialogue paraphrased into narration.",
		RetentionFlow:   "End chapters on an open question or a consequence still to come.",
	},
}
