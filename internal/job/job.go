// Package job reads rewrite job files.
//
// A job file is YAML:
//
//	name: interview
//	sourceFile: transcript.txt   # or inline "source:"
//	targetLength: 30000
//	model: deepseek-chat
//	style: documentary
//	language: fr
//	promptData:
//	  yourRole: ...
//	  scriptStructure: ...
//	  toneAndStyle: ...
//	  retentionAndFlow: ...
//	  additionalInstructions: ...
package job

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alnah/go-retell/internal/lang"
	"github.com/alnah/go-retell/internal/pipeline"
	"github.com/alnah/go-retell/internal/prompt"
	"github.com/alnah/go-retell/internal/template"
)

// ErrInvalidJob is returned for job files that cannot be run.
var ErrInvalidJob = errors.New("invalid job")

// File is the on-disk form of a job.
type File struct {
	Name         string       `yaml:"name"`
	Source       string       `yaml:"source"`
	SourceFile   string       `yaml:"sourceFile"`
	TargetLength int          `yaml:"targetLength"`
	Model        string       `yaml:"model"`
	Style        string       `yaml:"style"`
	Language     string       `yaml:"language"`
	PromptData   prompt.Style `yaml:"promptData"`

	// dir resolves a relative SourceFile.
	dir string
}

// Load reads and validates the job file at path. A relative sourceFile is
// resolved against the job file's directory.
func Load(path string) (File, error) {
	// #nosec G304 -- user-specified job file
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("cannot read job file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes a job from YAML. Unknown fields are rejected.
func Parse(data []byte, dir string) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	f.dir = dir
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the fields that do not need the filesystem.
func (f File) Validate() error {
	switch {
	case f.Source != "" && f.SourceFile != "":
		return fmt.Errorf("%w: set either source or sourceFile, not both", ErrInvalidJob)
	case f.Source == "" && f.SourceFile == "":
		return fmt.Errorf("%w: source or sourceFile is required", ErrInvalidJob)
	case f.TargetLength <= 0:
		return fmt.Errorf("%w: targetLength must be positive", ErrInvalidJob)
	}
	if _, err := template.ParseName(f.Style); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if _, err := lang.Parse(f.Language); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return nil
}

// Job resolves the file into a pipeline job: it reads the source file,
// applies the style preset under the explicit prompt fields and turns
// the language code into a display name.
func (f File) Job() (pipeline.Job, error) {
	source := f.Source
	if f.SourceFile != "" {
		path := f.SourceFile
		if !filepath.IsAbs(path) && f.dir != "" {
			path = filepath.Join(f.dir, path)
		}
		// #nosec G304 -- path comes from the user's job file
		data, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Job{}, fmt.Errorf("cannot read source file: %w", err)
		}
		source = string(data)
	}
	if strings.TrimSpace(source) == "" {
		return pipeline.Job{}, fmt.Errorf("%w: %w", ErrInvalidJob, pipeline.ErrEmptySource)
	}

	preset, err := template.ParseName(f.Style)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	language, err := lang.Parse(f.Language)
	if err != nil {
		return pipeline.Job{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	style := f.PromptData
	if !preset.IsZero() {
		style = style.Merge(preset.Style())
	}

	name := f.Name
	if name == "" && f.SourceFile != "" {
		name = strings.TrimSuffix(filepath.Base(f.SourceFile), filepath.Ext(f.SourceFile))
	}

	return pipeline.Job{
		Name:         name,
		Source:       source,
		TargetLength: f.TargetLength,
		Model:        f.Model,
		Style:        style,
		Language:     language.PromptName(),
	}, nil
}
