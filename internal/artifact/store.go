// Package artifact persists the intermediate files of a job (structure
// index, per-span prompts and outputs, metadata) for later inspection.
// Artifacts are diagnostic: callers log write failures and carry on.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Sentinel errors.
var (
	// ErrExists is returned when an artifact name was already written.
	ErrExists = errors.New("artifact already exists")
	// ErrInvalidName is returned for names that are empty or leave the job directory.
	ErrInvalidName = errors.New("invalid artifact name")
)

// Store writes named artifacts under a job-scoped location.
type Store interface {
	Write(name string, data []byte) error
	WriteJSON(name string, v any) error
}

// Compile-time interface checks.
var (
	_ Store = (*FS)(nil)
	_ Store = Nop{}
)

// Prefix returns a job directory name of the form
// "<slug>-<YYYYMMDD-HHMMSS>-<id>" where id is 8 random hex characters,
// so that concurrent jobs never share a directory.
func Prefix(name string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", Slug(name), now.Format("20060102-150405"), uuid.New().String()[:8])
}

// Slug lowercases s and replaces runs of non-alphanumeric characters with
// a dash. It returns "job" when nothing is left.
func Slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(sb.String(), "-")
	if r := []rune(out); len(r) > 40 {
		out = strings.TrimSuffix(string(r[:40]), "-")
	}
	if out == "" {
		return "job"
	}
	return out
}

// FS stores artifacts as files under a job directory.
type FS struct {
	dir string
}

// NewFS creates the job directory root/prefix and returns a store rooted there.
func NewFS(root, prefix string) (*FS, error) {
	if !filepath.IsLocal(prefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, prefix)
	}
	dir := filepath.Join(root, prefix)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create job directory: %w", err)
	}
	return &FS{dir: dir}, nil
}

// Dir returns the job directory.
func (s *FS) Dir() string { return s.dir }

// Path returns the file path of name.
func (s *FS) Path(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// Write stores data under name. Names may contain '/' separated
// subdirectories. An existing artifact is never overwritten.
func (s *FS) Write(name string, data []byte) error {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cannot create artifact directory: %w", err)
	}
	return writeFileExclusive(path, data)
}

// WriteJSON stores v as indented JSON under name.
func (s *FS) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", name, err)
	}
	return s.Write(name, append(data, '\n'))
}

// writeFileExclusive creates path and writes data to it. It fails if the
// file already exists (O_EXCL). On write failure, the partial file is removed.
func writeFileExclusive(path string, data []byte) error {
	// #nosec G304 -- path is built from the job directory and a validated name
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("cannot create artifact: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}
	return nil
}

// Nop discards every artifact. It is used when no output directory is set.
type Nop struct{}

// Write discards data.
func (Nop) Write(string, []byte) error { return nil }

// WriteJSON discards v.
func (Nop) WriteJSON(string, any) error { return nil }

// SpanName returns the artifact name of one span file, e.g.
// SpanName(2, "output") is "spans/003_output.txt".
func SpanName(index int, kind string) string {
	return fmt.Sprintf("spans/%03d_%s.txt", index+1, kind)
}
