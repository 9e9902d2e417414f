package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Config keys.
const (
	KeyOutputDir     = "output-dir"
	KeyModel         = "model"
	KeyFallbackModel = "fallback-model"
)

// Environment variable fallbacks.
const (
	EnvOutputDir     = "RETELL_OUTPUT_DIR"
	EnvModel         = "RETELL_MODEL"
	EnvFallbackModel = "RETELL_FALLBACK_MODEL"
)

// appName names the directory under the XDG config home.
const appName = "retell"

// ErrUnknownKey is returned by Save for keys retell does not read.
var ErrUnknownKey = errors.New("unknown config key")

// envFallbacks maps each key to the environment variable consulted when the
// file leaves it unset.
var envFallbacks = map[string]string{
	KeyOutputDir:     EnvOutputDir,
	KeyModel:         EnvModel,
	KeyFallbackModel: EnvFallbackModel,
}

// Config holds user configuration loaded from ~/.config/retell/config.
type Config struct {
	OutputDir     string
	Model         string
	FallbackModel string
}

// Keys returns the supported config keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(envFallbacks))
	for k := range envFallbacks {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ValidKey reports whether key is a supported config key.
func ValidKey(key string) bool {
	_, ok := envFallbacks[key]
	return ok
}

// EnvVar returns the environment variable consulted for key, or "".
func EnvVar(key string) string {
	return envFallbacks[key]
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/retell.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

func path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config"), nil
}

// Load reads the configuration file and environment variables.
// File values win; environment variables fill keys the file leaves empty.
// A missing file is not an error.
func Load() (Config, error) {
	var cfg Config

	data, err := List()
	if err != nil {
		return cfg, err
	}

	resolve := func(key string) string {
		if v := data[key]; v != "" {
			return v
		}
		return os.Getenv(envFallbacks[key])
	}

	cfg.OutputDir = resolve(KeyOutputDir)
	cfg.Model = resolve(KeyModel)
	cfg.FallbackModel = resolve(KeyFallbackModel)
	return cfg, nil
}

// parseFile reads a key=value config file.
// Format: one key=value per line, # comments, empty lines ignored.
func parseFile(p string) (map[string]string, error) {
	f, err := os.Open(p) // #nosec G304 -- config path is constructed from home dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid syntax at line %d: %q", lineNum, line)
		}
		data[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return data, nil
}

// Save writes a single key=value to the config file, creating it if needed.
// Existing pairs are kept; comments are not.
func Save(key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q (valid: %s)", ErrUnknownKey, key, strings.Join(Keys(), ", "))
	}

	p, err := path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil { // #nosec G301 -- user config dir
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	existing, _ := parseFile(p)
	if existing == nil {
		existing = make(map[string]string)
	}
	existing[key] = value

	return writeFile(p, existing)
}

// writeFile writes pairs sorted by key so the file diffs cleanly.
func writeFile(p string, data map[string]string) error {
	// #nosec G302 G304 -- config file with standard permissions, path from home dir
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if _, err := fmt.Fprintf(f, "%s=%s\n", key, data[key]); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}
	return nil
}

// Get reads a single value from the config file.
// Returns empty string if the key doesn't exist.
func Get(key string) (string, error) {
	data, err := List()
	if err != nil {
		return "", err
	}
	return data[key], nil
}

// List returns all config file values as a map.
func List() (map[string]string, error) {
	p, err := path()
	if err != nil {
		return nil, err
	}

	data, err := parseFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return data, nil
}

// ResolveOutputPath resolves the final output path:
//  1. an absolute output is used as-is
//  2. a relative output is joined to outputDir when set
//  3. an empty output becomes defaultName inside outputDir (or cwd)
func ResolveOutputPath(output, outputDir, defaultName string) string {
	outputDir = ExpandPath(outputDir)
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}
	if output == "" {
		output = defaultName
	}
	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, output))
	}
	return filepath.Clean(output)
}

// ValidOutputDir checks that d is usable as output-dir, creating it when
// missing.
func ValidOutputDir(d string) error {
	if d == "" {
		return fmt.Errorf("output-dir cannot be empty")
	}
	d = ExpandPath(d)

	info, err := os.Stat(d)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(d, 0o750); err != nil { // #nosec G301 -- user output dir
				return fmt.Errorf("cannot create directory: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot access directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", d)
	}

	f, err := os.CreateTemp(d, ".retell-write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := f.Name()
	closeErr := f.Close()
	_ = os.Remove(name)
	if closeErr != nil {
		return fmt.Errorf("directory is not writable: %w", closeErr)
	}
	return nil
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

// Dir returns the configuration directory path.
func Dir() (string, error) {
	return dir()
}
