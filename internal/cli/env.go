package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/alnah/go-retell/internal/config"
	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/interrupt"
)

// DefaultModel is used when neither flags, job file nor config name one.
const DefaultModel = "gemini-2.0-flash-lite"

// EnvMock selects the mock generator when set to a true value.
const EnvMock = "RETELL_MOCK"

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have defaults via DefaultEnv(). Env must not be nil when
// passed to command functions.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time

	// Factories for domain objects
	ConfigLoader     ConfigLoader
	GeneratorFactory GeneratorFactory
	Interrupts       InterruptFactory
}

// ConfigLoader loads and provides access to configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// GeneratorOptions selects and configures the generator for one job.
type GeneratorOptions struct {
	Model         string
	FallbackModel string
	Getenv        func(string) string
	Logger        *slog.Logger
}

// GeneratorFactory creates the generator a job runs against.
// Implementations fail early when the model's credential is missing.
type GeneratorFactory interface {
	NewGenerator(opts GeneratorOptions) (generate.Generator, error)
}

// InterruptFactory wraps a command context with Ctrl+C handling.
type InterruptFactory interface {
	NewHandler(parent context.Context) (*interrupt.Handler, context.Context)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithNow sets the time provider.
func WithNow(fn func() time.Time) EnvOption {
	return func(e *Env) {
		e.Now = fn
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithGeneratorFactory sets the generator factory.
func WithGeneratorFactory(f GeneratorFactory) EnvOption {
	return func(e *Env) {
		e.GeneratorFactory = f
	}
}

// WithInterrupts sets the interrupt handler factory.
func WithInterrupts(f InterruptFactory) EnvOption {
	return func(e *Env) {
		e.Interrupts = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:           os.Stdout,
		Stderr:           os.Stderr,
		Getenv:           os.Getenv,
		Now:              time.Now,
		ConfigLoader:     &defaultConfigLoader{},
		GeneratorFactory: &defaultGeneratorFactory{},
		Interrupts:       &defaultInterrupts{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// defaultGeneratorFactory returns the mock generator when RETELL_MOCK is
// true, and a model router over the real providers otherwise.
type defaultGeneratorFactory struct{}

func (defaultGeneratorFactory) NewGenerator(opts GeneratorOptions) (generate.Generator, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if mockEnabled(getenv) {
		return generate.NewMockGenerator(), nil
	}

	backends := generate.DefaultBackendConfig()
	backends.Logger = opts.Logger

	r := generate.NewRouter(
		generate.WithGetenv(getenv),
		generate.WithBackends(generate.Backends(backends)),
		generate.WithDefaultModel(opts.Model),
		generate.WithFallbackModel(opts.FallbackModel),
		generate.WithLogger(opts.Logger),
	)
	if err := r.Check(opts.Model); err != nil {
		return nil, err
	}
	if opts.FallbackModel != "" {
		if err := r.Check(opts.FallbackModel); err != nil {
			return nil, err
		}
	}
	return r, nil
}

type defaultInterrupts struct{}

func (defaultInterrupts) NewHandler(parent context.Context) (*interrupt.Handler, context.Context) {
	return interrupt.NewHandler(parent)
}

// mockEnabled reports whether RETELL_MOCK holds a true value.
func mockEnabled(getenv func(string) string) bool {
	v, err := strconv.ParseBool(getenv(EnvMock))
	return err == nil && v
}

// Compile-time interface verification.
var (
	_ ConfigLoader     = (*defaultConfigLoader)(nil)
	_ GeneratorFactory = (*defaultGeneratorFactory)(nil)
	_ InterruptFactory = (*defaultInterrupts)(nil)
)
