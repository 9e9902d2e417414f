package cli

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/alnah/go-retell/internal/config"
	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/interrupt"
)

// ---------------------------------------------------------------------------
// Mock ConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	LoadFunc func() (config.Config, error)

	mu        sync.Mutex
	loadCalls int
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	m.mu.Lock()
	m.loadCalls++
	m.mu.Unlock()

	if m.LoadFunc != nil {
		return m.LoadFunc()
	}
	return config.Config{}, nil
}

func (m *mockConfigLoader) LoadCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCalls
}

// ---------------------------------------------------------------------------
// Mock GeneratorFactory
// ---------------------------------------------------------------------------

type mockGeneratorFactory struct {
	// Generator is returned when set; otherwise a MockGenerator.
	Generator generate.Generator
	Err       error

	mu    sync.Mutex
	calls []GeneratorOptions
}

func (m *mockGeneratorFactory) NewGenerator(opts GeneratorOptions) (generate.Generator, error) {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Generator != nil {
		return m.Generator, nil
	}
	return generate.NewMockGenerator(), nil
}

func (m *mockGeneratorFactory) Calls() []GeneratorOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GeneratorOptions(nil), m.calls...)
}

// ---------------------------------------------------------------------------
// Mock InterruptFactory
// ---------------------------------------------------------------------------

// mockInterrupts builds handlers fed by SigCh instead of OS signals.
// A nil SigCh gives handlers that never fire.
type mockInterrupts struct {
	SigCh  chan os.Signal
	Now    func() time.Time
	Stderr io.Writer
}

func (m *mockInterrupts) NewHandler(parent context.Context) (*interrupt.Handler, context.Context) {
	stderr := m.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	var sigCh <-chan os.Signal
	if m.SigCh != nil {
		sigCh = m.SigCh
	}
	return interrupt.NewHandlerWithOptions(parent, interrupt.Options{
		SigCh:    sigCh,
		ExitFunc: func(int) {},
		NowFunc:  m.Now,
		Stderr:   stderr,
	})
}

// ---------------------------------------------------------------------------
// Scripted generator
// ---------------------------------------------------------------------------

// scriptedGenerator answers every call with fn and records the requests.
type scriptedGenerator struct {
	fn func(ctx context.Context, req generate.Request, call int) (string, error)

	mu    sync.Mutex
	calls []generate.Request
}

func (g *scriptedGenerator) Generate(ctx context.Context, req generate.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	call := len(g.calls)
	g.mu.Unlock()
	return g.fn(ctx, req, call)
}

func (g *scriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
