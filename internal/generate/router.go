package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// BackendFunc builds the Generator for a provider. apiKey is empty for
// providers that need no credential.
type BackendFunc func(p Provider, apiKey string) (Generator, error)

// BackendConfig tunes the production backends.
type BackendConfig struct {
	// Base URLs override the public endpoints (proxies, tests).
	OpenAIBaseURL   string
	DeepSeekBaseURL string
	GeminiBaseURL   string

	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	Logger *slog.Logger
}

// DefaultBackendConfig returns the retry policy used in production:
// three retries, starting at two seconds and doubling.
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		MaxDelay:   defaultMaxDelay,
	}
}

// Backends returns a BackendFunc building the real provider clients.
func Backends(cfg BackendConfig) BackendFunc {
	return func(p Provider, apiKey string) (Generator, error) {
		switch p {
		case OpenAI:
			return NewOpenAIGenerator(apiKey, cfg.OpenAIBaseURL,
				WithOpenAIRetry(cfg.MaxRetries, cfg.BaseDelay, cfg.MaxDelay),
				WithOpenAILogger(cfg.Logger))
		case DeepSeek:
			return NewDeepSeekGenerator(apiKey,
				WithDeepSeekBaseURL(cfg.DeepSeekBaseURL),
				WithDeepSeekRetry(cfg.MaxRetries, cfg.BaseDelay, cfg.MaxDelay),
				WithDeepSeekLogger(cfg.Logger))
		case Gemini:
			return NewGeminiGenerator(apiKey,
				WithGeminiBaseURL(cfg.GeminiBaseURL),
				WithGeminiRetry(cfg.MaxRetries, cfg.BaseDelay, cfg.MaxDelay),
				WithGeminiLogger(cfg.Logger))
		case Mock:
			return NewMockGenerator(), nil
		default:
			return nil, fmt.Errorf("no backend for provider %q: %w", p, ErrUnknownModel)
		}
	}
}

var _ Generator = (*Router)(nil)

// Router dispatches requests to the backend serving the requested model.
// Backends are built lazily, once per provider, and reused.
type Router struct {
	getenv        func(string) string
	backends      BackendFunc
	defaultModel  string
	fallbackModel string
	logger        *slog.Logger

	mu    sync.Mutex
	cache map[Provider]Generator
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithGetenv sets the credential lookup function.
func WithGetenv(fn func(string) string) RouterOption {
	return func(r *Router) {
		if fn != nil {
			r.getenv = fn
		}
	}
}

// WithBackends sets the backend constructor.
func WithBackends(fn BackendFunc) RouterOption {
	return func(r *Router) {
		if fn != nil {
			r.backends = fn
		}
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) RouterOption {
	return func(r *Router) {
		r.defaultModel = model
	}
}

// WithFallbackModel sets a model tried once when the primary model
// exhausts its retries.
func WithFallbackModel(model string) RouterOption {
	return func(r *Router) {
		r.fallbackModel = model
	}
}

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRouter creates a Router using the environment for credentials and
// the production backends unless overridden.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		getenv:   os.Getenv,
		backends: Backends(DefaultBackendConfig()),
		logger:   discardLogger(),
		cache:    make(map[Provider]Generator),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate resolves req.Model and forwards the request. A missing
// credential fails immediately with ErrMissingCredential.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	if req.Model == "" {
		req.Model = r.defaultModel
	}
	out, err := r.dispatch(ctx, req)
	if err == nil || !errors.Is(err, ErrGeneration) {
		return out, err
	}
	if r.fallbackModel == "" || r.fallbackModel == req.Model {
		return "", err
	}

	r.logger.Warn("primary model failed, trying fallback model",
		"model", req.Model, "fallback", r.fallbackModel, "error", err)
	req.Model = r.fallbackModel
	out, fbErr := r.dispatch(ctx, req)
	if fbErr != nil {
		return "", fmt.Errorf("fallback model %s: %w", r.fallbackModel, fbErr)
	}
	return out, nil
}

func (r *Router) dispatch(ctx context.Context, req Request) (string, error) {
	p, model, err := ResolveModel(req.Model)
	if err != nil {
		return "", err
	}
	g, err := r.backend(p)
	if err != nil {
		return "", err
	}
	req.Model = model
	return g.Generate(ctx, req)
}

// Check verifies that model resolves to a provider whose credential is
// set, without making a call.
func (r *Router) Check(model string) error {
	if model == "" {
		model = r.defaultModel
	}
	p, _, err := ResolveModel(model)
	if err != nil {
		return err
	}
	_, err = r.credential(p)
	return err
}

func (r *Router) backend(p Provider) (Generator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.cache[p]; ok {
		return g, nil
	}
	key, err := r.credential(p)
	if err != nil {
		return nil, err
	}
	g, err := r.backends(p, key)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", p, err)
	}
	r.cache[p] = g
	return g, nil
}

func (r *Router) credential(p Provider) (string, error) {
	names := p.CredentialEnv()
	if len(names) == 0 {
		return "", nil
	}
	for _, name := range names {
		if v := r.getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w for %s (set it with: export %s=...)", ErrMissingCredential, p, names[0])
}
