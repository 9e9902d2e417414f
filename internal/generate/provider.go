package generate

import (
	"fmt"
	"strings"
)

// Provider names.
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderGemini   = "gemini"
	ProviderMock     = "mock"
)

// Credential environment variables.
const (
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvDeepSeekAPIKey = "DEEPSEEK_API_KEY"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvGoogleAPIKey   = "GOOGLE_API_KEY"
)

// Provider is a validated backend name.
// The zero value is invalid; use ParseProvider or the pre-parsed values.
type Provider struct {
	name string
}

var _ fmt.Stringer = Provider{}

// Pre-parsed providers.
var (
	OpenAI   = Provider{name: ProviderOpenAI}
	DeepSeek = Provider{name: ProviderDeepSeek}
	Gemini   = Provider{name: ProviderGemini}
	Mock     = Provider{name: ProviderMock}
)

var providers = map[string]Provider{
	ProviderOpenAI:   OpenAI,
	ProviderDeepSeek: DeepSeek,
	ProviderGemini:   Gemini,
	ProviderMock:     Mock,
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p, ok := providers[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider %q (use openai, deepseek, gemini or mock): %w", s, ErrUnknownModel)
	}
	return p, nil
}

// String returns the provider name.
func (p Provider) String() string { return p.name }

// IsZero reports whether p is unset.
func (p Provider) IsZero() bool { return p.name == "" }

// CredentialEnv lists the environment variables holding the provider's key,
// in lookup order. Mock needs none.
func (p Provider) CredentialEnv() []string {
	switch p {
	case OpenAI:
		return []string{EnvOpenAIAPIKey}
	case DeepSeek:
		return []string{EnvDeepSeekAPIKey}
	case Gemini:
		return []string{EnvGeminiAPIKey, EnvGoogleAPIKey}
	default:
		return nil
	}
}

// modelPrefixes maps model-name prefixes to the provider serving them.
var modelPrefixes = []struct {
	prefix   string
	provider Provider
}{
	{"gpt", OpenAI},
	{"chatgpt", OpenAI},
	{"o1", OpenAI},
	{"o3", OpenAI},
	{"o4", OpenAI},
	{"deepseek", DeepSeek},
	{"gemini", Gemini},
	{"mock", Mock},
}

// ResolveModel returns the provider for a model identifier and the model
// name to send to it. "provider/model" selects the provider explicitly;
// otherwise the provider is inferred from the model name.
func ResolveModel(model string) (Provider, string, error) {
	model = strings.TrimSpace(model)
	if name, rest, ok := strings.Cut(model, "/"); ok {
		p, err := ParseProvider(name)
		if err != nil {
			return Provider{}, "", err
		}
		return p, rest, nil
	}
	lower := strings.ToLower(model)
	for _, mp := range modelPrefixes {
		if strings.HasPrefix(lower, mp.prefix) {
			return mp.provider, model, nil
		}
	}
	return Provider{}, "", fmt.Errorf("no provider serves model %q: %w", model, ErrUnknownModel)
}
