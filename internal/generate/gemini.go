package generate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alnah/go-retell/internal/apierr"
)

// Gemini API configuration.
const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"
)

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator generates text with the Google Generative Language API.
type GeminiGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	httpClient httpDoer
	logger     *slog.Logger
}

// GeminiOption configures a GeminiGenerator.
type GeminiOption func(*GeminiGenerator)

// WithGeminiBaseURL sets a custom base URL (for testing or proxies).
func WithGeminiBaseURL(url string) GeminiOption {
	return func(g *GeminiGenerator) {
		if url != "" {
			g.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithGeminiRetry sets the retry count and backoff delays.
func WithGeminiRetry(maxRetries int, base, max time.Duration) GeminiOption {
	return func(g *GeminiGenerator) {
		if maxRetries >= 0 {
			g.maxRetries = maxRetries
		}
		if base > 0 {
			g.baseDelay = base
		}
		if max > 0 {
			g.maxDelay = max
		}
	}
}

// WithGeminiLogger sets the logger for retry events.
func WithGeminiLogger(l *slog.Logger) GeminiOption {
	return func(g *GeminiGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// withGeminiHTTPClient sets a custom HTTP client (for testing).
func withGeminiHTTPClient(c httpDoer) GeminiOption {
	return func(g *GeminiGenerator) {
		g.httpClient = c
	}
}

// NewGeminiGenerator creates a GeminiGenerator authenticated with apiKey.
func NewGeminiGenerator(apiKey string, opts ...GeminiOption) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	g := &GeminiGenerator{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		model:      defaultGeminiModel,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		logger:     discardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return g, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate runs one generateContent call, retrying transient failures.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Source}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if req.Instructions != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.Instructions}}}
	}
	endpoint := g.baseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": g.apiKey}

	cfg := retryConfig(g.logger, ProviderGemini, g.maxRetries, g.baseDelay, g.maxDelay)
	out, err := apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		var resp geminiResponse
		if err := postJSON(ctx, g.httpClient, "Gemini", endpoint,
			headers, body, &resp, geminiErrorMessage); err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 {
			return "", nil
		}
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String(), nil
	}, apierr.IsTransient)
	if err != nil {
		return "", exhausted(ctx, ProviderGemini, err)
	}
	return out, nil
}

func geminiErrorMessage(body []byte) string {
	var e geminiErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error.Message
}
