package generate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alnah/go-retell/internal/apierr"
)

// DeepSeek API configuration.
const (
	defaultDeepSeekBaseURL = "https://api.deepseek.com"
	defaultDeepSeekModel   = "deepseek-chat"
)

var _ Generator = (*DeepSeekGenerator)(nil)

// DeepSeekGenerator generates text with DeepSeek's chat completion REST API.
type DeepSeekGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	httpClient httpDoer
	logger     *slog.Logger
}

// DeepSeekOption configures a DeepSeekGenerator.
type DeepSeekOption func(*DeepSeekGenerator)

// WithDeepSeekBaseURL sets a custom base URL (for testing or proxies).
func WithDeepSeekBaseURL(url string) DeepSeekOption {
	return func(g *DeepSeekGenerator) {
		if url != "" {
			g.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithDeepSeekRetry sets the retry count and backoff delays.
func WithDeepSeekRetry(maxRetries int, base, max time.Duration) DeepSeekOption {
	return func(g *DeepSeekGenerator) {
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

// WithDeepSeekLogger sets the logger for retry events.
func WithDeepSeekLogger(l *slog.Logger) DeepSeekOption {
	return func(g *DeepSeekGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// withDeepSeekHTTPClient sets a custom HTTP client (for testing).
func withDeepSeekHTTPClient(c httpDoer) DeepSeekOption {
	return func(g *DeepSeekGenerator) {
		g.httpClient = c
	}
}

// NewDeepSeekGenerator creates a DeepSeekGenerator authenticated with apiKey.
func NewDeepSeekGenerator(apiKey string, opts ...DeepSeekOption) (*DeepSeekGenerator, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	g := &DeepSeekGenerator{
		apiKey:     apiKey,
		baseURL:    defaultDeepSeekBaseURL,
		model:      defaultDeepSeekModel,
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

// deepSeekRequest represents a DeepSeek chat completion request.
type deepSeekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepSeekMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature"`
}

type deepSeekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// deepSeekResponse holds the fields read from a chat completion response.
type deepSeekResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type deepSeekErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate runs one chat completion, retrying transient failures.
func (g *DeepSeekGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	body := deepSeekRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages: []deepSeekMessage{
			{Role: "system", Content: req.Instructions},
			{Role: "user", Content: req.Source},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}

	cfg := retryConfig(g.logger, ProviderDeepSeek, g.maxRetries, g.baseDelay, g.maxDelay)
	out, err := apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		var resp deepSeekResponse
		if err := postJSON(ctx, g.httpClient, "DeepSeek", g.baseURL+"/chat/completions",
			headers, body, &resp, deepSeekErrorMessage); err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsTransient)
	if err != nil {
		return "", exhausted(ctx, ProviderDeepSeek, err)
	}
	return out, nil
}

func deepSeekErrorMessage(body []byte) string {
	var e deepSeekErrorResponse
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error.Message
}
