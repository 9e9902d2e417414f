package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-retell/internal/apierr"
)

// OpenAI backend configuration.
const (
	defaultOpenAIModel = "gpt-4o-mini"

	// Retry configuration shared by all backends.
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// chatCompleter is the subset of *openai.Client used here.
// It allows injecting mocks in tests.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ Generator = (*OpenAIGenerator)(nil)

// OpenAIGenerator generates text with OpenAI's chat completion API.
type OpenAIGenerator struct {
	client     chatCompleter
	model      string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger
}

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithOpenAIModel sets the model used when a request names none.
func WithOpenAIModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithOpenAIRetry sets the retry count and backoff delays.
func WithOpenAIRetry(maxRetries int, base, max time.Duration) OpenAIOption {
	return func(g *OpenAIGenerator) {
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

// WithOpenAILogger sets the logger for retry events.
func WithOpenAILogger(l *slog.Logger) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// withChatCompleter replaces the client (for testing).
func withChatCompleter(cc chatCompleter) OpenAIOption {
	return func(g *OpenAIGenerator) {
		g.client = cc
	}
}

// NewOpenAIGenerator creates an OpenAIGenerator authenticated with apiKey.
// baseURL may be empty to use the public endpoint.
func NewOpenAIGenerator(apiKey, baseURL string, opts ...OpenAIOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	g := &OpenAIGenerator{
		client:     openai.NewClientWithConfig(cfg),
		model:      defaultOpenAIModel,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		logger:     discardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate runs one chat completion, retrying transient failures.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = g.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	ccr := openai.ChatCompletionRequest{
		Model:               model,
		MaxCompletionTokens: maxTokens,
		Temperature:         req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Instructions},
			{Role: openai.ChatMessageRoleUser, Content: req.Source},
		},
	}

	cfg := retryConfig(g.logger, ProviderOpenAI, g.maxRetries, g.baseDelay, g.maxDelay)
	out, err := apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, ccr)
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", nil
		}
		return resp.Choices[0].Message.Content, nil
	}, apierr.IsTransient)
	if err != nil {
		return "", exhausted(ctx, ProviderOpenAI, err)
	}
	return out, nil
}

// classifyOpenAIError maps go-openai errors to apierr sentinels.
func classifyOpenAIError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Quota exhaustion is reported as 429 with a billing message.
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests &&
			(strings.Contains(apiErr.Message, "quota") || strings.Contains(apiErr.Message, "billing")) {
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
		}
		if classified := apierr.FromStatus(apiErr.HTTPStatusCode, apiErr.Message); classified != nil {
			return classified
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if classified := apierr.FromStatus(reqErr.HTTPStatusCode, reqErr.Error()); classified != nil {
			return classified
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}
