package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alnah/go-retell/internal/apierr"
)

const (
	// Response size limit to prevent OOM from malformed responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// Long timeout: a single call may produce 15K characters.
	defaultHTTPTimeout = 10 * time.Minute
)

// httpDoer abstracts the HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// statusError is a non-200 response from a REST backend.
type statusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error %d", e.Provider, e.StatusCode)
}

// Unwrap exposes the apierr sentinel for the status code.
func (e *statusError) Unwrap() error {
	return apierr.FromStatus(e.StatusCode, e.Message)
}

// postJSON sends body as JSON and decodes a 200 response into out.
// Non-200 responses are returned as *statusError, with the message
// extracted by errMessage when the body can be decoded.
func postJSON(
	ctx context.Context,
	client httpDoer,
	provider, url string,
	headers map[string]string,
	body, out any,
	errMessage func([]byte) string,
) (err error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		// A client timeout is retryable; only the job's own deadline is fatal.
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s request timed out: %w", provider, apierr.ErrTimeout)
		}
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := errMessage(respBody)
		if msg == "" {
			msg = string(bytes.TrimSpace(respBody))
		}
		return &statusError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// retryConfig builds the shared backoff settings, logging each retry.
func retryConfig(logger *slog.Logger, provider string, maxRetries int, base, max time.Duration) apierr.RetryConfig {
	return apierr.RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  base,
		MaxDelay:   max,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn("generation call failed, retrying",
				"provider", provider, "attempt", attempt, "delay", delay, "error", err)
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
