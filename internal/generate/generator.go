// Package generate talks to the external text generators. Callers pass a
// model identifier; the Router picks the backend that serves it, resolves
// the credential, and retries transient failures.
package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/alnah/go-retell/internal/apierr"
)

// Generator produces text for one instruction/source pair.
// An empty string with a nil error is a valid (if useless) response; callers
// validate length themselves.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is one generation call.
type Request struct {
	// Source is the text to work on, sent as the user message.
	Source string
	// Instructions is the system prompt.
	Instructions string
	// Model identifies the backend model, optionally provider-prefixed
	// ("deepseek/deepseek-chat"). Empty selects the backend default.
	Model string
	// MaxOutputTokens caps the response. Zero selects the backend default.
	MaxOutputTokens int
	// Temperature is passed through as-is.
	Temperature float32
}

// Default call parameters.
const (
	DefaultMaxOutputTokens = 4096
	DefaultTemperature     = 0.7
)

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// IsFatal reports whether err must abort the whole job instead of degrading
// a single span: missing or rejected credentials, unknown models, and
// cancellation or expiry of the job's context.
func IsFatal(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrUnknownModel) ||
		errors.Is(err, apierr.ErrAuthFailed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// exhausted marks an error returned after the retry budget ran out. A done
// ctx is kept in the chain so callers see the job stopped.
func exhausted(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	if IsFatal(err) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrGeneration, err)
}
