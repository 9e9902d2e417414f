package rewrite

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/length"
	"github.com/alnah/go-retell/internal/prompt"
)

// Defaults shared by both rewriters.
const (
	DefaultMaxRetries     = 3
	DefaultTransientDelay = 2 * time.Second
)

// engine runs the attempt loop shared by ChunkRewriter and ExpansionRewriter.
type engine struct {
	gen            generate.Generator
	model          string
	style          prompt.Style
	language       string
	maxRetries     int
	transientDelay time.Duration
	maxTokens      int
	temperature    float32
	logger         *slog.Logger
}

func newEngine(gen generate.Generator) engine {
	return engine{
		gen:            gen,
		maxRetries:     DefaultMaxRetries,
		transientDelay: DefaultTransientDelay,
		maxTokens:      generate.DefaultMaxOutputTokens,
		temperature:    generate.DefaultTemperature,
		logger:         slog.New(slog.DiscardHandler),
	}
}

// Option configures a rewriter.
type Option func(*engine)

// WithModel sets the model passed to the generator.
func WithModel(model string) Option {
	return func(e *engine) { e.model = model }
}

// WithStyle sets the style fields rendered into every instruction.
func WithStyle(s prompt.Style) Option {
	return func(e *engine) { e.style = s }
}

// WithLanguage asks for output in the given language (display name).
func WithLanguage(name string) Option {
	return func(e *engine) { e.language = name }
}

// WithMaxRetries sets the number of regular attempts per span.
func WithMaxRetries(n int) Option {
	return func(e *engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithTransientDelay sets the pause after a failed generator call.
// Length failures are retried immediately.
func WithTransientDelay(d time.Duration) Option {
	return func(e *engine) {
		if d >= 0 {
			e.transientDelay = d
		}
	}
}

// WithGenerationParams sets the per-call token cap and temperature.
func WithGenerationParams(maxTokens int, temperature float32) Option {
	return func(e *engine) {
		if maxTokens > 0 {
			e.maxTokens = maxTokens
		}
		e.temperature = temperature
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// attempts is the state carried across the regular attempts of one span.
type attempts struct {
	count       int
	corrections []prompt.Correction
	prompt      string
	// last is the most recent response, accepted or not.
	last     string
	produced bool
}

// run calls the generator until a response passes budget.Check or the
// attempts are used up. render builds the instruction from the
// corrections gathered so far. A nil error with accepted false means the
// attempts were exhausted; a non-nil error is fatal for the job.
func (e *engine) run(
	ctx context.Context,
	source string,
	budget length.Budget,
	uncapped bool,
	render func([]prompt.Correction) string,
	logAttrs ...any,
) (a attempts, out string, accepted bool, err error) {
	out, err = retry.DoWithData(
		func() (string, error) {
			a.count++
			a.prompt = render(a.corrections)

			text, err := e.gen.Generate(ctx, generate.Request{
				Source:          source,
				Instructions:    a.prompt,
				Model:           e.model,
				MaxOutputTokens: e.maxTokens,
				Temperature:     e.temperature,
			})
			if err != nil {
				if generate.IsFatal(err) || ctx.Err() != nil {
					return "", retry.Unrecoverable(err)
				}
				return "", err
			}

			text = strings.TrimSpace(text)
			a.last, a.produced = text, true
			n := length.Count(text)
			if v := budget.Check(n, uncapped); v != length.Within {
				a.corrections = append(a.corrections, prompt.NewCorrection(budget, n))
				return "", &lengthError{n: n, verdict: v}
			}
			return text, nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.maxRetries)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			var le *lengthError
			if errors.As(err, &le) {
				return 0
			}
			return e.transientDelay
		}),
		retry.OnRetry(func(n uint, err error) {
			attrs := append([]any{"attempt", n + 1, "error", err}, logAttrs...)
			e.logger.Warn("attempt rejected", attrs...)
		}),
	)
	if err == nil {
		return a, out, true, nil
	}
	if generate.IsFatal(err) || ctx.Err() != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = ctxErr
		}
		return a, "", false, err
	}
	return a, "", false, nil
}

func (e *engine) generate(ctx context.Context, source, instructions string) (string, error) {
	text, err := e.gen.Generate(ctx, generate.Request{
		Source:          source,
		Instructions:    instructions,
		Model:           e.model,
		MaxOutputTokens: e.maxTokens,
		Temperature:     e.temperature,
	})
	return strings.TrimSpace(text), err
}
