package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/alnah/go-retell/internal/apierr"
	"github.com/alnah/go-retell/internal/config"
	"github.com/alnah/go-retell/internal/generate"
	"github.com/alnah/go-retell/internal/job"
	"github.com/alnah/go-retell/internal/lang"
	"github.com/alnah/go-retell/internal/pipeline"
	"github.com/alnah/go-retell/internal/template"
)

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.
var (
	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrMissingTarget indicates neither --target nor a job file gave a length.
	ErrMissingTarget = errors.New("target length is required")

	// ErrNothingRewritten indicates every span kept its source text.
	ErrNothingRewritten = errors.New("no span could be rewritten")
)

// Exit codes.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitSetup      = 3
	ExitValidation = 4
	ExitGeneration = 5
	ExitInterrupt  = 130
)

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Cobra doesn't expose typed errors, so usage errors are matched on
	// their messages.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	if errors.Is(err, generate.ErrMissingCredential) || errors.Is(err, generate.ErrUnknownModel) ||
		errors.Is(err, generate.ErrEmptyAPIKey) {
		return ExitSetup
	}

	if errors.Is(err, job.ErrInvalidJob) || errors.Is(err, pipeline.ErrEmptySource) ||
		errors.Is(err, pipeline.ErrInvalidTarget) || errors.Is(err, pipeline.ErrInvalidConfig) ||
		errors.Is(err, template.ErrUnknown) || errors.Is(err, lang.ErrInvalid) ||
		errors.Is(err, config.ErrUnknownKey) || errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrOutputExists) || errors.Is(err, ErrMissingTarget) {
		return ExitValidation
	}

	if errors.Is(err, generate.ErrGeneration) || errors.Is(err, ErrNothingRewritten) ||
		errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, apierr.ErrAuthFailed) ||
		errors.Is(err, apierr.ErrBadRequest) {
		return ExitGeneration
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate
// Cobra usage errors (tested with v1.8+).
var cobraUsageErrorPatterns = []string{
	"required flag",
	"unknown flag",
	"unknown shorthand",
	"unknown command",
	"flag needs an argument",
	"invalid argument",
	"if any flags in the group",
	"accepts ",
	"requires at least",
	"requires at most",
}

func isCobraUsageError(err error) bool {
	msg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
