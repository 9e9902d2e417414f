package generate

import "errors"

var (
	// ErrMissingCredential indicates the API key for the selected provider is not set.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrGeneration indicates a generation call failed after all retries.
	ErrGeneration = errors.New("generation failed")

	// ErrUnknownModel indicates no provider serves the requested model.
	ErrUnknownModel = errors.New("unknown model")

	// ErrEmptyAPIKey indicates a backend was constructed without a key.
	ErrEmptyAPIKey = errors.New("API key is required")
)
