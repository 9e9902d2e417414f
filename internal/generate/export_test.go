package generate

// Exports for testing. These allow black-box tests to inject dependencies
// without widening the public API.

var (
	WithChatCompleter      = withChatCompleter
	WithDeepSeekHTTPClient = withDeepSeekHTTPClient
	WithGeminiHTTPClient   = withGeminiHTTPClient

	ClassifyOpenAIError = classifyOpenAIError
)

// ChatCompleter exposes the client seam to tests.
type ChatCompleter = chatCompleter
