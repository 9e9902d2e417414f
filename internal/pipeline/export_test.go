package pipeline

// WithNow exports withNow for testing.
var WithNow = withNow
