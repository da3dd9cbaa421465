package llm

import "context"

// Generator performs one round trip to a chat completion service that is
// constrained to return a single JSON object. It never retries.
type Generator interface {
	// Generate returns the raw completion text.
	Generate(ctx context.Context, system, user string) (string, error)
	// Model is the fixed model identifier used for every call.
	Model() string
}
