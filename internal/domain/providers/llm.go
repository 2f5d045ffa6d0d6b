package providers

import "context"

// VerdictProvider asks a generative model a question that must be answered
// with a single strict boolean token. Callers treat anything other than an
// exact "true" as a failing answer, and any returned error as a failing
// check (fail-closed).
type VerdictProvider interface {
	// BooleanVerdict sends the prompt, optionally preceded by conversation
	// context, and returns the model's raw reply token
	BooleanVerdict(ctx context.Context, prompt string, history string) (string, error)
}

// EmbeddingProvider computes a fixed-length embedding vector for a text.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ModerationProvider reports whether a moderation service flags a text.
type ModerationProvider interface {
	Moderate(ctx context.Context, text string) (flagged bool, err error)
}
