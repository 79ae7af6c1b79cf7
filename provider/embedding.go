package provider

import "context"

// EmbeddingInput is the embedding category's input.
type EmbeddingInput struct {
	Text string
}

// EmbeddingResult carries the resulting vector.
type EmbeddingResult struct {
	Vector []float64
}

// EmbeddingProvider is the operation signature for the embedding category.
// Embedding has no dedicated HTTP route, workflow transformer or workflow
// dispatch arm in this gateway (spec §6.1 lists no /embedding route), but
// the category is a first-class registry member like the other five, so
// it gets the same typed seam. No test exercises it.
type EmbeddingProvider interface {
	Provider
	Embed(ctx context.Context, input EmbeddingInput) (EmbeddingResult, error)
}
