package provider

import "context"

// ImageInput is the image category's input: a prompt plus open-ended
// provider options (size, style, seed, ...).
type ImageInput struct {
	Prompt  string                 `json:"prompt"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ImageResult is a structured image-generation result (spec §6.1's
// POST /image response shape, minus the "service" field added by the
// HTTP handler).
type ImageResult struct {
	URLs          []string               `json:"urls"`
	RevisedPrompt string                 `json:"revised_prompt,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// ImageProvider is the operation signature for the image category.
type ImageProvider interface {
	Provider
	Generate(ctx context.Context, input ImageInput) (ImageResult, error)
}
