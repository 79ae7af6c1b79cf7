package provider

import "context"

// AudioInput is the audio category's input: an input string (text to
// synthesize, or a source reference) plus open-ended provider options.
type AudioInput struct {
	Input   string                 `json:"input"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// AudioResult is a structured audio result: a URL plus its duration.
type AudioResult struct {
	URL        string `json:"url"`
	DurationMs int64  `json:"duration_ms"`
}

// AudioProvider is the operation signature for the audio category.
type AudioProvider interface {
	Provider
	Generate(ctx context.Context, input AudioInput) (AudioResult, error)
}
