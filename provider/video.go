package provider

import "context"

// VideoInput is the video category's input: a prompt plus open-ended
// provider options.
type VideoInput struct {
	Prompt  string                 `json:"prompt"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// VideoResult is a structured video-generation result.
type VideoResult struct {
	URLs     []string               `json:"urls"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// VideoProvider is the operation signature for the video category.
type VideoProvider interface {
	Provider
	Generate(ctx context.Context, input VideoInput) (VideoResult, error)
}
