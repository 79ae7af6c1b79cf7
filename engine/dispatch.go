package engine

import (
	"context"
	"fmt"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/failover"
	"github.com/aigateway/gateway/provider"
	"github.com/aigateway/gateway/workflow"
)

// dispatch resolves category to the matching failover executor and
// invokes it, returning the step's persistable result and the serving
// provider's name (spec §4.5 step 3e: "Dispatch by category to the
// corresponding failover executor"). This is the tagged-variant dispatch
// spec §9's Design Notes recommend: one switch arm per category, each
// calling a monomorphic executor. Embedding has no arm; it falls to the
// default arm and fails with INVALID_REQUEST.
func dispatch(ctx context.Context, registry *provider.Registry, retry failover.Config, category provider.Category, input interface{}) (interface{}, string, error) {
	switch category {
	case provider.Text, provider.Vision:
		return dispatchChat(ctx, registry, retry, category, input)
	case provider.Image:
		return dispatchImage(ctx, registry, retry, input)
	case provider.Video:
		return dispatchVideo(ctx, registry, retry, input)
	case provider.Audio:
		return dispatchAudio(ctx, registry, retry, input)
	default:
		return nil, "", &classify.Error{
			Message: fmt.Sprintf("category %q has no workflow dispatch arm", category),
			Code:    classify.InvalidRequest,
		}
	}
}

func dispatchChat(ctx context.Context, registry *provider.Registry, retry failover.Config, category provider.Category, input interface{}) (interface{}, string, error) {
	messages, err := workflow.InputToChatMessages(input)
	if err != nil {
		return nil, "", err
	}

	exec := failover.New[provider.ChatProvider, <-chan provider.Chunk](registry, category, retry, nil)
	chunks, service, err := exec.Execute(ctx, func(ctx context.Context, p provider.ChatProvider) (<-chan provider.Chunk, error) {
		return p.Stream(ctx, messages)
	})
	if err != nil {
		return nil, "", err
	}

	// Per spec §9 ("Stream accumulation semantics"), a text/vision step's
	// result is the fully concatenated stream: drained synchronously
	// before the step is considered complete, even though the single-call
	// HTTP endpoints stream the same provider call to their own clients.
	text, err := workflow.StreamToString(chunks)
	if err != nil {
		return nil, service, classify.Classify(err, service)
	}
	return text, service, nil
}

func dispatchImage(ctx context.Context, registry *provider.Registry, retry failover.Config, input interface{}) (interface{}, string, error) {
	imgInput, err := workflow.InputToImageInput(input)
	if err != nil {
		return nil, "", err
	}
	exec := failover.New[provider.ImageProvider, provider.ImageResult](registry, provider.Image, retry, nil)
	return exec.Execute(ctx, func(ctx context.Context, p provider.ImageProvider) (provider.ImageResult, error) {
		return p.Generate(ctx, imgInput)
	})
}

func dispatchVideo(ctx context.Context, registry *provider.Registry, retry failover.Config, input interface{}) (interface{}, string, error) {
	vidInput, err := workflow.InputToVideoInput(input)
	if err != nil {
		return nil, "", err
	}
	exec := failover.New[provider.VideoProvider, provider.VideoResult](registry, provider.Video, retry, nil)
	return exec.Execute(ctx, func(ctx context.Context, p provider.VideoProvider) (provider.VideoResult, error) {
		return p.Generate(ctx, vidInput)
	})
}

func dispatchAudio(ctx context.Context, registry *provider.Registry, retry failover.Config, input interface{}) (interface{}, string, error) {
	audioInput, err := workflow.InputToAudioInput(input)
	if err != nil {
		return nil, "", err
	}
	exec := failover.New[provider.AudioProvider, provider.AudioResult](registry, provider.Audio, retry, nil)
	return exec.Execute(ctx, func(ctx context.Context, p provider.AudioProvider) (provider.AudioResult, error) {
		return p.Generate(ctx, audioInput)
	})
}
