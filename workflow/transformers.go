package workflow

import (
	"fmt"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/provider"
)

// StreamToString drains a ChatProvider's lazy chunk sequence into a single
// concatenated string. A text/vision step's result is always the fully
// concatenated stream, even though the single-call HTTP endpoints expose
// streaming to their own clients (spec §9: "Stream accumulation
// semantics").
func StreamToString(chunks <-chan provider.Chunk) (string, error) {
	var out []byte
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		out = append(out, chunk.Text...)
	}
	return string(out), nil
}

// InputToChatMessages accepts a plain string (wrapped as a single user
// message), a []provider.Message, or a messageCarrier value, and rejects
// anything else with an INVALID_REQUEST-flavored error. Other types with
// a Messages field, including a decoded JSON object with a "messages"
// key, are rejected.
func InputToChatMessages(input interface{}) ([]provider.Message, error) {
	switch v := input.(type) {
	case string:
		return []provider.Message{{Role: "user", Content: v}}, nil
	case []provider.Message:
		return v, nil
	case messageCarrier:
		return v.Messages, nil
	default:
		return nil, &classify.Error{
			Message: fmt.Sprintf("cannot resolve chat input from %T: expected a string or a message list", input),
			Code:    classify.InvalidRequest,
		}
	}
}

// messageCarrier is this package's own carrier of a pre-built message
// list. The type switch in InputToChatMessages matches this named type
// only; an anonymous `struct{ Messages []provider.Message }` is a
// different type and does not match.
type messageCarrier struct {
	Messages []provider.Message
}

// InputToImageInput accepts either a plain string (used as the prompt) or
// a provider.ImageInput value, and rejects anything else.
func InputToImageInput(input interface{}) (provider.ImageInput, error) {
	switch v := input.(type) {
	case string:
		return provider.ImageInput{Prompt: v}, nil
	case provider.ImageInput:
		return v, nil
	default:
		return provider.ImageInput{}, &classify.Error{
			Message: fmt.Sprintf("cannot resolve image input from %T: expected a string or an ImageInput", input),
			Code:    classify.InvalidRequest,
		}
	}
}

// InputToVideoInput accepts either a plain string (used as the prompt) or
// a provider.VideoInput value, mirroring InputToImageInput for the video
// category's identically-shaped input.
func InputToVideoInput(input interface{}) (provider.VideoInput, error) {
	switch v := input.(type) {
	case string:
		return provider.VideoInput{Prompt: v}, nil
	case provider.VideoInput:
		return v, nil
	default:
		return provider.VideoInput{}, &classify.Error{
			Message: fmt.Sprintf("cannot resolve video input from %T: expected a string or a VideoInput", input),
			Code:    classify.InvalidRequest,
		}
	}
}

// InputToAudioInput accepts either a plain string (used as the input
// text) or a provider.AudioInput value.
func InputToAudioInput(input interface{}) (provider.AudioInput, error) {
	switch v := input.(type) {
	case string:
		return provider.AudioInput{Input: v}, nil
	case provider.AudioInput:
		return v, nil
	default:
		return provider.AudioInput{}, &classify.Error{
			Message: fmt.Sprintf("cannot resolve audio input from %T: expected a string or an AudioInput", input),
			Code:    classify.InvalidRequest,
		}
	}
}

// PreviousTextToImageInput pulls the immediately previous step's string
// result and uses it as the image prompt. It fails loudly if the
// previous result is absent or not a string. Declared as an InputResolver
// value (not a plain func) so that `Step{Input: PreviousTextToImageInput}`
// stores the named InputResolver type Step.ResolveInput asserts against,
// matching PreviousImageToVisionInput below.
var PreviousTextToImageInput InputResolver = func(_ interface{}, ctx *Context) (interface{}, error) {
	prev, ok := ctx.PreviousResult()
	if !ok {
		return nil, missingPreviousResult(ctx, "image")
	}
	text, ok := prev.(string)
	if !ok {
		return nil, wrongPreviousResultType(ctx, "image", prev)
	}
	return provider.ImageInput{Prompt: text}, nil
}

// PreviousTextToAudioInput pulls the immediately previous step's string
// result and uses it as the audio input text. See PreviousTextToImageInput
// for why this is an InputResolver value rather than a plain func.
var PreviousTextToAudioInput InputResolver = func(_ interface{}, ctx *Context) (interface{}, error) {
	prev, ok := ctx.PreviousResult()
	if !ok {
		return nil, missingPreviousResult(ctx, "audio")
	}
	text, ok := prev.(string)
	if !ok {
		return nil, wrongPreviousResultType(ctx, "audio", prev)
	}
	return provider.AudioInput{Input: text}, nil
}

// PreviousImageToVisionInput returns an InputResolver that pulls the
// immediately previous step's image result, takes its first URL, and
// assembles a vision message pairing that image URL with prompt.
func PreviousImageToVisionInput(prompt string) InputResolver {
	return func(_ interface{}, ctx *Context) (interface{}, error) {
		prev, ok := ctx.PreviousResult()
		if !ok {
			return nil, missingPreviousResult(ctx, "vision")
		}
		img, ok := prev.(provider.ImageResult)
		if !ok {
			return nil, wrongPreviousResultType(ctx, "vision", prev)
		}
		if len(img.URLs) == 0 {
			return nil, &classify.Error{
				Message: fmt.Sprintf("step %d: previous image result carries no URLs to build a vision input from", ctx.CurrentStep),
				Code:    classify.InvalidRequest,
			}
		}
		return []provider.Message{{Role: "user", Content: prompt, ImageURL: img.URLs[0]}}, nil
	}
}

func missingPreviousResult(ctx *Context, forCategory string) error {
	return &classify.Error{
		Message: fmt.Sprintf("step %d: no previous step result available to build %s input from", ctx.CurrentStep, forCategory),
		Code:    classify.InvalidRequest,
	}
}

func wrongPreviousResultType(ctx *Context, forCategory string, got interface{}) error {
	return &classify.Error{
		Message: fmt.Sprintf("step %d: previous step result has type %T, which cannot be used to build %s input", ctx.CurrentStep, got, forCategory),
		Code:    classify.InvalidRequest,
	}
}
