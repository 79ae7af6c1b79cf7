package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/provider"
)

func chunkChannel(chunks ...provider.Chunk) <-chan provider.Chunk {
	ch := make(chan provider.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}

func TestStreamToStringConcatenates(t *testing.T) {
	out, err := StreamToString(chunkChannel(provider.Chunk{Text: "hel"}, provider.Chunk{Text: "lo"}))
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestStreamToStringPropagatesChunkError(t *testing.T) {
	boom := assert.AnError
	_, err := StreamToString(chunkChannel(provider.Chunk{Text: "ok"}, provider.Chunk{Err: boom}))
	assert.ErrorIs(t, err, boom)
}

func TestInputToChatMessagesWrapsString(t *testing.T) {
	msgs, err := InputToChatMessages("hi")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestInputToChatMessagesRejectsOther(t *testing.T) {
	_, err := InputToChatMessages(42)
	var classified *classify.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, classify.InvalidRequest, classified.Code)
}

func TestInputToImageInputAcceptsStringOrStruct(t *testing.T) {
	in, err := InputToImageInput("a red cube")
	require.NoError(t, err)
	assert.Equal(t, "a red cube", in.Prompt)

	in2, err := InputToImageInput(provider.ImageInput{Prompt: "x", Options: map[string]interface{}{"size": "512"}})
	require.NoError(t, err)
	assert.Equal(t, "x", in2.Prompt)
}

func TestPreviousTextToImageInputPullsPreviousStep(t *testing.T) {
	ctx := NewContext("w1", "demo", "ignored")
	ctx.SetResult(0, "describe", "a red cube")
	ctx.CurrentStep = 1

	out, err := PreviousTextToImageInput(nil, ctx)
	require.NoError(t, err)
	assert.Equal(t, provider.ImageInput{Prompt: "a red cube"}, out)
}

func TestPreviousTextToImageInputFailsWhenAbsent(t *testing.T) {
	ctx := NewContext("w1", "demo", "ignored")
	ctx.CurrentStep = 1

	_, err := PreviousTextToImageInput(nil, ctx)
	var classified *classify.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, classify.InvalidRequest, classified.Code)
}

func TestPreviousTextToImageInputResolvesUnwrappedAsStepInput(t *testing.T) {
	ctx := NewContext("w1", "demo", "ignored")
	ctx.SetResult(0, "describe", "a red cube")
	ctx.CurrentStep = 1

	step := Step{Name: "draw", Category: provider.Image, Input: PreviousTextToImageInput}
	out, err := step.ResolveInput("ignored", ctx)
	require.NoError(t, err)
	assert.Equal(t, provider.ImageInput{Prompt: "a red cube"}, out)
}

func TestPreviousImageToVisionInputAssemblesMessage(t *testing.T) {
	ctx := NewContext("w1", "demo", "ignored")
	ctx.SetResult(0, "generate", provider.ImageResult{URLs: []string{"https://x/img.png"}})
	ctx.CurrentStep = 1

	resolver := PreviousImageToVisionInput("describe this image")
	out, err := resolver(nil, ctx)
	require.NoError(t, err)

	msgs, ok := out.([]provider.Message)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "https://x/img.png", msgs[0].ImageURL)
	assert.Equal(t, "describe this image", msgs[0].Content)
}

func TestPreviousImageToVisionInputFailsOnNoURLs(t *testing.T) {
	ctx := NewContext("w1", "demo", "ignored")
	ctx.SetResult(0, "generate", provider.ImageResult{})
	ctx.CurrentStep = 1

	_, err := PreviousImageToVisionInput("describe")(nil, ctx)
	require.Error(t, err)
}
