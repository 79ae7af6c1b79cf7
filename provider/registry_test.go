package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatProvider struct {
	name string
}

func (f *fakeChatProvider) Name() string          { return f.name }
func (f *fakeChatProvider) Category() Category    { return Text }
func (f *fakeChatProvider) Stream(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	ch := make(chan Chunk, 1)
	ch <- Chunk{Text: "ok"}
	close(ch)
	return ch, nil
}

func TestRegisterPreservesOrder(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeChatProvider{name: "A"}
	b := &fakeChatProvider{name: "B"}
	r.Register(a).Register(b)

	all := r.GetAll(Text)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Name())
	assert.Equal(t, "B", all[1].Name())
}

func TestRegisterOverridesSameName(t *testing.T) {
	r := NewRegistry(nil)
	a1 := &fakeChatProvider{name: "A"}
	a2 := &fakeChatProvider{name: "A"}
	r.Register(a1).Register(a2)

	all := r.GetAll(Text)
	require.Len(t, all, 1)
	assert.Same(t, a2, all[0])
}

func TestGetAllNeverNil(t *testing.T) {
	r := NewRegistry(nil)
	all := r.GetAll(Image)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestGetNextRoundRobin(t *testing.T) {
	r := NewRegistry(nil)
	a := &fakeChatProvider{name: "A"}
	b := &fakeChatProvider{name: "B"}
	r.Register(a).Register(b)

	first, err := r.GetNext(Text)
	require.NoError(t, err)
	second, err := r.GetNext(Text)
	require.NoError(t, err)
	third, err := r.GetNext(Text)
	require.NoError(t, err)

	assert.Equal(t, "A", first.Name())
	assert.Equal(t, "B", second.Name())
	assert.Equal(t, "A", third.Name(), "cursor wraps modulo list length")
}

func TestGetNextEmptyCategoryFails(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.GetNext(Video)
	require.Error(t, err)
}

func TestHasCategoryAndStats(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.HasCategory(Text))
	r.Register(&fakeChatProvider{name: "A"})
	assert.True(t, r.HasCategory(Text))
	assert.Equal(t, 1, r.GetStats()[Text])
}
