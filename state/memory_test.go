package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigateway/gateway/core"
)

func newTestStatus(id string) *WorkflowStatus {
	now := time.Now()
	return &WorkflowStatus{
		ID:         id,
		Name:       "demo",
		Status:     Pending,
		TotalSteps: 1,
		Steps:      []StepStatus{{Index: 0, Name: "step-1", Status: StepPending}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestStatus("w1")))

	got, err := s.Get(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "w1", got.ID)
}

func TestMemoryStoreCreateDuplicateFails(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newTestStatus("w1")))
	err := s.Create(ctx, newTestStatus("w1"))
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
}

func TestMemoryStoreGetMissingReturnsNilNil(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()

	got, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreUpdateSetsUpdatedAt(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTestStatus("w1")))

	before, _ := s.Get(ctx, "w1")

	err := s.Update(ctx, "w1", func(ws *WorkflowStatus) {
		ws.Status = Running
	})
	require.NoError(t, err)

	after, _ := s.Get(ctx, "w1")
	assert.Equal(t, Running, after.Status)
	assert.True(t, !after.UpdatedAt.Before(before.UpdatedAt))
}

func TestMemoryStoreUpdateMissingIsNoOp(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	err := s.Update(context.Background(), "missing", func(ws *WorkflowStatus) { ws.Status = Running })
	assert.NoError(t, err)
}

func TestMemoryStoreSubscribeDeliversInOrder(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()

	var received []EventType
	unsub := s.Subscribe("w1", func(e Event) {
		received = append(received, e.Type)
	})

	s.Emit(context.Background(), Event{Type: EventWorkflowStarted, WorkflowID: "w1"})
	s.Emit(context.Background(), Event{Type: EventStepStarted, WorkflowID: "w1"})
	s.Emit(context.Background(), Event{Type: EventWorkflowComplete, WorkflowID: "w1"})

	unsub()
	s.Emit(context.Background(), Event{Type: EventStepStarted, WorkflowID: "w1"})

	require.Equal(t, []EventType{EventWorkflowStarted, EventStepStarted, EventWorkflowComplete}, received)
}

func TestMemoryStoreUnsubscribeIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()

	unsub := s.Subscribe("w1", func(e Event) {})
	unsub()
	assert.NotPanics(t, func() { unsub() })
}

func TestMemoryStoreOneSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()

	var secondCalled bool
	s.Subscribe("w1", func(e Event) { panic("boom") })
	s.Subscribe("w1", func(e Event) { secondCalled = true })

	assert.NotPanics(t, func() {
		s.Emit(context.Background(), Event{Type: EventWorkflowStarted, WorkflowID: "w1"})
	})
	assert.True(t, secondCalled)
}

func TestMemoryStoreListSortedNewestFirstAndFiltered(t *testing.T) {
	s := NewMemoryStore(time.Hour, nil)
	defer s.Close()
	ctx := context.Background()

	older := newTestStatus("w1")
	older.CreatedAt = time.Now().Add(-time.Hour)
	older.Status = Completed
	newer := newTestStatus("w2")
	newer.Status = Running

	require.NoError(t, s.Create(ctx, older))
	require.NoError(t, s.Create(ctx, newer))

	all, err := s.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "w2", all[0].ID)

	completedOnly, err := s.List(ctx, ListFilter{Status: Completed})
	require.NoError(t, err)
	require.Len(t, completedOnly, 1)
	assert.Equal(t, "w1", completedOnly[0].ID)
}

func TestMemoryStoreCleanupRemovesOnlyStaleTerminal(t *testing.T) {
	s := NewMemoryStore(50*time.Millisecond, nil)
	defer s.Close()
	ctx := context.Background()

	stale := newTestStatus("stale")
	stale.Status = Completed
	stale.UpdatedAt = time.Now().Add(-time.Hour)

	fresh := newTestStatus("fresh")
	fresh.Status = Running

	require.NoError(t, s.Create(ctx, stale))
	require.NoError(t, s.Create(ctx, fresh))

	require.NoError(t, s.Cleanup(ctx))
	require.NoError(t, s.Cleanup(ctx)) // idempotent on a quiescent store

	_, err := s.Get(ctx, "stale")
	require.NoError(t, err)
	got, err := s.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	gotFresh, err := s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, gotFresh)
}
