package sse

import (
	"bufio"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aigateway/gateway/state"
)

func TestWriterMissingWorkflowEmitsErrorAndCloses(t *testing.T) {
	store := state.NewMemoryStore(time.Hour, nil)
	defer store.Close()

	rec := httptest.NewRecorder()
	Writer(context.Background(), rec, store, "missing", nil)

	body := rec.Body.String()
	assert.Contains(t, body, "event: error")
	assert.Contains(t, body, "workflow not found")
}

func TestWriterTerminalStatusClosesImmediately(t *testing.T) {
	store := state.NewMemoryStore(time.Hour, nil)
	defer store.Close()
	require.NoError(t, store.Create(context.Background(), &state.WorkflowStatus{
		ID: "w1", Status: state.Completed, TotalSteps: 0,
	}))

	rec := httptest.NewRecorder()
	Writer(context.Background(), rec, store, "w1", nil)

	body := rec.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: status")
	assert.NotContains(t, body, "workflow:complete")
}

func TestWriterForwardsLiveEventsThenClosesOnTerminal(t *testing.T) {
	store := state.NewMemoryStore(time.Hour, nil)
	defer store.Close()
	require.NoError(t, store.Create(context.Background(), &state.WorkflowStatus{
		ID: "w1", Status: state.Running, TotalSteps: 1,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		Writer(ctx, rec, store, "w1", nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	store.Emit(context.Background(), state.Event{Type: state.EventStepStarted, WorkflowID: "w1", Timestamp: time.Now()})
	store.Emit(context.Background(), state.Event{Type: state.EventWorkflowComplete, WorkflowID: "w1", Timestamp: time.Now()})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Writer did not close after a terminal event")
	}

	body := rec.Body.String()
	scanner := bufio.NewScanner(strings.NewReader(body))
	var eventLines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLines = append(eventLines, strings.TrimPrefix(line, "event: "))
		}
	}
	require.Equal(t, []string{"connected", "status", "step:started", "workflow:complete"}, eventLines)
}
