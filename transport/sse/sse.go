// Package sse implements the server-sent-event protocol the workflow
// stream endpoint speaks to its subscribers (spec §6.2).
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/state"
)

// unsubscribeGrace is the brief pause after a terminal event before the
// server unsubscribes and closes, per spec §6.2 step 5 ("waits a brief
// grace (~100 ms)").
const unsubscribeGrace = 100 * time.Millisecond

// Writer streams one workflow's event lifecycle to w following spec
// §6.2's exact connection lifecycle. It is grounded on the teacher's own
// SSE transport's frame format (`event: <type>\ndata: <json>\n\n`,
// flush-per-event, `X-Accel-Buffering: no` to defeat proxy buffering).
func Writer(ctx context.Context, w http.ResponseWriter, store state.Store, workflowID string, logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send(w, flusher, "connected", map[string]interface{}{"workflowId": workflowID, "timestamp": time.Now()})

	status, err := store.Get(ctx, workflowID)
	if err != nil {
		logger.Error("sse: failed to load workflow status", map[string]interface{}{"workflow_id": workflowID, "error": err.Error()})
		send(w, flusher, "error", map[string]interface{}{"message": "failed to load workflow status"})
		return
	}
	if status == nil {
		send(w, flusher, "error", map[string]interface{}{"message": "workflow not found"})
		return
	}

	send(w, flusher, "status", status)
	if status.Status.IsTerminal() {
		return
	}

	events := make(chan state.Event, 16)
	done := make(chan struct{})
	unsubscribe := store.Subscribe(workflowID, func(e state.Event) {
		select {
		case events <- e:
		case <-done:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			close(done)
			return
		case e := <-events:
			send(w, flusher, string(e.Type), e)
			if isTerminalEvent(e.Type) {
				select {
				case <-time.After(unsubscribeGrace):
				case <-ctx.Done():
				}
				close(done)
				return
			}
		}
	}
}

func isTerminalEvent(t state.EventType) bool {
	return t == state.EventWorkflowComplete || t == state.EventWorkflowFailed
}

// send writes one SSE frame and flushes it immediately. A write error
// (most commonly the client having disconnected) is not logged here: the
// caller's next operation — the next select iteration's ctx.Done() check
// — will observe the disconnection and stop pushing further frames.
func send(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
