package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/state"
	"github.com/aigateway/gateway/transport/sse"
)

// handleWorkflowRoot serves GET /workflow: the registered-definitions and
// admission-queue introspection route (spec §6.1):
// {workflows:[{name,description?,steps(count)}], queue, running}.
func (s *Server) handleWorkflowRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	defs := s.engine.Definitions()
	workflows := make([]map[string]interface{}, 0, len(defs))
	for _, d := range defs {
		entry := map[string]interface{}{
			"name":  d.Name,
			"steps": len(d.Steps),
		}
		if d.Description != "" {
			entry["description"] = d.Description
		}
		workflows = append(workflows, entry)
	}

	running, queued := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": workflows,
		"queue":     queued,
		"running":   running,
	})
}

// handleWorkflowHistory serves GET /workflow/history?status=&limit= — a
// list of workflow statuses, newest first (spec §6.1).
func (s *Server) handleWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	filter := state.ListFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = state.WorkflowStatusKind(status)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "ValidationError", "invalid limit", "", "INVALID_REQUEST")
			return
		}
		filter.Limit = n
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list workflow history", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "InternalError", "Internal server error", "", "")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handleWorkflowByID routes everything under /workflow/<rest>: a bare
// name is a submit target (POST), an id suffixed with /status or /stream
// addresses a running or finished execution (spec §6.1). This mirrors the
// teacher's orchestration/task_api.go prefix-dispatch style rather than
// Go's newer path-pattern ServeMux syntax.
func (s *Server) handleWorkflowByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/workflow/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "NotFoundError", "not found", "", "INVALID_REQUEST")
		return
	}

	switch {
	case strings.HasSuffix(rest, "/status"):
		s.handleWorkflowStatus(w, r, strings.TrimSuffix(rest, "/status"))
	case strings.HasSuffix(rest, "/stream"):
		s.handleWorkflowStream(w, r, strings.TrimSuffix(rest, "/stream"))
	default:
		s.handleWorkflowSubmit(w, r, rest)
	}
}

// handleWorkflowSubmit serves POST /workflow/:name. Body {input}.
// Response 202 {workflowId, name, status, statusUrl, streamUrl}.
func (s *Server) handleWorkflowSubmit(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	var req struct {
		Input interface{} `json:"input"`
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ValidationError", "failed to read request body", "", "INVALID_REQUEST")
		return
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			writeError(w, http.StatusBadRequest, "ValidationError", "invalid JSON body", "", "INVALID_REQUEST")
			return
		}
	}

	id, err := s.engine.Submit(r.Context(), name, req.Input)
	if err != nil {
		if err == core.ErrDefinitionNotFound {
			writeError(w, http.StatusNotFound, "NotFoundError", fmt.Sprintf("no workflow definition named %q", name), "", "INVALID_REQUEST")
			return
		}
		s.logger.Error("failed to submit workflow", map[string]interface{}{"name": name, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "InternalError", "Internal server error", "", "")
		return
	}

	status, err := s.store.Get(r.Context(), id)
	statusKind := state.Pending
	if err == nil && status != nil {
		statusKind = status.Status
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"workflowId": id,
		"name":       name,
		"status":     statusKind,
		"statusUrl":  fmt.Sprintf("/workflow/%s/status", id),
		"streamUrl":  fmt.Sprintf("/workflow/%s/stream", id),
	})
}

// handleWorkflowStatus serves GET /workflow/:id/status: the full
// WorkflowStatus JSON, or 404 if unknown (spec §6.1).
func (s *Server) handleWorkflowStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	status, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to load workflow status", map[string]interface{}{"workflow_id": id, "error": err.Error()})
		writeError(w, http.StatusInternalServerError, "InternalError", "Internal server error", "", "")
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, "NotFoundError", "workflow not found", "", "INVALID_REQUEST")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleWorkflowStream serves GET /workflow/:id/stream: server-sent
// events via transport/sse.Writer (spec §6.1, §6.2).
func (s *Server) handleWorkflowStream(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}
	sse.Writer(r.Context(), w, s.store, id, s.logger)
}
