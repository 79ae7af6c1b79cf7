// Package server maps the HTTP surface (spec §6) onto the failover
// executor and workflow engine. It is deliberately thin: every route is a
// handful of lines gluing request parsing to the executor contract, in
// the same style as the teacher's orchestration/task_api.go handler.
package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/engine"
	"github.com/aigateway/gateway/failover"
	"github.com/aigateway/gateway/provider"
	"github.com/aigateway/gateway/state"
)

// Server holds the dependencies every handler needs: the provider
// registry (for single-call endpoints and introspection), the workflow
// engine, the state store (for status/history/stream routes), and the
// retry config single-call endpoints build their own Executor from
// (spec §9: "explicit long-lived values owned by the entry point").
type Server struct {
	name      string
	startTime time.Time
	registry  *provider.Registry
	engine    *engine.Engine
	store     state.Store
	retry     failover.Config
	apiKey    string
	cors      *core.CORSConfig
	logger    core.Logger
}

// New constructs a Server. name identifies this gateway instance in the
// GET / health body, matching the teacher's core/agent.go convention of
// reporting name and uptime. apiKey empty disables bearer auth entirely
// (spec §6.4).
func New(name string, registry *provider.Registry, eng *engine.Engine, store state.Store, retry failover.Config, apiKey string, cors *core.CORSConfig, logger core.Logger) *Server {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Server{
		name:      name,
		startTime: time.Now(),
		registry:  registry,
		engine:    eng,
		store:     store,
		retry:     retry,
		apiKey:    apiKey,
		cors:      cors,
		logger:    logger,
	}
}

// Handler assembles the full route table wrapped in auth, then CORS,
// then logging, then request-id middleware (innermost to outermost).
// CORS wraps auth so a preflight OPTIONS request is answered by
// CORSMiddleware directly and never reaches the bearer check.
// requestIDMiddleware is outermost so the enriched context it builds is
// what core.LoggingMiddleware sees when it logs the request.
func (s *Server) Handler(devMode bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/text", s.handleChat)
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/vision", s.handleVision)
	mux.HandleFunc("/image", s.handleImage)
	mux.HandleFunc("/video", s.handleVideo)
	mux.HandleFunc("/audio", s.handleAudio)
	mux.HandleFunc("/workflow", s.handleWorkflowRoot)
	mux.HandleFunc("/workflow/history", s.handleWorkflowHistory)
	mux.HandleFunc("/workflow/", s.handleWorkflowByID)

	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	if s.cors != nil {
		handler = core.CORSMiddleware(s.cors)(handler)
	}
	handler = core.LoggingMiddleware(s.logger, devMode)(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// authMiddleware enforces bearer auth on every route except GET / (spec
// §6.1). Disabled entirely when no API key is configured (spec §6.4).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || token != s.apiKey {
			writeError(w, http.StatusUnauthorized, "AuthenticationError", "missing or invalid bearer token", "", "AUTH_FAILED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth serves GET / — health and registry introspection
// (spec §6.1).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed", "", "INVALID_REQUEST")
		return
	}

	stats := s.registry.GetStats()
	categories := make(map[string]int, len(stats))
	for cat, count := range stats {
		categories[string(cat)] = count
	}

	running, queued := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"name":       s.name,
		"uptime":     time.Since(s.startTime).String(),
		"categories": categories,
		"workflow": map[string]interface{}{
			"running": running,
			"queued":  queued,
		},
	})
}
