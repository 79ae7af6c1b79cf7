// Package engine implements the workflow executor: the admission queue,
// bounded concurrency pool, and per-workflow driver that evaluates steps
// in order (spec §4.5).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/failover"
	"github.com/aigateway/gateway/provider"
	"github.com/aigateway/gateway/state"
	"github.com/aigateway/gateway/workflow"
)

// Config bounds and times an Engine's execution (spec §6.4).
type Config struct {
	MaxConcurrent int
	StepTimeout   time.Duration
	TotalTimeout  time.Duration
	Retry         failover.Config
}

// Engine is the process-wide workflow executor: constructor state holding
// the config, the state store, the FIFO admission queue, and the set of
// currently running workflow ids (spec §4.5's "Constructor state").
// The registry, state store, and engine itself are explicit long-lived
// values owned by the entry point and passed down rather than package
// singletons (spec §9), so tests can construct private instances.
type Engine struct {
	config   Config
	store    state.Store
	registry *provider.Registry
	logger   core.Logger

	mu          sync.Mutex
	definitions map[string]*workflow.Definition
	running     map[string]struct{}
	queue       []queuedJob
}

type queuedJob struct {
	id   string
	name string
}

// New constructs an Engine against store and registry.
func New(config Config, store state.Store, registry *provider.Registry, logger core.Logger) *Engine {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 5
	}
	return &Engine{
		config:      config,
		store:       store,
		registry:    registry,
		logger:      logger,
		definitions: make(map[string]*workflow.Definition),
		running:     make(map[string]struct{}),
	}
}

// RegisterDefinition makes def submittable by name. Last write wins if
// registered twice under the same name.
func (e *Engine) RegisterDefinition(def *workflow.Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.definitions[def.Name] = def
}

// Definitions returns every registered definition, for the
// GET /workflow introspection route (spec §6.1).
func (e *Engine) Definitions() []*workflow.Definition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*workflow.Definition, 0, len(e.definitions))
	for _, d := range e.definitions {
		out = append(out, d)
	}
	return out
}

// Stats reports current admission-queue occupancy, for GET /workflow.
func (e *Engine) Stats() (running, queued int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running), len(e.queue)
}

// Submit admits or queues a new execution of the definition named name
// with input, per spec §4.5's Submit algorithm. It returns the new
// workflow id immediately; the driver (if admitted) or the queue entry
// (otherwise) proceeds asynchronously.
func (e *Engine) Submit(ctx context.Context, name string, input interface{}) (string, error) {
	e.mu.Lock()
	def, ok := e.definitions[name]
	e.mu.Unlock()
	if !ok {
		return "", core.ErrDefinitionNotFound
	}

	id := uuid.New().String()
	now := time.Now()
	steps := make([]state.StepStatus, len(def.Steps))
	for i, s := range def.Steps {
		steps[i] = state.StepStatus{Index: i, Name: s.Name, Category: string(s.Category), Status: state.StepPending}
	}
	status := &state.WorkflowStatus{
		ID:         id,
		Name:       name,
		Status:     state.Pending,
		TotalSteps: len(def.Steps),
		Steps:      steps,
		Input:      input,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.Create(ctx, status); err != nil {
		return "", err
	}

	e.mu.Lock()
	admit := len(e.running) < e.config.MaxConcurrent
	if admit {
		e.running[id] = struct{}{}
	} else {
		e.queue = append(e.queue, queuedJob{id: id, name: name})
		position := len(e.queue)
		e.mu.Unlock()

		if err := e.store.Update(ctx, id, func(ws *state.WorkflowStatus) { ws.Status = state.Queued }); err != nil {
			e.logger.Error("failed to persist queued status", map[string]interface{}{"workflow_id": id, "error": err.Error()})
		}
		e.store.Emit(ctx, state.Event{Type: state.EventWorkflowQueued, WorkflowID: id, Timestamp: time.Now(),
			Data: map[string]interface{}{"name": name, "position": position}})
		return id, nil
	}
	e.mu.Unlock()

	e.admit(id, def)
	return id, nil
}

// admit marks a job as running, emits workflow:started, and launches its
// driver in its own goroutine. Called both from Submit (immediate
// admission) and from drainQueue (admission on capacity freeing up).
func (e *Engine) admit(id string, def *workflow.Definition) {
	e.store.Emit(context.Background(), state.Event{
		Type: state.EventWorkflowStarted, WorkflowID: id, Timestamp: time.Now(),
		Data: map[string]interface{}{"name": def.Name, "totalSteps": len(def.Steps)},
	})

	go e.runDriver(id, def)
}

// runDriver is the per-workflow task launched by admit. It always
// removes id from running and drains the queue on exit, regardless of
// outcome (spec §4.5 step 6).
func (e *Engine) runDriver(id string, def *workflow.Definition) {
	defer e.finish(id)

	d := &driver{
		engine: e,
		id:     id,
		def:    def,
		logger: e.logger,
	}
	d.run(context.Background())
}

func (e *Engine) finish(id string) {
	e.mu.Lock()
	delete(e.running, id)
	e.mu.Unlock()
	e.drainQueue()
}

// drainQueue admits queued jobs while capacity allows, per spec §4.5's
// "Queue processing": on every driver exit, drain the head of the queue
// while there is capacity.
func (e *Engine) drainQueue() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 || len(e.running) >= e.config.MaxConcurrent {
			e.mu.Unlock()
			return
		}
		job := e.queue[0]
		e.queue = e.queue[1:]

		def, ok := e.definitions[job.name]
		if !ok {
			e.mu.Unlock()
			continue
		}
		e.running[job.id] = struct{}{}
		e.mu.Unlock()

		e.admit(job.id, def)
	}
}
