package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aigateway/gateway/classify"
	"github.com/aigateway/gateway/core"
	"github.com/aigateway/gateway/state"
	"github.com/aigateway/gateway/workflow"
)

// driver walks one workflow definition's steps in order for a single
// submitted execution (spec §4.5's "Driver (per workflow)").
type driver struct {
	engine *Engine
	id     string
	def    *workflow.Definition
	logger core.Logger
}

// run executes the full driver algorithm: persist running, build the
// context, arm the total timeout, walk every step, then persist the
// terminal outcome and emit its event.
func (d *driver) run(parent context.Context) {
	start := time.Now()
	if err := d.engine.store.Update(parent, d.id, func(ws *state.WorkflowStatus) {
		ws.Status = state.Running
	}); err != nil {
		d.logger.Error("failed to persist running status", map[string]interface{}{"workflow_id": d.id, "error": err.Error()})
	}

	status, err := d.engine.store.Get(parent, d.id)
	if err != nil || status == nil {
		d.logger.Error("failed to load workflow status after admission", map[string]interface{}{"workflow_id": d.id})
		return
	}

	total := d.def.TotalTimeoutMs
	if total <= 0 {
		total = int(d.engine.config.TotalTimeout.Milliseconds())
	}
	ctx := parent
	var cancel context.CancelFunc
	if total > 0 {
		ctx, cancel = context.WithTimeout(parent, time.Duration(total)*time.Millisecond)
		defer cancel()
	}

	wfCtx := workflow.NewContext(d.id, d.def.Name, status.Input)

	var lastResult interface{}
	var failStep int
	var failErr error

	for i, step := range d.def.Steps {
		wfCtx.CurrentStep = i
		lastResult, failErr = d.runStep(ctx, wfCtx, i, step)
		if failErr != nil {
			failStep = i
			break
		}
	}

	durationMs := time.Since(start).Milliseconds()

	if failErr != nil {
		d.fail(parent, failStep, durationMs, failErr)
		return
	}

	d.succeed(parent, lastResult, durationMs)
}

// runStep resolves one step's input, dispatches it to the appropriate
// failover executor, persists the outcome, and emits its event. The
// returned error, if non-nil, carries the classified (or wrapped)
// failure that should terminate the driver.
func (d *driver) runStep(ctx context.Context, wfCtx *workflow.Context, i int, step workflow.Step) (interface{}, error) {
	if step.SkipIf != nil && step.SkipIf(wfCtx) {
		d.updateStep(i, func(s *state.StepStatus) { s.Status = state.StepSkipped })
		d.emitStep(state.EventStepSkipped, i, step, map[string]interface{}{"reason": "skipIf matched"})
		return nil, nil
	}

	startedAt := time.Now()
	d.updateStep(i, func(s *state.StepStatus) {
		s.Status = state.StepRunning
		s.StartedAt = &startedAt
	})
	d.emitStep(state.EventStepStarted, i, step, nil)

	input, err := step.ResolveInput(wfCtx.Input, wfCtx)
	if err != nil {
		return nil, d.failStep(i, step, startedAt, err)
	}

	stepTimeout := step.TimeoutMs
	if stepTimeout <= 0 {
		stepTimeout = d.def.DefaultStepTimeoutMs
	}
	if stepTimeout <= 0 {
		stepTimeout = int(d.engine.config.StepTimeout.Milliseconds())
	}
	stepCtx := ctx
	var cancel context.CancelFunc
	if stepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, time.Duration(stepTimeout)*time.Millisecond)
		defer cancel()
	}

	result, service, err := dispatch(stepCtx, d.engine.registry, d.engine.config.Retry, step.Category, input)
	if err != nil {
		if stepCtx.Err() == context.DeadlineExceeded {
			err = &classify.Error{Message: fmt.Sprintf("step %q timed out", step.Name), Code: classify.Timeout, Provider: service}
		}
		return nil, d.failStep(i, step, startedAt, err)
	}

	completedAt := time.Now()
	d.updateStep(i, func(s *state.StepStatus) {
		s.Status = state.StepCompleted
		s.Service = service
		s.Result = result
		s.CompletedAt = &completedAt
		s.DurationMs = completedAt.Sub(startedAt).Milliseconds()
	})
	d.emitStep(state.EventStepComplete, i, step, map[string]interface{}{"service": service, "result": result})

	wfCtx.SetResult(i, step.Name, result)
	return result, nil
}

// failStep persists and emits a step failure, then returns the error so
// the caller can terminate the driver (spec §7: "any error ... is
// wrapped into a WorkflowError").
func (d *driver) failStep(i int, step workflow.Step, startedAt time.Time, err error) error {
	completedAt := time.Now()
	code, message, service := classifyForStep(err)

	d.updateStep(i, func(s *state.StepStatus) {
		s.Status = state.StepFailed
		s.CompletedAt = &completedAt
		s.DurationMs = completedAt.Sub(startedAt).Milliseconds()
		s.Error = &state.StepError{Message: message, Code: code}
		if service != "" {
			s.Service = service
		}
	})
	d.emitStep(state.EventStepFailed, i, step, map[string]interface{}{"error": message, "code": code})
	return err
}

func (d *driver) succeed(ctx context.Context, result interface{}, durationMs int64) {
	completedAt := time.Now()
	if err := d.engine.store.Update(ctx, d.id, func(ws *state.WorkflowStatus) {
		ws.Status = state.Completed
		ws.Result = result
		ws.CompletedAt = &completedAt
		ws.CurrentStep = ws.TotalSteps
	}); err != nil {
		d.logger.Error("failed to persist completed status", map[string]interface{}{"workflow_id": d.id, "error": err.Error()})
	}
	d.engine.store.Emit(ctx, state.Event{
		Type: state.EventWorkflowComplete, WorkflowID: d.id, Timestamp: time.Now(),
		Data: map[string]interface{}{"result": result, "durationMs": durationMs},
	})
}

func (d *driver) fail(ctx context.Context, step int, durationMs int64, cause error) {
	code, message, service := classifyForStep(cause)
	completedAt := time.Now()

	if err := d.engine.store.Update(ctx, d.id, func(ws *state.WorkflowStatus) {
		ws.Status = state.Failed
		ws.CompletedAt = &completedAt
		ws.Error = &state.WorkflowError{Message: message, Code: code, Step: step, Service: service}
	}); err != nil {
		d.logger.Error("failed to persist failed status", map[string]interface{}{"workflow_id": d.id, "error": err.Error()})
	}
	d.engine.store.Emit(ctx, state.Event{
		Type: state.EventWorkflowFailed, WorkflowID: d.id, Timestamp: time.Now(),
		Data: map[string]interface{}{"error": message, "code": code, "durationMs": durationMs},
	})
}

func (d *driver) updateStep(i int, fn func(*state.StepStatus)) {
	if err := d.engine.store.Update(context.Background(), d.id, func(ws *state.WorkflowStatus) {
		if i < 0 || i >= len(ws.Steps) {
			return
		}
		fn(&ws.Steps[i])
		if ws.Steps[i].Status == state.StepRunning {
			ws.CurrentStep = i
		}
	}); err != nil {
		d.logger.Error("failed to persist step update", map[string]interface{}{"workflow_id": d.id, "step": i, "error": err.Error()})
	}
}

func (d *driver) emitStep(eventType state.EventType, i int, step workflow.Step, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["index"] = i
	data["name"] = step.Name
	d.engine.store.Emit(context.Background(), state.Event{
		Type: eventType, WorkflowID: d.id, Timestamp: time.Now(), Data: data,
	})
}

// classifyForStep extracts a (code, message, provider) triple from a step
// failure for persistence and HTTP mapping, working whether the error is
// a *classify.Error or an arbitrary Go error.
func classifyForStep(err error) (code, message, service string) {
	var ce *classify.Error
	if errors.As(err, &ce) {
		return string(ce.Code), ce.Message, ce.Provider
	}
	return "", err.Error(), ""
}
