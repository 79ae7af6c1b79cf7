// Package state implements the workflow state manager: a durable record
// of every workflow plus an event bus keyed by workflow id, with two
// interchangeable backends (spec §4.4).
package state

import "time"

// WorkflowStatusKind is one of the workflow lifecycle states. Terminal
// states (Completed, Failed) are sticky: once reached, no field other
// than TTL bookkeeping may change.
type WorkflowStatusKind string

const (
	Pending   WorkflowStatusKind = "pending"
	Queued    WorkflowStatusKind = "queued"
	Running   WorkflowStatusKind = "running"
	Completed WorkflowStatusKind = "completed"
	Failed    WorkflowStatusKind = "failed"
)

// IsTerminal reports whether k is a terminal workflow status.
func (k WorkflowStatusKind) IsTerminal() bool {
	return k == Completed || k == Failed
}

// StepStatusKind is one of a step's lifecycle states. Skipped and the
// terminal states (Completed, Failed) are sticky.
type StepStatusKind string

const (
	StepPending   StepStatusKind = "pending"
	StepRunning   StepStatusKind = "running"
	StepCompleted StepStatusKind = "completed"
	StepFailed    StepStatusKind = "failed"
	StepSkipped   StepStatusKind = "skipped"
)

// IsTerminal reports whether k is a terminal (no further transitions
// allowed) step status.
func (k StepStatusKind) IsTerminal() bool {
	return k == StepCompleted || k == StepFailed || k == StepSkipped
}

// StepError is the error shape persisted on a failed step record.
type StepError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StepStatus is the persisted record of one step's execution.
type StepStatus struct {
	Index       int             `json:"index"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Status      StepStatusKind  `json:"status"`
	Service     string          `json:"service,omitempty"`
	Result      interface{}     `json:"result,omitempty"`
	Error       *StepError      `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	DurationMs  int64           `json:"durationMs,omitempty"`
}

// WorkflowError is the error shape persisted on a failed workflow record
// (spec §7's WorkflowError{message, code?, step, service?}).
type WorkflowError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Step    int    `json:"step"`
	Service string `json:"service,omitempty"`
}

// WorkflowStatus is the persisted record of one workflow execution, keyed
// by its UUID id.
type WorkflowStatus struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Status      WorkflowStatusKind `json:"status"`
	CurrentStep int                `json:"currentStep"`
	TotalSteps  int                `json:"totalSteps"`
	Steps       []StepStatus       `json:"steps"`
	Input       interface{}        `json:"input"`
	Result      interface{}        `json:"result,omitempty"`
	Error       *WorkflowError     `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// Clone returns a deep-enough copy of s for safe handoff across the
// writer/reader boundary (driver vs. subscribers/HTTP handlers): steps
// slice is copied so a reader can't observe a half-written mutation.
func (s *WorkflowStatus) Clone() *WorkflowStatus {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Steps = make([]StepStatus, len(s.Steps))
	copy(clone.Steps, s.Steps)
	return &clone
}

// EventType is one of the eight workflow/step lifecycle event types
// (spec §3).
type EventType string

const (
	EventWorkflowQueued   EventType = "workflow:queued"
	EventWorkflowStarted  EventType = "workflow:started"
	EventWorkflowComplete EventType = "workflow:complete"
	EventWorkflowFailed   EventType = "workflow:failed"
	EventStepStarted      EventType = "step:started"
	EventStepComplete     EventType = "step:complete"
	EventStepFailed       EventType = "step:failed"
	EventStepSkipped      EventType = "step:skipped"
)

// Event is an immutable record of a workflow state transition, broadcast
// to zero or more subscribers for its WorkflowID.
type Event struct {
	Type       EventType   `json:"type"`
	WorkflowID string      `json:"workflowId"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       interface{} `json:"data,omitempty"`
}
