package state

import "context"

// Subscriber is a callback registered against a workflow id. Delivery is
// best-effort: a callback that panics is recovered and logged, and the
// remaining subscribers still receive the event. Callbacks run
// synchronously on the emitter's goroutine in registration order, so a
// callback that blocks delays the subscribers after it and the emitter.
type Subscriber func(Event)

// Unsubscribe releases a previously registered Subscriber. It is
// idempotent: calling it more than once is a no-op.
type Unsubscribe func()

// ListFilter narrows a List call.
type ListFilter struct {
	Status WorkflowStatusKind
	Limit  int
}

// Updater mutates a WorkflowStatus in place; Update applies it to the
// currently stored record and persists the result with UpdatedAt
// refreshed to now. When no record is stored for the id, Update returns
// without calling it. This is the Go
// rendering of spec §4.4's "merge partial over record": rather than an
// untyped partial-object merge, callers express the change as code.
type Updater func(*WorkflowStatus)

// Store is the abstract contract both state backends implement
// (spec §4.4).
type Store interface {
	// Create persists a new record. Fails with core.ErrAlreadyExists if
	// the id is already present.
	Create(ctx context.Context, status *WorkflowStatus) error

	// Get returns the record for id, or (nil, nil) if absent.
	Get(ctx context.Context, id string) (*WorkflowStatus, error)

	// Update applies fn over the stored record and persists it, setting
	// UpdatedAt to now. A no-op if id is missing.
	Update(ctx context.Context, id string, fn Updater) error

	// Delete removes the record and drops its subscribers.
	Delete(ctx context.Context, id string) error

	// Emit delivers event to every subscriber registered for
	// event.WorkflowID. Best-effort: one subscriber's failure must not
	// block delivery to the others.
	Emit(ctx context.Context, event Event)

	// Subscribe registers cb against id and returns an idempotent
	// unsubscribe function.
	Subscribe(id string, cb Subscriber) Unsubscribe

	// List returns a snapshot of records matching filter, sorted by
	// CreatedAt descending, truncated to filter.Limit when positive.
	List(ctx context.Context, filter ListFilter) ([]*WorkflowStatus, error)

	// Cleanup removes records whose status is terminal and whose
	// UpdatedAt is older than the backend's configured TTL.
	Cleanup(ctx context.Context) error

	// Close releases backend resources (sweep goroutines, connections).
	Close() error
}
