package state

import (
	"sync"

	"github.com/aigateway/gateway/core"
)

// subscriberRegistry is the shared subscriber-bookkeeping logic used by
// both backends: a keyed set of callbacks, with delivery copied out from
// under the lock before invocation (spec §5) and panics contained per
// callback (spec §4.4's "best-effort" delivery contract).
type subscriberRegistry struct {
	mu     sync.Mutex
	byID   map[string][]*subscriberEntry
	logger core.Logger
}

func newSubscriberRegistry(logger core.Logger) *subscriberRegistry {
	return &subscriberRegistry{byID: make(map[string][]*subscriberEntry), logger: logger}
}

func (r *subscriberRegistry) subscribe(id string, cb Subscriber) Unsubscribe {
	r.mu.Lock()
	entry := &subscriberEntry{cb: cb}
	r.byID[id] = append(r.byID[id], entry)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			list := r.byID[id]
			for i, e := range list {
				if e == entry {
					r.byID[id] = append(list[:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

func (r *subscriberRegistry) deliver(event Event) {
	r.mu.Lock()
	subs := make([]*subscriberEntry, len(r.byID[event.WorkflowID]))
	copy(subs, r.byID[event.WorkflowID])
	r.mu.Unlock()

	for _, sub := range subs {
		r.deliverSafely(sub.cb, event)
	}
}

func (r *subscriberRegistry) deliverSafely(cb Subscriber, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber callback panicked", map[string]interface{}{
				"workflow_id": event.WorkflowID,
				"event_type":  string(event.Type),
				"panic":       rec,
			})
		}
	}()
	cb(event)
}

func (r *subscriberRegistry) drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}
