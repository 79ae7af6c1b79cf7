package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aigateway/gateway/core"
)

// sweepInterval is how often the in-memory backend runs Cleanup in the
// background (spec §4.4: "A periodic sweep (every 60 s) runs cleanup()").
const sweepInterval = 60 * time.Second

// MemoryStore is the in-memory Store backend: a mutable keyed map plus a
// keyed set of subscriber callbacks, with a periodic TTL sweep.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*WorkflowStatus
	subs    *subscriberRegistry
	ttl     time.Duration
	logger  core.Logger

	stop chan struct{}
	once sync.Once
}

type subscriberEntry struct {
	cb Subscriber
}

// NewMemoryStore constructs a MemoryStore with the given record TTL and
// starts its background sweep goroutine. Call Close to stop the sweep.
func NewMemoryStore(ttl time.Duration, logger core.Logger) *MemoryStore {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	s := &MemoryStore{
		records: make(map[string]*WorkflowStatus),
		subs:    newSubscriberRegistry(logger),
		ttl:     ttl,
		logger:  logger,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Cleanup(context.Background()); err != nil {
				s.logger.Warn("periodic cleanup failed", map[string]interface{}{"error": err.Error()})
			}
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) Create(ctx context.Context, status *WorkflowStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[status.ID]; exists {
		return core.ErrAlreadyExists
	}
	s.records[status.ID] = status.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*WorkflowStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn Updater) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.records, id)
	s.mu.Unlock()
	s.subs.drop(id)
	return nil
}

func (s *MemoryStore) Emit(ctx context.Context, event Event) {
	s.subs.deliver(event)
}

func (s *MemoryStore) Subscribe(id string, cb Subscriber) Unsubscribe {
	return s.subs.subscribe(id, cb)
}

func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*WorkflowStatus, error) {
	s.mu.Lock()
	out := make([]*WorkflowStatus, 0, len(s.records))
	for _, rec := range s.records {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	cutoff := time.Now().Add(-s.ttl)
	var expired []string
	for id, rec := range s.records {
		if rec.Status.IsTerminal() && rec.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.subs.drop(id)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}
