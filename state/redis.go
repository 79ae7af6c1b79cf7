package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aigateway/gateway/core"
)

const activeSetKey = "workflow:active"

func recordKey(id string) string  { return "workflow:" + id }
func eventsChannel(id string) string { return "workflow:events:" + id }

// RedisStore is the external key-value Store backend (spec §4.4). Each
// status is serialized as a single value under key "workflow:<id>" with
// TTL equal to the configured result TTL. An auxiliary set "workflow:active"
// tracks ids whose status is non-terminal; a transition into a terminal
// status removes the id from that set and refreshes the record's TTL.
//
// Events are published on "workflow:events:<id>" for cross-process
// observers AND delivered synchronously to local subscribers; the publish
// is fire-and-forget (its failure is logged, never propagated) since
// local delivery must not depend on Redis health (spec §9 Open Questions).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	subs   *subscriberRegistry
	logger core.Logger
}

// NewRedisStore constructs a RedisStore against the given connection URL
// (e.g. "redis://localhost:6379/0").
func NewRedisStore(url string, ttl time.Duration, logger core.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing KV_STORE_URL: %w", err)
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		ttl:    ttl,
		subs:   newSubscriberRegistry(logger),
		logger: logger,
	}, nil
}

func (s *RedisStore) Create(ctx context.Context, status *WorkflowStatus) error {
	key := recordKey(status.ID)

	existing, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking existing record: %w", err)
	}
	if existing > 0 {
		return core.ErrAlreadyExists
	}

	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling workflow status: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	if !status.Status.IsTerminal() {
		pipe.SAdd(ctx, activeSetKey, status.ID)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("persisting workflow status: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*WorkflowStatus, error) {
	data, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting workflow status: %w", err)
	}

	var status WorkflowStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("unmarshaling workflow status: %w", err)
	}
	return &status, nil
}

// Update applies fn under a Redis optimistic-lock transaction: it reads
// the current record, applies the mutation, and writes it back only if
// the key hasn't changed underneath, mirroring the teacher's
// Watch + TxPipelined pattern for atomic read-modify-write.
func (s *RedisStore) Update(ctx context.Context, id string, fn Updater) error {
	key := recordKey(id)

	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("getting workflow status: %w", err)
		}

		var status WorkflowStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return fmt.Errorf("unmarshaling workflow status: %w", err)
		}

		fn(&status)
		status.UpdatedAt = time.Now()

		newData, err := json.Marshal(&status)
		if err != nil {
			return fmt.Errorf("marshaling updated workflow status: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, s.ttl)
			if status.Status.IsTerminal() {
				pipe.SRem(ctx, activeSetKey, id)
				pipe.Expire(ctx, key, s.ttl)
			}
			return nil
		})
		return err
	}, key)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recordKey(id))
	pipe.SRem(ctx, activeSetKey, id)
	_, err := pipe.Exec(ctx)
	s.subs.drop(id)
	if err != nil {
		return fmt.Errorf("deleting workflow status: %w", err)
	}
	return nil
}

func (s *RedisStore) Emit(ctx context.Context, event Event) {
	s.subs.deliver(event)

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event for publish", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.client.Publish(ctx, eventsChannel(event.WorkflowID), data).Err(); err != nil {
		s.logger.Warn("best-effort event publish failed", map[string]interface{}{
			"workflow_id": event.WorkflowID,
			"error":       err.Error(),
		})
	}
}

func (s *RedisStore) Subscribe(id string, cb Subscriber) Unsubscribe {
	return s.subs.subscribe(id, cb)
}

// List scans "workflow:*", filtering out the active-set key, parses each
// remaining value, and applies filter. This scan is not atomic with
// writes; a record may transition to terminal mid-scan (accepted
// inconsistency, spec §9 Open Questions).
func (s *RedisStore) List(ctx context.Context, filter ListFilter) ([]*WorkflowStatus, error) {
	var out []*WorkflowStatus
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, "workflow:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning workflow keys: %w", err)
		}

		for _, key := range keys {
			if key == activeSetKey || strings.HasPrefix(key, "workflow:events:") {
				continue
			}
			data, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				continue // deleted between SCAN and GET; skip
			}
			var status WorkflowStatus
			if err := json.Unmarshal(data, &status); err != nil {
				continue
			}
			if filter.Status != "" && status.Status != filter.Status {
				continue
			}
			out = append(out, &status)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Cleanup relies on Redis key TTL for expiry of individual records;
// terminal records already have their TTL refreshed on transition (see
// Update). This walks the active set once to drop any stale entries
// whose underlying key has already expired, keeping workflow:active from
// accumulating references to vanished records.
func (s *RedisStore) Cleanup(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return fmt.Errorf("listing active workflow ids: %w", err)
	}
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, recordKey(id)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			s.client.SRem(ctx, activeSetKey, id)
			s.subs.drop(id)
		}
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
