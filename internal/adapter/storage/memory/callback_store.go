// Package memory holds process-local implementations of the storage ports,
// for single-node deployments without PostgreSQL or Redis, and for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mpesa-callback-relay/internal/core/domain"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/sync/semaphore"
)

// CallbackStore implements ports.CallbackStore in memory.
type CallbackStore struct {
	node  *snowflake.Node
	write *semaphore.Weighted

	mu      sync.RWMutex
	records []domain.CallbackRecord
	now     func() time.Time
}

// NewCallbackStore creates an empty store issuing ids from node.
func NewCallbackStore(node *snowflake.Node) *CallbackStore {
	return &CallbackStore{
		node:  node,
		write: semaphore.NewWeighted(1),
		now:   time.Now,
	}
}

// Append adds a record. Appends are serialized, so ids follow append order.
func (s *CallbackStore) Append(ctx context.Context, kind domain.CallbackKind, key string, payload domain.RawPayload) (*domain.CallbackRecord, error) {
	if err := s.write.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	defer s.write.Release(1)

	rec := domain.CallbackRecord{
		ID:              s.node.Generate().Int64(),
		SubscriptionKey: key,
		Kind:            kind,
		Payload:         append(domain.RawPayload(nil), payload...),
		ReceivedAt:      s.now().UTC(),
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	return &rec, nil
}

// ListRecent returns up to limit records, newest first.
func (s *CallbackStore) ListRecent(ctx context.Context, limit int) ([]domain.CallbackRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit < n {
		n = limit
	}
	if n <= 0 {
		return []domain.CallbackRecord{}, nil
	}

	out := make([]domain.CallbackRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *CallbackStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
