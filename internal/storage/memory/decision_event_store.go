// Package memory provides in-process implementations of the storage interfaces
// for tests and single-node runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

// DecisionEventStore is an in-memory implementation of storage.DecisionEventStore.
// With a per-token cap the oldest events of a token are evicted first.
type DecisionEventStore struct {
	mu          sync.RWMutex
	data        map[string]*domain.DecisionEvent // keyed by event id
	byToken     map[string][]string              // event ids in insertion order
	maxPerToken int                              // 0 keeps everything
}

// StoreOption configures a DecisionEventStore.
type StoreOption func(*DecisionEventStore)

// WithMaxEventsPerToken caps the events kept per token. n <= 0 disables the cap.
func WithMaxEventsPerToken(n int) StoreOption {
	return func(s *DecisionEventStore) {
		if n > 0 {
			s.maxPerToken = n
		}
	}
}

// NewDecisionEventStore creates a new in-memory event store.
func NewDecisionEventStore(opts ...StoreOption) *DecisionEventStore {
	s := &DecisionEventStore{
		data:    make(map[string]*domain.DecisionEvent),
		byToken: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds a new event. Returns ErrDuplicateKey if the id exists.
func (s *DecisionEventStore) Insert(_ context.Context, e *domain.DecisionEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[e.ID] = e.Clone()

	ids := append(s.byToken[e.TokenID], e.ID)
	if s.maxPerToken > 0 && len(ids) > s.maxPerToken {
		evict := len(ids) - s.maxPerToken
		for _, id := range ids[:evict] {
			delete(s.data, id)
		}
		ids = append([]string(nil), ids[evict:]...)
	}
	s.byToken[e.TokenID] = ids
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *DecisionEventStore) GetByID(_ context.Context, id string) (*domain.DecisionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return e.Clone(), nil
}

// GetByToken retrieves the newest events for a token, newest first.
func (s *DecisionEventStore) GetByToken(_ context.Context, tokenID string, limit int) ([]*domain.DecisionEvent, error) {
	s.mu.RLock()
	ids := s.byToken[tokenID]
	result := make([]*domain.DecisionEvent, 0, len(ids))
	for _, id := range ids {
		result = append(result, s.data[id].Clone())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.After(result[j].OccurredAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *DecisionEventStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.DecisionEvent, error) {
	s.mu.RLock()
	var result []*domain.DecisionEvent
	for _, e := range s.data {
		if !e.OccurredAt.Before(start) && !e.OccurredAt.After(end) {
			result = append(result, e.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.Before(result[j].OccurredAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DecisionEventStore = (*DecisionEventStore)(nil)
