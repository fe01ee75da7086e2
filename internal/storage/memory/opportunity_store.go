// Package memory provides in-memory store implementations for tests and
// single-shot CLI runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dropscout/internal/domain"
	"dropscout/internal/idhash"
	"dropscout/internal/storage"
)

// OpportunityStore is an in-memory implementation of
// storage.OpportunityStore.
type OpportunityStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Opportunity // keyed by opportunity_id
}

// NewOpportunityStore creates a new in-memory opportunity store.
func NewOpportunityStore() *OpportunityStore {
	return &OpportunityStore{data: make(map[string]*domain.Opportunity)}
}

var _ storage.OpportunityStore = (*OpportunityStore)(nil)

// Upsert inserts or updates the opportunity, returning its id. Idempotent
// on (user_id, source_id).
func (s *OpportunityStore) Upsert(_ context.Context, o *domain.Opportunity) (string, error) {
	if o == nil || o.UserID == "" || o.SourceID == "" {
		return "", storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := o.OpportunityID
	if id == "" {
		id = idhash.ComputeOpportunityID(o.UserID, o.SourceID)
	}

	stored := *o
	stored.OpportunityID = id
	if existing, ok := s.data[id]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.data[id] = &stored

	return id, nil
}

// GetByUserAndSource retrieves an opportunity by its natural key.
func (s *OpportunityStore) GetByUserAndSource(_ context.Context, userID, sourceID string) (*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.data[idhash.ComputeOpportunityID(userID, sourceID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// ListByUser retrieves all opportunities for a user, newest first.
func (s *OpportunityStore) ListByUser(_ context.Context, userID string) ([]*domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Opportunity
	for _, o := range s.data {
		if o.UserID == userID {
			cp := *o
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].GeneratedAt.Equal(result[j].GeneratedAt) {
			return result[i].GeneratedAt.After(result[j].GeneratedAt)
		}
		return result[i].OpportunityID < result[j].OpportunityID
	})
	return result, nil
}

// SetPublishOutcome records the publishing collaborator's result.
func (s *OpportunityStore) SetPublishOutcome(_ context.Context, opportunityID string, outcome domain.PublishOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.data[opportunityID]
	if !ok {
		return storage.ErrNotFound
	}
	o.PublishOutcome = outcome
	return nil
}
