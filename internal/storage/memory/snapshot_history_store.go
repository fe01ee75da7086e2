package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"dropscout/internal/domain"
	"dropscout/internal/storage"
)

// SnapshotHistoryStore is an in-memory implementation of
// storage.SnapshotHistoryStore.
type SnapshotHistoryStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.MarketSnapshot // keyed by title key
}

// NewSnapshotHistoryStore creates a new in-memory snapshot history store.
func NewSnapshotHistoryStore() *SnapshotHistoryStore {
	return &SnapshotHistoryStore{data: make(map[string][]*domain.MarketSnapshot)}
}

var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)

// InsertBulk appends snapshots for a title key.
func (s *SnapshotHistoryStore) InsertBulk(_ context.Context, titleKey string, snapshots []*domain.MarketSnapshot) error {
	if titleKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		cp := *snap
		s.data[titleKey] = append(s.data[titleKey], &cp)
	}
	return nil
}

// GetRecent retrieves up to limit snapshots, newest first.
func (s *SnapshotHistoryStore) GetRecent(_ context.Context, titleKey string, mp domain.Marketplace, region domain.Region, since time.Time, limit int) ([]*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketSnapshot
	for _, snap := range s.data[titleKey] {
		if snap.Marketplace != mp || snap.Region != region {
			continue
		}
		if snap.ObservedAt.Before(since) {
			continue
		}
		cp := *snap
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt.After(result[j].ObservedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
