package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Snapshot // keyed by snapshot_id
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.Snapshot),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if snapshot_id exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.SnapshotID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.SnapshotID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[snap.SnapshotID] = snap
	return nil
}

// GetByID retrieves a snapshot by its ID. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByID(_ context.Context, snapshotID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[snapshotID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return snap, nil
}

// GetLatest retrieves the most recent snapshot by capture time.
func (s *SnapshotStore) GetLatest(_ context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Snapshot
	for _, snap := range s.data {
		if latest == nil || snap.CapturedAt > latest.CapturedAt ||
			(snap.CapturedAt == latest.CapturedAt && snap.SnapshotID > latest.SnapshotID) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest, nil
}

// GetBefore retrieves the most recent snapshot captured strictly before the
// given timestamp.
func (s *SnapshotStore) GetBefore(_ context.Context, capturedAt int64) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.Snapshot
	for _, snap := range s.data {
		if snap.CapturedAt >= capturedAt {
			continue
		}
		if best == nil || snap.CapturedAt > best.CapturedAt ||
			(snap.CapturedAt == best.CapturedAt && snap.SnapshotID > best.SnapshotID) {
			best = snap
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	return best, nil
}

// GetByTimeRange retrieves snapshots captured within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Snapshot
	for _, snap := range s.data {
		if snap.CapturedAt >= start && snap.CapturedAt <= end {
			result = append(result, snap)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CapturedAt != result[j].CapturedAt {
			return result[i].CapturedAt < result[j].CapturedAt
		}
		return result[i].SnapshotID < result[j].SnapshotID
	})
	return result, nil
}
