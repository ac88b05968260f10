package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/storage"
)

// historyKey uniquely identifies one equity point.
type historyKey struct {
	clientID   int64
	snapshotID string
}

// EquityHistoryStore is an in-memory implementation of storage.EquityHistoryStore.
type EquityHistoryStore struct {
	mu   sync.RWMutex
	data map[historyKey]*domain.EquityHistoryPoint
}

// NewEquityHistoryStore creates a new in-memory equity history store.
func NewEquityHistoryStore() *EquityHistoryStore {
	return &EquityHistoryStore{
		data: make(map[historyKey]*domain.EquityHistoryPoint),
	}
}

// Compile-time interface check.
var _ storage.EquityHistoryStore = (*EquityHistoryStore)(nil)

// InsertBulk adds multiple points atomically. Fails entire batch on any duplicate.
func (s *EquityHistoryStore) InsertBulk(_ context.Context, points []*domain.EquityHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[historyKey]struct{}, len(points))

	for _, p := range points {
		if p == nil || p.ClientID == 0 || p.SnapshotID == "" {
			return storage.ErrInvalidInput
		}
		k := historyKey{p.ClientID, p.SnapshotID}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, p := range points {
		cp := *p
		s.data[historyKey{p.ClientID, p.SnapshotID}] = &cp
	}
	return nil
}

// GetByClientID retrieves all points for a client, ordered by capture time ASC.
func (s *EquityHistoryStore) GetByClientID(_ context.Context, clientID int64) ([]*domain.EquityHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityHistoryPoint
	for _, p := range s.data {
		if p.ClientID == clientID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortPoints(result)
	return result, nil
}

// GetByTimeRange retrieves points for a client within [start, end] (inclusive).
func (s *EquityHistoryStore) GetByTimeRange(_ context.Context, clientID int64, start, end int64) ([]*domain.EquityHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.EquityHistoryPoint
	for _, p := range s.data {
		if p.ClientID == clientID && p.CapturedAt >= start && p.CapturedAt <= end {
			cp := *p
			result = append(result, &cp)
		}
	}
	sortPoints(result)
	return result, nil
}

func sortPoints(points []*domain.EquityHistoryPoint) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].CapturedAt != points[j].CapturedAt {
			return points[i].CapturedAt < points[j].CapturedAt
		}
		return points[i].SnapshotID < points[j].SnapshotID
	})
}
