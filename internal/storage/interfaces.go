package storage

import (
	"context"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// SnapshotStore provides access to captured snapshots. Snapshots are written
// once by the capture process and read-only afterwards.
type SnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if snapshot_id exists.
	Insert(ctx context.Context, s *domain.Snapshot) error

	// GetByID retrieves a snapshot by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, snapshotID string) (*domain.Snapshot, error)

	// GetLatest retrieves the most recent snapshot by capture time.
	// Returns ErrNotFound when the store is empty.
	GetLatest(ctx context.Context) (*domain.Snapshot, error)

	// GetBefore retrieves the most recent snapshot captured strictly before
	// the given timestamp. Returns ErrNotFound when none exists.
	GetBefore(ctx context.Context, capturedAt int64) (*domain.Snapshot, error)

	// GetByTimeRange retrieves snapshots captured within [start, end]
	// (inclusive), ordered by capture time ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Snapshot, error)
}

// EquityHistoryStore provides access to raw per-capture account facts.
type EquityHistoryStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate
	// (client_id, snapshot_id).
	InsertBulk(ctx context.Context, points []*domain.EquityHistoryPoint) error

	// GetByClientID retrieves all points for a client, ordered by capture time ASC.
	GetByClientID(ctx context.Context, clientID int64) ([]*domain.EquityHistoryPoint, error)

	// GetByTimeRange retrieves points for a client within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, clientID int64, start, end int64) ([]*domain.EquityHistoryPoint, error)
}
