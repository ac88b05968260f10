package clickhouse

import (
	"context"
	"fmt"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/storage"
)

// EquityHistoryStore implements storage.EquityHistoryStore using ClickHouse.
type EquityHistoryStore struct {
	conn *Conn
}

// NewEquityHistoryStore creates a new EquityHistoryStore.
func NewEquityHistoryStore(conn *Conn) *EquityHistoryStore {
	return &EquityHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityHistoryStore = (*EquityHistoryStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *EquityHistoryStore) InsertBulk(ctx context.Context, points []*domain.EquityHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		clientID   int64
		snapshotID string
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.ClientID == 0 || p.SnapshotID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.ClientID, p.SnapshotID}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p.ClientID, p.SnapshotID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_history (
			client_id, login, snapshot_id, captured_at, equity, balance, commission
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.ClientID, p.Login, p.SnapshotID, uint64(p.CapturedAt),
			p.Equity, p.Balance, p.Commission,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByClientID retrieves all points for a client, ordered by capture time ASC.
func (s *EquityHistoryStore) GetByClientID(ctx context.Context, clientID int64) ([]*domain.EquityHistoryPoint, error) {
	query := `
		SELECT client_id, login, snapshot_id, captured_at, equity, balance, commission
		FROM equity_history
		WHERE client_id = ?
		ORDER BY captured_at ASC, snapshot_id ASC
	`

	rows, err := s.conn.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("query by client id: %w", err)
	}
	defer rows.Close()

	return scanEquityHistory(rows)
}

// GetByTimeRange retrieves points for a client within [start, end] (inclusive).
func (s *EquityHistoryStore) GetByTimeRange(ctx context.Context, clientID int64, start, end int64) ([]*domain.EquityHistoryPoint, error) {
	query := `
		SELECT client_id, login, snapshot_id, captured_at, equity, balance, commission
		FROM equity_history
		WHERE client_id = ? AND captured_at >= ? AND captured_at <= ?
		ORDER BY captured_at ASC, snapshot_id ASC
	`

	rows, err := s.conn.Query(ctx, query, clientID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEquityHistory(rows)
}

// exists checks if a point with the given key exists.
func (s *EquityHistoryStore) exists(ctx context.Context, clientID int64, snapshotID string) (bool, error) {
	query := `
		SELECT count(*) FROM equity_history
		WHERE client_id = ? AND snapshot_id = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, clientID, snapshotID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanEquityHistory scans multiple rows into a slice.
func scanEquityHistory(rows chRows) ([]*domain.EquityHistoryPoint, error) {
	var points []*domain.EquityHistoryPoint

	for rows.Next() {
		var p domain.EquityHistoryPoint
		var capturedAt uint64

		err := rows.Scan(
			&p.ClientID, &p.Login, &p.SnapshotID, &capturedAt,
			&p.Equity, &p.Balance, &p.Commission,
		)
		if err != nil {
			return nil, fmt.Errorf("scan equity history row: %w", err)
		}

		p.CapturedAt = int64(capturedAt)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity history rows: %w", err)
	}

	return points, nil
}
