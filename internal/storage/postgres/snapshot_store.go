package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Snapshots are persisted in canonical flat form: the client rows carry their
// resolved distributor columns, so a loaded snapshot is always VariantFlat
// with owners already set.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot with its account and client rows in one
// transaction. Returns ErrDuplicateKey if snapshot_id exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.SnapshotID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot insert: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshots (snapshot_id, brokerage, captured_at, variant)
		VALUES ($1, $2, $3, $4)
	`, snap.SnapshotID, snap.Brokerage, snap.CapturedAt, string(snap.Variant))
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, a := range snap.Accounts {
		if a == nil {
			continue
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO snapshot_accounts (
				snapshot_id, login, balance, equity, commission, profit, credit
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, snap.SnapshotID, a.Login, a.Balance, a.Equity, a.Commission, a.Profit, a.Credit)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert snapshot account: %w", err)
		}
	}

	for _, c := range flattenClients(snap) {
		var distributorID int64
		var distributorName string
		if c.Owner != nil {
			distributorID = c.Owner.DistributorID
			distributorName = c.Owner.Name
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO snapshot_clients (
				snapshot_id, client_id, name, email, phone, account_number,
				balance, equity, credit,
				last_trade_at, last_trade_volume, last_deposit_at, last_deposit_amount,
				funded, archived, journey_stage,
				distributor_id, distributor_name
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`,
			snap.SnapshotID, c.ClientID, c.Name, c.Email, c.Phone, c.AccountNumber,
			c.Balance, c.Equity, c.Credit,
			c.LastTradeAt, c.LastTradeVolume, c.LastDepositAt, c.LastDepositAmount,
			c.Funded, c.Archived, c.JourneyStage,
			distributorID, distributorName,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert snapshot client: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot insert: %w", err)
	}
	return nil
}

// flattenClients projects the snapshot's client collection into one list
// regardless of variant, first occurrence wins per client id.
func flattenClients(snap *domain.Snapshot) []*domain.ClientEntity {
	var raw []*domain.ClientEntity
	raw = append(raw, snap.Clients...)
	for _, g := range snap.Groups {
		if g == nil {
			continue
		}
		for _, c := range g.Clients {
			if c == nil {
				continue
			}
			if c.Owner == nil {
				cp := c.Clone()
				cp.Owner = &domain.OwnerRef{DistributorID: g.DistributorID, Name: g.DistributorName}
				raw = append(raw, cp)
				continue
			}
			raw = append(raw, c)
		}
	}
	for _, r := range snap.LoginResults {
		if r == nil {
			continue
		}
		raw = append(raw, r.Clients...)
	}

	seen := make(map[int64]struct{}, len(raw))
	var out []*domain.ClientEntity
	for _, c := range raw {
		if c == nil || c.ClientID == 0 {
			continue
		}
		if _, dup := seen[c.ClientID]; dup {
			continue
		}
		seen[c.ClientID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// GetByID retrieves a snapshot by its ID. Returns ErrNotFound if not exists.
func (s *SnapshotStore) GetByID(ctx context.Context, snapshotID string) (*domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, brokerage, captured_at
		FROM snapshots
		WHERE snapshot_id = $1
	`, snapshotID)
	return s.scanFullSnapshot(ctx, row)
}

// GetLatest retrieves the most recent snapshot by capture time.
func (s *SnapshotStore) GetLatest(ctx context.Context) (*domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, brokerage, captured_at
		FROM snapshots
		ORDER BY captured_at DESC, snapshot_id DESC
		LIMIT 1
	`)
	return s.scanFullSnapshot(ctx, row)
}

// GetBefore retrieves the most recent snapshot captured strictly before the
// given timestamp.
func (s *SnapshotStore) GetBefore(ctx context.Context, capturedAt int64) (*domain.Snapshot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT snapshot_id, brokerage, captured_at
		FROM snapshots
		WHERE captured_at < $1
		ORDER BY captured_at DESC, snapshot_id DESC
		LIMIT 1
	`, capturedAt)
	return s.scanFullSnapshot(ctx, row)
}

// GetByTimeRange retrieves snapshots captured within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT snapshot_id, brokerage, captured_at
		FROM snapshots
		WHERE captured_at >= $1 AND captured_at <= $2
		ORDER BY captured_at ASC, snapshot_id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	var headers []*domain.Snapshot
	for rows.Next() {
		snap := &domain.Snapshot{Variant: domain.VariantFlat}
		if err := rows.Scan(&snap.SnapshotID, &snap.Brokerage, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot header: %w", err)
		}
		headers = append(headers, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot headers: %w", err)
	}

	for _, snap := range headers {
		if err := s.loadCollections(ctx, snap); err != nil {
			return nil, err
		}
	}
	return headers, nil
}

// scanFullSnapshot scans a header row and loads its collections.
func (s *SnapshotStore) scanFullSnapshot(ctx context.Context, row pgx.Row) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{Variant: domain.VariantFlat}
	if err := row.Scan(&snap.SnapshotID, &snap.Brokerage, &snap.CapturedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan snapshot header: %w", err)
	}
	if err := s.loadCollections(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// loadCollections fills account and client rows for a snapshot header.
func (s *SnapshotStore) loadCollections(ctx context.Context, snap *domain.Snapshot) error {
	accountRows, err := s.pool.Query(ctx, `
		SELECT login, balance, equity, commission, profit, credit
		FROM snapshot_accounts
		WHERE snapshot_id = $1
		ORDER BY login ASC
	`, snap.SnapshotID)
	if err != nil {
		return fmt.Errorf("get snapshot accounts: %w", err)
	}
	defer accountRows.Close()

	for accountRows.Next() {
		a := &domain.Account{}
		if err := accountRows.Scan(&a.Login, &a.Balance, &a.Equity, &a.Commission, &a.Profit, &a.Credit); err != nil {
			return fmt.Errorf("scan snapshot account: %w", err)
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	if err := accountRows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot accounts: %w", err)
	}

	clientRows, err := s.pool.Query(ctx, `
		SELECT client_id, name, email, phone, account_number,
		       balance, equity, credit,
		       last_trade_at, last_trade_volume, last_deposit_at, last_deposit_amount,
		       funded, archived, journey_stage,
		       distributor_id, distributor_name
		FROM snapshot_clients
		WHERE snapshot_id = $1
		ORDER BY client_id ASC
	`, snap.SnapshotID)
	if err != nil {
		return fmt.Errorf("get snapshot clients: %w", err)
	}
	defer clientRows.Close()

	for clientRows.Next() {
		c := &domain.ClientEntity{}
		var distributorID int64
		var distributorName string
		err := clientRows.Scan(
			&c.ClientID, &c.Name, &c.Email, &c.Phone, &c.AccountNumber,
			&c.Balance, &c.Equity, &c.Credit,
			&c.LastTradeAt, &c.LastTradeVolume, &c.LastDepositAt, &c.LastDepositAmount,
			&c.Funded, &c.Archived, &c.JourneyStage,
			&distributorID, &distributorName,
		)
		if err != nil {
			return fmt.Errorf("scan snapshot client: %w", err)
		}
		if distributorID != 0 || distributorName != "" {
			c.Owner = &domain.OwnerRef{DistributorID: distributorID, Name: distributorName}
		}
		snap.Clients = append(snap.Clients, c)
	}
	if err := clientRows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot clients: %w", err)
	}
	return nil
}
