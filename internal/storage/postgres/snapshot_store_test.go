package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/storage"
)

func TestSnapshotStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	snap := &domain.Snapshot{
		SnapshotID: "snap-001",
		Brokerage:  "alpha",
		CapturedAt: 1700000000000,
		Variant:    domain.VariantFlat,
		Accounts: []*domain.Account{
			{Login: 90210, Balance: 1000, Equity: 950, Commission: 12.5, Profit: -50, Credit: 0},
		},
		Clients: []*domain.ClientEntity{
			{
				ClientID:          1,
				Name:              "John Smith",
				Email:             "john@example.com",
				Phone:             "+15551234",
				AccountNumber:     90210,
				Balance:           1000,
				Equity:            950,
				LastTradeAt:       1699990000000,
				LastTradeVolume:   2.5,
				LastDepositAt:     1699980000000,
				LastDepositAmount: 500,
				Funded:            true,
				JourneyStage:      "active",
				Owner:             &domain.OwnerRef{DistributorID: 7, Name: "Acme IB"},
			},
		},
	}

	err := store.Insert(ctx, snap)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, "snap-001")
	require.NoError(t, err)

	assert.Equal(t, snap.SnapshotID, retrieved.SnapshotID)
	assert.Equal(t, snap.Brokerage, retrieved.Brokerage)
	assert.Equal(t, snap.CapturedAt, retrieved.CapturedAt)
	assert.Equal(t, domain.VariantFlat, retrieved.Variant)

	require.Len(t, retrieved.Accounts, 1)
	assert.Equal(t, snap.Accounts[0].Login, retrieved.Accounts[0].Login)
	assert.Equal(t, snap.Accounts[0].Commission, retrieved.Accounts[0].Commission)

	require.Len(t, retrieved.Clients, 1)
	got := retrieved.Clients[0]
	want := snap.Clients[0]
	assert.Equal(t, want.ClientID, got.ClientID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.AccountNumber, got.AccountNumber)
	assert.Equal(t, want.LastDepositAmount, got.LastDepositAmount)
	assert.True(t, got.Funded)
	require.NotNil(t, got.Owner)
	assert.Equal(t, int64(7), got.Owner.DistributorID)
	assert.Equal(t, "Acme IB", got.Owner.Name)
}

func TestSnapshotStore_GroupedStoredFlat(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	snap := &domain.Snapshot{
		SnapshotID: "snap-grouped",
		Brokerage:  "alpha",
		CapturedAt: 1700000000000,
		Variant:    domain.VariantGrouped,
		Groups: []*domain.OwnershipGroup{
			{
				DistributorID:   42,
				DistributorName: "North Desk",
				Clients: []*domain.ClientEntity{
					{ClientID: 10, Name: "Ann Lee", Equity: 300},
					{ClientID: 11, Name: "Bo Chen", Equity: 700},
				},
			},
		},
	}

	require.NoError(t, store.Insert(ctx, snap))

	retrieved, err := store.GetByID(ctx, "snap-grouped")
	require.NoError(t, err)

	// Groups are flattened on write; the loaded form is always flat with
	// owners resolved from the group.
	assert.Equal(t, domain.VariantFlat, retrieved.Variant)
	assert.Empty(t, retrieved.Groups)
	require.Len(t, retrieved.Clients, 2)
	for _, c := range retrieved.Clients {
		require.NotNil(t, c.Owner)
		assert.Equal(t, int64(42), c.Owner.DistributorID)
		assert.Equal(t, "North Desk", c.Owner.Name)
	}
}

func TestSnapshotStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	snap := &domain.Snapshot{
		SnapshotID: "snap-dup",
		Brokerage:  "alpha",
		CapturedAt: 1700000000000,
		Variant:    domain.VariantFlat,
	}

	err := store.Insert(ctx, snap)
	require.NoError(t, err)

	err = store.Insert(ctx, snap)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSnapshotStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_GetLatestAndBefore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	for _, snap := range []*domain.Snapshot{
		{SnapshotID: "snap-a", Brokerage: "alpha", CapturedAt: 1000, Variant: domain.VariantFlat},
		{SnapshotID: "snap-b", Brokerage: "alpha", CapturedAt: 2000, Variant: domain.VariantFlat},
		{SnapshotID: "snap-c", Brokerage: "alpha", CapturedAt: 3000, Variant: domain.VariantFlat},
	} {
		require.NoError(t, store.Insert(ctx, snap))
	}

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-c", latest.SnapshotID)

	// Strictly before: a capture at exactly 3000 is excluded
	before, err := store.GetBefore(ctx, 3000)
	require.NoError(t, err)
	assert.Equal(t, "snap-b", before.SnapshotID)

	_, err = store.GetBefore(ctx, 1000)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_GetLatestEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	for _, snap := range []*domain.Snapshot{
		{SnapshotID: "snap-a", Brokerage: "alpha", CapturedAt: 1000, Variant: domain.VariantFlat},
		{SnapshotID: "snap-b", Brokerage: "alpha", CapturedAt: 2000, Variant: domain.VariantFlat},
		{SnapshotID: "snap-c", Brokerage: "alpha", CapturedAt: 3000, Variant: domain.VariantFlat},
	} {
		require.NoError(t, store.Insert(ctx, snap))
	}

	// Inclusive bounds
	snaps, err := store.GetByTimeRange(ctx, 1000, 2000)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "snap-a", snaps[0].SnapshotID)
	assert.Equal(t, "snap-b", snaps[1].SnapshotID)

	snaps, err = store.GetByTimeRange(ctx, 4000, 5000)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSnapshotStore_InsertInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.Insert(ctx, &domain.Snapshot{Brokerage: "alpha"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
