package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/HansLove/rebstool-sub000/internal/domain"
	"github.com/HansLove/rebstool-sub000/internal/storage"
)

func point(clientID int64, snapshotID string, capturedAt int64, equity float64) *domain.EquityHistoryPoint {
	return &domain.EquityHistoryPoint{
		ClientID:   clientID,
		SnapshotID: snapshotID,
		CapturedAt: capturedAt,
		Equity:     equity,
	}
}

func TestEquityHistoryStore_InsertBulkAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewEquityHistoryStore()

	err := store.InsertBulk(ctx, []*domain.EquityHistoryPoint{
		point(1, "s2", 2000, 90),
		point(1, "s1", 1000, 100),
		point(2, "s1", 1000, 500),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByClientID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByClientID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].CapturedAt != 1000 || got[1].CapturedAt != 2000 {
		t.Errorf("expected ascending capture order, got %d,%d", got[0].CapturedAt, got[1].CapturedAt)
	}
}

func TestEquityHistoryStore_DuplicateFailsBatch(t *testing.T) {
	ctx := context.Background()
	store := NewEquityHistoryStore()

	if err := store.InsertBulk(ctx, []*domain.EquityHistoryPoint{point(1, "s1", 1000, 100)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.EquityHistoryPoint{
		point(2, "s1", 1000, 50),
		point(1, "s1", 1000, 100), // duplicate
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	// Atomic: nothing from the failed batch landed.
	got, err := store.GetByClientID(ctx, 2)
	if err != nil {
		t.Fatalf("GetByClientID failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no points for client 2, got %d", len(got))
	}
}

func TestEquityHistoryStore_IntraBatchDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewEquityHistoryStore()

	err := store.InsertBulk(ctx, []*domain.EquityHistoryPoint{
		point(1, "s1", 1000, 100),
		point(1, "s1", 1000, 100),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEquityHistoryStore_GetByTimeRange(t *testing.T) {
	ctx := context.Background()
	store := NewEquityHistoryStore()

	err := store.InsertBulk(ctx, []*domain.EquityHistoryPoint{
		point(1, "s1", 1000, 100),
		point(1, "s2", 2000, 90),
		point(1, "s3", 3000, 80),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, 1, 1000, 2000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0].Equity != 100 || got[1].Equity != 90 {
		t.Errorf("unexpected points: %+v", got)
	}
}

func TestEquityHistoryStore_EmptyBatchIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewEquityHistoryStore()

	if err := store.InsertBulk(ctx, nil); err != nil {
		t.Fatalf("empty batch should succeed, got %v", err)
	}
}
