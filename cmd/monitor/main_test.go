package main

import (
	"testing"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

func TestUnresolvedOwners(t *testing.T) {
	entities := []*domain.ClientEntity{
		{ClientID: 1, Owner: &domain.OwnerRef{DistributorID: 7, Name: "Acme IB"}},
		{ClientID: 2, Owner: domain.UnknownOwner()},
		{ClientID: 3},
	}
	if got := unresolvedOwners(entities); got != 2 {
		t.Errorf("unresolvedOwners = %d, want 2", got)
	}
	if got := unresolvedOwners(nil); got != 0 {
		t.Errorf("unresolvedOwners(nil) = %d, want 0", got)
	}
}

func TestSnapshotRequest_ToDomain(t *testing.T) {
	req := &snapshotRequest{
		CapturedAt: 1700000000000,
		Clients: []wireClient{
			{ClientID: 1, Name: "John Smith", AccountNumber: 90210, Equity: 1000,
				DistributorID: 7, DistributorName: "Acme IB"},
			{ClientID: 2, Name: "Ann Lee"},
		},
	}

	snap, err := req.toDomain("alpha")
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}

	if snap.Brokerage != "alpha" {
		t.Errorf("Brokerage = %q, want default alpha", snap.Brokerage)
	}
	if snap.SnapshotID == "" {
		t.Error("SnapshotID not derived for request without one")
	}
	if snap.Clients[0].Owner == nil || snap.Clients[0].Owner.DistributorID != 7 {
		t.Errorf("Owner = %+v, want distributor 7", snap.Clients[0].Owner)
	}
	if snap.Clients[1].Owner != nil {
		t.Errorf("Owner = %+v, want nil without distributor fields", snap.Clients[1].Owner)
	}

	// Same payload derives the same id
	again, err := req.toDomain("alpha")
	if err != nil {
		t.Fatalf("toDomain failed: %v", err)
	}
	if again.SnapshotID != snap.SnapshotID {
		t.Errorf("derived ids differ: %q vs %q", again.SnapshotID, snap.SnapshotID)
	}
}

func TestSnapshotRequest_ToDomainRequiresCapturedAt(t *testing.T) {
	req := &snapshotRequest{}
	if _, err := req.toDomain("alpha"); err == nil {
		t.Error("expected error for missing captured_at")
	}
}
