package idhash

import "testing"

func TestComputeSnapshotID_Deterministic(t *testing.T) {
	a := ComputeSnapshotID("atlas-fx", 1700000000000, 120, 95)
	b := ComputeSnapshotID("atlas-fx", 1700000000000, 120, 95)
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if a == "" {
		t.Error("expected non-empty id")
	}
}

func TestComputeSnapshotID_DistinctInputs(t *testing.T) {
	base := ComputeSnapshotID("atlas-fx", 1700000000000, 120, 95)

	variants := []string{
		ComputeSnapshotID("other-fx", 1700000000000, 120, 95),
		ComputeSnapshotID("atlas-fx", 1700000000001, 120, 95),
		ComputeSnapshotID("atlas-fx", 1700000000000, 121, 95),
		ComputeSnapshotID("atlas-fx", 1700000000000, 120, 96),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base id", i)
		}
	}
}
