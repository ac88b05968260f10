package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeSnapshotID computes a deterministic snapshot_id.
// Formula: SHA256(brokerage|captured_at|account_count|client_count)
// Returns the base58-encoded hash (44 characters).
func ComputeSnapshotID(brokerage string, capturedAt int64, accountCount, clientCount int) string {
	data := fmt.Sprintf("%s|%d|%d|%d",
		brokerage,
		capturedAt,
		accountCount,
		clientCount,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
