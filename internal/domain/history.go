package domain

// EquityHistoryPoint is one per-capture account fact. Raw capture data only:
// derived metrics are recomputed on demand and never stored.
// Corresponds to the equity_history table in ClickHouse.
type EquityHistoryPoint struct {
	ClientID   int64
	Login      int64
	SnapshotID string
	CapturedAt int64 // Unix timestamp in milliseconds
	Equity     float64
	Balance    float64
	Commission float64
}
