package reporting

import (
	"time"

	"github.com/HansLove/rebstool-sub000/internal/classify"
	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// Report is the monitoring report produced from the two most recent
// snapshots and the stored capture history.
type Report struct {
	// Metadata
	GeneratedAt        time.Time
	Brokerage          string
	CurrentSnapshotID  string
	PreviousSnapshotID string // empty on the first capture
	CapturedAt         int64  // Unix ms of the current snapshot

	// Change Summary
	Summary domain.ChangeSummary

	// Roster changes (sorted by client_id)
	NewClients     []ClientRow
	RemovedClients []ClientRow
	ChangedClients []ChangeRow

	// Classifications (sorted by client_id)
	HealthRows []HealthRow
	AlertRows  []AlertRow // non-none levels only

	// Windowed metrics (sorted by client_id, window order 24h/7d/30d/lifetime)
	WindowRows []WindowRow
}

// ClientRow identifies one client in a roster-change table.
type ClientRow struct {
	ClientID int64
	Name     string
	Owner    string
	Equity   float64
}

// ChangeRow lists the monitored-field changes for one client.
type ChangeRow struct {
	ClientID int64
	Name     string
	Changes  []domain.FieldChange
}

// HealthRow is one client's rebate-health classification.
type HealthRow struct {
	ClientID            int64
	Name                string
	Status              classify.HealthStatus
	CommissionChangePct float64
	EquityChangePct     float64
	Reasons             []string
}

// AlertRow is one client's withdrawal alert.
type AlertRow struct {
	ClientID     int64
	Name         string
	Level        classify.AlertLevel
	Withdrawn    float64
	WithdrawnPct float64
	Reasons      []string
}

// WindowRow is one client's metrics for one temporal window.
type WindowRow struct {
	ClientID       int64
	Name           string
	Window         domain.Window
	SumVolume      float64
	SumDeposits    float64
	SumWithdrawals float64
	DepositCount   int
	NetFunding     float64
	Velocity       float64
}
