package domain

import "time"

// Window is a look-back duration over which per-client metrics are summed.
type Window string

const (
	Window24h      Window = "24h"
	Window7d       Window = "7d"
	Window30d      Window = "30d"
	WindowLifetime Window = "lifetime"
)

// AllWindows lists the supported windows in ascending order.
var AllWindows = []Window{Window24h, Window7d, Window30d, WindowLifetime}

// Duration returns the window length. ok is false for the unbounded
// lifetime window.
func (w Window) Duration() (d time.Duration, ok bool) {
	switch w {
	case Window24h:
		return 24 * time.Hour, true
	case Window7d:
		return 7 * 24 * time.Hour, true
	case Window30d:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Valid reports whether w is one of the supported windows.
func (w Window) Valid() bool {
	switch w {
	case Window24h, Window7d, Window30d, WindowLifetime:
		return true
	}
	return false
}

// WindowedMetric is a per-client aggregate over one look-back window.
// Withdrawals are derived from equity decline, not observed directly.
type WindowedMetric struct {
	ClientID int64
	Window   Window

	SumVolume      float64
	SumDeposits    float64
	SumWithdrawals float64
	DepositCount   int

	// NetFunding = SumDeposits - SumWithdrawals.
	NetFunding float64

	// Velocity is deposits per day over the window span.
	Velocity float64
}
