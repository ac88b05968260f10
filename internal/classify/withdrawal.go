package classify

import "fmt"

// AlertLevel is the withdrawal-alert severity, ordered none < warning <
// critical < emptied.
type AlertLevel string

const (
	AlertNone     AlertLevel = "none"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
	AlertEmptied  AlertLevel = "emptied"
)

// Withdrawal-alert thresholds.
const (
	emptiedPct  = 100
	criticalPct = 85
	warningPct  = 70

	// An account that held real money before and holds almost nothing now is
	// emptied regardless of the exact percentage.
	emptiedPriorEquityFloor  = 100
	emptiedCurrentEquityCeil = 10
)

// WithdrawalInput is one equity comparison: a prior equity point and the
// current one.
type WithdrawalInput struct {
	PreviousEquity float64
	CurrentEquity  float64
}

// WithdrawalResult is the alert level plus the contributing deltas.
type WithdrawalResult struct {
	Level AlertLevel

	WithdrawnPct float64
	Withdrawn    float64

	Reasons []string
}

// EvaluateWithdrawal classifies a single equity comparison. Every input maps
// to exactly one level.
func EvaluateWithdrawal(in WithdrawalInput) WithdrawalResult {
	withdrawn := in.PreviousEquity - in.CurrentEquity
	if withdrawn < 0 {
		withdrawn = 0
	}

	var pct float64
	if in.PreviousEquity > 0 {
		pct = withdrawn / in.PreviousEquity * 100
	}

	res := WithdrawalResult{WithdrawnPct: pct, Withdrawn: withdrawn}
	switch {
	case pct >= emptiedPct:
		res.Level = AlertEmptied
		res.Reasons = append(res.Reasons, "entire equity withdrawn")
	case in.PreviousEquity > emptiedPriorEquityFloor && in.CurrentEquity < emptiedCurrentEquityCeil:
		res.Level = AlertEmptied
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("equity drained from %.2f to %.2f", in.PreviousEquity, in.CurrentEquity))
	case pct >= criticalPct:
		res.Level = AlertCritical
		res.Reasons = append(res.Reasons, fmt.Sprintf("%.1f%% of equity withdrawn", pct))
	case pct >= warningPct:
		res.Level = AlertWarning
		res.Reasons = append(res.Reasons, fmt.Sprintf("%.1f%% of equity withdrawn", pct))
	default:
		res.Level = AlertNone
	}
	return res
}

// EvaluateWithdrawalWithWindow combines the previous-snapshot comparison with
// the 30-day window comparison. The recent comparison wins whenever it yields
// a non-none level, so a sharp recent drain is not masked by a calmer month;
// otherwise the 30-day evaluation applies. Nil inputs are skipped.
func EvaluateWithdrawalWithWindow(recent, window30d *WithdrawalInput) WithdrawalResult {
	if recent != nil {
		res := EvaluateWithdrawal(*recent)
		if res.Level != AlertNone {
			return res
		}
	}
	if window30d != nil {
		return EvaluateWithdrawal(*window30d)
	}
	if recent != nil {
		return EvaluateWithdrawal(*recent)
	}
	return WithdrawalResult{Level: AlertNone}
}
