// Package classify derives risk classifications from snapshot deltas. Both
// classifiers are stateless: every result is a pure function of its input.
package classify

import "fmt"

// HealthStatus is the rebate-health classification of a client.
type HealthStatus string

const (
	HealthHot     HealthStatus = "hot"
	HealthCooling HealthStatus = "cooling"
	HealthAtRisk  HealthStatus = "at_risk"
)

// Rebate-health thresholds (percent).
const (
	atRiskCommissionDropPct = -20
	atRiskEquityDropPct     = -30
	coolingCommissionPct    = -5
	coolingEquityPct        = -10

	// A flat commission pct can still hide a real drop when the previous
	// figure was tiny; the absolute ratio check catches it.
	coolingCommissionRatio = 0.8

	collapsedEquityFloor   = 100
	collapsedEquityCeiling = 500
)

// HealthInput carries the commission and equity data points for one client.
type HealthInput struct {
	Commission float64
	Equity     float64

	PreviousCommission float64
	PreviousEquity     float64

	// HasPrevious is false when the client has no prior record.
	HasPrevious bool
}

// HealthResult is the classification plus the contributing deltas.
type HealthResult struct {
	Status HealthStatus

	CommissionChangePct float64
	EquityChangePct     float64

	Reasons []string
}

// EvaluateHealth classifies rebate health from commission and equity deltas.
// Every input maps to exactly one status.
func EvaluateHealth(in HealthInput) HealthResult {
	if !in.HasPrevious {
		// No baseline: an earning client is hot, everyone else cooling.
		status := HealthCooling
		reason := "no previous record, commission not positive"
		if in.Commission > 0 {
			status = HealthHot
			reason = "no previous record, commission positive"
		}
		return HealthResult{Status: status, Reasons: []string{reason}}
	}

	commissionPct := pctChange(in.PreviousCommission, in.Commission)
	equityPct := pctChange(in.PreviousEquity, in.Equity)
	res := HealthResult{
		CommissionChangePct: commissionPct,
		EquityChangePct:     equityPct,
	}

	switch {
	case commissionPct < atRiskCommissionDropPct:
		res.Status = HealthAtRisk
		res.Reasons = append(res.Reasons, fmt.Sprintf("commission down %.1f%%", -commissionPct))
	case equityPct < atRiskEquityDropPct:
		res.Status = HealthAtRisk
		res.Reasons = append(res.Reasons, fmt.Sprintf("equity down %.1f%%", -equityPct))
	case in.Equity < collapsedEquityFloor && in.PreviousEquity > collapsedEquityCeiling:
		res.Status = HealthAtRisk
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("equity collapsed from %.2f to %.2f", in.PreviousEquity, in.Equity))
	case commissionPct < coolingCommissionPct:
		res.Status = HealthCooling
		res.Reasons = append(res.Reasons, fmt.Sprintf("commission down %.1f%%", -commissionPct))
	case commissionPct == 0 && in.Commission < coolingCommissionRatio*in.PreviousCommission:
		res.Status = HealthCooling
		res.Reasons = append(res.Reasons, "commission below 80% of previous")
	case equityPct < coolingEquityPct:
		res.Status = HealthCooling
		res.Reasons = append(res.Reasons, fmt.Sprintf("equity down %.1f%%", -equityPct))
	default:
		res.Status = HealthHot
	}
	return res
}

// pctChange returns the percentage change from old to new. A zero baseline
// yields zero: the ratio is undefined and the absolute checks cover it.
func pctChange(old, new float64) float64 {
	if old == 0 {
		return 0
	}
	return (new - old) / old * 100
}
