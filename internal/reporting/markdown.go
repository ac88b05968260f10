package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Rebate Monitoring Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Brokerage: %s\n\n", r.Brokerage))
	sb.WriteString(fmt.Sprintf("Snapshot: %s", r.CurrentSnapshotID))
	if r.PreviousSnapshotID != "" {
		sb.WriteString(fmt.Sprintf(" (previous: %s)", r.PreviousSnapshotID))
	}
	sb.WriteString("\n\n")

	// Change Summary
	sb.WriteString("## Change Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Clients | %d |\n", r.Summary.TotalCurrent))
	sb.WriteString(fmt.Sprintf("| New | %d |\n", r.Summary.NewCount))
	sb.WriteString(fmt.Sprintf("| Removed | %d |\n", r.Summary.RemovedCount))
	sb.WriteString(fmt.Sprintf("| Changed | %d |\n", r.Summary.ChangedCount))
	sb.WriteString("\n")

	// New Clients
	sb.WriteString("## New Clients\n\n")
	writeClientTable(&sb, r.NewClients)

	// Removed Clients
	sb.WriteString("## Removed Clients\n\n")
	writeClientTable(&sb, r.RemovedClients)

	// Changed Clients
	sb.WriteString("## Changed Clients\n\n")
	if len(r.ChangedClients) > 0 {
		sb.WriteString("| Client | Name | Field | Old | New |\n")
		sb.WriteString("|--------|------|-------|-----|-----|\n")
		for _, c := range r.ChangedClients {
			for _, fc := range c.Changes {
				sb.WriteString(fmt.Sprintf("| %d | %s | %s | %v | %v |\n",
					c.ClientID, c.Name, fc.Field, fc.OldValue, fc.NewValue))
			}
		}
	} else {
		sb.WriteString("No field changes detected.\n")
	}
	sb.WriteString("\n")

	// Rebate Health
	sb.WriteString("## Rebate Health\n\n")
	if len(r.HealthRows) > 0 {
		sb.WriteString("| Client | Name | Status | Commission% | Equity% | Reasons |\n")
		sb.WriteString("|--------|------|--------|-------------|---------|--------|\n")
		for _, h := range r.HealthRows {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.2f | %s |\n",
				h.ClientID, h.Name, h.Status,
				h.CommissionChangePct, h.EquityChangePct,
				strings.Join(h.Reasons, "; ")))
		}
	} else {
		sb.WriteString("No clients to classify.\n")
	}
	sb.WriteString("\n")

	// Withdrawal Alerts
	sb.WriteString("## Withdrawal Alerts\n\n")
	if len(r.AlertRows) > 0 {
		sb.WriteString("| Client | Name | Level | Withdrawn | Withdrawn% | Reasons |\n")
		sb.WriteString("|--------|------|-------|-----------|------------|--------|\n")
		for _, a := range r.AlertRows {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.1f | %s |\n",
				a.ClientID, a.Name, a.Level,
				a.Withdrawn, a.WithdrawnPct,
				strings.Join(a.Reasons, "; ")))
		}
	} else {
		sb.WriteString("No withdrawal alerts.\n")
	}
	sb.WriteString("\n")

	// Windowed Metrics
	sb.WriteString("## Windowed Metrics\n\n")
	if len(r.WindowRows) > 0 {
		sb.WriteString("| Client | Name | Window | Volume | Deposits | Withdrawals | DepositCount | NetFunding | Velocity |\n")
		sb.WriteString("|--------|------|--------|--------|----------|-------------|--------------|------------|----------|\n")
		for _, w := range r.WindowRows {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.2f | %.2f | %d | %.2f | %.4f |\n",
				w.ClientID, w.Name, w.Window,
				w.SumVolume, w.SumDeposits, w.SumWithdrawals,
				w.DepositCount, w.NetFunding, w.Velocity))
		}
	} else {
		sb.WriteString("No windowed metrics available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeClientTable(sb *strings.Builder, rows []ClientRow) {
	if len(rows) == 0 {
		sb.WriteString("None.\n\n")
		return
	}
	sb.WriteString("| Client | Name | Owner | Equity |\n")
	sb.WriteString("|--------|------|-------|--------|\n")
	for _, c := range rows {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f |\n",
			c.ClientID, c.Name, c.Owner, c.Equity))
	}
	sb.WriteString("\n")
}
