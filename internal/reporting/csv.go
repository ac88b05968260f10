package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders windowed metric rows as CSV string.
func RenderCSV(rows []WindowRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("client_id,name,window,sum_volume,sum_deposits,sum_withdrawals,")
	sb.WriteString("deposit_count,net_funding,velocity\n")

	// Rows
	for _, w := range rows {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%.6f,%.6f,%.6f,%d,%.6f,%.6f\n",
			w.ClientID,
			csvEscape(w.Name),
			w.Window,
			w.SumVolume,
			w.SumDeposits,
			w.SumWithdrawals,
			w.DepositCount,
			w.NetFunding,
			w.Velocity,
		))
	}

	return sb.String()
}

// csvEscape quotes a field when it contains a comma or quote.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
}
