// Package report renders capital gains results for downstream consumers.
package report

import (
	"fmt"
	"strings"
	"time"

	"crypto-tax-ledger/internal/domain"
)

// variousLabel is how an unknown acquisition date is displayed.
const variousLabel = "VARIOUS"

// RenderCSV renders a capital gains result as CSV string, one row per
// gain item followed by the aggregate totals.
func RenderCSV(r *domain.CapitalGainsResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("asset,amount,date_acquired,date_sold,proceeds,cost_basis,gain_or_loss,term\n")

	// Rows
	for _, item := range r.Items {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s\n",
			item.Asset,
			item.Amount.String(),
			formatDate(item.DateAcquired),
			formatDate(item.DateSold),
			item.Proceeds.String(),
			item.CostBasis.String(),
			item.GainOrLoss.String(),
			termLabel(item.IsLongTerm),
		))
	}

	// Totals
	sb.WriteString(fmt.Sprintf("TOTAL_SHORT_TERM,,,,,,%s,\n", r.ShortTermGains.Sub(r.ShortTermLosses).String()))
	sb.WriteString(fmt.Sprintf("TOTAL_LONG_TERM,,,,,,%s,\n", r.LongTermGains.Sub(r.LongTermLosses).String()))
	sb.WriteString(fmt.Sprintf("NET,,,,,,%s,\n", r.NetGainLoss.String()))

	return sb.String()
}

// formatDate renders a millisecond timestamp as a UTC date, or the
// VARIOUS label for the unknown-basis sentinel.
func formatDate(ms int64) string {
	if ms == domain.UnknownAcquisitionDate {
		return variousLabel
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

func termLabel(isLongTerm bool) string {
	if isLongTerm {
		return "long"
	}
	return "short"
}
