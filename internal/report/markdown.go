package report

import (
	"fmt"
	"strings"

	"crypto-tax-ledger/internal/domain"
)

// RenderMarkdown renders a capital gains result as Markdown string.
func RenderMarkdown(userID string, taxYear int, method domain.Method, r *domain.CapitalGainsResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Capital Gains Report %d\n\n", taxYear))
	sb.WriteString(fmt.Sprintf("User: %s | Method: %s | Items: %d\n\n", userID, method, r.TransactionsIncluded))

	// Totals
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Bucket | Amount |\n")
	sb.WriteString("|--------|--------|\n")
	sb.WriteString(fmt.Sprintf("| Short-term gains | %s |\n", r.ShortTermGains.String()))
	sb.WriteString(fmt.Sprintf("| Short-term losses | %s |\n", r.ShortTermLosses.String()))
	sb.WriteString(fmt.Sprintf("| Long-term gains | %s |\n", r.LongTermGains.String()))
	sb.WriteString(fmt.Sprintf("| Long-term losses | %s |\n", r.LongTermLosses.String()))
	sb.WriteString(fmt.Sprintf("| Total gains | %s |\n", r.TotalGains.String()))
	sb.WriteString(fmt.Sprintf("| Total losses | %s |\n", r.TotalLosses.String()))
	sb.WriteString(fmt.Sprintf("| **Net gain/loss** | **%s** |\n", r.NetGainLoss.String()))
	sb.WriteString("\n")

	// Items
	if len(r.Items) > 0 {
		sb.WriteString("## Items\n\n")
		sb.WriteString("| Asset | Amount | Acquired | Sold | Proceeds | Cost Basis | Gain/Loss | Term |\n")
		sb.WriteString("|-------|--------|----------|------|----------|------------|-----------|------|\n")
		for _, item := range r.Items {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
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
		sb.WriteString("\n")
	}

	return sb.String()
}
