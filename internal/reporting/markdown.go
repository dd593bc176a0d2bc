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
	sb.WriteString("# Portfolio Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Wallet: `%s` | As of: %s (%s)\n\n", r.UserAddress, r.AsOf, r.Timezone))
	if r.Sync != nil {
		sb.WriteString(fmt.Sprintf("Synced through ledger %d (%s)\n\n", r.Sync.Ledger, r.Sync.ClosedAt.UTC().Format(time.RFC3339)))
	}

	// Overview
	o := r.Overview
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Deposited | %s |\n", usd(o.TotalDeposited)))
	sb.WriteString(fmt.Sprintf("| Total Withdrawn | %s |\n", usd(o.TotalWithdrawn)))
	sb.WriteString(fmt.Sprintf("| Realized PnL | %s |\n", usd(o.RealizedPnl)))
	sb.WriteString(fmt.Sprintf("| ROI | %s |\n", pct(o.ROI)))
	sb.WriteString(fmt.Sprintf("| Annualized ROI | %s |\n", pct(o.AnnualizedROI)))
	sb.WriteString(fmt.Sprintf("| Days Active | %d |\n", o.DaysActive))
	sb.WriteString(fmt.Sprintf("| Open Cost Basis | %s |\n", usd(o.CostBasis)))
	sb.WriteString(fmt.Sprintf("| Queued Shares (locked / unlocked) | %.4f / %.4f |\n", o.QueuedLocked, o.QueuedUnlocked))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.Failures) > 0 {
		sb.WriteString("### Failures\n\n")
		sb.WriteString("| Report | Key | Reason |\n")
		sb.WriteString("|--------|-----|--------|\n")
		for _, f := range r.DataQuality.Failures {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", f.Report, f.Key, f.Reason))
		}
		sb.WriteString("\n")
	}
	if len(r.DataQuality.Warnings) > 0 {
		sb.WriteString("### Gaps Resolved by Fallback\n\n")
		sb.WriteString("| Report | Kind | Key | Date |\n")
		sb.WriteString("|--------|------|-----|------|\n")
		for _, w := range r.DataQuality.Warnings {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", w.Report, w.Kind, w.Key, w.Date))
		}
		sb.WriteString("\n")
	}
	if r.DataQuality.Complete && len(r.DataQuality.Warnings) == 0 {
		sb.WriteString("All values observed directly.\n\n")
	} else if r.DataQuality.Complete {
		sb.WriteString("**Report complete.** Some values were filled from earlier observations.\n\n")
	} else {
		sb.WriteString("**Report partial.** Failed keys are excluded from totals.\n\n")
	}

	// Cost Basis
	sb.WriteString("## Cost Basis\n\n")
	if len(r.CostBasis) > 0 {
		sb.WriteString("| Pool | Asset | Net Tokens | Avg Price | Cost Basis | Deposited | Withdrawn | Realized | ROI | Annualized | Since |\n")
		sb.WriteString("|------|-------|------------|-----------|------------|-----------|-----------|----------|-----|------------|-------|\n")
		for _, c := range r.CostBasis {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.4f | %.4f | %s | %s | %s | %s | %s | %s | %s |\n",
				short(c.PoolID), short(c.AssetAddress), c.NetTokens, c.AvgPrice,
				usd(c.CostBasis), usd(c.DepositedUSD), usd(c.WithdrawnUSD), usd(c.RealizedPnl),
				pct(c.ROI), pct(c.AnnualizedROI), c.FirstDeposit))
		}
	} else {
		sb.WriteString("No positions.\n")
	}
	sb.WriteString("\n")

	// Yield by Source
	sb.WriteString("## Yield by Source\n\n")
	sb.WriteString("| Source | Deposited | Withdrawn | Claimed | Realized | Cost Basis | Current Value | Unrealized |\n")
	sb.WriteString("|--------|-----------|-----------|---------|----------|------------|---------------|------------|\n")
	for _, s := range r.Sources {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			s.Source, usd(s.Deposited), usd(s.Withdrawn), usd(s.Claimed), usd(s.RealizedPnl),
			usd(s.CostBasis), optUSD(s.CurrentValue), optUSD(s.Unrealized)))
	}
	sb.WriteString("\n")

	// Balances
	sb.WriteString(fmt.Sprintf("## Balances (%s to %s)\n\n", r.Range.From, r.Range.To))
	if len(r.Balances) > 0 {
		sb.WriteString("| Pool | Asset | Date | Supply | Collateral | Debt | Net | Interest | Supply APY | Borrow APY |\n")
		sb.WriteString("|------|-------|------|--------|------------|------|-----|----------|------------|------------|\n")
		for _, b := range r.Balances {
			date := b.Date.String()
			if b.Live {
				date += " (live)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.4f | %.4f | %.4f | %.4f | %.4f | %.2f%% | %.2f%% |\n",
				short(b.PoolID), short(b.AssetAddress), date,
				b.SupplyTokens, b.CollateralTokens, b.DebtTokens, b.NetBalance, b.Interest,
				b.SupplyAPY*100, b.BorrowAPY*100))
		}
	} else {
		sb.WriteString("No balance history available.\n")
	}
	sb.WriteString("\n")

	// Backstop Withdrawal Queue
	sb.WriteString("## Backstop Withdrawal Queue\n\n")
	if len(r.Q4W) > 0 {
		sb.WriteString("| Backstop | Locked | Unlocked | Share Rate | Locked USD | Unlocked USD | Next Unlock |\n")
		sb.WriteString("|----------|--------|----------|------------|------------|--------------|-------------|\n")
		for _, q := range r.Q4W {
			next := "-"
			if q.EarliestUnlock != nil {
				next = q.EarliestUnlock.UTC().Format(time.RFC3339)
			}
			sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.6f | %s | %s | %s |\n",
				short(q.PoolID), q.LockedShares, q.UnlockedShares, q.ShareRate,
				usd(q.LockedUSD), usd(q.UnlockedUSD), next))
		}
	} else {
		sb.WriteString("No queued withdrawals.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func usd(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func optUSD(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return usd(*v)
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

// short abbreviates a 56-character address as ABCDEF…WXYZ.
func short(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
