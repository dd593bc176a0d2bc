package reporting

import (
	"fmt"
	"strings"
	"time"

	"blend-portfolio/internal/domain"
)

// RenderCostBasisCSV renders cost basis rows as CSV string.
func RenderCostBasisCSV(rows []CostBasisRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("pool_id,asset_address,net_tokens,weighted_avg_price,cost_basis,")
	sb.WriteString("deposited_usd,withdrawn_usd,realized_pnl,roi,annualized_roi,first_deposit\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%.8f,%.8f,%.6f,%.6f,%.6f,%.6f,%s,%s,%s\n",
			r.PoolID,
			r.AssetAddress,
			r.NetTokens,
			r.AvgPrice,
			r.CostBasis,
			r.DepositedUSD,
			r.WithdrawnUSD,
			r.RealizedPnl,
			optFloat(r.ROI),
			optFloat(r.AnnualizedROI),
			r.FirstDeposit,
		))
	}

	return sb.String()
}

// RenderBalancesCSV renders every snapshot of the histories as CSV string.
func RenderBalancesCSV(histories []domain.BalanceHistory) string {
	var sb strings.Builder

	sb.WriteString("pool_id,asset_address,date,supply_btokens,collateral_btokens,liabilities_dtokens,")
	sb.WriteString("b_rate,d_rate,supply_tokens,collateral_tokens,liabilities_tokens,net_balance,rate_provenance,live\n")

	for _, h := range histories {
		for _, s := range h.Snapshots {
			sb.WriteString(fmt.Sprintf("%s,%s,%s,%.8f,%.8f,%.8f,%.12f,%.12f,%.8f,%.8f,%.8f,%.8f,%s,%t\n",
				s.PoolID,
				s.AssetAddress,
				s.Date,
				s.SupplyBTokens,
				s.CollateralBTokens,
				s.LiabilitiesDTokens,
				s.BRate,
				s.DRate,
				s.SupplyTokens,
				s.CollateralTokens,
				s.LiabilitiesTokens,
				s.NetBalance,
				s.RateProvenance,
				s.Live,
			))
		}
	}

	return sb.String()
}

// RenderTransactionsCSV renders priced cash flows as CSV string.
func RenderTransactionsCSV(txs []domain.Transaction) string {
	var sb strings.Builder

	sb.WriteString("time,date,source,action,pool_id,token,amount,price_usd,value_usd,price_source,tx_hash\n")

	for _, t := range txs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%.8f,%.8f,%.6f,%s,%s\n",
			t.Time.UTC().Format(time.RFC3339),
			t.Date,
			t.Source,
			t.ActionType,
			t.PoolID,
			t.Token,
			t.Amount,
			t.PriceUSD,
			t.ValueUSD,
			t.PriceSource,
			t.TxHash,
		))
	}

	return sb.String()
}

// RenderQ4WCSV renders withdrawal-queue positions as CSV string.
func RenderQ4WCSV(positions []domain.Q4WPosition) string {
	var sb strings.Builder

	sb.WriteString("user_address,pool_id,locked_shares,unlocked_shares,share_rate,locked_lp,unlocked_lp,")
	sb.WriteString("locked_usd,unlocked_usd,earliest_unlock\n")

	for _, p := range positions {
		next := ""
		if p.EarliestUnlock != nil {
			next = p.EarliestUnlock.UTC().Format(time.RFC3339)
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%.8f,%.8f,%.8f,%.8f,%.8f,%.6f,%.6f,%s\n",
			p.UserAddress,
			p.PoolID,
			p.LockedShares,
			p.UnlockedShares,
			p.ShareRate,
			p.LockedLP,
			p.UnlockedLP,
			p.LockedUSD,
			p.UnlockedUSD,
			next,
		))
	}

	return sb.String()
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.6f", *v)
}
