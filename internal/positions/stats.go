package positions

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Stats is an account-level summary of the reconciled book
type Stats struct {
	TotalPositions   int             `json:"total_positions"`
	ActivePositions  int             `json:"active_positions"`
	TotalProfitLoss  decimal.Decimal `json:"total_profit_loss"`
	WinningPositions int             `json:"winning_positions"`
	LosingPositions  int             `json:"losing_positions"`
	WinRate          decimal.Decimal `json:"win_rate"`
	DroppedMints     int             `json:"dropped_mints"`
}

// ComputeStats summarizes a book. Positions with unknown PnL count toward
// totals but toward neither the winning nor the losing side.
func ComputeStats(book *Book) *Stats {
	stats := &Stats{
		TotalPositions:  len(book.Active) + len(book.Previous),
		ActivePositions: len(book.Active),
		DroppedMints:    book.DroppedMints,
	}

	tally := func(list []Position) {
		for _, p := range list {
			if p.TotalPnL == nil {
				continue
			}
			stats.TotalProfitLoss = stats.TotalProfitLoss.Add(*p.TotalPnL)
			switch {
			case p.TotalPnL.IsPositive():
				stats.WinningPositions++
			case p.TotalPnL.IsNegative():
				stats.LosingPositions++
			}
		}
	}
	tally(book.Active)
	tally(book.Previous)

	decided := stats.WinningPositions + stats.LosingPositions
	if decided > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningPositions)).
			Div(decimal.NewFromInt(int64(decided))).
			Mul(hundred)
	}

	return stats
}
