package positions

import (
	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// midpoint returns the best available point estimate of current price:
// the bid/ask mid when both quotes exist, a single quote when only one does,
// nil when the market has no active quote. Zero is a valid price; nil means
// unknown.
func midpoint(bid, ask *decimal.Decimal) *decimal.Decimal {
	switch {
	case bid != nil && ask != nil:
		mid := bid.Add(*ask).Div(two)
		return &mid
	case bid != nil:
		return bid
	case ask != nil:
		return ask
	default:
		return nil
	}
}

// computeValuation derives the price-dependent fields of a position from one
// side's bid/ask quotes. It is pure: cost-basis sums arrive pre-aggregated
// from the ledger record and are never re-summed from raw fills here.
func computeValuation(p *Position, bid, ask *decimal.Decimal) {
	if p.HasCostBasis && p.TotalTokensBought.IsPositive() {
		avg := p.TotalCostBasis.Div(p.TotalTokensBought)
		p.AvgEntryPrice = &avg
	}

	price := midpoint(bid, ask)
	if price == nil {
		// No quote: unknown propagates, never zero
		p.CurrentPrice = nil
		p.CurrentValue = nil
		p.UnrealizedPnL = nil
		p.TotalPnL = nil
		return
	}

	p.CurrentPrice = price

	value := p.CurrentQty.Mul(*price)
	p.CurrentValue = &value

	// Unrealized PnL needs a cost basis to compare against
	if !p.HasCostBasis || !p.TotalTokensBought.IsPositive() {
		p.UnrealizedPnL = nil
		p.TotalPnL = nil
		return
	}

	remainingQty := p.TotalTokensBought.Sub(p.TotalTokensSold)
	remainingCost := p.TotalCostBasis.Mul(remainingQty).Div(p.TotalTokensBought)

	unrealized := value.Sub(remainingCost)
	p.UnrealizedPnL = &unrealized

	total := p.RealizedPnL.Add(unrealized)
	p.TotalPnL = &total
}
