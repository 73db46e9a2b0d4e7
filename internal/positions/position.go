package positions

import (
	"github.com/shopspring/decimal"

	"github.com/wagmibets/predictfolio/internal/markets"
)

// Key identifies a position by market and side. Used directly as a map key so
// delimiter characters in tickers can never collide.
type Key struct {
	MarketTicker string
	Side         markets.Side
}

// Position is the reconciled view of one (market, side) an account has ever
// touched: on-chain quantity, ledger cost basis, and market valuation merged
// into a single row.
type Position struct {
	MarketTicker string       `json:"market_ticker"`
	Title        string       `json:"title,omitempty"`
	Side         markets.Side `json:"side"`

	EventTicker   string `json:"event_ticker,omitempty"`
	EventImageURL string `json:"event_image_url,omitempty"`

	MarketStatus string `json:"market_status,omitempty"`
	MarketResult string `json:"market_result,omitempty"`
	HasMarket    bool   `json:"has_market"`

	// Quantity truth: the on-chain balance, never the ledger
	CurrentQty decimal.Decimal `json:"current_qty"`

	// Economic truth: read from the cost-basis ledger, never recomputed here
	HasCostBasis      bool            `json:"has_cost_basis"`
	TotalTokensBought decimal.Decimal `json:"total_tokens_bought"`
	TotalCostBasis    decimal.Decimal `json:"total_cost_basis"`
	TotalTokensSold   decimal.Decimal `json:"total_tokens_sold"`
	TotalSellProceeds decimal.Decimal `json:"total_sell_proceeds"`
	RealizedPnL       decimal.Decimal `json:"realized_pnl"`
	CostBasisStatus   string          `json:"cost_basis_status,omitempty"`

	// Valuation: nil means unknown, which is distinct from zero
	AvgEntryPrice *decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  *decimal.Decimal `json:"current_price"`
	CurrentValue  *decimal.Decimal `json:"current_value"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL      *decimal.Decimal `json:"total_pnl"`

	market *markets.Market
}

// Key returns the position's composite key
func (p *Position) Key() Key {
	return Key{MarketTicker: p.MarketTicker, Side: p.Side}
}

// Book is the full reconciled position set for one account
type Book struct {
	Active   []Position `json:"active"`
	Previous []Position `json:"previous"`

	// DroppedMints counts outcome holdings that could not be attached to a
	// market and side, surfaced for reconciliation audits
	DroppedMints int `json:"dropped_mints"`
}
