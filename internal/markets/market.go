package markets

import (
	"github.com/shopspring/decimal"
)

// Side identifies which outcome of a binary market a token represents
type Side string

const (
	SideYes     Side = "yes"
	SideNo      Side = "no"
	SideUnknown Side = "unknown"
)

// Market statuses under which a position can still be traded
const (
	StatusActive  = "active"
	StatusOpen    = "open"
	StatusTrading = "trading"
)

// SettlementAccount is a market's configuration for one settlement currency:
// that currency's yes/no outcome mint pair and redemption state
type SettlementAccount struct {
	SettlementMint   string           `json:"settlement_mint"`
	YesMint          string           `json:"yes_mint"`
	NoMint           string           `json:"no_mint"`
	MarketLedger     string           `json:"market_ledger"`
	RedemptionStatus string           `json:"redemption_status"`
	ScalarOutcomePct *decimal.Decimal `json:"scalar_outcome_pct,omitempty"`
}

// Market is one binary prediction market as served by the metadata service.
// A market may expose several settlement currencies, each with its own
// yes/no mint pair; older markets carry a single flat pair instead.
type Market struct {
	Ticker      string `json:"ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	EventTicker string `json:"event_ticker"`
	Result      string `json:"result"` // "yes", "no" or "" while undetermined

	YesBid *decimal.Decimal `json:"yes_bid"`
	YesAsk *decimal.Decimal `json:"yes_ask"`
	NoBid  *decimal.Decimal `json:"no_bid"`
	NoAsk  *decimal.Decimal `json:"no_ask"`

	// Settlement-currency variants keyed by settlement mint
	Accounts map[string]SettlementAccount `json:"accounts"`

	// Legacy single-settlement fields, still emitted for old markets
	YesMint string `json:"yes_mint"`
	NoMint  string `json:"no_mint"`
}

// Event is the parent event a market belongs to
type Event struct {
	Ticker   string `json:"ticker"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// Quote is a yes/no bid-ask snapshot for one market
type Quote struct {
	YesBid *decimal.Decimal
	YesAsk *decimal.Decimal
	NoBid  *decimal.Decimal
	NoAsk  *decimal.Decimal
}

// SideOfMint reports whether mint is the yes or the no token of this market.
// Every settlement-account entry is checked before falling back to the legacy
// flat fields, so multi-settlement markets resolve without cross-mapping.
// Mints the market does not know map to SideUnknown and must be excluded from
// aggregation rather than defaulted to a side.
func (m *Market) SideOfMint(mint string) Side {
	for _, acct := range m.Accounts {
		if acct.YesMint == mint {
			return SideYes
		}
		if acct.NoMint == mint {
			return SideNo
		}
	}
	if m.YesMint != "" && m.YesMint == mint {
		return SideYes
	}
	if m.NoMint != "" && m.NoMint == mint {
		return SideNo
	}
	return SideUnknown
}

// QuoteForSide returns the bid/ask pair for one side of the market
func (m *Market) QuoteForSide(side Side) (bid, ask *decimal.Decimal) {
	switch side {
	case SideYes:
		return m.YesBid, m.YesAsk
	case SideNo:
		return m.NoBid, m.NoAsk
	default:
		return nil, nil
	}
}

// IsTradable reports whether the market still accepts orders
func (m *Market) IsTradable() bool {
	switch m.Status {
	case StatusActive, StatusOpen, StatusTrading:
		return true
	default:
		return false
	}
}
