package positions

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/wagmibets/predictfolio/internal/markets"
)

func mkMarket(ticker, status string) *markets.Market {
	return &markets.Market{Ticker: ticker, Status: status}
}

func TestClassify(t *testing.T) {
	held := d("10")

	all := []Position{
		{MarketTicker: "A", CurrentQty: held, HasMarket: true, market: mkMarket("A", "active")},
		{MarketTicker: "B", CurrentQty: held, HasMarket: true, market: mkMarket("B", "trading")},
		{MarketTicker: "C", CurrentQty: held, HasMarket: true, market: mkMarket("C", "determined")},
		{MarketTicker: "D", CurrentQty: held, HasMarket: true, market: mkMarket("D", "finalized")},
		// Fully exited: previous even though the market is still active
		{MarketTicker: "E", CurrentQty: decimal.Zero, HasMarket: true, market: mkMarket("E", "active")},
		// No resolvable market: cannot verify tradability
		{MarketTicker: "F", CurrentQty: held, HasMarket: false},
	}

	active, previous := Classify(all)

	activeTickers := tickers(active)
	previousTickers := tickers(previous)

	assert.ElementsMatch(t, []string{"A", "B"}, activeTickers)
	assert.ElementsMatch(t, []string{"C", "D", "E", "F"}, previousTickers)

	// Totality: every position in exactly one bucket
	assert.Equal(t, len(all), len(active)+len(previous))
	for _, ticker := range activeTickers {
		assert.NotContains(t, previousTickers, ticker)
	}
}

func TestClassifyEmpty(t *testing.T) {
	active, previous := Classify(nil)
	assert.Empty(t, active)
	assert.Empty(t, previous)
}

func tickers(list []Position) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.MarketTicker)
	}
	return out
}
