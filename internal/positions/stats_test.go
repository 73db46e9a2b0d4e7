package positions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStats(t *testing.T) {
	book := &Book{
		Active: []Position{
			{MarketTicker: "A", TotalPnL: dp("110")},
			{MarketTicker: "B", TotalPnL: dp("-30")},
		},
		Previous: []Position{
			{MarketTicker: "C", TotalPnL: dp("20")},
			{MarketTicker: "D", TotalPnL: nil}, // unknown PnL: counted, not scored
		},
		DroppedMints: 2,
	}

	stats := ComputeStats(book)

	assert.Equal(t, 4, stats.TotalPositions)
	assert.Equal(t, 2, stats.ActivePositions)
	assert.Equal(t, 2, stats.WinningPositions)
	assert.Equal(t, 1, stats.LosingPositions)
	assert.Equal(t, 2, stats.DroppedMints)
	assert.True(t, stats.TotalProfitLoss.Equal(d("100")))

	// 2 wins of 3 decided
	assert.Equal(t, "66.67", stats.WinRate.StringFixed(2))
}

func TestComputeStatsEmptyBook(t *testing.T) {
	stats := ComputeStats(&Book{})

	assert.Equal(t, 0, stats.TotalPositions)
	assert.True(t, stats.TotalProfitLoss.IsZero())
	assert.True(t, stats.WinRate.IsZero())
}
