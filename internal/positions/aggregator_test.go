package positions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagmibets/predictfolio/internal/chain"
	"github.com/wagmibets/predictfolio/internal/database"
	"github.com/wagmibets/predictfolio/internal/markets"
)

const testAccount = "8Yp5vyGzXe41sZP6LBPiJSBsBt8XYfVTLQ2gkM9rbFAo"

// Fakes

type fakeScanner struct {
	balances []chain.TokenBalance
	err      error
}

func (f *fakeScanner) Scan(_ context.Context, _ string) ([]chain.TokenBalance, error) {
	return f.balances, f.err
}

type fakeMeta struct {
	outcomeMints []string
	markets      []markets.Market
	byTicker     map[string]*markets.Market
	events       map[string]*markets.Event

	filterErr  error
	marketsErr error
}

func (f *fakeMeta) FilterOutcomeMints(_ context.Context, _ []string) ([]string, error) {
	return f.outcomeMints, f.filterErr
}

func (f *fakeMeta) GetMarketsByMints(_ context.Context, _ []string) ([]markets.Market, error) {
	return f.markets, f.marketsErr
}

func (f *fakeMeta) GetMarketByTicker(_ context.Context, ticker string) (*markets.Market, error) {
	if m, ok := f.byTicker[ticker]; ok {
		return m, nil
	}
	return nil, markets.ErrMarketNotFound
}

func (f *fakeMeta) GetEventByTicker(_ context.Context, ticker string) (*markets.Event, error) {
	if e, ok := f.events[ticker]; ok {
		return e, nil
	}
	return nil, errors.New("event lookup failed")
}

type fakeStore struct {
	records []database.CostBasisRecord
	pairs   []database.TradedPair
}

func (f *fakeStore) GetCostBasisRecords(_ string) ([]database.CostBasisRecord, error) {
	return f.records, nil
}

func (f *fakeStore) GetDistinctTradedPairs(_ string) ([]database.TradedPair, error) {
	return f.pairs, nil
}

type fakeQuotes struct {
	quotes map[string]markets.Quote
}

func (f *fakeQuotes) Quote(ticker string) (markets.Quote, bool) {
	q, ok := f.quotes[ticker]
	return q, ok
}

// Helpers

func balance(mint, amount string) chain.TokenBalance {
	return chain.TokenBalance{Mint: mint, Decimals: 6, UIAmount: d(amount)}
}

func usdcAccount(yesMint, noMint string) markets.SettlementAccount {
	return markets.SettlementAccount{
		SettlementMint: "USDCmint1111111111111111111111111111111111",
		YesMint:        yesMint,
		NoMint:         noMint,
		MarketLedger:   "ledger-" + yesMint,
	}
}

// The worked scenario end to end: on-chain balance is quantity truth, the
// ledger is economic truth, quotes are valuation truth.
func TestGetPositionsWorkedScenario(t *testing.T) {
	market := markets.Market{
		Ticker:      "ABC-1",
		Title:       "Will ABC happen?",
		Status:      "active",
		EventTicker: "ABC",
		YesBid:      dp("0.55"),
		YesAsk:      dp("0.65"),
		Accounts: map[string]markets.SettlementAccount{
			"USDC": usdcAccount("M_yes", "M_no"),
		},
	}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("M_yes", "1000")}},
		&fakeMeta{
			outcomeMints: []string{"M_yes"},
			markets:      []markets.Market{market},
			events:       map[string]*markets.Event{"ABC": {Ticker: "ABC", ImageURL: "https://img.example/abc.png"}},
		},
		&fakeStore{records: []database.CostBasisRecord{{
			AccountID:         testAccount,
			MarketTicker:      "ABC-1",
			Side:              "yes",
			TotalTokensBought: d("1200"),
			TotalCostBasis:    d("600"),
			TotalTokensSold:   d("200"),
			TotalSellProceeds: d("130"),
			RealizedPnL:       d("10"),
			Status:            database.StatusPartiallyClosed,
		}}},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)

	require.Len(t, book.Active, 1)
	assert.Empty(t, book.Previous)
	assert.Equal(t, 0, book.DroppedMints)

	p := book.Active[0]
	assert.Equal(t, "ABC-1", p.MarketTicker)
	assert.Equal(t, markets.SideYes, p.Side)
	assert.True(t, p.CurrentQty.Equal(d("1000")))
	assert.Equal(t, "https://img.example/abc.png", p.EventImageURL)
	assert.Equal(t, database.StatusPartiallyClosed, p.CostBasisStatus)

	require.NotNil(t, p.CurrentPrice)
	assert.True(t, p.CurrentPrice.Equal(d("0.6")))
	require.NotNil(t, p.CurrentValue)
	assert.True(t, p.CurrentValue.Equal(d("600")))
	require.NotNil(t, p.UnrealizedPnL)
	assert.True(t, p.UnrealizedPnL.Equal(d("100")))
	require.NotNil(t, p.TotalPnL)
	assert.True(t, p.TotalPnL.Equal(d("110")))
}

// Changing the ledger must never change the held quantity.
func TestGetPositionsQuantityAuthority(t *testing.T) {
	market := markets.Market{
		Ticker: "QTY-1",
		Status: "active",
		Accounts: map[string]markets.SettlementAccount{
			"USDC": usdcAccount("Q_yes", "Q_no"),
		},
	}

	store := &fakeStore{records: []database.CostBasisRecord{{
		MarketTicker:      "QTY-1",
		Side:              "yes",
		TotalTokensBought: d("999999"), // ledger disagrees wildly
		TotalCostBasis:    d("1"),
	}}}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("Q_yes", "42")}},
		&fakeMeta{outcomeMints: []string{"Q_yes"}, markets: []markets.Market{market}},
		store,
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, book.Active, 1)
	assert.True(t, book.Active[0].CurrentQty.Equal(d("42")))
}

// A market with two settlement currencies must map tokens from either
// settlement to the right side without cross-mapping, and sum them into one
// position per side.
func TestGetPositionsMultiSettlement(t *testing.T) {
	market := markets.Market{
		Ticker: "MULTI-1",
		Status: "open",
		Accounts: map[string]markets.SettlementAccount{
			"USDC": {SettlementMint: "USDC", YesMint: "Y1", NoMint: "N1"},
			"USDT": {SettlementMint: "USDT", YesMint: "Y2", NoMint: "N2"},
		},
	}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{
			balance("Y1", "100"),
			balance("Y2", "50"),
			balance("N2", "25"),
		}},
		&fakeMeta{outcomeMints: []string{"Y1", "Y2", "N2"}, markets: []markets.Market{market}},
		&fakeStore{},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)

	all := append(book.Active, book.Previous...)
	require.Len(t, all, 2)

	byKey := make(map[Key]Position)
	for _, p := range all {
		byKey[p.Key()] = p
	}

	yes, ok := byKey[Key{MarketTicker: "MULTI-1", Side: markets.SideYes}]
	require.True(t, ok)
	assert.True(t, yes.CurrentQty.Equal(d("150")), "yes side sums across settlements, got %s", yes.CurrentQty)

	no, ok := byKey[Key{MarketTicker: "MULTI-1", Side: markets.SideNo}]
	require.True(t, ok)
	assert.True(t, no.CurrentQty.Equal(d("25")))
}

// A fully sold position has no on-chain balance and must be backfilled from
// the trade ledger, never silently omitted.
func TestGetPositionsFullySoldBackfill(t *testing.T) {
	sold := &markets.Market{
		Ticker:      "SOLD-1",
		Title:       "Old market",
		Status:      "finalized",
		EventTicker: "SOLD",
		Result:      "yes",
	}

	agg := NewAggregator(
		&fakeScanner{},
		&fakeMeta{byTicker: map[string]*markets.Market{"SOLD-1": sold}},
		&fakeStore{
			pairs: []database.TradedPair{{MarketTicker: "SOLD-1", Side: "yes"}},
			records: []database.CostBasisRecord{{
				MarketTicker:      "SOLD-1",
				Side:              "yes",
				TotalTokensBought: d("500"),
				TotalCostBasis:    d("250"),
				TotalTokensSold:   d("500"),
				TotalSellProceeds: d("400"),
				RealizedPnL:       d("150"),
				Status:            database.StatusClosed,
			}},
		},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)

	assert.Empty(t, book.Active)
	require.Len(t, book.Previous, 1)

	p := book.Previous[0]
	assert.Equal(t, "SOLD-1", p.MarketTicker)
	assert.True(t, p.CurrentQty.IsZero())
	assert.True(t, p.RealizedPnL.Equal(d("150")))
	assert.Equal(t, database.StatusClosed, p.CostBasisStatus)
}

// A backfilled pair whose market no longer resolves is still reported, in
// previous, with display fields defaulted.
func TestGetPositionsBackfillUnresolvableMarket(t *testing.T) {
	agg := NewAggregator(
		&fakeScanner{},
		&fakeMeta{},
		&fakeStore{pairs: []database.TradedPair{{MarketTicker: "GONE-1", Side: "no"}}},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)

	require.Len(t, book.Previous, 1)
	p := book.Previous[0]
	assert.False(t, p.HasMarket)
	assert.Nil(t, p.CurrentPrice)
	assert.Nil(t, p.TotalPnL)
}

// Held outcome mints without a resolvable market are dropped, and the drop is
// surfaced as a count.
func TestGetPositionsUnresolvableMintDropped(t *testing.T) {
	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("orphan", "10")}},
		&fakeMeta{outcomeMints: []string{"orphan"}},
		&fakeStore{},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)

	assert.Empty(t, book.Active)
	assert.Empty(t, book.Previous)
	assert.Equal(t, 1, book.DroppedMints)
}

// A mint the index resolves (via a market ledger account) but that maps to
// neither side must be dropped rather than guessed.
func TestGetPositionsUnknownSideDropped(t *testing.T) {
	market := markets.Market{
		Ticker: "WEIRD-1",
		Status: "active",
		Accounts: map[string]markets.SettlementAccount{
			"USDC": {SettlementMint: "USDC", YesMint: "W_yes", NoMint: "W_no", MarketLedger: "W_ledger"},
		},
	}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("W_ledger", "10")}},
		&fakeMeta{outcomeMints: []string{"W_ledger"}, markets: []markets.Market{market}},
		&fakeStore{},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Empty(t, book.Active)
	assert.Empty(t, book.Previous)
	assert.Equal(t, 1, book.DroppedMints)
}

// Holdings without a ledger record still report quantity, with economics
// unknown rather than failing.
func TestGetPositionsMissingCostBasis(t *testing.T) {
	market := markets.Market{
		Ticker: "NOCB-1",
		Status: "active",
		Accounts: map[string]markets.SettlementAccount{
			"USDC": usdcAccount("NC_yes", "NC_no"),
		},
		YesBid: dp("0.4"),
		YesAsk: dp("0.6"),
	}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("NC_yes", "7")}},
		&fakeMeta{outcomeMints: []string{"NC_yes"}, markets: []markets.Market{market}},
		&fakeStore{},
		nil,
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, book.Active, 1)

	p := book.Active[0]
	assert.False(t, p.HasCostBasis)
	assert.True(t, p.CurrentQty.Equal(d("7")))
	require.NotNil(t, p.CurrentValue)
	assert.True(t, p.CurrentValue.Equal(d("3.5")))
	assert.Nil(t, p.UnrealizedPnL)
	assert.Nil(t, p.TotalPnL)
}

// An empty wallet is a normal answer, not a failure.
func TestGetPositionsEmptyWallet(t *testing.T) {
	agg := NewAggregator(&fakeScanner{}, &fakeMeta{}, &fakeStore{}, nil)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Empty(t, book.Active)
	assert.Empty(t, book.Previous)
}

// The classifier being down must abort the call: an empty answer here would
// be indistinguishable from a truly empty wallet.
func TestGetPositionsClassifierDown(t *testing.T) {
	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("M", "1")}},
		&fakeMeta{filterErr: markets.ErrUpstreamUnavailable},
		&fakeStore{},
		nil,
	)

	_, err := agg.GetPositions(context.Background(), testAccount)
	require.Error(t, err)
	assert.ErrorIs(t, err, markets.ErrUpstreamUnavailable)
}

func TestGetPositionsInvalidAddress(t *testing.T) {
	agg := NewAggregator(&fakeScanner{err: chain.ErrInvalidAddress}, &fakeMeta{}, &fakeStore{}, nil)

	_, err := agg.GetPositions(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, chain.ErrInvalidAddress)
}

// Live stream quotes take precedence over resolver snapshot quotes.
func TestGetPositionsLiveQuoteOverride(t *testing.T) {
	market := markets.Market{
		Ticker: "LIVE-1",
		Status: "active",
		Accounts: map[string]markets.SettlementAccount{
			"USDC": usdcAccount("L_yes", "L_no"),
		},
		YesBid: dp("0.10"),
		YesAsk: dp("0.20"),
	}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("L_yes", "100")}},
		&fakeMeta{outcomeMints: []string{"L_yes"}, markets: []markets.Market{market}},
		&fakeStore{},
		&fakeQuotes{quotes: map[string]markets.Quote{
			"LIVE-1": {YesBid: dp("0.70"), YesAsk: dp("0.80")},
		}},
	)

	book, err := agg.GetPositions(context.Background(), testAccount)
	require.NoError(t, err)
	require.Len(t, book.Active, 1)

	require.NotNil(t, book.Active[0].CurrentPrice)
	assert.True(t, book.Active[0].CurrentPrice.Equal(d("0.75")))
}

func TestGetPositionStats(t *testing.T) {
	market := markets.Market{
		Ticker: "ST-1",
		Status: "active",
		Accounts: map[string]markets.SettlementAccount{
			"USDC": usdcAccount("S_yes", "S_no"),
		},
		YesBid: dp("0.55"),
		YesAsk: dp("0.65"),
	}

	agg := NewAggregator(
		&fakeScanner{balances: []chain.TokenBalance{balance("S_yes", "1000")}},
		&fakeMeta{outcomeMints: []string{"S_yes"}, markets: []markets.Market{market}},
		&fakeStore{records: []database.CostBasisRecord{{
			MarketTicker:      "ST-1",
			Side:              "yes",
			TotalTokensBought: d("1200"),
			TotalCostBasis:    d("600"),
			TotalTokensSold:   d("200"),
			RealizedPnL:       d("10"),
			Status:            database.StatusPartiallyClosed,
		}}},
		nil,
	)

	stats, err := agg.GetPositionStats(context.Background(), testAccount)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalPositions)
	assert.Equal(t, 1, stats.ActivePositions)
	assert.Equal(t, 1, stats.WinningPositions)
	assert.Equal(t, 0, stats.LosingPositions)
	assert.True(t, stats.TotalProfitLoss.Equal(d("110")))
	assert.Equal(t, "100", stats.WinRate.String())
}
