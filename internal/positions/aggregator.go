package positions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wagmibets/predictfolio/internal/chain"
	"github.com/wagmibets/predictfolio/internal/database"
	"github.com/wagmibets/predictfolio/internal/markets"
	"github.com/wagmibets/predictfolio/internal/metrics"
)

// BalanceScanner reads an account's on-chain token holdings
type BalanceScanner interface {
	Scan(ctx context.Context, owner string) ([]chain.TokenBalance, error)
}

// MetadataService is the market-metadata boundary: outcome classification,
// market resolution, and event display data
type MetadataService interface {
	FilterOutcomeMints(ctx context.Context, mints []string) ([]string, error)
	GetMarketsByMints(ctx context.Context, mints []string) ([]markets.Market, error)
	GetMarketByTicker(ctx context.Context, ticker string) (*markets.Market, error)
	GetEventByTicker(ctx context.Context, ticker string) (*markets.Event, error)
}

// LedgerStore reads the durable trade and cost-basis ledgers
type LedgerStore interface {
	GetCostBasisRecords(accountID string) ([]database.CostBasisRecord, error)
	GetDistinctTradedPairs(accountID string) ([]database.TradedPair, error)
}

// QuoteSource supplies fresher quotes than the metadata snapshot, typically
// from a live stream. Optional.
type QuoteSource interface {
	Quote(ticker string) (markets.Quote, bool)
}

// Aggregator merges on-chain balances (quantity truth), cost-basis records
// (economic truth), and market quotes (valuation truth) into one reconciled
// position per (market, side).
type Aggregator struct {
	scanner BalanceScanner
	meta    MetadataService
	store   LedgerStore
	quotes  QuoteSource // may be nil
}

// NewAggregator wires the reconciliation engine. quotes may be nil, in which
// case valuation uses the resolver's quote snapshot only.
func NewAggregator(scanner BalanceScanner, meta MetadataService, store LedgerStore, quotes QuoteSource) *Aggregator {
	return &Aggregator{
		scanner: scanner,
		meta:    meta,
		store:   store,
		quotes:  quotes,
	}
}

// GetPositions reconciles one account into active and previous positions.
// The result is a best-effort point-in-time snapshot: balances and ledger
// rows are read via separate calls and a concurrent trade can leave them
// briefly inconsistent.
func (a *Aggregator) GetPositions(ctx context.Context, accountID string) (*Book, error) {
	start := time.Now()
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	balances, err := a.scanner.Scan(ctx, accountID)
	if err != nil {
		return nil, err
	}

	outcomeBalances, dropped, err := a.resolveHoldings(ctx, balances)
	if err != nil {
		return nil, err
	}

	book := &Book{DroppedMints: dropped}
	byKey := make(map[Key]*Position)

	// Seed from on-chain holdings. This is the only source of CurrentQty.
	for _, h := range outcomeBalances {
		key := Key{MarketTicker: h.market.Ticker, Side: h.side}
		pos, ok := byKey[key]
		if !ok {
			pos = &Position{
				MarketTicker: h.market.Ticker,
				Title:        h.market.Title,
				Side:         h.side,
				EventTicker:  h.market.EventTicker,
				MarketStatus: h.market.Status,
				MarketResult: h.market.Result,
				HasMarket:    true,
				market:       h.market,
			}
			byKey[key] = pos
		}
		pos.CurrentQty = pos.CurrentQty.Add(h.balance.UIAmount)
	}

	// Backfill fully-sold positions: no on-chain balance, but trade history
	if err := a.backfillSoldPositions(ctx, accountID, byKey); err != nil {
		return nil, err
	}

	// Merge in the cost-basis ledger
	records, err := a.store.GetCostBasisRecords(accountID)
	if err != nil {
		return nil, fmt.Errorf("cost basis read failed: %w", err)
	}
	for _, rec := range records {
		key := Key{MarketTicker: rec.MarketTicker, Side: markets.Side(rec.Side)}
		pos, ok := byKey[key]
		if !ok {
			// Ledger knows a pair the balance scan and trade backfill missed;
			// nothing to anchor it to, skip rather than fabricate quantity
			continue
		}
		pos.HasCostBasis = true
		pos.TotalTokensBought = rec.TotalTokensBought
		pos.TotalCostBasis = rec.TotalCostBasis
		pos.TotalTokensSold = rec.TotalTokensSold
		pos.TotalSellProceeds = rec.TotalSellProceeds
		pos.RealizedPnL = rec.RealizedPnL
		pos.CostBasisStatus = rec.Status
	}

	a.attachEventImages(ctx, byKey)

	// Valuation, then bucket
	all := make([]Position, 0, len(byKey))
	for _, pos := range byKey {
		bid, ask := a.quotesFor(pos)
		computeValuation(pos, bid, ask)
		all = append(all, *pos)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].MarketTicker != all[j].MarketTicker {
			return all[i].MarketTicker < all[j].MarketTicker
		}
		return all[i].Side < all[j].Side
	})

	book.Active, book.Previous = Classify(all)

	log.Debug().
		Str("account", accountID).
		Int("active", len(book.Active)).
		Int("previous", len(book.Previous)).
		Int("dropped_mints", book.DroppedMints).
		Msg("Reconciliation complete")

	return book, nil
}

// GetPositionStats reconciles and summarizes one account
func (a *Aggregator) GetPositionStats(ctx context.Context, accountID string) (*Stats, error) {
	book, err := a.GetPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return ComputeStats(book), nil
}

// resolvedHolding is one on-chain balance attached to its market and side
type resolvedHolding struct {
	balance chain.TokenBalance
	market  *markets.Market
	side    markets.Side
}

// resolveHoldings classifies held mints and resolves them to (market, side).
// Holdings that resolve to no market or no side are dropped and counted;
// a dropped holding is safer than a guessed side.
func (a *Aggregator) resolveHoldings(ctx context.Context, balances []chain.TokenBalance) ([]resolvedHolding, int, error) {
	if len(balances) == 0 {
		return nil, 0, nil
	}

	seen := make(map[string]bool, len(balances))
	mints := make([]string, 0, len(balances))
	for _, b := range balances {
		if !seen[b.Mint] {
			seen[b.Mint] = true
			mints = append(mints, b.Mint)
		}
	}

	// Empty classifier answer means the wallet holds no outcome tokens.
	// That is a normal result, not a failure.
	outcomeMints, err := a.meta.FilterOutcomeMints(ctx, mints)
	if err != nil {
		return nil, 0, err
	}
	if len(outcomeMints) == 0 {
		return nil, 0, nil
	}

	mkts, err := a.meta.GetMarketsByMints(ctx, outcomeMints)
	if err != nil {
		return nil, 0, err
	}
	idx := markets.BuildIndex(mkts)

	isOutcome := make(map[string]bool, len(outcomeMints))
	for _, m := range outcomeMints {
		isOutcome[m] = true
	}

	var holdings []resolvedHolding
	dropped := 0
	for _, b := range balances {
		if !isOutcome[b.Mint] {
			continue
		}

		market, ok := idx.Resolve(b.Mint)
		if !ok {
			dropped++
			metrics.DroppedMints.WithLabelValues("no_market").Inc()
			log.Warn().Str("mint", b.Mint).Msg("Outcome mint has no resolvable market, dropping holding")
			continue
		}

		side := market.SideOfMint(b.Mint)
		if side == markets.SideUnknown {
			// Guessing a side here would corrupt PnL
			dropped++
			metrics.DroppedMints.WithLabelValues("unknown_side").Inc()
			log.Warn().
				Str("mint", b.Mint).
				Str("ticker", market.Ticker).
				Msg("Outcome mint maps to no side of its market, dropping holding")
			continue
		}

		holdings = append(holdings, resolvedHolding{balance: b, market: market, side: side})
	}

	return holdings, dropped, nil
}

// backfillSoldPositions adds positions with trade history but zero on-chain
// balance. A sold-out position holds no tokens, so the balance scan alone
// would never see it.
func (a *Aggregator) backfillSoldPositions(ctx context.Context, accountID string, byKey map[Key]*Position) error {
	pairs, err := a.store.GetDistinctTradedPairs(accountID)
	if err != nil {
		return fmt.Errorf("traded pairs read failed: %w", err)
	}

	for _, pair := range pairs {
		key := Key{MarketTicker: pair.MarketTicker, Side: markets.Side(pair.Side)}
		if _, ok := byKey[key]; ok {
			continue
		}

		pos := &Position{
			MarketTicker: pair.MarketTicker,
			Side:         key.Side,
		}

		// Market resolution failing for one historical pair degrades that
		// row's display fields, it does not fail the call
		market, err := a.meta.GetMarketByTicker(ctx, pair.MarketTicker)
		if err != nil {
			log.Warn().
				Err(err).
				Str("ticker", pair.MarketTicker).
				Msg("Could not resolve market for traded pair")
		} else {
			pos.Title = market.Title
			pos.EventTicker = market.EventTicker
			pos.MarketStatus = market.Status
			pos.MarketResult = market.Result
			pos.HasMarket = true
			pos.market = market
		}

		byKey[key] = pos
	}

	return nil
}

// attachEventImages resolves event images for all positions, best effort.
// Lookups for distinct events run in parallel in isolated failure domains;
// a missing image never blocks position reporting.
func (a *Aggregator) attachEventImages(ctx context.Context, byKey map[Key]*Position) {
	tickers := make([]string, 0)
	seen := make(map[string]bool)
	for _, pos := range byKey {
		if pos.EventTicker != "" && !seen[pos.EventTicker] {
			seen[pos.EventTicker] = true
			tickers = append(tickers, pos.EventTicker)
		}
	}
	if len(tickers) == 0 {
		return
	}

	events := make([]*markets.Event, len(tickers))

	var g errgroup.Group
	for i, ticker := range tickers {
		i, ticker := i, ticker
		g.Go(func() error {
			event, err := a.meta.GetEventByTicker(ctx, ticker)
			if err != nil {
				metrics.EventLookupFailures.Inc()
				log.Debug().Err(err).Str("event", ticker).Msg("Event lookup failed")
				return nil
			}
			events[i] = event
			return nil
		})
	}
	_ = g.Wait()

	imageByTicker := make(map[string]string, len(tickers))
	for i, event := range events {
		if event != nil {
			imageByTicker[tickers[i]] = event.ImageURL
		}
	}

	for _, pos := range byKey {
		if url, ok := imageByTicker[pos.EventTicker]; ok {
			pos.EventImageURL = url
		}
	}
}

// quotesFor picks the freshest available bid/ask for a position's side:
// the live quote stream when it has the ticker, otherwise the market
// snapshot from resolution.
func (a *Aggregator) quotesFor(pos *Position) (bid, ask *decimal.Decimal) {
	if pos.market == nil {
		return nil, nil
	}

	if a.quotes != nil {
		if q, ok := a.quotes.Quote(pos.MarketTicker); ok {
			switch pos.Side {
			case markets.SideYes:
				if q.YesBid != nil || q.YesAsk != nil {
					return q.YesBid, q.YesAsk
				}
			case markets.SideNo:
				if q.NoBid != nil || q.NoAsk != nil {
					return q.NoBid, q.NoAsk
				}
			}
		}
	}

	return pos.market.QuoteForSide(pos.Side)
}
