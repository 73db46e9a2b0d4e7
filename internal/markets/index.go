package markets

// Index maps every outcome mint (and market ledger account) to its owning
// market, covering each settlement-account variant rather than only the
// flat legacy pair.
type Index struct {
	byMint map[string]*Market
}

// BuildIndex constructs a mint lookup over the given markets
func BuildIndex(mkts []Market) *Index {
	idx := &Index{byMint: make(map[string]*Market)}
	for i := range mkts {
		m := &mkts[i]
		for _, acct := range m.Accounts {
			idx.add(acct.YesMint, m)
			idx.add(acct.NoMint, m)
			idx.add(acct.MarketLedger, m)
		}
		idx.add(m.YesMint, m)
		idx.add(m.NoMint, m)
	}
	return idx
}

func (idx *Index) add(mint string, m *Market) {
	if mint == "" {
		return
	}
	idx.byMint[mint] = m
}

// Resolve returns the market that owns the given mint, if any
func (idx *Index) Resolve(mint string) (*Market, bool) {
	m, ok := idx.byMint[mint]
	return m, ok
}

// Len returns the number of indexed mints
func (idx *Index) Len() int {
	return len(idx.byMint)
}
