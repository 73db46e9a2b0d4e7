package positions

// Classify partitions positions into active (open, tradable) and previous
// (exited, resolved, or unverifiable) buckets. Total: every position lands in
// exactly one bucket.
func Classify(all []Position) (active, previous []Position) {
	active = make([]Position, 0, len(all))
	previous = make([]Position, 0)

	for _, p := range all {
		switch {
		case p.CurrentQty.IsZero():
			// Fully exited, regardless of market status
			previous = append(previous, p)
		case !p.HasMarket || p.market == nil:
			// Cannot verify the market is tradable
			previous = append(previous, p)
		case p.market.IsTradable():
			active = append(active, p)
		default:
			previous = append(previous, p)
		}
	}

	return active, previous
}
