// Package ranking implements the total order on bids: amount descending,
// timestamp ascending, store insertion order ascending. The order is stable
// and deterministic; re-ranking the same multiset yields the same result.
package ranking

import (
	"sort"

	"auction-house/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Less reports whether bid a ranks strictly ahead of bid b.
func Less(a, b domain.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

// Rank returns a new slice sorted by the ranking rule. The input is not
// modified.
func Rank(bids []domain.Bid) []domain.Bid {
	ranked := make([]domain.Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	return ranked
}

// Split ranks the bids and returns the top n as winners and the remainder as
// losers. n <= 0 yields no winners.
func Split(bids []domain.Bid, n int) (winners, losers []domain.Bid) {
	ranked := Rank(bids)
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n], ranked[n:]
}

// MinimumRequired computes the admission floor over the current top amount:
// ceil(top * (1 + stepPercent/100)). Decimal arithmetic keeps the ceiling
// exact for any int64 amount.
func MinimumRequired(top int64, stepPercent int64) int64 {
	factor := decimal.NewFromInt(100 + stepPercent).Div(decimal.NewFromInt(100))
	return decimal.NewFromInt(top).Mul(factor).Ceil().IntPart()
}
