package ranking

import (
	"math/rand"
	"testing"
	"time"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bid(amount int64, ts time.Time, seq int64) domain.Bid {
	return domain.Bid{
		ID:        uuid.New(),
		Amount:    amount,
		Timestamp: ts,
		Seq:       seq,
		Status:    domain.BidStatusActive,
	}
}

func TestRank_AmountDescending(t *testing.T) {
	now := time.Now()
	bids := []domain.Bid{
		bid(50, now, 1),
		bid(200, now, 2),
		bid(100, now, 3),
		bid(150, now, 4),
	}

	ranked := Rank(bids)

	amounts := make([]int64, len(ranked))
	for i, b := range ranked {
		amounts[i] = b.Amount
	}
	assert.Equal(t, []int64{200, 150, 100, 50}, amounts)
}

func TestRank_TieBrokenByEarliestTimestamp(t *testing.T) {
	base := time.Now()
	early := bid(100, base, 1)
	late := bid(100, base.Add(30*time.Millisecond), 2)

	ranked := Rank([]domain.Bid{late, early})

	require.Len(t, ranked, 2)
	assert.Equal(t, early.ID, ranked[0].ID)
	assert.Equal(t, late.ID, ranked[1].ID)
}

func TestRank_SameMillisecondFallsBackToSeq(t *testing.T) {
	ts := time.Now()
	first := bid(100, ts, 7)
	second := bid(100, ts, 8)

	ranked := Rank([]domain.Bid{second, first})

	assert.Equal(t, first.ID, ranked[0].ID)
	assert.Equal(t, second.ID, ranked[1].ID)
}

func TestRank_InputNotModified(t *testing.T) {
	now := time.Now()
	bids := []domain.Bid{bid(10, now, 1), bid(20, now, 2)}

	Rank(bids)

	assert.Equal(t, int64(10), bids[0].Amount)
	assert.Equal(t, int64(20), bids[1].Amount)
}

func TestRank_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Now()

	bids := make([]domain.Bid, 50)
	for i := range bids {
		bids[i] = bid(int64(rng.Intn(10))*10, base.Add(time.Duration(rng.Intn(5))*time.Millisecond), int64(i))
	}

	first := Rank(bids)

	// Shuffle and re-rank: same multiset must yield the same order.
	shuffled := make([]domain.Bid, len(bids))
	copy(shuffled, bids)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second := Rank(shuffled)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "position %d", i)
	}

	// Verify the order agrees with (amount desc, timestamp asc).
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if prev.Amount == cur.Amount {
			assert.False(t, cur.Timestamp.Before(prev.Timestamp))
		} else {
			assert.Greater(t, prev.Amount, cur.Amount)
		}
	}
}

func TestSplit(t *testing.T) {
	now := time.Now()
	bids := []domain.Bid{
		bid(50, now, 1),
		bid(200, now, 2),
		bid(100, now, 3),
	}

	winners, losers := Split(bids, 2)
	require.Len(t, winners, 2)
	require.Len(t, losers, 1)
	assert.Equal(t, int64(200), winners[0].Amount)
	assert.Equal(t, int64(100), winners[1].Amount)
	assert.Equal(t, int64(50), losers[0].Amount)
}

func TestSplit_NLargerThanPool(t *testing.T) {
	now := time.Now()
	winners, losers := Split([]domain.Bid{bid(10, now, 1)}, 5)
	assert.Len(t, winners, 1)
	assert.Empty(t, losers)
}

func TestSplit_ZeroN(t *testing.T) {
	now := time.Now()
	winners, losers := Split([]domain.Bid{bid(10, now, 1)}, 0)
	assert.Empty(t, winners)
	assert.Len(t, losers, 1)
}

func TestMinimumRequired(t *testing.T) {
	tests := []struct {
		name string
		top  int64
		step int64
		want int64
	}{
		{"five percent rounds up", 100, 5, 105},
		{"fractional result ceils", 101, 5, 107}, // 106.05 -> 107
		{"zero step", 100, 0, 100},
		{"one unit", 1, 5, 2}, // 1.05 -> 2
		{"large amount stays exact", 1_000_000_000_000, 3, 1_030_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinimumRequired(tt.top, tt.step))
		})
	}
}
