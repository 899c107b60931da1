package domain

import (
	"time"

	"github.com/google/uuid"
)

// Realtime event types pushed on per-auction channels.
const (
	EventLeaderboardUpdate = "leaderboard:update"
	EventRoundExtended     = "round:extended"
	EventRoundClosed       = "round:closed"
)

// LeaderboardEntry is the public projection of a bid on the leaderboard.
type LeaderboardEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaderboardUpdateEvent carries the top-K after any leaderboard change.
type LeaderboardUpdateEvent struct {
	AuctionID uuid.UUID          `json:"auctionId"`
	Bids      []LeaderboardEntry `json:"bids"`
}

// RoundExtendedEvent announces an anti-sniping end time extension.
type RoundExtendedEvent struct {
	AuctionID uuid.UUID `json:"auctionId"`
	RoundID   uuid.UUID `json:"roundId"`
	EndTime   time.Time `json:"endTime"`
}

// RoundClosedEvent carries the full winner list, not truncated to the
// leaderboard size.
type RoundClosedEvent struct {
	AuctionID uuid.UUID `json:"auctionId"`
	RoundID   uuid.UUID `json:"roundId"`
	Winners   []Bid     `json:"winners"`
}

// NewLeaderboardEntry projects a bid for the realtime surface.
func NewLeaderboardEntry(b Bid) LeaderboardEntry {
	return LeaderboardEntry{
		ID:        b.ID,
		UserID:    b.UserID,
		Amount:    b.Amount,
		Timestamp: b.Timestamp,
	}
}
