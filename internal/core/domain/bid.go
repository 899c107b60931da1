package domain

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus represents the lifecycle state of a bid.
type BidStatus string

const (
	BidStatusActive   BidStatus = "active"
	BidStatusWinning  BidStatus = "winning"
	BidStatusOutbid   BidStatus = "outbid"
	BidStatusRefunded BidStatus = "refunded"
)

// Bid is a sealed bid with its funds held in the bidder's wallet. Timestamp
// is assigned server-side at admission; Seq is the store-assigned insertion
// order used as the final tie-break among same-millisecond bids.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auctionId"`
	UserID    string    `json:"userId"`
	RoundID   uuid.UUID `json:"roundId"` // round active at placement
	Amount    int64     `json:"amount"`  // smallest currency unit, > 0
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"-"`
	Status    BidStatus `json:"status"`
}

// IsTerminal returns true if the bid can no longer change state.
func (b *Bid) IsTerminal() bool {
	return b.Status == BidStatusWinning || b.Status == BidStatusRefunded
}

// IsEligible returns true if the bid competes in round ranking: active bids
// and carried-over outbid bids. Winning bids exit the pool; refunded bids
// released their funds.
func (b *Bid) IsEligible() bool {
	return b.Status == BidStatusActive || b.Status == BidStatusOutbid
}

// CanTransitionTo reports whether the status change is allowed by the bid
// lifecycle.
func (b *Bid) CanTransitionTo(next BidStatus) bool {
	switch b.Status {
	case BidStatusActive:
		return next == BidStatusWinning || next == BidStatusOutbid || next == BidStatusRefunded
	case BidStatusOutbid:
		return next == BidStatusWinning || next == BidStatusRefunded
	default:
		return false
	}
}

// TransitionSources returns the statuses a bid may hold immediately before
// moving to next. Status writers use it as the atomic predicate of the
// update, so a transition refused by the lifecycle never touches the row.
func TransitionSources(next BidStatus) []BidStatus {
	all := []BidStatus{BidStatusActive, BidStatusWinning, BidStatusOutbid, BidStatusRefunded}
	var sources []BidStatus
	for _, s := range all {
		if (&Bid{Status: s}).CanTransitionTo(next) {
			sources = append(sources, s)
		}
	}
	return sources
}
