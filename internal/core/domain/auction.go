package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusActive     AuctionStatus = "active"
	AuctionStatusProcessing AuctionStatus = "processing"
	AuctionStatusFinished   AuctionStatus = "finished"
)

// Auction is a time-boxed sealed-bid auction with carry-over rounds.
// TotalItems is the winner count N per round; CurrentRoundNumber strictly
// increases and status transitions active -> finished are monotonic.
type Auction struct {
	ID                 uuid.UUID     `json:"id"`
	Title              string        `json:"title"`
	TotalItems         int           `json:"totalItems"`
	Status             AuctionStatus `json:"status"`
	CurrentRoundNumber int           `json:"currentRoundNumber"`
	CreatedAt          time.Time     `json:"createdAt"`
}

// IsActive returns true if the auction is accepting bids.
func (a *Auction) IsActive() bool {
	return a.Status == AuctionStatusActive
}
