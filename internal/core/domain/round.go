package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus represents the lifecycle state of a round.
type RoundStatus string

const (
	RoundStatusActive RoundStatus = "active"
	RoundStatusClosed RoundStatus = "closed"
)

// Round is a fixed-duration bidding window. At most one round per auction is
// active at any instant. EndTime may only be advanced while active; closed is
// terminal.
type Round struct {
	ID          uuid.UUID   `json:"id"`
	AuctionID   uuid.UUID   `json:"auctionId"`
	RoundNumber int         `json:"roundNumber"` // >= 1, unique per auction
	StartTime   time.Time   `json:"startTime"`
	EndTime     time.Time   `json:"endTime"`
	Status      RoundStatus `json:"status"`
}

// IsActive returns true if the round is still collecting bids.
func (r *Round) IsActive() bool {
	return r.Status == RoundStatusActive
}

// Ended reports whether the round's end time has passed at the given instant.
func (r *Round) Ended(now time.Time) bool {
	return now.After(r.EndTime)
}
