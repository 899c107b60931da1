package dto

import "auction-house/internal/core/domain"

// CreateAuctionRequest is the request body for auction creation.
type CreateAuctionRequest struct {
	Title      string `json:"title" binding:"required,min=1,max=200"`
	TotalItems int    `json:"totalItems" binding:"required,gt=0"`
	StartNow   bool   `json:"startNow"`
}

// CreateAuctionResponse carries the created auction and, with startNow, its
// first round.
type CreateAuctionResponse struct {
	Auction *domain.Auction `json:"auction"`
	Round   *domain.Round   `json:"round,omitempty"`
}

// DepositRequest is the request body for wallet deposits. Amount is checked
// by the service so a non-positive value maps to INVALID_AMOUNT, not a
// binding error.
type DepositRequest struct {
	Amount int64 `json:"amount"`
}

// PlaceBidRequest is the request body for bid placement.
type PlaceBidRequest struct {
	UserID string `json:"userId" binding:"required,min=1,max=100"`
	Amount int64  `json:"amount"`
}

// WithdrawRequest is the request body for bid withdrawal.
type WithdrawRequest struct {
	UserID string `json:"userId" binding:"required,min=1,max=100"`
}

// StatusResponse reports the outcome of an admin lifecycle action.
type StatusResponse struct {
	Status string `json:"status"`
}

// LeaderboardResponse is the leaderboard read payload.
type LeaderboardResponse struct {
	Bids []domain.LeaderboardEntry `json:"bids"`
}
