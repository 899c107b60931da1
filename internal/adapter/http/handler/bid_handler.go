package handler

import (
	"strconv"

	"auction-house/internal/adapter/http/dto"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"
	"auction-house/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// defaultLeaderboardLimit bounds unqualified leaderboard reads.
const defaultLeaderboardLimit = 10

// BidHandler handles bidding endpoints.
type BidHandler struct {
	bidSvc ports.BidService
}

// NewBidHandler creates a new BidHandler.
func NewBidHandler(bidSvc ports.BidService) *BidHandler {
	return &BidHandler{bidSvc: bidSvc}
}

// PlaceBid handles POST /auction/:id/bid.
func (h *BidHandler) PlaceBid(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrAuctionNotFound())
		return
	}

	var req dto.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	bid, err := h.bidSvc.PlaceBid(c.Request.Context(), ports.PlaceBidRequest{
		AuctionID: auctionID,
		UserID:    req.UserID,
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, bid)
}

// Withdraw handles POST /bid/:id/withdraw.
func (h *BidHandler) Withdraw(c *gin.Context) {
	bidID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrBidNotFound())
		return
	}

	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if _, err := h.bidSvc.Withdraw(c.Request.Context(), bidID, req.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatusResponse{Status: "withdrawn"})
}

// GetLeaderboard handles GET /auction/:id/leaderboard.
func (h *BidHandler) GetLeaderboard(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrAuctionNotFound())
		return
	}

	limit := defaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 100 {
			response.Error(c, apperror.Validation("limit must be an integer between 1 and 100"))
			return
		}
	}

	bids, err := h.bidSvc.TopBids(c.Request.Context(), auctionID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LeaderboardResponse{Bids: bids})
}
