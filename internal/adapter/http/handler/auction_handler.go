package handler

import (
	"auction-house/internal/adapter/http/dto"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"
	"auction-house/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuctionHandler handles auction admin and read endpoints.
type AuctionHandler struct {
	auctionSvc ports.AuctionService
	roundSvc   ports.RoundService
}

// NewAuctionHandler creates a new AuctionHandler.
func NewAuctionHandler(auctionSvc ports.AuctionService, roundSvc ports.RoundService) *AuctionHandler {
	return &AuctionHandler{auctionSvc: auctionSvc, roundSvc: roundSvc}
}

// CreateAuction handles POST /admin/auction.
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	var req dto.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	auction, round, err := h.auctionSvc.CreateAuction(c.Request.Context(), ports.CreateAuctionRequest{
		Title:      req.Title,
		TotalItems: req.TotalItems,
		StartNow:   req.StartNow,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateAuctionResponse{Auction: auction, Round: round})
}

// StartRound handles POST /admin/auction/:id/start.
func (h *AuctionHandler) StartRound(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid auction id"))
		return
	}

	round, err := h.roundSvc.StartRound(c.Request.Context(), auctionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, round)
}

// StopAuction handles POST /admin/auction/:id/stop.
func (h *AuctionHandler) StopAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid auction id"))
		return
	}

	auction, err := h.auctionSvc.StopAuction(c.Request.Context(), auctionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatusResponse{Status: string(auction.Status)})
}

// GetAuction handles GET /auction/:id.
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrAuctionNotFound())
		return
	}

	view, err := h.auctionSvc.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, view)
}
