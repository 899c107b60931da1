package handler

import (
	"auction-house/internal/adapter/http/dto"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"
	"auction-house/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// Deposit handles POST /admin/users/:userId/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID := c.Param("userId")

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.walletSvc.Deposit(c.Request.Context(), userID, req.Amount); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.StatusResponse{Status: "credited"})
}

// GetWallet handles GET /users/:userId/wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, wallet)
}
