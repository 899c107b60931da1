package handler

import (
	"auction-house/internal/adapter/http/dto"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"
	"auction-house/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RoundHandler handles round admin endpoints.
type RoundHandler struct {
	roundSvc ports.RoundService
}

// NewRoundHandler creates a new RoundHandler.
func NewRoundHandler(roundSvc ports.RoundService) *RoundHandler {
	return &RoundHandler{roundSvc: roundSvc}
}

// CloseRound handles POST /admin/round/:id/close. Closing an already closed
// or unknown round succeeds: the operation is idempotent.
func (h *RoundHandler) CloseRound(c *gin.Context) {
	roundID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid round id"))
		return
	}

	if err := h.roundSvc.ForceClose(c.Request.Context(), roundID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.StatusResponse{Status: "closed"})
}
