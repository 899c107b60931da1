package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auction-house/config"
	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuctionServiceImpl implements ports.AuctionService.
type AuctionServiceImpl struct {
	auctionRepo ports.AuctionRepository
	roundRepo   ports.RoundRepository
	roundSvc    ports.RoundService
	cfg         config.AuctionConfig
	log         zerolog.Logger
}

// NewAuctionService creates a new AuctionServiceImpl.
func NewAuctionService(
	auctionRepo ports.AuctionRepository,
	roundRepo ports.RoundRepository,
	roundSvc ports.RoundService,
	cfg config.AuctionConfig,
	log zerolog.Logger,
) *AuctionServiceImpl {
	return &AuctionServiceImpl{
		auctionRepo: auctionRepo,
		roundRepo:   roundRepo,
		roundSvc:    roundSvc,
		cfg:         cfg,
		log:         log,
	}
}

// CreateAuction persists a new active auction; with StartNow it also opens
// round #1 and schedules its closure.
func (s *AuctionServiceImpl) CreateAuction(ctx context.Context, req ports.CreateAuctionRequest) (*domain.Auction, *domain.Round, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, nil, apperror.Validation("title is required")
	}
	if req.TotalItems <= 0 {
		return nil, nil, apperror.Validation("totalItems must be a positive integer")
	}

	auction := &domain.Auction{
		ID:         uuid.New(),
		Title:      strings.TrimSpace(req.Title),
		TotalItems: req.TotalItems,
		Status:     domain.AuctionStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.auctionRepo.Create(ctx, auction); err != nil {
		return nil, nil, apperror.InternalError(fmt.Errorf("create auction: %w", err))
	}

	s.log.Info().
		Str("auction_id", auction.ID.String()).
		Str("title", auction.Title).
		Int("total_items", auction.TotalItems).
		Msg("auction created")

	var round *domain.Round
	if req.StartNow {
		var err error
		round, err = s.roundSvc.StartRound(ctx, auction.ID)
		if err != nil {
			return nil, nil, err
		}
		auction.CurrentRoundNumber = round.RoundNumber
	}

	return auction, round, nil
}

// StopAuction finishes the auction and force-closes its active round, if any.
// Carried-over holds stay locked until their owners withdraw.
func (s *AuctionServiceImpl) StopAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get auction: %w", err))
	}
	if auction == nil {
		return nil, apperror.ErrAuctionNotFound()
	}
	if auction.Status == domain.AuctionStatusFinished {
		return auction, nil
	}

	// Finish first so closure does not seed a next round.
	if err := s.auctionRepo.UpdateStatus(ctx, auctionID, domain.AuctionStatusFinished); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("finish auction: %w", err))
	}
	auction.Status = domain.AuctionStatusFinished

	round, err := s.roundRepo.GetActiveByAuction(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get active round: %w", err))
	}
	if round != nil {
		if err := s.roundSvc.ForceClose(ctx, round.ID); err != nil {
			return nil, err
		}
	}

	s.log.Info().Str("auction_id", auctionID.String()).Msg("auction stopped")
	return auction, nil
}

// GetAuction returns the public read model: the auction, its active round if
// any, and the bidding config clients need for the minimum-step hint.
func (s *AuctionServiceImpl) GetAuction(ctx context.Context, auctionID uuid.UUID) (*ports.AuctionView, error) {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get auction: %w", err))
	}
	if auction == nil {
		return nil, apperror.ErrAuctionNotFound()
	}

	round, err := s.roundRepo.GetActiveByAuction(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get active round: %w", err))
	}

	return &ports.AuctionView{
		Auction: auction,
		Round:   round,
		Config:  ports.AuctionConfig{MinBidStepPercent: s.cfg.MinBidStepPercent},
	}, nil
}
