package service

import (
	"context"
	"fmt"
	"time"

	"auction-house/config"
	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"
	"auction-house/internal/core/ranking"
	"auction-house/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RoundServiceImpl implements ports.RoundService: round creation, scheduled
// closure with winner settlement and carry-over, and next-round seeding.
type RoundServiceImpl struct {
	auctionRepo ports.AuctionRepository
	roundRepo   ports.RoundRepository
	bidRepo     ports.BidRepository
	walletRepo  ports.WalletRepository
	transactor  ports.DBTransactor
	leaderboard ports.Leaderboard
	scheduler   ports.RoundScheduler
	publisher   ports.RealtimePublisher
	cfg         config.AuctionConfig
	log         zerolog.Logger
}

// NewRoundService creates a new RoundServiceImpl.
func NewRoundService(
	auctionRepo ports.AuctionRepository,
	roundRepo ports.RoundRepository,
	bidRepo ports.BidRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	leaderboard ports.Leaderboard,
	scheduler ports.RoundScheduler,
	publisher ports.RealtimePublisher,
	cfg config.AuctionConfig,
	log zerolog.Logger,
) *RoundServiceImpl {
	return &RoundServiceImpl{
		auctionRepo: auctionRepo,
		roundRepo:   roundRepo,
		bidRepo:     bidRepo,
		walletRepo:  walletRepo,
		transactor:  transactor,
		leaderboard: leaderboard,
		scheduler:   scheduler,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// StartRound returns the existing active round if present. A present round
// already past its end time gets its closure rescheduled to now so the worker
// closes it immediately. Otherwise a new round is created and scheduled.
func (s *RoundServiceImpl) StartRound(ctx context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	auction, err := s.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get auction: %w", err))
	}
	if auction == nil {
		return nil, apperror.ErrAuctionNotFound()
	}
	if !auction.IsActive() {
		return nil, apperror.ErrAuctionNotActiveConflict()
	}

	active, err := s.roundRepo.GetActiveByAuction(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get active round: %w", err))
	}
	if active != nil {
		if active.Ended(time.Now().UTC()) {
			if err := s.scheduler.Reschedule(ctx, active.ID, time.Now().UTC()); err != nil {
				s.log.Warn().Err(err).Str("round_id", active.ID.String()).Msg("reschedule of overdue round failed")
			}
		}
		return active, nil
	}

	return s.createRound(ctx, auction)
}

// createRound creates round #(current+1), bumps the auction's round counter
// and schedules closure at the round's end time.
func (s *RoundServiceImpl) createRound(ctx context.Context, auction *domain.Auction) (*domain.Round, error) {
	now := time.Now().UTC()
	round := &domain.Round{
		ID:          uuid.New(),
		AuctionID:   auction.ID,
		RoundNumber: auction.CurrentRoundNumber + 1,
		StartTime:   now,
		EndTime:     now.Add(s.cfg.RoundDuration),
		Status:      domain.RoundStatusActive,
	}

	if err := s.roundRepo.Create(ctx, round); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create round: %w", err))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck
	if err := s.auctionRepo.SetCurrentRound(ctx, dbTx, auction.ID, round.RoundNumber); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("set current round: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if err := s.scheduler.Schedule(ctx, round.ID, round.EndTime); err != nil {
		// The stale-job guard and admin close cover a lost schedule.
		s.log.Error().Err(err).Str("round_id", round.ID.String()).Msg("schedule round closure failed")
	}

	s.log.Info().
		Str("auction_id", auction.ID.String()).
		Str("round_id", round.ID.String()).
		Int("round_number", round.RoundNumber).
		Time("end_time", round.EndTime).
		Msg("round started")
	return round, nil
}

// FinishRound is the scheduled closure handler. Closed or missing rounds are
// a no-op; a job that arrives before the round's (possibly extended) end time
// reschedules itself.
func (s *RoundServiceImpl) FinishRound(ctx context.Context, roundID uuid.UUID) error {
	return s.finish(ctx, roundID, false)
}

// ForceClose closes the round immediately, bypassing the stale-job guard.
func (s *RoundServiceImpl) ForceClose(ctx context.Context, roundID uuid.UUID) error {
	return s.finish(ctx, roundID, true)
}

func (s *RoundServiceImpl) finish(ctx context.Context, roundID uuid.UUID, force bool) error {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get round: %w", err))
	}
	if round == nil || !round.IsActive() {
		return nil
	}

	now := time.Now().UTC()
	if !force && now.Before(round.EndTime) {
		// An anti-sniping extension landed after this job was enqueued.
		if err := s.scheduler.Reschedule(ctx, round.ID, round.EndTime); err != nil {
			return apperror.InternalError(fmt.Errorf("reschedule stale job: %w", err))
		}
		s.log.Debug().Str("round_id", round.ID.String()).Time("end_time", round.EndTime).Msg("stale closure job rescheduled")
		return nil
	}

	auction, err := s.auctionRepo.GetByID(ctx, round.AuctionID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get auction: %w", err))
	}
	if auction == nil {
		return apperror.InternalError(fmt.Errorf("auction %s missing for round %s", round.AuctionID, round.ID))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// The pool is read and locked inside the closure transaction, and every
	// status change below is lifecycle-guarded, so a withdrawal can never
	// land between the read and the settlement writes unnoticed.
	eligible, err := s.bidRepo.LockEligibleByAuction(ctx, dbTx, round.AuctionID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock eligible bids: %w", err))
	}
	winners, losers := ranking.Split(eligible, auction.TotalItems)

	settled := make([]domain.Bid, 0, len(winners))
	for i := range winners {
		w := winners[i]
		claimed, err := s.bidRepo.Transition(ctx, dbTx, w.ID, domain.BidStatusWinning)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("mark bid %s winning: %w", w.ID, err))
		}
		if !claimed {
			// Refunded after the pool was read; its hold is gone with it.
			continue
		}
		meta := domain.LedgerMeta{
			Reason:    domain.LedgerReasonSettle,
			AuctionID: &round.AuctionID,
			RoundID:   &round.ID,
			BidID:     &w.ID,
		}
		if err := s.walletRepo.Apply(ctx, dbTx, w.UserID, 0, -w.Amount, meta); err != nil {
			return apperror.InternalError(fmt.Errorf("settle hold for bid %s: %w", w.ID, err))
		}
		w.Status = domain.BidStatusWinning
		settled = append(settled, w)
	}

	for i := range losers {
		l := &losers[i]
		if l.Status != domain.BidStatusActive {
			continue // carried-over bids are already outbid
		}
		claimed, err := s.bidRepo.Transition(ctx, dbTx, l.ID, domain.BidStatusOutbid)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("mark bid %s outbid: %w", l.ID, err))
		}
		if !claimed {
			continue // refunded after the pool was read
		}
	}

	if err := s.roundRepo.Close(ctx, dbTx, round.ID); err != nil {
		return apperror.InternalError(fmt.Errorf("close round: %w", err))
	}
	if err := s.auctionRepo.SetCurrentRound(ctx, dbTx, round.AuctionID, round.RoundNumber); err != nil {
		return apperror.InternalError(fmt.Errorf("set current round: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("auction_id", round.AuctionID.String()).
		Str("round_id", round.ID.String()).
		Int("round_number", round.RoundNumber).
		Int("winners", len(settled)).
		Int("carried_over", len(losers)).
		Msg("round closed")

	s.publishClosure(ctx, round, settled)

	// Seed the next round unless the auction was stopped meanwhile.
	auction, err = s.auctionRepo.GetByID(ctx, round.AuctionID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("reload auction: %w", err))
	}
	if auction != nil && auction.IsActive() {
		if _, err := s.createRound(ctx, auction); err != nil {
			return err
		}
	}
	return nil
}

// publishClosure removes winners from the index and emits the closure events.
// Best-effort: index priming repairs any lost removal on the read path.
func (s *RoundServiceImpl) publishClosure(ctx context.Context, round *domain.Round, winners []domain.Bid) {
	for _, w := range winners {
		if err := s.leaderboard.Remove(ctx, round.AuctionID, w.ID); err != nil {
			s.log.Warn().Err(err).Str("bid_id", w.ID.String()).Msg("leaderboard removal failed")
		}
	}

	top, err := s.leaderboard.Top(ctx, round.AuctionID, s.cfg.TopN)
	if err != nil {
		s.log.Warn().Err(err).Str("auction_id", round.AuctionID.String()).Msg("leaderboard read failed")
	} else if err := s.publisher.PublishLeaderboardUpdate(ctx, domain.LeaderboardUpdateEvent{
		AuctionID: round.AuctionID,
		Bids:      top,
	}); err != nil {
		s.log.Warn().Err(err).Str("auction_id", round.AuctionID.String()).Msg("publish leaderboard update failed")
	}

	if err := s.publisher.PublishRoundClosed(ctx, domain.RoundClosedEvent{
		AuctionID: round.AuctionID,
		RoundID:   round.ID,
		Winners:   winners,
	}); err != nil {
		s.log.Warn().Err(err).Str("round_id", round.ID.String()).Msg("publish round closed failed")
	}
}
