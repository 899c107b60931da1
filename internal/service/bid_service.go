package service

import (
	"context"
	"errors"
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

// BidServiceImpl implements ports.BidService: bid admission, withdrawal, and
// leaderboard reads with store-backed priming.
type BidServiceImpl struct {
	auctionRepo ports.AuctionRepository
	roundRepo   ports.RoundRepository
	bidRepo     ports.BidRepository
	userRepo    ports.UserRepository
	walletRepo  ports.WalletRepository
	transactor  ports.DBTransactor
	leaderboard ports.Leaderboard
	scheduler   ports.RoundScheduler
	lock        ports.DistributedLock
	publisher   ports.RealtimePublisher
	cfg         config.AuctionConfig
	log         zerolog.Logger
}

// NewBidService creates a new BidServiceImpl.
func NewBidService(
	auctionRepo ports.AuctionRepository,
	roundRepo ports.RoundRepository,
	bidRepo ports.BidRepository,
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	leaderboard ports.Leaderboard,
	scheduler ports.RoundScheduler,
	lock ports.DistributedLock,
	publisher ports.RealtimePublisher,
	cfg config.AuctionConfig,
	log zerolog.Logger,
) *BidServiceImpl {
	return &BidServiceImpl{
		auctionRepo: auctionRepo,
		roundRepo:   roundRepo,
		bidRepo:     bidRepo,
		userRepo:    userRepo,
		walletRepo:  walletRepo,
		transactor:  transactor,
		leaderboard: leaderboard,
		scheduler:   scheduler,
		lock:        lock,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// PlaceBid runs the admission pipeline: minimum-step check, liveness checks,
// the hold-and-create transaction, index insert, and the best-effort
// anti-sniping extension.
func (s *BidServiceImpl) PlaceBid(ctx context.Context, req ports.PlaceBidRequest) (*domain.Bid, error) {
	if req.UserID == "" {
		return nil, apperror.Validation("userId is required")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	// Minimum-step check against the current top bid, read-only.
	top, err := s.TopBids(ctx, req.AuctionID, 1)
	if err != nil {
		return nil, err
	}
	if len(top) > 0 {
		required := ranking.MinimumRequired(top[0].Amount, s.cfg.MinBidStepPercent)
		if req.Amount < required {
			return nil, apperror.ErrBidTooLow(required)
		}
	}

	// Liveness checks. now doubles as the bid timestamp.
	auction, err := s.auctionRepo.GetByID(ctx, req.AuctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get auction: %w", err))
	}
	if auction == nil {
		return nil, apperror.ErrAuctionNotFound()
	}
	if !auction.IsActive() {
		return nil, apperror.ErrAuctionNotActive()
	}

	round, err := s.roundRepo.GetActiveByAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get active round: %w", err))
	}
	if round == nil {
		return nil, apperror.ErrRoundNotActive()
	}
	now := time.Now().UTC()
	if round.Ended(now) {
		return nil, apperror.ErrRoundEnded()
	}

	bid := &domain.Bid{
		ID:        uuid.New(),
		AuctionID: req.AuctionID,
		UserID:    req.UserID,
		RoundID:   round.ID,
		Amount:    req.Amount,
		Timestamp: now,
		Status:    domain.BidStatusActive,
	}

	// Admission transaction: hold funds and create the bid atomically.
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Ensure(ctx, dbTx, req.UserID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure user: %w", err))
	}
	if err := s.walletRepo.Ensure(ctx, dbTx, req.UserID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure wallet: %w", err))
	}

	meta := domain.LedgerMeta{
		Reason:    domain.LedgerReasonHold,
		AuctionID: &bid.AuctionID,
		RoundID:   &bid.RoundID,
		BidID:     &bid.ID,
	}
	if err := s.walletRepo.Apply(ctx, dbTx, req.UserID, -req.Amount, req.Amount, meta); err != nil {
		if errors.Is(err, ports.ErrBalanceConditionFailed) {
			return nil, apperror.ErrInsufficientFunds()
		}
		return nil, apperror.InternalError(fmt.Errorf("hold funds: %w", err))
	}

	if err := s.bidRepo.Create(ctx, dbTx, bid); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create bid: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("bid_id", bid.ID.String()).
		Str("auction_id", bid.AuctionID.String()).
		Str("user_id", bid.UserID).
		Int64("amount", bid.Amount).
		Msg("bid admitted")

	s.publishIndexChange(ctx, bid)
	s.maybeExtend(ctx, round, now)

	return bid, nil
}

// publishIndexChange inserts the committed bid into the leaderboard and emits
// the update event. Best-effort: priming repairs a lost insert.
func (s *BidServiceImpl) publishIndexChange(ctx context.Context, bid *domain.Bid) {
	if err := s.leaderboard.Add(ctx, *bid); err != nil {
		s.log.Warn().Err(err).Str("bid_id", bid.ID.String()).Msg("leaderboard insert failed")
		return
	}

	top, err := s.leaderboard.Top(ctx, bid.AuctionID, s.cfg.TopN)
	if err != nil {
		s.log.Warn().Err(err).Str("auction_id", bid.AuctionID.String()).Msg("leaderboard read failed")
		return
	}
	if err := s.publisher.PublishLeaderboardUpdate(ctx, domain.LeaderboardUpdateEvent{
		AuctionID: bid.AuctionID,
		Bids:      top,
	}); err != nil {
		s.log.Warn().Err(err).Str("auction_id", bid.AuctionID.String()).Msg("publish leaderboard update failed")
	}
}

// maybeExtend applies the anti-sniping rule under a per-round distributed
// lock. Every step is best-effort: the admitted bid stands regardless.
func (s *BidServiceImpl) maybeExtend(ctx context.Context, round *domain.Round, now time.Time) {
	key := fmt.Sprintf("%s:%s", round.AuctionID, round.ID)
	release, acquired, err := s.lock.TryAcquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("round_id", round.ID.String()).Msg("anti-sniping lock failed")
		return
	}
	if !acquired {
		// Another late bid is extending right now.
		return
	}
	defer release(ctx)

	current, err := s.roundRepo.GetByID(ctx, round.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("round_id", round.ID.String()).Msg("anti-sniping round reload failed")
		return
	}
	if current == nil || !current.IsActive() {
		return
	}
	if current.EndTime.Sub(now) > s.cfg.AntiSnipingThreshold {
		return
	}

	extended, err := s.roundRepo.ExtendEndTime(ctx, current.ID, current.EndTime.Add(s.cfg.AntiSnipingExtension))
	if err != nil {
		s.log.Warn().Err(err).Str("round_id", current.ID.String()).Msg("anti-sniping extension failed")
		return
	}
	if extended == nil {
		// Lost the race against closure; the end time never retreats.
		return
	}

	if err := s.scheduler.Reschedule(ctx, extended.ID, extended.EndTime); err != nil {
		s.log.Warn().Err(err).Str("round_id", extended.ID.String()).Msg("reschedule after extension failed")
	}
	if err := s.publisher.PublishRoundExtended(ctx, domain.RoundExtendedEvent{
		AuctionID: extended.AuctionID,
		RoundID:   extended.ID,
		EndTime:   extended.EndTime,
	}); err != nil {
		s.log.Warn().Err(err).Str("round_id", extended.ID.String()).Msg("publish round extended failed")
	}

	s.log.Info().
		Str("round_id", extended.ID.String()).
		Time("end_time", extended.EndTime).
		Msg("round extended")
}

// Withdraw refunds an eligible bid back to the user's available balance.
func (s *BidServiceImpl) Withdraw(ctx context.Context, bidID uuid.UUID, userID string) (*domain.Bid, error) {
	if userID == "" {
		return nil, apperror.Validation("userId is required")
	}

	bid, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get bid: %w", err))
	}
	if bid == nil {
		return nil, apperror.ErrBidNotFound()
	}
	if bid.UserID != userID {
		return nil, apperror.ErrForbidden()
	}
	switch bid.Status {
	case domain.BidStatusWinning:
		return nil, apperror.ErrWinningLocked()
	case domain.BidStatusRefunded:
		return nil, apperror.ErrAlreadyRefunded()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Claim the hold first. The guarded transition is atomic, so of two
	// concurrent withdrawals — or a withdrawal racing the closure
	// settlement — exactly one claims the bid; the other reloads it to
	// report what happened to it.
	claimed, err := s.bidRepo.Transition(ctx, dbTx, bid.ID, domain.BidStatusRefunded)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark bid refunded: %w", err))
	}
	if !claimed {
		return nil, s.withdrawConflict(ctx, bid.ID)
	}

	meta := domain.LedgerMeta{
		Reason:    domain.LedgerReasonRefund,
		AuctionID: &bid.AuctionID,
		RoundID:   &bid.RoundID,
		BidID:     &bid.ID,
	}
	if err := s.walletRepo.Apply(ctx, dbTx, userID, bid.Amount, -bid.Amount, meta); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("refund hold: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	bid.Status = domain.BidStatusRefunded

	s.log.Info().
		Str("bid_id", bid.ID.String()).
		Str("user_id", userID).
		Int64("amount", bid.Amount).
		Msg("bid withdrawn")

	if err := s.leaderboard.Remove(ctx, bid.AuctionID, bid.ID); err != nil {
		s.log.Warn().Err(err).Str("bid_id", bid.ID.String()).Msg("leaderboard removal failed")
	} else if top, err := s.leaderboard.Top(ctx, bid.AuctionID, s.cfg.TopN); err == nil {
		if err := s.publisher.PublishLeaderboardUpdate(ctx, domain.LeaderboardUpdateEvent{
			AuctionID: bid.AuctionID,
			Bids:      top,
		}); err != nil {
			s.log.Warn().Err(err).Str("auction_id", bid.AuctionID.String()).Msg("publish leaderboard update failed")
		}
	}

	return bid, nil
}

// withdrawConflict maps a refused refund claim to the bid's actual state: a
// concurrent settlement locked it in, or another withdrawal got there first.
func (s *BidServiceImpl) withdrawConflict(ctx context.Context, bidID uuid.UUID) error {
	current, err := s.bidRepo.GetByID(ctx, bidID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get bid after refused refund: %w", err))
	}
	if current != nil && current.Status == domain.BidStatusRefunded {
		return apperror.ErrAlreadyRefunded()
	}
	return apperror.ErrWinningLocked()
}

// TopBids serves leaderboard reads. On an empty index with bids in the store
// it primes the index with up to TopN ranked bids first.
func (s *BidServiceImpl) TopBids(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, apperror.Validation("limit must be a positive integer")
	}

	entries, err := s.leaderboard.Top(ctx, auctionID, limit)
	if err != nil {
		s.log.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("leaderboard read failed, serving from store")
		return s.topFromStore(ctx, auctionID, limit)
	}
	if len(entries) > 0 {
		return entries, nil
	}

	// Empty index: prime from the authoritative store.
	eligible, err := s.bidRepo.FindEligibleByAuction(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find eligible bids: %w", err))
	}
	if len(eligible) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	prime := eligible
	if len(prime) > s.cfg.TopN {
		prime = prime[:s.cfg.TopN]
	}
	for _, b := range prime {
		if err := s.leaderboard.Add(ctx, b); err != nil {
			s.log.Warn().Err(err).Str("bid_id", b.ID.String()).Msg("leaderboard priming failed")
			break
		}
	}

	if limit > len(eligible) {
		limit = len(eligible)
	}
	out := make([]domain.LeaderboardEntry, 0, limit)
	for _, b := range eligible[:limit] {
		out = append(out, domain.NewLeaderboardEntry(b))
	}
	return out, nil
}

// topFromStore serves a leaderboard read directly from the bid store when the
// index is unavailable.
func (s *BidServiceImpl) topFromStore(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	eligible, err := s.bidRepo.FindEligibleByAuction(ctx, auctionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find eligible bids: %w", err))
	}
	if limit > len(eligible) {
		limit = len(eligible)
	}
	out := make([]domain.LeaderboardEntry, 0, limit)
	for _, b := range eligible[:limit] {
		out = append(out, domain.NewLeaderboardEntry(b))
	}
	return out, nil
}
