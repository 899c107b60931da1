package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"
	"auction-house/internal/core/ranking"
	"auction-house/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// fakeTx satisfies pgx.Tx for fakes that mutate state directly. Only Commit
// and Rollback are ever called.
type fakeTx struct {
	pgx.Tx
}

func (t *fakeTx) Commit(_ context.Context) error   { return nil }
func (t *fakeTx) Rollback(_ context.Context) error { return nil }

type fakeTransactor struct{}

func (f *fakeTransactor) Begin(_ context.Context) (pgx.Tx, error) { return &fakeTx{}, nil }

// --- repositories ---

type memAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*domain.Auction
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: make(map[uuid.UUID]*domain.Auction)}
}

func (r *memAuctionRepo) Create(_ context.Context, a *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.auctions[a.ID] = &cp
	return nil
}

func (r *memAuctionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAuctionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.AuctionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok {
		a.Status = status
	}
	return nil
}

func (r *memAuctionRepo) SetCurrentRound(_ context.Context, _ pgx.Tx, id uuid.UUID, roundNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok && a.CurrentRoundNumber < roundNumber {
		a.CurrentRoundNumber = roundNumber
	}
	return nil
}

type memRoundRepo struct {
	mu     sync.Mutex
	rounds map[uuid.UUID]*domain.Round
}

func newMemRoundRepo() *memRoundRepo {
	return &memRoundRepo{rounds: make(map[uuid.UUID]*domain.Round)}
}

func (r *memRoundRepo) Create(_ context.Context, round *domain.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *round
	r.rounds[round.ID] = &cp
	return nil
}

func (r *memRoundRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok {
		return nil, nil
	}
	cp := *round
	return &cp, nil
}

func (r *memRoundRepo) GetActiveByAuction(_ context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, round := range r.rounds {
		if round.AuctionID == auctionID && round.Status == domain.RoundStatusActive {
			cp := *round
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRoundRepo) ExtendEndTime(_ context.Context, id uuid.UUID, endTime time.Time) (*domain.Round, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	round, ok := r.rounds[id]
	if !ok || round.Status != domain.RoundStatusActive || !round.EndTime.Before(endTime) {
		return nil, nil
	}
	round.EndTime = endTime
	cp := *round
	return &cp, nil
}

func (r *memRoundRepo) Close(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if round, ok := r.rounds[id]; ok {
		round.Status = domain.RoundStatusClosed
	}
	return nil
}

type memBidRepo struct {
	mu   sync.Mutex
	bids map[uuid.UUID]*domain.Bid
	seq  int64
}

func newMemBidRepo() *memBidRepo {
	return &memBidRepo{bids: make(map[uuid.UUID]*domain.Bid)}
}

func (r *memBidRepo) Create(_ context.Context, _ pgx.Tx, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	bid.Seq = r.seq
	cp := *bid
	r.bids[bid.ID] = &cp
	return nil
}

func (r *memBidRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[id]
	if !ok {
		return nil, nil
	}
	cp := *bid
	return &cp, nil
}

func (r *memBidRepo) FindEligibleByAuction(_ context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Bid
	for _, bid := range r.bids {
		if bid.AuctionID == auctionID && bid.IsEligible() {
			out = append(out, *bid)
		}
	}
	return ranking.Rank(out), nil
}

func (r *memBidRepo) LockEligibleByAuction(ctx context.Context, _ pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error) {
	return r.FindEligibleByAuction(ctx, auctionID)
}

func (r *memBidRepo) Transition(_ context.Context, _ pgx.Tx, id uuid.UUID, next domain.BidStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[id]
	if !ok || !bid.CanTransitionTo(next) {
		return false, nil
	}
	bid.Status = next
	return true, nil
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]bool
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]bool)}
}

func (r *memUserRepo) Ensure(_ context.Context, _ pgx.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = true
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.users[id] {
		return nil, nil
	}
	return &domain.User{ID: id, Username: id}, nil
}

type memWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
	ledger  []domain.LedgerEntry
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *memWalletRepo) Ensure(_ context.Context, _ pgx.Tx, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[userID]; !ok {
		r.wallets[userID] = &domain.Wallet{UserID: userID}
	}
	return nil
}

func (r *memWalletRepo) Get(_ context.Context, userID string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *memWalletRepo) Apply(_ context.Context, _ pgx.Tx, userID string, availableDelta, lockedDelta int64, meta domain.LedgerMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		return ports.ErrBalanceConditionFailed
	}
	if w.AvailableBalance+availableDelta < 0 || w.LockedBalance+lockedDelta < 0 {
		return ports.ErrBalanceConditionFailed
	}
	w.AvailableBalance += availableDelta
	w.LockedBalance += lockedDelta
	r.ledger = append(r.ledger, domain.LedgerEntry{
		ID:             uuid.New(),
		UserID:         userID,
		AvailableDelta: availableDelta,
		LockedDelta:    lockedDelta,
		Reason:         meta.Reason,
		AuctionID:      meta.AuctionID,
		RoundID:        meta.RoundID,
		BidID:          meta.BidID,
		IdempotencyKey: meta.IdempotencyKey,
		CreatedAt:      time.Now().UTC(),
	})
	return nil
}

func (r *memWalletRepo) ListLedger(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.LedgerEntry
	for _, e := range r.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- infrastructure ---

type memLeaderboard struct {
	mu   sync.Mutex
	bids map[uuid.UUID][]domain.Bid // per auction
}

func newMemLeaderboard() *memLeaderboard {
	return &memLeaderboard{bids: make(map[uuid.UUID][]domain.Bid)}
}

func (l *memLeaderboard) Add(_ context.Context, bid domain.Bid) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bids[bid.AuctionID] = append(l.bids[bid.AuctionID], bid)
	return nil
}

func (l *memLeaderboard) Remove(_ context.Context, auctionID, bidID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bids := l.bids[auctionID]
	for i, b := range bids {
		if b.ID == bidID {
			l.bids[auctionID] = append(bids[:i:i], bids[i+1:]...)
			break
		}
	}
	return nil
}

func (l *memLeaderboard) Top(_ context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ranked := ranking.Rank(l.bids[auctionID])
	if limit > len(ranked) {
		limit = len(ranked)
	}
	out := make([]domain.LeaderboardEntry, 0, limit)
	for _, b := range ranked[:limit] {
		out = append(out, domain.NewLeaderboardEntry(b))
	}
	return out, nil
}

func (l *memLeaderboard) Clear(_ context.Context, auctionID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.bids, auctionID)
	return nil
}

func (l *memLeaderboard) contains(auctionID, bidID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.bids[auctionID] {
		if b.ID == bidID {
			return true
		}
	}
	return false
}

type memScheduler struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]time.Time
}

func newMemScheduler() *memScheduler {
	return &memScheduler{jobs: make(map[uuid.UUID]time.Time)}
}

func (s *memScheduler) Schedule(_ context.Context, roundID uuid.UUID, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[roundID] = runAt
	return nil
}

func (s *memScheduler) Reschedule(ctx context.Context, roundID uuid.UUID, runAt time.Time) error {
	return s.Schedule(ctx, roundID, runAt)
}

func (s *memScheduler) runAt(roundID uuid.UUID) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.jobs[roundID]
	return at, ok
}

type memLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
}

func newMemLock() *memLock {
	return &memLock{held: make(map[string]bool)}
}

func (l *memLock) TryAcquire(_ context.Context, key string, _ time.Duration) (func(context.Context), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true
	l.acquires++
	return func(context.Context) {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

type memPublisher struct {
	mu          sync.Mutex
	leaderboard []domain.LeaderboardUpdateEvent
	extended    []domain.RoundExtendedEvent
	closed      []domain.RoundClosedEvent
}

func (p *memPublisher) PublishLeaderboardUpdate(_ context.Context, e domain.LeaderboardUpdateEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaderboard = append(p.leaderboard, e)
	return nil
}

func (p *memPublisher) PublishRoundExtended(_ context.Context, e domain.RoundExtendedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.extended = append(p.extended, e)
	return nil
}

func (p *memPublisher) PublishRoundClosed(_ context.Context, e domain.RoundClosedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, e)
	return nil
}

func (p *memPublisher) closedEvents() []domain.RoundClosedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.RoundClosedEvent, len(p.closed))
	copy(out, p.closed)
	return out
}

func (p *memPublisher) extendedEvents() []domain.RoundExtendedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.RoundExtendedEvent, len(p.extended))
	copy(out, p.extended)
	return out
}

// requireAppError asserts err carries the given taxonomy code.
func requireAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperror.AppError)
	require.True(t, ok, "expected *apperror.AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
}
