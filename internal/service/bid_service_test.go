package service

import (
	"context"
	"testing"
	"time"

	"auction-house/config"
	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuctionConfig() config.AuctionConfig {
	return config.AuctionConfig{
		RoundDuration:        5 * time.Minute,
		AntiSnipingThreshold: 60 * time.Second,
		AntiSnipingExtension: 120 * time.Second,
		TopN:                 10,
		MinBidStepPercent:    5,
		BidRateLimit:         100,
		BidRateWindow:        10 * time.Second,
		LockTTL:              2 * time.Second,
	}
}

type bidEnv struct {
	auctions *memAuctionRepo
	rounds   *memRoundRepo
	bids     *memBidRepo
	users    *memUserRepo
	wallets  *memWalletRepo
	lb       *memLeaderboard
	sched    *memScheduler
	lock     *memLock
	pub      *memPublisher
	cfg      config.AuctionConfig
	svc      *BidServiceImpl
}

func newBidEnv(t *testing.T, cfg config.AuctionConfig) *bidEnv {
	t.Helper()
	e := &bidEnv{
		auctions: newMemAuctionRepo(),
		rounds:   newMemRoundRepo(),
		bids:     newMemBidRepo(),
		users:    newMemUserRepo(),
		wallets:  newMemWalletRepo(),
		lb:       newMemLeaderboard(),
		sched:    newMemScheduler(),
		lock:     newMemLock(),
		pub:      &memPublisher{},
		cfg:      cfg,
	}
	e.svc = NewBidService(
		e.auctions, e.rounds, e.bids, e.users, e.wallets,
		&fakeTransactor{}, e.lb, e.sched, e.lock, e.pub,
		cfg, zerolog.Nop(),
	)
	return e
}

func (e *bidEnv) seedAuction(t *testing.T, totalItems int) *domain.Auction {
	t.Helper()
	a := &domain.Auction{
		ID:         uuid.New(),
		Title:      "rare print #1",
		TotalItems: totalItems,
		Status:     domain.AuctionStatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, e.auctions.Create(context.Background(), a))
	return a
}

func (e *bidEnv) seedRound(t *testing.T, auctionID uuid.UUID, number int, endsIn time.Duration) *domain.Round {
	t.Helper()
	now := time.Now().UTC()
	r := &domain.Round{
		ID:          uuid.New(),
		AuctionID:   auctionID,
		RoundNumber: number,
		StartTime:   now,
		EndTime:     now.Add(endsIn),
		Status:      domain.RoundStatusActive,
	}
	require.NoError(t, e.rounds.Create(context.Background(), r))
	return r
}

func (e *bidEnv) fund(t *testing.T, userID string, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.users.Ensure(ctx, nil, userID))
	require.NoError(t, e.wallets.Ensure(ctx, nil, userID))
	require.NoError(t, e.wallets.Apply(ctx, nil, userID, amount, 0, domain.LedgerMeta{Reason: domain.LedgerReasonCredit}))
}

func (e *bidEnv) place(t *testing.T, auctionID uuid.UUID, userID string, amount int64) (*domain.Bid, error) {
	t.Helper()
	return e.svc.PlaceBid(context.Background(), ports.PlaceBidRequest{
		AuctionID: auctionID,
		UserID:    userID,
		Amount:    amount,
	})
}

func TestPlaceBid_HoldsFundsAndIndexes(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 2)
	r := e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 1000)

	bid, err := e.place(t, a.ID, "u1", 100)
	require.NoError(t, err)
	require.NotNil(t, bid)
	assert.Equal(t, domain.BidStatusActive, bid.Status)
	assert.Equal(t, r.ID, bid.RoundID)
	assert.NotZero(t, bid.Seq)

	w, err := e.wallets.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), w.AvailableBalance)
	assert.Equal(t, int64(100), w.LockedBalance)

	assert.True(t, e.lb.contains(a.ID, bid.ID))
	events := e.pub.leaderboard
	require.NotEmpty(t, events)
	require.Len(t, events[len(events)-1].Bids, 1)
	assert.Equal(t, bid.ID, events[len(events)-1].Bids[0].ID)
}

func TestPlaceBid_MinimumStep(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 1000)
	e.fund(t, "u2", 1000)

	_, err := e.place(t, a.ID, "u1", 100)
	require.NoError(t, err)

	// 5% over 100 requires at least 105.
	_, err = e.place(t, a.ID, "u2", 102)
	requireAppError(t, err, "BID_TOO_LOW")
	assert.Contains(t, err.Error(), "105")

	_, err = e.place(t, a.ID, "u2", 105)
	require.NoError(t, err)
}

func TestPlaceBid_InsufficientFunds(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 50)

	_, err := e.place(t, a.ID, "u1", 100)
	requireAppError(t, err, "INSUFFICIENT_FUNDS")

	// The rejected bid must not reach the store or the index.
	eligible, ferr := e.bids.FindEligibleByAuction(context.Background(), a.ID)
	require.NoError(t, ferr)
	assert.Empty(t, eligible)

	w, werr := e.wallets.Get(context.Background(), "u1")
	require.NoError(t, werr)
	assert.Equal(t, int64(50), w.AvailableBalance)
	assert.Zero(t, w.LockedBalance)
}

func TestPlaceBid_LivenessChecks(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	e.fund(t, "u1", 1000)

	_, err := e.place(t, uuid.New(), "u1", 100)
	requireAppError(t, err, "AUCTION_NOT_FOUND")

	a := e.seedAuction(t, 1)
	_, err = e.place(t, a.ID, "u1", 100)
	requireAppError(t, err, "ROUND_NOT_ACTIVE")

	finished := e.seedAuction(t, 1)
	require.NoError(t, e.auctions.UpdateStatus(context.Background(), finished.ID, domain.AuctionStatusFinished))
	_, err = e.place(t, finished.ID, "u1", 100)
	requireAppError(t, err, "AUCTION_NOT_ACTIVE")

	ended := e.seedAuction(t, 1)
	e.seedRound(t, ended.ID, 1, -time.Second)
	_, err = e.place(t, ended.ID, "u1", 100)
	requireAppError(t, err, "ROUND_ENDED")
}

func TestPlaceBid_InvalidInput(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)

	_, err := e.place(t, a.ID, "u1", 0)
	requireAppError(t, err, "INVALID_AMOUNT")

	_, err = e.place(t, a.ID, "u1", -5)
	requireAppError(t, err, "INVALID_AMOUNT")

	_, err = e.place(t, a.ID, "", 100)
	requireAppError(t, err, "VALIDATION_ERROR")
}

func TestPlaceBid_AntiSnipingExtends(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	// Ends within the 60s threshold; extension is 120s.
	r := e.seedRound(t, a.ID, 1, 30*time.Second)
	e.fund(t, "u1", 1000)

	before := r.EndTime
	_, err := e.place(t, a.ID, "u1", 100)
	require.NoError(t, err)

	current, gerr := e.rounds.GetByID(context.Background(), r.ID)
	require.NoError(t, gerr)
	assert.Equal(t, before.Add(120*time.Second), current.EndTime)

	runAt, ok := e.sched.runAt(r.ID)
	require.True(t, ok, "closure must be rescheduled")
	assert.Equal(t, current.EndTime, runAt)

	ext := e.pub.extendedEvents()
	require.Len(t, ext, 1)
	assert.Equal(t, current.EndTime, ext[0].EndTime)
}

func TestPlaceBid_NoExtensionOutsideThreshold(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	r := e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 1000)

	before := r.EndTime
	_, err := e.place(t, a.ID, "u1", 100)
	require.NoError(t, err)

	current, gerr := e.rounds.GetByID(context.Background(), r.ID)
	require.NoError(t, gerr)
	assert.Equal(t, before, current.EndTime)
	assert.Empty(t, e.pub.extendedEvents())
}

func TestWithdraw_RefundsHold(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 500)

	bid, err := e.place(t, a.ID, "u1", 200)
	require.NoError(t, err)

	withdrawn, err := e.svc.Withdraw(context.Background(), bid.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusRefunded, withdrawn.Status)

	w, werr := e.wallets.Get(context.Background(), "u1")
	require.NoError(t, werr)
	assert.Equal(t, int64(500), w.AvailableBalance)
	assert.Zero(t, w.LockedBalance)

	assert.False(t, e.lb.contains(a.ID, bid.ID))

	_, err = e.svc.Withdraw(context.Background(), bid.ID, "u1")
	requireAppError(t, err, "ALREADY_REFUNDED")
}

func TestWithdraw_Guards(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 500)

	bid, err := e.place(t, a.ID, "u1", 200)
	require.NoError(t, err)

	_, err = e.svc.Withdraw(context.Background(), uuid.New(), "u1")
	requireAppError(t, err, "BID_NOT_FOUND")

	_, err = e.svc.Withdraw(context.Background(), bid.ID, "u2")
	requireAppError(t, err, "FORBIDDEN")

	claimed, terr := e.bids.Transition(context.Background(), nil, bid.ID, domain.BidStatusWinning)
	require.NoError(t, terr)
	require.True(t, claimed)
	_, err = e.svc.Withdraw(context.Background(), bid.ID, "u1")
	requireAppError(t, err, "WINNING_LOCKED")
}

func TestWithdraw_OutbidBidIsRefundable(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 500)

	bid, err := e.place(t, a.ID, "u1", 200)
	require.NoError(t, err)
	claimed, terr := e.bids.Transition(context.Background(), nil, bid.ID, domain.BidStatusOutbid)
	require.NoError(t, terr)
	require.True(t, claimed)

	withdrawn, err := e.svc.Withdraw(context.Background(), bid.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusRefunded, withdrawn.Status)
}

func TestTopBids_PrimesFromStore(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 2)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 1000)
	e.fund(t, "u2", 1000)

	b1, err := e.place(t, a.ID, "u1", 100)
	require.NoError(t, err)
	b2, err := e.place(t, a.ID, "u2", 200)
	require.NoError(t, err)

	// Simulate a cache flush.
	require.NoError(t, e.lb.Clear(context.Background(), a.ID))

	top, err := e.svc.TopBids(context.Background(), a.ID, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, b2.ID, top[0].ID)
	assert.Equal(t, b1.ID, top[1].ID)

	// The read repopulated the index.
	assert.True(t, e.lb.contains(a.ID, b1.ID))
	assert.True(t, e.lb.contains(a.ID, b2.ID))
}

func TestTopBids_MinStepSurvivesCacheFlush(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())
	a := e.seedAuction(t, 1)
	e.seedRound(t, a.ID, 1, 5*time.Minute)
	e.fund(t, "u1", 1000)
	e.fund(t, "u2", 1000)

	_, err := e.place(t, a.ID, "u1", 100)
	require.NoError(t, err)
	require.NoError(t, e.lb.Clear(context.Background(), a.ID))

	// Priming must restore the admission floor.
	_, err = e.place(t, a.ID, "u2", 101)
	requireAppError(t, err, "BID_TOO_LOW")
}

func TestTopBids_ValidatesLimit(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())

	_, err := e.svc.TopBids(context.Background(), uuid.New(), 0)
	requireAppError(t, err, "VALIDATION_ERROR")
}

func TestTopBids_EmptyAuction(t *testing.T) {
	e := newBidEnv(t, testAuctionConfig())

	top, err := e.svc.TopBids(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
