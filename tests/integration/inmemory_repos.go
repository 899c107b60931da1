package integration

import (
	"context"
	"sync"
	"time"

	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"
	"auction-house/internal/core/ranking"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// In-memory repository implementations backing the integration suite. They
// mirror the PostgreSQL adapters' contracts (nil on miss, conditional wallet
// deltas, store-assigned bid sequence) so the full service stack runs against
// them unchanged, with the Redis adapters pointed at miniredis.

// noopTx satisfies pgx.Tx for repositories that mutate state directly. Only
// Commit and Rollback are ever called by the services.
type noopTx struct {
	pgx.Tx
}

func (t *noopTx) Commit(_ context.Context) error   { return nil }
func (t *noopTx) Rollback(_ context.Context) error { return nil }

type inMemoryTransactor struct{}

func (tr *inMemoryTransactor) Begin(_ context.Context) (pgx.Tx, error) { return &noopTx{}, nil }

// --- auctions ---

type inMemoryAuctionRepo struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*domain.Auction
}

func newInMemoryAuctionRepo() *inMemoryAuctionRepo {
	return &inMemoryAuctionRepo{auctions: make(map[uuid.UUID]*domain.Auction)}
}

func (r *inMemoryAuctionRepo) Create(_ context.Context, a *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.auctions[a.ID] = &cp
	return nil
}

func (r *inMemoryAuctionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAuctionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.AuctionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok {
		a.Status = status
	}
	return nil
}

func (r *inMemoryAuctionRepo) SetCurrentRound(_ context.Context, _ pgx.Tx, id uuid.UUID, roundNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok && a.CurrentRoundNumber < roundNumber {
		a.CurrentRoundNumber = roundNumber
	}
	return nil
}

// --- rounds ---

type inMemoryRoundRepo struct {
	mu     sync.RWMutex
	rounds map[uuid.UUID]*domain.Round
}

func newInMemoryRoundRepo() *inMemoryRoundRepo {
	return &inMemoryRoundRepo{rounds: make(map[uuid.UUID]*domain.Round)}
}

func (r *inMemoryRoundRepo) Create(_ context.Context, round *domain.Round) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *round
	r.rounds[round.ID] = &cp
	return nil
}

func (r *inMemoryRoundRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	round, ok := r.rounds[id]
	if !ok {
		return nil, nil
	}
	cp := *round
	return &cp, nil
}

func (r *inMemoryRoundRepo) GetActiveByAuction(_ context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, round := range r.rounds {
		if round.AuctionID == auctionID && round.Status == domain.RoundStatusActive {
			cp := *round
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryRoundRepo) ExtendEndTime(_ context.Context, id uuid.UUID, endTime time.Time) (*domain.Round, error) {
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

func (r *inMemoryRoundRepo) Close(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if round, ok := r.rounds[id]; ok {
		round.Status = domain.RoundStatusClosed
	}
	return nil
}

// --- bids ---

type inMemoryBidRepo struct {
	mu   sync.RWMutex
	bids map[uuid.UUID]*domain.Bid
	seq  int64
}

func newInMemoryBidRepo() *inMemoryBidRepo {
	return &inMemoryBidRepo{bids: make(map[uuid.UUID]*domain.Bid)}
}

func (r *inMemoryBidRepo) Create(_ context.Context, _ pgx.Tx, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	bid.Seq = r.seq
	cp := *bid
	r.bids[bid.ID] = &cp
	return nil
}

func (r *inMemoryBidRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bid, ok := r.bids[id]
	if !ok {
		return nil, nil
	}
	cp := *bid
	return &cp, nil
}

func (r *inMemoryBidRepo) FindEligibleByAuction(_ context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Bid
	for _, bid := range r.bids {
		if bid.AuctionID == auctionID && bid.IsEligible() {
			out = append(out, *bid)
		}
	}
	return ranking.Rank(out), nil
}

func (r *inMemoryBidRepo) LockEligibleByAuction(ctx context.Context, _ pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error) {
	return r.FindEligibleByAuction(ctx, auctionID)
}

// Transition mirrors the SQL adapter's guarded update: the lifecycle check
// and the write happen under one lock, so racing claims resolve to one
// winner here exactly as they do against PostgreSQL.
func (r *inMemoryBidRepo) Transition(_ context.Context, _ pgx.Tx, id uuid.UUID, next domain.BidStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bid, ok := r.bids[id]
	if !ok || !bid.CanTransitionTo(next) {
		return false, nil
	}
	bid.Status = next
	return true, nil
}

// --- users ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[string]*domain.User)}
}

func (r *inMemoryUserRepo) Ensure(_ context.Context, _ pgx.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		r.users[id] = &domain.User{ID: id, Username: id, CreatedAt: time.Now().UTC()}
	}
	return nil
}

func (r *inMemoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// --- wallets ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
	ledger  []domain.LedgerEntry
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Ensure(_ context.Context, _ pgx.Tx, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[userID]; !ok {
		r.wallets[userID] = &domain.Wallet{UserID: userID}
	}
	return nil
}

func (r *inMemoryWalletRepo) Get(_ context.Context, userID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[userID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// Apply enforces the non-negative balance condition atomically, matching the
// conditional UPDATE in the PostgreSQL adapter.
func (r *inMemoryWalletRepo) Apply(_ context.Context, _ pgx.Tx, userID string, availableDelta, lockedDelta int64, meta domain.LedgerMeta) error {
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
	w.UpdatedAt = time.Now().UTC()
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

func (r *inMemoryWalletRepo) ListLedger(_ context.Context, userID string) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range r.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- idempotency ---

type inMemoryIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func idempKey(key, scope string) string { return key + "|" + scope }

func (r *inMemoryIdempotencyRepo) TryBegin(_ context.Context, key, scope string) (bool, *domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[idempKey(key, scope)]; ok {
		cp := *rec
		return false, &cp, nil
	}
	r.records[idempKey(key, scope)] = &domain.IdempotencyRecord{
		Key:       key,
		Scope:     scope,
		Status:    domain.IdempotencyStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	return true, nil, nil
}

func (r *inMemoryIdempotencyRepo) Finalize(_ context.Context, key, scope string, status int, response []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[idempKey(key, scope)]; ok {
		rec.Status = status
		rec.Response = response
		rec.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(_ context.Context, key, scope string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idempKey(key, scope)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *inMemoryIdempotencyRepo) Delete(_ context.Context, key, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, idempKey(key, scope))
	return nil
}
