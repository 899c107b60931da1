package ports

import (
	"context"
	"errors"
	"time"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrBalanceConditionFailed is returned by WalletRepository.Apply when a
// negative delta would drive a balance below zero. The store enforces the
// condition atomically; callers map it to INSUFFICIENT_FUNDS.
var ErrBalanceConditionFailed = errors.New("wallet balance condition failed")

// AuctionRepository defines persistence operations for auctions.
// Methods accepting pgx.Tx run inside an ambient transaction.
type AuctionRepository interface {
	Create(ctx context.Context, auction *domain.Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AuctionStatus) error
	// SetCurrentRound bumps currentRoundNumber. The round number only ever
	// increases; lower values are ignored.
	SetCurrentRound(ctx context.Context, tx pgx.Tx, id uuid.UUID, roundNumber int) error
}

// RoundRepository defines persistence operations for rounds.
type RoundRepository interface {
	Create(ctx context.Context, round *domain.Round) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Round, error)
	// GetActiveByAuction returns the single active round, or nil.
	GetActiveByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Round, error)
	// ExtendEndTime advances the round's end time. It only ever moves the end
	// forward and only while the round is active; returns the updated round,
	// or nil if no row matched.
	ExtendEndTime(ctx context.Context, id uuid.UUID, endTime time.Time) (*domain.Round, error)
	// Close marks the round closed within the closure transaction.
	Close(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// BidRepository defines persistence operations for bids.
type BidRepository interface {
	// Create persists a new bid and fills in its store-assigned Seq.
	Create(ctx context.Context, tx pgx.Tx, bid *domain.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bid, error)
	// FindEligibleByAuction returns bids in status {active, outbid} ordered by
	// the ranking rule (amount desc, timestamp asc, seq asc).
	FindEligibleByAuction(ctx context.Context, auctionID uuid.UUID) ([]domain.Bid, error)
	// LockEligibleByAuction is FindEligibleByAuction inside the closure
	// transaction with the rows locked, so withdrawals serialize against the
	// settlement that follows.
	LockEligibleByAuction(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error)
	// Transition moves the bid to next only while its current status allows
	// it (domain.TransitionSources); the predicate and the write are one
	// atomic statement. Returns false when the bid is missing or the
	// lifecycle refuses the move — exactly one of two racing claims on the
	// same hold can succeed.
	Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, next domain.BidStatus) (bool, error)
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Ensure lazily creates the user on first credit or bid. Existing users
	// are left untouched.
	Ensure(ctx context.Context, tx pgx.Tx, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// WalletRepository defines the wallet ledger operations.
type WalletRepository interface {
	// Ensure is an idempotent upsert with initial balances (0, 0).
	Ensure(ctx context.Context, tx pgx.Tx, userID string) error
	Get(ctx context.Context, userID string) (*domain.Wallet, error)
	// Apply atomically increments both balances and appends a ledger entry in
	// the same transaction. Fails with ErrBalanceConditionFailed if a negative
	// delta exceeds the corresponding balance.
	Apply(ctx context.Context, tx pgx.Tx, userID string, availableDelta, lockedDelta int64, meta domain.LedgerMeta) error
	ListLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error)
}

// IdempotencyRepository persists the (key, scope) memoization table.
type IdempotencyRepository interface {
	// TryBegin inserts a pending marker for (key, scope). If a record already
	// exists, created is false and existing holds it.
	TryBegin(ctx context.Context, key, scope string) (created bool, existing *domain.IdempotencyRecord, err error)
	// Finalize stores the completed (status, response) pair.
	Finalize(ctx context.Context, key, scope string, status int, response []byte) error
	Get(ctx context.Context, key, scope string) (*domain.IdempotencyRecord, error)
	// Delete removes a record, releasing the pending marker after a failed
	// first attempt so the client can retry.
	Delete(ctx context.Context, key, scope string) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
