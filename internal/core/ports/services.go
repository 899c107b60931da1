package ports

import (
	"context"
	"time"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
)

// --- Infrastructure ports ---

// Leaderboard is the per-auction ordered index of eligible bids. It is a
// cache of the authoritative bid store; callers prime it on miss.
type Leaderboard interface {
	Add(ctx context.Context, bid domain.Bid) error
	Remove(ctx context.Context, auctionID, bidID uuid.UUID) error
	// Top returns up to limit entries ordered amount desc, timestamp asc.
	Top(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error)
	Clear(ctx context.Context, auctionID uuid.UUID) error
}

// RoundScheduler enqueues a single logical closure job per round at an
// absolute instant. Delivery is at-least-once; handlers must be idempotent
// with respect to closed or missing rounds.
type RoundScheduler interface {
	Schedule(ctx context.Context, roundID uuid.UUID, runAt time.Time) error
	// Reschedule supersedes the existing job's run time.
	Reschedule(ctx context.Context, roundID uuid.UUID, runAt time.Time) error
}

// DistributedLock serializes short critical sections across processes. The
// TTL bounds the section so a crashed holder cannot block others.
type DistributedLock interface {
	// TryAcquire returns acquired=false without blocking when the lock is
	// held elsewhere. release is non-nil iff acquired.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

// RealtimePublisher fans out events on per-auction channels. Publication is
// best-effort; failures never roll back the causing state change.
type RealtimePublisher interface {
	PublishLeaderboardUpdate(ctx context.Context, event domain.LeaderboardUpdateEvent) error
	PublishRoundExtended(ctx context.Context, event domain.RoundExtendedEvent) error
	PublishRoundClosed(ctx context.Context, event domain.RoundClosedEvent) error
}

// IdempotencyCache is the Redis-layer replay check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service ports (business logic) ---

// BidService covers the bid admission pipeline and user recovery.
type BidService interface {
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*domain.Bid, error)
	Withdraw(ctx context.Context, bidID uuid.UUID, userID string) (*domain.Bid, error)
	// TopBids serves leaderboard reads, priming the index from the store on
	// cache miss.
	TopBids(ctx context.Context, auctionID uuid.UUID, limit int) ([]domain.LeaderboardEntry, error)
}

// PlaceBidRequest holds validated input for bid admission.
type PlaceBidRequest struct {
	AuctionID uuid.UUID
	UserID    string
	Amount    int64
}

// RoundService drives the round lifecycle.
type RoundService interface {
	// StartRound returns the existing active round (idempotent) or creates
	// round #(current+1) and schedules its closure.
	StartRound(ctx context.Context, auctionID uuid.UUID) (*domain.Round, error)
	// FinishRound is the scheduled closure handler. Stale jobs reschedule
	// themselves; closed or missing rounds are a no-op.
	FinishRound(ctx context.Context, roundID uuid.UUID) error
	// ForceClose closes the round immediately, bypassing the stale-job guard.
	ForceClose(ctx context.Context, roundID uuid.UUID) error
}

// AuctionService covers admin auction management and reads.
type AuctionService interface {
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*domain.Auction, *domain.Round, error)
	StopAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionView, error)
}

// CreateAuctionRequest holds validated input for auction creation.
type CreateAuctionRequest struct {
	Title      string
	TotalItems int
	StartNow   bool
}

// AuctionView is the public read model: the auction, its current round if
// any, and the bidding config clients need.
type AuctionView struct {
	Auction *domain.Auction `json:"auction"`
	Round   *domain.Round   `json:"round,omitempty"`
	Config  AuctionConfig   `json:"config"`
}

// AuctionConfig echoes bidding parameters to clients.
type AuctionConfig struct {
	MinBidStepPercent int64 `json:"minBidStepPercent"`
}

// WalletService covers deposits and wallet reads.
type WalletService interface {
	// Deposit credits the user's available balance, creating user and wallet
	// lazily on first credit.
	Deposit(ctx context.Context, userID string, amount int64) error
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
}
