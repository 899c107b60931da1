package postgres

import (
	"context"
	"errors"
	"fmt"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BidRepo implements ports.BidRepository.
type BidRepo struct {
	pool Pool
}

// NewBidRepo creates a new BidRepo.
func NewBidRepo(pool Pool) *BidRepo {
	return &BidRepo{pool: pool}
}

// Create inserts a bid within the admission transaction and fills in the
// store-assigned seq used for same-millisecond tie-breaks.
func (r *BidRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.Bid) error {
	query := `INSERT INTO bids (id, auction_id, user_id, round_id, amount, placed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		b.ID, b.AuctionID, b.UserID, b.RoundID, b.Amount, b.Timestamp, b.Status,
	).Scan(&b.Seq)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

// GetByID fetches a bid by id. Returns nil, nil when absent.
func (r *BidRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bid, error) {
	query := `SELECT id, auction_id, user_id, round_id, amount, placed_at, seq, status
		FROM bids WHERE id = $1`

	b := &domain.Bid{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.AuctionID, &b.UserID, &b.RoundID, &b.Amount, &b.Timestamp, &b.Seq, &b.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bid by id: %w", err)
	}
	return b, nil
}

const eligibleBidsQuery = `SELECT id, auction_id, user_id, round_id, amount, placed_at, seq, status
	FROM bids
	WHERE auction_id = $1 AND status IN ('active', 'outbid')
	ORDER BY amount DESC, placed_at ASC, seq ASC`

// FindEligibleByAuction returns the carry-over candidate pool, ranked. The
// order matches the ranking rule exactly so closure can take the first N.
func (r *BidRepo) FindEligibleByAuction(ctx context.Context, auctionID uuid.UUID) ([]domain.Bid, error) {
	rows, err := r.pool.Query(ctx, eligibleBidsQuery, auctionID)
	if err != nil {
		return nil, fmt.Errorf("find eligible bids: %w", err)
	}
	return scanBids(rows)
}

// LockEligibleByAuction reads the pool inside the closure transaction with
// the rows locked, so a withdrawal cannot slip between the read and the
// settlement writes.
func (r *BidRepo) LockEligibleByAuction(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) ([]domain.Bid, error) {
	rows, err := tx.Query(ctx, eligibleBidsQuery+` FOR UPDATE`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("lock eligible bids: %w", err)
	}
	return scanBids(rows)
}

func scanBids(rows pgx.Rows) ([]domain.Bid, error) {
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		var b domain.Bid
		if err := rows.Scan(
			&b.ID, &b.AuctionID, &b.UserID, &b.RoundID, &b.Amount, &b.Timestamp, &b.Seq, &b.Status,
		); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

// Transition moves a bid's status within a transaction. The lifecycle guard
// is part of the UPDATE's predicate, so two racing claims on the same hold
// (withdrawal vs settlement) resolve to exactly one writer; the loser sees
// false and reloads to report the bid's actual state.
func (r *BidRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, next domain.BidStatus) (bool, error) {
	sources := domain.TransitionSources(next)
	from := make([]string, 0, len(sources))
	for _, s := range sources {
		from = append(from, string(s))
	}

	query := `UPDATE bids SET status = $1 WHERE id = $2 AND status = ANY($3)`
	tag, err := tx.Exec(ctx, query, next, id, from)
	if err != nil {
		return false, fmt.Errorf("transition bid status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
