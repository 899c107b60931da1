package postgres

import (
	"context"
	"errors"
	"fmt"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuctionRepo implements ports.AuctionRepository.
type AuctionRepo struct {
	pool Pool
}

// NewAuctionRepo creates a new AuctionRepo.
func NewAuctionRepo(pool Pool) *AuctionRepo {
	return &AuctionRepo{pool: pool}
}

// Create inserts a new auction.
func (r *AuctionRepo) Create(ctx context.Context, a *domain.Auction) error {
	query := `INSERT INTO auctions (id, title, total_items, status, current_round_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Title, a.TotalItems, a.Status, a.CurrentRoundNumber, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert auction: %w", err)
	}
	return nil
}

// GetByID fetches an auction by id. Returns nil, nil when absent.
func (r *AuctionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT id, title, total_items, status, current_round_number, created_at
		FROM auctions WHERE id = $1`

	a := &domain.Auction{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Title, &a.TotalItems, &a.Status, &a.CurrentRoundNumber, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auction by id: %w", err)
	}
	return a, nil
}

// UpdateStatus sets the auction status.
func (r *AuctionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AuctionStatus) error {
	query := `UPDATE auctions SET status = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update auction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("auction not found: %s", id)
	}
	return nil
}

// SetCurrentRound bumps current_round_number inside the closure transaction.
// The number only ever increases; lower values match no row and are ignored.
func (r *AuctionRepo) SetCurrentRound(ctx context.Context, tx pgx.Tx, id uuid.UUID, roundNumber int) error {
	query := `UPDATE auctions SET current_round_number = $1
		WHERE id = $2 AND current_round_number < $1`

	if _, err := tx.Exec(ctx, query, roundNumber, id); err != nil {
		return fmt.Errorf("set current round: %w", err)
	}
	return nil
}
