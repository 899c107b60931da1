package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RoundRepo implements ports.RoundRepository.
type RoundRepo struct {
	pool Pool
}

// NewRoundRepo creates a new RoundRepo.
func NewRoundRepo(pool Pool) *RoundRepo {
	return &RoundRepo{pool: pool}
}

// Create inserts a new round. The partial unique index on (auction_id) for
// active rounds rejects a second concurrent active round.
func (r *RoundRepo) Create(ctx context.Context, rd *domain.Round) error {
	query := `INSERT INTO rounds (id, auction_id, round_number, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		rd.ID, rd.AuctionID, rd.RoundNumber, rd.StartTime, rd.EndTime, rd.Status,
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// GetByID fetches a round by id. Returns nil, nil when absent.
func (r *RoundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Round, error) {
	query := `SELECT id, auction_id, round_number, start_time, end_time, status
		FROM rounds WHERE id = $1`

	rd := &domain.Round{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rd.ID, &rd.AuctionID, &rd.RoundNumber, &rd.StartTime, &rd.EndTime, &rd.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get round by id: %w", err)
	}
	return rd, nil
}

// GetActiveByAuction fetches the single active round for an auction.
func (r *RoundRepo) GetActiveByAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Round, error) {
	query := `SELECT id, auction_id, round_number, start_time, end_time, status
		FROM rounds WHERE auction_id = $1 AND status = 'active'`

	rd := &domain.Round{}
	err := r.pool.QueryRow(ctx, query, auctionID).Scan(
		&rd.ID, &rd.AuctionID, &rd.RoundNumber, &rd.StartTime, &rd.EndTime, &rd.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active round: %w", err)
	}
	return rd, nil
}

// ExtendEndTime advances the end time of an active round. End times never
// retreat: an earlier target matches no row and returns nil.
func (r *RoundRepo) ExtendEndTime(ctx context.Context, id uuid.UUID, endTime time.Time) (*domain.Round, error) {
	query := `UPDATE rounds SET end_time = $1
		WHERE id = $2 AND status = 'active' AND end_time < $1
		RETURNING id, auction_id, round_number, start_time, end_time, status`

	rd := &domain.Round{}
	err := r.pool.QueryRow(ctx, query, endTime, id).Scan(
		&rd.ID, &rd.AuctionID, &rd.RoundNumber, &rd.StartTime, &rd.EndTime, &rd.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("extend round end time: %w", err)
	}
	return rd, nil
}

// Close marks the round closed within the closure transaction.
func (r *RoundRepo) Close(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE rounds SET status = 'closed' WHERE id = $1 AND status = 'active'`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("close round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("round not active: %s", id)
	}
	return nil
}
