package postgres

import (
	"context"
	"errors"
	"fmt"

	"auction-house/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Ensure lazily creates the user on first credit or bid. The username
// defaults to the id; existing rows are untouched.
func (r *UserRepo) Ensure(ctx context.Context, tx pgx.Tx, id string) error {
	query := `INSERT INTO users (id, username, created_at)
		VALUES ($1, $1, NOW())
		ON CONFLICT (id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// GetByID fetches a user by id. Returns nil, nil when absent.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, username, wallet_address, created_at FROM users WHERE id = $1`

	u := &domain.User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Username, &u.WalletAddress, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}
