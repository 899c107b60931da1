package postgres

import (
	"context"
	"errors"
	"fmt"

	"auction-house/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository over the
// (key, scope) memoization table.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// TryBegin inserts a pending marker. On conflict the existing record is
// returned so the caller can distinguish in-flight from finalized.
func (r *IdempotencyRepo) TryBegin(ctx context.Context, key, scope string) (bool, *domain.IdempotencyRecord, error) {
	insert := `INSERT INTO idempotency_keys (key, scope, status, created_at, updated_at)
		VALUES ($1, $2, 0, NOW(), NOW())
		ON CONFLICT (key, scope) DO NOTHING`

	tag, err := r.pool.Exec(ctx, insert, key, scope)
	if err != nil {
		return false, nil, fmt.Errorf("insert idempotency marker: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil, nil
	}

	existing, err := r.Get(ctx, key, scope)
	if err != nil {
		return false, nil, err
	}
	return false, existing, nil
}

// Finalize stores the completed (status, response) pair.
func (r *IdempotencyRepo) Finalize(ctx context.Context, key, scope string, status int, response []byte) error {
	query := `UPDATE idempotency_keys SET status = $1, response = $2, updated_at = NOW()
		WHERE key = $3 AND scope = $4`

	tag, err := r.pool.Exec(ctx, query, status, response, key, scope)
	if err != nil {
		return fmt.Errorf("finalize idempotency record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("idempotency record not found: %s/%s", scope, key)
	}
	return nil
}

// Get fetches a record by (key, scope). Returns nil, nil when absent.
func (r *IdempotencyRepo) Get(ctx context.Context, key, scope string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, scope, status, response, created_at, updated_at
		FROM idempotency_keys WHERE key = $1 AND scope = $2`

	rec := &domain.IdempotencyRecord{}
	err := r.pool.QueryRow(ctx, query, key, scope).Scan(
		&rec.Key, &rec.Scope, &rec.Status, &rec.Response, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	return rec, nil
}

// Delete releases a pending marker after a failed first attempt.
func (r *IdempotencyRepo) Delete(ctx context.Context, key, scope string) error {
	query := `DELETE FROM idempotency_keys WHERE key = $1 AND scope = $2`

	if _, err := r.pool.Exec(ctx, query, key, scope); err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}
	return nil
}
