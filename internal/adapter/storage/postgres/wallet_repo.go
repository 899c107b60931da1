package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository. Balance invariants are
// enforced in SQL, not by read-modify-write: the conditional UPDATE is the
// only correctness path under concurrent bids from the same user.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Ensure is an idempotent upsert with initial balances (0, 0).
func (r *WalletRepo) Ensure(ctx context.Context, tx pgx.Tx, userID string) error {
	query := `INSERT INTO wallets (user_id, available_balance, locked_balance, updated_at)
		VALUES ($1, 0, 0, NOW())
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// Get fetches a wallet by user id. Returns nil, nil when absent.
func (r *WalletRepo) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	query := `SELECT user_id, available_balance, locked_balance, updated_at
		FROM wallets WHERE user_id = $1`

	w := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&w.UserID, &w.AvailableBalance, &w.LockedBalance, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Apply performs the atomic conditional increment and appends the ledger
// entry in the same transaction. A zero-row update means a negative delta
// would breach non-negativity (callers Ensure the wallet first).
func (r *WalletRepo) Apply(ctx context.Context, tx pgx.Tx, userID string, availableDelta, lockedDelta int64, meta domain.LedgerMeta) error {
	update := `UPDATE wallets
		SET available_balance = available_balance + $1,
		    locked_balance = locked_balance + $2,
		    updated_at = NOW()
		WHERE user_id = $3
		  AND available_balance + $1 >= 0
		  AND locked_balance + $2 >= 0`

	tag, err := tx.Exec(ctx, update, availableDelta, lockedDelta, userID)
	if err != nil {
		return fmt.Errorf("apply wallet delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrBalanceConditionFailed
	}

	insert := `INSERT INTO wallet_ledger
		(id, user_id, available_delta, locked_delta, reason, auction_id, round_id, bid_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.Exec(ctx, insert,
		uuid.New(), userID, availableDelta, lockedDelta, meta.Reason,
		meta.AuctionID, meta.RoundID, meta.BidID, meta.IdempotencyKey, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// ListLedger returns a user's ledger entries oldest first.
func (r *WalletRepo) ListLedger(ctx context.Context, userID string) ([]domain.LedgerEntry, error) {
	query := `SELECT id, user_id, available_delta, locked_delta, reason, auction_id, round_id, bid_id, idempotency_key, created_at
		FROM wallet_ledger WHERE user_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.AvailableDelta, &e.LockedDelta, &e.Reason,
			&e.AuctionID, &e.RoundID, &e.BidID, &e.IdempotencyKey, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return entries, nil
}
