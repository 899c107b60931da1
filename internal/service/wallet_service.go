package service

import (
	"context"
	"errors"
	"fmt"

	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"

	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		transactor: transactor,
		log:        log,
	}
}

// Deposit credits the user's available balance. User and wallet are created
// lazily on first credit.
func (s *WalletServiceImpl) Deposit(ctx context.Context, userID string, amount int64) error {
	if userID == "" {
		return apperror.Validation("userId is required")
	}
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Ensure(ctx, dbTx, userID); err != nil {
		return apperror.InternalError(fmt.Errorf("ensure user: %w", err))
	}
	if err := s.walletRepo.Ensure(ctx, dbTx, userID); err != nil {
		return apperror.InternalError(fmt.Errorf("ensure wallet: %w", err))
	}

	meta := domain.LedgerMeta{Reason: domain.LedgerReasonCredit}
	if err := s.walletRepo.Apply(ctx, dbTx, userID, amount, 0, meta); err != nil {
		if errors.Is(err, ports.ErrBalanceConditionFailed) {
			// A positive credit can never breach non-negativity.
			return apperror.InternalError(fmt.Errorf("credit rejected: %w", err))
		}
		return apperror.InternalError(fmt.Errorf("apply credit: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("user_id", userID).Int64("amount", amount).Msg("wallet credited")
	return nil
}

// GetWallet returns the user's wallet. Users that never deposited get a zero
// wallet rather than a not-found error.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	if userID == "" {
		return nil, apperror.Validation("userId is required")
	}

	wallet, err := s.walletRepo.Get(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return &domain.Wallet{UserID: userID}, nil
	}
	return wallet, nil
}
