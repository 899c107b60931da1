package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Request validation ----

func Validation(message string) *AppError {
	return New("VALIDATION_ERROR", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("INVALID_AMOUNT", "Amount must be a positive integer", http.StatusBadRequest)
}

// ---- Auth ----

func ErrUnauthorized() *AppError {
	return New("UNAUTHORIZED", "Admin token missing or invalid", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("FORBIDDEN", "Bid belongs to another user", http.StatusForbidden)
}

// ---- Auction & round lifecycle ----

func ErrAuctionNotFound() *AppError {
	return New("AUCTION_NOT_FOUND", "Auction not found", http.StatusNotFound)
}

func ErrAuctionNotActive() *AppError {
	return New("AUCTION_NOT_ACTIVE", "Auction is not accepting bids", http.StatusNotFound)
}

// ErrAuctionNotActiveConflict is the admin-path variant of the same code: a
// lifecycle operation on a finished auction is a state conflict, where the
// public bid path hides the auction as not found.
func ErrAuctionNotActiveConflict() *AppError {
	return New("AUCTION_NOT_ACTIVE", "Auction is not active", http.StatusConflict)
}

func ErrRoundNotActive() *AppError {
	return New("ROUND_NOT_ACTIVE", "No active round for this auction", http.StatusConflict)
}

func ErrRoundEnded() *AppError {
	return New("ROUND_ENDED", "The current round has already ended", http.StatusConflict)
}

// ---- Bidding ----

func ErrBidNotFound() *AppError {
	return New("BID_NOT_FOUND", "Bid not found", http.StatusNotFound)
}

func ErrBidTooLow(required int64) *AppError {
	return New("BID_TOO_LOW", fmt.Sprintf("Bid below minimum step, required at least %d", required), http.StatusConflict)
}

func ErrInsufficientFunds() *AppError {
	return New("INSUFFICIENT_FUNDS", "Insufficient available balance", http.StatusConflict)
}

func ErrWinningLocked() *AppError {
	return New("WINNING_LOCKED", "Winning bids cannot be withdrawn", http.StatusConflict)
}

func ErrAlreadyRefunded() *AppError {
	return New("ALREADY_REFUNDED", "Bid has already been refunded", http.StatusConflict)
}

// ---- Idempotency & rate limiting ----

func ErrIdempotencyInProgress() *AppError {
	return New("IDEMPOTENCY_IN_PROGRESS", "A request with this idempotency key is still processing", http.StatusConflict)
}

func ErrRateLimited() *AppError {
	return New("RATE_LIMITED", "Too many bid requests", http.StatusTooManyRequests)
}

// ---- System & infrastructure ----

// InternalError wraps an infrastructure failure. Callers may retry with the
// same idempotency key.
func InternalError(err error) *AppError {
	return Wrap("INTERNAL", "Internal server error", http.StatusInternalServerError, err)
}
