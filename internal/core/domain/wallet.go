package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a user's balances. Both balances are non-negative at all
// times; the store rejects any delta that would breach that atomically.
type Wallet struct {
	UserID           string    `json:"userId"`
	AvailableBalance int64     `json:"availableBalance"`
	LockedBalance    int64     `json:"lockedBalance"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// LedgerReason classifies a wallet ledger entry.
type LedgerReason string

const (
	LedgerReasonCredit     LedgerReason = "credit"
	LedgerReasonHold       LedgerReason = "hold"
	LedgerReasonRefund     LedgerReason = "refund"
	LedgerReasonSettle     LedgerReason = "settle"
	LedgerReasonAdjustment LedgerReason = "adjustment"
)

// LedgerEntry is an append-only record of a wallet delta. For every wallet
// the sum of deltas equals the current balances.
type LedgerEntry struct {
	ID             uuid.UUID    `json:"id"`
	UserID         string       `json:"userId"`
	AvailableDelta int64        `json:"availableDelta"`
	LockedDelta    int64        `json:"lockedDelta"`
	Reason         LedgerReason `json:"reason"`
	AuctionID      *uuid.UUID   `json:"auctionId,omitempty"`
	RoundID        *uuid.UUID   `json:"roundId,omitempty"`
	BidID          *uuid.UUID   `json:"bidId,omitempty"`
	IdempotencyKey *string      `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// LedgerMeta carries the optional references attached to a wallet delta.
type LedgerMeta struct {
	Reason         LedgerReason
	AuctionID      *uuid.UUID
	RoundID        *uuid.UUID
	BidID          *uuid.UUID
	IdempotencyKey *string
}
