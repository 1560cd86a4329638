package domain

import (
	"time"

	"github.com/google/uuid"
)

// RollbackSnapshot captures everything a rollback removed for one user,
// sufficient to reverse it exactly once. At most one live snapshot per
// user: a second rollback overwrites it, undo consumes it.
type RollbackSnapshot struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"user_id"`
	TargetDate time.Time       `json:"target_date"`
	Payload    RollbackPayload `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RollbackPayload is the serialized set of removed/changed records.
// Trades and listings keep their pre-rollback status so undo can decide
// whether they may safely return to an active state.
type RollbackPayload struct {
	LedgerEntries []LedgerEntry   `json:"ledger_entries"`
	Cards         []Card          `json:"cards"`
	Tickets       []LotteryTicket `json:"tickets"`
	CodexUnlocks  []CodexUnlock   `json:"codex_unlocks"`
	Trades        []TradeOffer    `json:"trades"`
	Listings      []Listing       `json:"listings"`
	BuyOrders     []BuyOrder      `json:"buy_orders"`
}

// RollbackSummary reports what a rollback reversed.
type RollbackSummary struct {
	UserID               uuid.UUID `json:"user_id"`
	TargetDate           time.Time `json:"target_date"`
	NewBalance           int64     `json:"new_balance"`
	LedgerEntriesRemoved int64     `json:"ledger_entries_removed"`
	CardsRemoved         int64     `json:"cards_removed"`
	TicketsRemoved       int64     `json:"tickets_removed"`
	CodexUnlocksRemoved  int64     `json:"codex_unlocks_removed"`
	TradesCancelled      int64     `json:"trades_cancelled"`
	ListingsRemoved      int64     `json:"listings_removed"`
	BuyOrdersRemoved     int64     `json:"buy_orders_removed"`
}
