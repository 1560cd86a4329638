package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerReason tags the origin of a credit movement.
type LedgerReason string

const (
	ReasonStartingGrant LedgerReason = "STARTING_GRANT"
	ReasonAdminGrant    LedgerReason = "ADMIN_GRANT"
	ReasonAdminDebit    LedgerReason = "ADMIN_DEBIT"
	ReasonCorrection    LedgerReason = "BALANCE_CORRECTION"
	ReasonMarketSale    LedgerReason = "MARKET_SALE"
	ReasonMarketBuy     LedgerReason = "MARKET_PURCHASE"
	ReasonTradeCredits  LedgerReason = "TRADE_CREDITS"
	ReasonQuicksell     LedgerReason = "QUICKSELL"
	ReasonPackOpen      LedgerReason = "PACK_OPEN"
	ReasonCasinoWin     LedgerReason = "CASINO_WIN"
	ReasonCasinoLoss    LedgerReason = "CASINO_LOSS"
)

// LedgerEntry is an immutable signed credit movement. A user's balance is
// always the sum of their entries' amounts and must never go negative.
type LedgerEntry struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Amount    int64             `json:"amount"` // signed: positive = credit, negative = debit
	Reason    LedgerReason      `json:"reason"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
