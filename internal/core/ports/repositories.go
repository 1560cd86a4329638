package ports

import (
	"context"
	"time"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for club members.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// LedgerRepository is the append-only credit ledger. Entries are never
// edited; rollback is the only path that deletes them, and it snapshots
// first. Methods accepting pgx.Tx run inside a critical section.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	SumForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	SumForUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error)
	ListForUser(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.LedgerEntry, error)
	DeleteSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (int64, error)
	Restore(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error
}

// LedgerListParams holds filter + pagination for ledger history.
type LedgerListParams struct {
	UserID   uuid.UUID
	Reason   *domain.LedgerReason
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// CardRepository defines persistence operations for cards.
// UpdateOwner with a nil owner destroys the card (row is retained).
type CardRepository interface {
	Create(ctx context.Context, tx pgx.Tx, card *domain.Card) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error)
	UpdateOwner(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, owner *uuid.UUID, acquiredAt time.Time) error
	ListOwnedSince(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, since time.Time) ([]domain.Card, error)
	CountLiveLegendary(ctx context.Context, characterID int64) (int64, error)
	CountLiveLegendaryTx(ctx context.Context, tx pgx.Tx, characterID int64) (int64, error)
}

// ListingRepository defines persistence operations for marketplace listings.
type ListingRepository interface {
	Create(ctx context.Context, tx pgx.Tx, listing *domain.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error)
	GetActiveByCard(ctx context.Context, cardID uuid.UUID) (*domain.Listing, error)
	GetActiveByCardTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) (*domain.Listing, error)
	ListActive(ctx context.Context) ([]domain.Listing, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ListingStatus, resolvedAt *time.Time) error
	CancelAllActive(ctx context.Context, tx pgx.Tx) (int64, error)
	ListBySellerSince(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, since time.Time) ([]domain.Listing, error)
}

// BuyOrderRepository defines persistence operations for standing bids.
type BuyOrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.BuyOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BuyOrder, error)
	ListActive(ctx context.Context) ([]domain.BuyOrder, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BuyOrderStatus, resolvedAt *time.Time) error
	CancelAllActive(ctx context.Context, tx pgx.Tx) (int64, error)
	ListByRequesterSince(ctx context.Context, tx pgx.Tx, requesterID uuid.UUID, since time.Time) ([]domain.BuyOrder, error)
}

// TradeRepository defines persistence operations for trade offers.
type TradeRepository interface {
	Create(ctx context.Context, tx pgx.Tx, trade *domain.TradeOffer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error)
	GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeOffer, error)
	ListPendingByCard(ctx context.Context, cardID uuid.UUID) ([]domain.TradeOffer, error)
	ListPendingByCardTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) ([]domain.TradeOffer, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TradeOffer, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TradeStatus, resolvedAt *time.Time) error
	ListByUserSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.TradeOffer, error)
}

// SnapshotRepository holds at most one rollback snapshot per user.
// Put overwrites any prior snapshot for the same user.
type SnapshotRepository interface {
	Put(ctx context.Context, tx pgx.Tx, snapshot *domain.RollbackSnapshot) error
	Get(ctx context.Context, userID uuid.UUID) (*domain.RollbackSnapshot, error)
	GetTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.RollbackSnapshot, error)
	Delete(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error
}

// TicketRepository defines persistence for lottery tickets, written by
// the lottery collaborator and reversed by rollback.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.LotteryTicket) error
	ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.LotteryTicket, error)
	DeleteByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error
	Restore(ctx context.Context, tx pgx.Tx, tickets []domain.LotteryTicket) error
}

// CodexRepository defines persistence for codex unlocks.
type CodexRepository interface {
	Create(ctx context.Context, unlock *domain.CodexUnlock) error
	ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.CodexUnlock, error)
	DeleteByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error
	Restore(ctx context.Context, tx pgx.Tx, unlocks []domain.CodexUnlock) error
}

// MarketStateRepository holds the single marketplace enabled/disabled flag.
type MarketStateRepository interface {
	IsEnabled(ctx context.Context) (bool, error)
	IsEnabledTx(ctx context.Context, tx pgx.Tx) (bool, error)
	SetEnabled(ctx context.Context, tx pgx.Tx, enabled bool) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
