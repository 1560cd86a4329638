package ports

import (
	"context"
	"time"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, isAdmin bool) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// BalanceCache is the Redis-layer balance read cache. It is advisory:
// the ledger sum is always authoritative, and every append invalidates
// or rewrites the cached value.
type BalanceCache interface {
	Get(ctx context.Context, userID uuid.UUID) (int64, bool, error)
	Set(ctx context.Context, userID uuid.UUID, balance int64) error
	Invalidate(ctx context.Context, userIDs ...uuid.UUID) error
}

// --- Service Ports (Business Logic) ---

// AuthService defines account registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for member registration.
type RegisterRequest struct {
	Username    string
	Password    string
	DisplayName string
}

// LedgerService is the credit primitive every collaborator goes through.
// Balances are never mutated directly.
type LedgerService interface {
	Credit(ctx context.Context, req CreditRequest) (int64, error)
	Debit(ctx context.Context, req DebitRequest) (int64, error)
	SetBalance(ctx context.Context, userID uuid.UUID, target int64) (int64, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
}

// CreditRequest holds validated input for a credit append.
type CreditRequest struct {
	UserID   uuid.UUID
	Amount   int64
	Reason   domain.LedgerReason
	Metadata map[string]string
}

// DebitRequest holds validated input for a debit append.
type DebitRequest struct {
	UserID   uuid.UUID
	Amount   int64
	Reason   domain.LedgerReason
	Metadata map[string]string
}

// InventoryService guards card existence, ownership, and encumbrance.
type InventoryService interface {
	TransferOwnership(ctx context.Context, cardID, fromUserID, toUserID uuid.UUID) error
	Destroy(ctx context.Context, cardID uuid.UUID) error
	IsEncumbered(ctx context.Context, cardID uuid.UUID) (bool, error)
	GetCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	ListCards(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error)
	MintCard(ctx context.Context, req MintCardRequest) (*domain.Card, error)
}

// MintCardRequest holds validated input for creating a card. Used by the
// admin grant route and by collaborators (pack opens, re-rolls).
type MintCardRequest struct {
	OwnerID       uuid.UUID
	CharacterID   int64
	CharacterName string
	MovieTitle    string
	Rarity        domain.Rarity
	Finish        domain.Finish
	CardType      string
}

// MarketplaceService manages listings and standing bids.
type MarketplaceService interface {
	List(ctx context.Context, sellerID, cardID uuid.UUID, askingPrice int64) (*domain.Listing, error)
	Delist(ctx context.Context, sellerID, listingID uuid.UUID) error
	BuyListing(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Listing, error)
	ActiveListings(ctx context.Context) ([]domain.Listing, error)
	CreateBuyOrder(ctx context.Context, requesterID uuid.UUID, characterID, offerPrice int64) (*domain.BuyOrder, error)
	CancelBuyOrder(ctx context.Context, requesterID, orderID uuid.UUID) error
	ActiveBuyOrders(ctx context.Context) ([]domain.BuyOrder, error)
	Disable(ctx context.Context) (*MarketShutdownSummary, error)
	Enable(ctx context.Context) error
	Status(ctx context.Context) (bool, error)
}

// MarketShutdownSummary reports what a marketplace shutdown cleared.
type MarketShutdownSummary struct {
	ListingsCancelled  int64 `json:"listings_cancelled"`
	BuyOrdersCancelled int64 `json:"buy_orders_cancelled"`
}

// TradeService drives the bilateral offer state machine.
type TradeService interface {
	Create(ctx context.Context, req CreateTradeRequest) (*domain.TradeOffer, error)
	Accept(ctx context.Context, callerID, tradeID uuid.UUID) (*domain.TradeOffer, error)
	Deny(ctx context.Context, callerID, tradeID uuid.UUID) error
	Cancel(ctx context.Context, callerID, tradeID uuid.UUID) error
	Get(ctx context.Context, callerID, tradeID uuid.UUID) (*domain.TradeOffer, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TradeOffer, error)
}

// CreateTradeRequest holds validated input for opening a trade offer.
type CreateTradeRequest struct {
	InitiatorID      uuid.UUID
	CounterpartyID   uuid.UUID
	OfferedCardIDs   []uuid.UUID
	RequestedCardIDs []uuid.UUID
	OfferedCredits   int64
	RequestedCredits int64
}

// RollbackService reverses a user's economy state to a prior point in
// time, with single-level undo.
type RollbackService interface {
	Rollback(ctx context.Context, userID uuid.UUID, targetDate time.Time) (*domain.RollbackSummary, error)
	UndoRollback(ctx context.Context, userID uuid.UUID) error
	HasUndoAvailable(ctx context.Context, userID uuid.UUID) (bool, error)
}
