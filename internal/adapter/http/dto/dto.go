package dto

import (
	"time"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
)

// RegisterRequest is the request body for member registration.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password    string `json:"password" binding:"required,min=8,max=128"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for member login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// BalanceResponse is the response for a wallet balance query.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// HistoryQuery holds the query parameters for ledger history.
type HistoryQuery struct {
	Reason   string `form:"reason"`
	From     *int64 `form:"from"`
	To       *int64 `form:"to"`
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
}

// HistoryResponse wraps a paginated ledger history page.
type HistoryResponse struct {
	Items      []LedgerEntryResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// LedgerEntryResponse is one signed credit movement.
type LedgerEntryResponse struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Reason    string            `json:"reason"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// FromLedgerEntry converts a domain entry to its transport shape.
func FromLedgerEntry(e domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:        e.ID.String(),
		Amount:    e.Amount,
		Reason:    string(e.Reason),
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// CardResponse is the transport shape of a card.
type CardResponse struct {
	ID            string  `json:"id"`
	OwnerID       *string `json:"owner_id,omitempty"`
	CharacterID   int64   `json:"character_id"`
	CharacterName string  `json:"character_name"`
	MovieTitle    string  `json:"movie_title"`
	Rarity        string  `json:"rarity"`
	Finish        string  `json:"finish"`
	CardType      string  `json:"card_type"`
	AcquiredAt    string  `json:"acquired_at"`
}

// FromCard converts a domain card to its transport shape.
func FromCard(card domain.Card) CardResponse {
	resp := CardResponse{
		ID:            card.ID.String(),
		CharacterID:   card.CharacterID,
		CharacterName: card.CharacterName,
		MovieTitle:    card.MovieTitle,
		Rarity:        string(card.Rarity),
		Finish:        string(card.Finish),
		CardType:      card.CardType,
		AcquiredAt:    card.AcquiredAt.UTC().Format(time.RFC3339),
	}
	if card.OwnerID != nil {
		owner := card.OwnerID.String()
		resp.OwnerID = &owner
	}
	return resp
}

// EncumbranceResponse reports whether a card is locked by market activity.
type EncumbranceResponse struct {
	CardID     string `json:"card_id"`
	Encumbered bool   `json:"encumbered"`
}

// CreateListingRequest is the request body for listing a card for sale.
type CreateListingRequest struct {
	CardID      string `json:"card_id" binding:"required,uuid"`
	AskingPrice int64  `json:"asking_price" binding:"required,gt=0"`
}

// ListingResponse is the transport shape of a marketplace listing.
type ListingResponse struct {
	ID          string  `json:"id"`
	CardID      string  `json:"card_id"`
	SellerID    string  `json:"seller_id"`
	AskingPrice int64   `json:"asking_price"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

// FromListing converts a domain listing to its transport shape.
func FromListing(l domain.Listing) ListingResponse {
	resp := ListingResponse{
		ID:          l.ID.String(),
		CardID:      l.CardID.String(),
		SellerID:    l.SellerID.String(),
		AskingPrice: l.AskingPrice,
		Status:      string(l.Status),
		CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.ResolvedAt != nil {
		ts := l.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &ts
	}
	return resp
}

// CreateBuyOrderRequest is the request body for a standing bid.
type CreateBuyOrderRequest struct {
	CharacterID int64 `json:"character_id" binding:"required,gt=0"`
	OfferPrice  int64 `json:"offer_price" binding:"required,gt=0"`
}

// BuyOrderResponse is the transport shape of a standing bid.
type BuyOrderResponse struct {
	ID          string  `json:"id"`
	CharacterID int64   `json:"character_id"`
	RequesterID string  `json:"requester_id"`
	OfferPrice  int64   `json:"offer_price"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

// FromBuyOrder converts a domain buy order to its transport shape.
func FromBuyOrder(o domain.BuyOrder) BuyOrderResponse {
	resp := BuyOrderResponse{
		ID:          o.ID.String(),
		CharacterID: o.CharacterID,
		RequesterID: o.RequesterID.String(),
		OfferPrice:  o.OfferPrice,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.ResolvedAt != nil {
		ts := o.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &ts
	}
	return resp
}

// CreateTradeRequest is the request body for opening a trade offer.
type CreateTradeRequest struct {
	CounterpartyID   string   `json:"counterparty_id" binding:"required,uuid"`
	OfferedCardIDs   []string `json:"offered_card_ids" binding:"omitempty,dive,uuid"`
	RequestedCardIDs []string `json:"requested_card_ids" binding:"omitempty,dive,uuid"`
	OfferedCredits   int64    `json:"offered_credits" binding:"gte=0"`
	RequestedCredits int64    `json:"requested_credits" binding:"gte=0"`
}

// TradeResponse is the transport shape of a trade offer.
type TradeResponse struct {
	ID               string   `json:"id"`
	InitiatorID      string   `json:"initiator_id"`
	CounterpartyID   string   `json:"counterparty_id"`
	OfferedCardIDs   []string `json:"offered_card_ids"`
	RequestedCardIDs []string `json:"requested_card_ids"`
	OfferedCredits   int64    `json:"offered_credits"`
	RequestedCredits int64    `json:"requested_credits"`
	Status           string   `json:"status"`
	CreatedAt        string   `json:"created_at"`
	ResolvedAt       *string  `json:"resolved_at,omitempty"`
}

// FromTrade converts a domain trade offer to its transport shape.
func FromTrade(t domain.TradeOffer) TradeResponse {
	offered := make([]string, 0, len(t.OfferedCardIDs))
	for _, id := range t.OfferedCardIDs {
		offered = append(offered, id.String())
	}
	requested := make([]string, 0, len(t.RequestedCardIDs))
	for _, id := range t.RequestedCardIDs {
		requested = append(requested, id.String())
	}
	resp := TradeResponse{
		ID:               t.ID.String(),
		InitiatorID:      t.InitiatorID.String(),
		CounterpartyID:   t.CounterpartyID.String(),
		OfferedCardIDs:   offered,
		RequestedCardIDs: requested,
		OfferedCredits:   t.OfferedCredits,
		RequestedCredits: t.RequestedCredits,
		Status:           string(t.Status),
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.ResolvedAt != nil {
		ts := t.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &ts
	}
	return resp
}

// AdjustCreditsRequest is the admin request body for granting or
// debiting credits.
type AdjustCreditsRequest struct {
	UserID uuid.UUID         `json:"user_id" binding:"required"`
	Amount int64             `json:"amount" binding:"required,gt=0"`
	Memo   map[string]string `json:"memo,omitempty"`
}

// SetBalanceRequest is the admin request body for a balance correction.
type SetBalanceRequest struct {
	Target int64 `json:"target" binding:"gte=0"`
}

// RollbackRequest is the admin request body for a user rollback.
type RollbackRequest struct {
	TargetDate int64 `json:"target_date" binding:"required,gt=0"` // Unix timestamp
}

// GrantCardRequest is the admin request body for minting a card.
type GrantCardRequest struct {
	OwnerID       uuid.UUID `json:"owner_id" binding:"required"`
	CharacterID   int64     `json:"character_id" binding:"required,gt=0"`
	CharacterName string    `json:"character_name" binding:"required,min=1,max=200"`
	MovieTitle    string    `json:"movie_title" binding:"required,min=1,max=300"`
	Rarity        string    `json:"rarity" binding:"required,oneof=UNCOMMON RARE EPIC LEGENDARY"`
	Finish        string    `json:"finish" binding:"required,oneof=NORMAL HOLO PRISMATIC DARK_MATTER"`
	CardType      string    `json:"card_type" binding:"required,min=1,max=50"`
}

// MarketStatusResponse reports the marketplace switch state.
type MarketStatusResponse struct {
	Enabled bool `json:"enabled"`
}

// UndoAvailableResponse reports whether a rollback can be undone.
type UndoAvailableResponse struct {
	UserID        string `json:"user_id"`
	UndoAvailable bool   `json:"undo_available"`
}
