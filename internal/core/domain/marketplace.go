package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus is the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	ListingActive    ListingStatus = "ACTIVE"
	ListingSold      ListingStatus = "SOLD"
	ListingCancelled ListingStatus = "CANCELLED"
)

// Listing is an ask for a specific card. While a listing is active the
// card is encumbered: it cannot be traded, destroyed, or re-listed.
type Listing struct {
	ID          uuid.UUID     `json:"id"`
	CardID      uuid.UUID     `json:"card_id"`
	SellerID    uuid.UUID     `json:"seller_id"`
	AskingPrice int64         `json:"asking_price"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

// IsActive reports whether the listing still encumbers its card.
func (l *Listing) IsActive() bool {
	return l.Status == ListingActive
}

// BuyOrderStatus is the lifecycle state of a standing bid.
type BuyOrderStatus string

const (
	BuyOrderActive    BuyOrderStatus = "ACTIVE"
	BuyOrderCancelled BuyOrderStatus = "CANCELLED"
)

// BuyOrder is a standing bid for any card of a character. No funds are
// held in escrow; fulfilment happens manually through a trade.
type BuyOrder struct {
	ID          uuid.UUID      `json:"id"`
	CharacterID int64          `json:"character_id"`
	RequesterID uuid.UUID      `json:"requester_id"`
	OfferPrice  int64          `json:"offer_price"`
	Status      BuyOrderStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}
