package domain

import (
	"time"

	"github.com/google/uuid"
)

// TradeStatus is the state of a bilateral trade offer.
// pending is the only non-terminal state.
type TradeStatus string

const (
	TradePending   TradeStatus = "PENDING"
	TradeAccepted  TradeStatus = "ACCEPTED"
	TradeDenied    TradeStatus = "DENIED"
	TradeCancelled TradeStatus = "CANCELLED"
)

// TradeOffer is a bilateral exchange proposal. Every referenced card is
// encumbered while the offer is pending.
type TradeOffer struct {
	ID               uuid.UUID   `json:"id"`
	InitiatorID      uuid.UUID   `json:"initiator_id"`
	CounterpartyID   uuid.UUID   `json:"counterparty_id"`
	OfferedCardIDs   []uuid.UUID `json:"offered_card_ids"`
	RequestedCardIDs []uuid.UUID `json:"requested_card_ids"`
	OfferedCredits   int64       `json:"offered_credits"`
	RequestedCredits int64       `json:"requested_credits"`
	Status           TradeStatus `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	ResolvedAt       *time.Time  `json:"resolved_at,omitempty"`
}

// IsPending reports whether the trade can still be acted on.
func (t *TradeOffer) IsPending() bool {
	return t.Status == TradePending
}

// IsParty reports whether the given user is one of the two named parties.
func (t *TradeOffer) IsParty(userID uuid.UUID) bool {
	return t.InitiatorID == userID || t.CounterpartyID == userID
}

// References reports whether the trade involves the given card on either side.
func (t *TradeOffer) References(cardID uuid.UUID) bool {
	for _, id := range t.OfferedCardIDs {
		if id == cardID {
			return true
		}
	}
	for _, id := range t.RequestedCardIDs {
		if id == cardID {
			return true
		}
	}
	return false
}

// HasOffer reports whether the initiator's side carries at least one resource.
func (t *TradeOffer) HasOffer() bool {
	return len(t.OfferedCardIDs) > 0 || t.OfferedCredits > 0
}

// HasRequest reports whether the counterparty's side carries at least one resource.
func (t *TradeOffer) HasRequest() bool {
	return len(t.RequestedCardIDs) > 0 || t.RequestedCredits > 0
}
