package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCard_IsDestroyed(t *testing.T) {
	owner := uuid.New()
	card := Card{ID: uuid.New(), OwnerID: &owner}
	assert.False(t, card.IsDestroyed())

	card.OwnerID = nil
	assert.True(t, card.IsDestroyed())
}

func TestCard_OwnedBy(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()
	card := Card{ID: uuid.New(), OwnerID: &owner}

	assert.True(t, card.OwnedBy(owner))
	assert.False(t, card.OwnedBy(other))

	card.OwnerID = nil
	assert.False(t, card.OwnedBy(owner), "destroyed card has no owner")
}

func TestValidRarity(t *testing.T) {
	for _, r := range []Rarity{RarityUncommon, RarityRare, RarityEpic, RarityLegendary} {
		assert.True(t, ValidRarity(r), string(r))
	}
	assert.False(t, ValidRarity("COMMON"))
	assert.False(t, ValidRarity(""))
}

func TestValidFinish(t *testing.T) {
	for _, f := range []Finish{FinishNormal, FinishHolo, FinishPrismatic, FinishDarkMatter} {
		assert.True(t, ValidFinish(f), string(f))
	}
	assert.False(t, ValidFinish("FOIL"))
}

func TestListing_IsActive(t *testing.T) {
	l := Listing{Status: ListingActive}
	assert.True(t, l.IsActive())

	for _, s := range []ListingStatus{ListingSold, ListingCancelled} {
		l.Status = s
		assert.False(t, l.IsActive(), string(s))
	}
}

func TestTradeOffer_IsPending(t *testing.T) {
	tr := TradeOffer{Status: TradePending}
	assert.True(t, tr.IsPending())

	for _, s := range []TradeStatus{TradeAccepted, TradeDenied, TradeCancelled} {
		tr.Status = s
		assert.False(t, tr.IsPending(), string(s))
	}
}

func TestTradeOffer_IsParty(t *testing.T) {
	initiator := uuid.New()
	counterparty := uuid.New()
	stranger := uuid.New()

	tr := TradeOffer{InitiatorID: initiator, CounterpartyID: counterparty}
	assert.True(t, tr.IsParty(initiator))
	assert.True(t, tr.IsParty(counterparty))
	assert.False(t, tr.IsParty(stranger))
}

func TestTradeOffer_References(t *testing.T) {
	offered := uuid.New()
	requested := uuid.New()
	other := uuid.New()

	tr := TradeOffer{
		OfferedCardIDs:   []uuid.UUID{offered},
		RequestedCardIDs: []uuid.UUID{requested},
	}
	assert.True(t, tr.References(offered))
	assert.True(t, tr.References(requested))
	assert.False(t, tr.References(other))
}

func TestTradeOffer_Sides(t *testing.T) {
	tr := TradeOffer{}
	assert.False(t, tr.HasOffer())
	assert.False(t, tr.HasRequest())

	tr.OfferedCredits = 10
	assert.True(t, tr.HasOffer())

	tr.RequestedCardIDs = []uuid.UUID{uuid.New()}
	assert.True(t, tr.HasRequest())
}
