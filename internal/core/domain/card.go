package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rarity is the scarcity tier of a card.
type Rarity string

const (
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Finish is the visual treatment of a card.
type Finish string

const (
	FinishNormal     Finish = "NORMAL"
	FinishHolo       Finish = "HOLO"
	FinishPrismatic  Finish = "PRISMATIC"
	FinishDarkMatter Finish = "DARK_MATTER"
)

// Card is a collectible owned by exactly one user at any instant.
// A destroyed card keeps its row with a null owner so history stays
// reconstructable and legendary uniqueness can be audited.
type Card struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       *uuid.UUID `json:"owner_id,omitempty"` // nil = destroyed
	CharacterID   int64      `json:"character_id"`
	CharacterName string     `json:"character_name"`
	MovieTitle    string     `json:"movie_title"`
	Rarity        Rarity     `json:"rarity"`
	Finish        Finish     `json:"finish"`
	CardType      string     `json:"card_type"`
	CreatedAt     time.Time  `json:"created_at"`
	AcquiredAt    time.Time  `json:"acquired_at"` // last ownership change
}

// IsDestroyed reports whether the card has been removed from play.
func (c *Card) IsDestroyed() bool {
	return c.OwnerID == nil
}

// OwnedBy reports whether the given user currently owns the card.
func (c *Card) OwnedBy(userID uuid.UUID) bool {
	return c.OwnerID != nil && *c.OwnerID == userID
}

// ValidRarity reports whether r is one of the known tiers.
func ValidRarity(r Rarity) bool {
	switch r {
	case RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// ValidFinish reports whether f is one of the known finishes.
func ValidFinish(f Finish) bool {
	switch f {
	case FinishNormal, FinishHolo, FinishPrismatic, FinishDarkMatter:
		return true
	}
	return false
}
