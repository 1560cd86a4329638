package domain

import (
	"time"

	"github.com/google/uuid"
)

// LotteryTicket is written by the lottery collaborator and only read back
// here so rollbacks can reverse it.
type LotteryTicket struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Drawing   string    `json:"drawing"`
	CreatedAt time.Time `json:"created_at"`
}

// CodexUnlock records a character permanently unlocked in a user's codex.
// Written by the codex collaborator; reversed by rollback.
type CodexUnlock struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	CharacterID int64     `json:"character_id"`
	CreatedAt   time.Time `json:"created_at"`
}
