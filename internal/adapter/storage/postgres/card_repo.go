package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CardRepo implements ports.CardRepository.
type CardRepo struct {
	pool Pool
}

// NewCardRepo creates a new CardRepo.
func NewCardRepo(pool Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

const cardColumns = "id, owner_id, character_id, character_name, movie_title, rarity, finish, card_type, created_at, acquired_at"

// Create inserts a freshly minted card within a transaction.
func (r *CardRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.Card) error {
	query := `INSERT INTO cards (id, owner_id, character_id, character_name, movie_title, rarity, finish, card_type, created_at, acquired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.OwnerID, c.CharacterID, c.CharacterName, c.MovieTitle,
		c.Rarity, c.Finish, c.CardType, c.CreatedAt, c.AcquiredAt)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// GetByID returns a card by id, or (nil, nil) when absent.
func (r *CardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Card, error) {
	query := fmt.Sprintf("SELECT %s FROM cards WHERE id = $1", cardColumns)

	c, err := scanCard(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get card by id: %w", err)
	}
	return c, nil
}

// GetByIDTx is GetByID inside a transaction, locking the row.
func (r *CardRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Card, error) {
	query := fmt.Sprintf("SELECT %s FROM cards WHERE id = $1 FOR UPDATE", cardColumns)

	c, err := scanCard(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get card by id in tx: %w", err)
	}
	return c, nil
}

// ListByOwner returns all live cards owned by a user, newest acquisition first.
func (r *CardRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error) {
	query := fmt.Sprintf("SELECT %s FROM cards WHERE owner_id = $1 ORDER BY acquired_at DESC", cardColumns)

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cards by owner: %w", err)
	}
	defer rows.Close()

	return scanCards(rows)
}

// UpdateOwner reassigns a card. A nil owner destroys the card; the row is
// kept so mint history and rollback snapshots stay coherent.
func (r *CardRepo) UpdateOwner(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, owner *uuid.UUID, acquiredAt time.Time) error {
	query := `UPDATE cards SET owner_id = $1, acquired_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, owner, acquiredAt, cardID)
	if err != nil {
		return fmt.Errorf("update card owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update card owner: card %s not found", cardID)
	}
	return nil
}

// ListOwnedSince returns cards a user acquired on/after the cutoff.
func (r *CardRepo) ListOwnedSince(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, since time.Time) ([]domain.Card, error) {
	query := fmt.Sprintf("SELECT %s FROM cards WHERE owner_id = $1 AND acquired_at >= $2 ORDER BY acquired_at", cardColumns)

	rows, err := tx.Query(ctx, query, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("list cards owned since: %w", err)
	}
	defer rows.Close()

	return scanCards(rows)
}

// CountLiveLegendary counts undestroyed legendary cards for a character,
// used to enforce the per-character mint cap.
func (r *CardRepo) CountLiveLegendary(ctx context.Context, characterID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM cards WHERE character_id = $1 AND rarity = $2 AND owner_id IS NOT NULL`

	var count int64
	if err := r.pool.QueryRow(ctx, query, characterID, domain.RarityLegendary).Scan(&count); err != nil {
		return 0, fmt.Errorf("count live legendary cards: %w", err)
	}
	return count, nil
}

// CountLiveLegendaryTx is CountLiveLegendary inside a transaction. The
// partial unique index on (character_id) for live legendaries backs the
// check against concurrent mints.
func (r *CardRepo) CountLiveLegendaryTx(ctx context.Context, tx pgx.Tx, characterID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM cards WHERE character_id = $1 AND rarity = $2 AND owner_id IS NOT NULL`

	var count int64
	if err := tx.QueryRow(ctx, query, characterID, domain.RarityLegendary).Scan(&count); err != nil {
		return 0, fmt.Errorf("count live legendary cards in tx: %w", err)
	}
	return count, nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(&c.ID, &c.OwnerID, &c.CharacterID, &c.CharacterName, &c.MovieTitle,
		&c.Rarity, &c.Finish, &c.CardType, &c.CreatedAt, &c.AcquiredAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCards(rows pgx.Rows) ([]domain.Card, error) {
	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		err := rows.Scan(&c.ID, &c.OwnerID, &c.CharacterID, &c.CharacterName, &c.MovieTitle,
			&c.Rarity, &c.Finish, &c.CardType, &c.CreatedAt, &c.AcquiredAt)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return cards, nil
}
