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

// ListingRepo implements ports.ListingRepository.
type ListingRepo struct {
	pool Pool
}

// NewListingRepo creates a new ListingRepo.
func NewListingRepo(pool Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

const listingColumns = "id, card_id, seller_id, asking_price, status, created_at, resolved_at"

// Create inserts a listing within a transaction. The partial unique index on
// (card_id) WHERE status = 'ACTIVE' rejects double-listing a card.
func (r *ListingRepo) Create(ctx context.Context, tx pgx.Tx, l *domain.Listing) error {
	query := `INSERT INTO listings (id, card_id, seller_id, asking_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, l.ID, l.CardID, l.SellerID, l.AskingPrice, l.Status, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetByID returns a listing by id, or (nil, nil) when absent.
func (r *ListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = $1", listingColumns)
	return r.getOne(ctx, r.pool.QueryRow(ctx, query, id), "get listing by id")
}

// GetByIDTx is GetByID inside a transaction, locking the row.
func (r *ListingRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE id = $1 FOR UPDATE", listingColumns)
	return r.getOne(ctx, tx.QueryRow(ctx, query, id), "get listing by id in tx")
}

// GetActiveByCard returns the card's active listing, if any.
func (r *ListingRepo) GetActiveByCard(ctx context.Context, cardID uuid.UUID) (*domain.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE card_id = $1 AND status = $2", listingColumns)
	return r.getOne(ctx, r.pool.QueryRow(ctx, query, cardID, domain.ListingActive), "get active listing by card")
}

// GetActiveByCardTx is GetActiveByCard inside a transaction, locking the row.
func (r *ListingRepo) GetActiveByCardTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) (*domain.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE card_id = $1 AND status = $2 FOR UPDATE", listingColumns)
	return r.getOne(ctx, tx.QueryRow(ctx, query, cardID, domain.ListingActive), "get active listing by card in tx")
}

// ListActive returns all open listings, newest first.
func (r *ListingRepo) ListActive(ctx context.Context) ([]domain.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE status = $1 ORDER BY created_at DESC", listingColumns)

	rows, err := r.pool.Query(ctx, query, domain.ListingActive)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// UpdateStatus resolves a listing to SOLD or CANCELLED.
func (r *ListingRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ListingStatus, resolvedAt *time.Time) error {
	query := `UPDATE listings SET status = $1, resolved_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update listing status: listing %s not found", id)
	}
	return nil
}

// CancelAllActive cancels every open listing. Used by the marketplace
// shutdown switch.
func (r *ListingRepo) CancelAllActive(ctx context.Context, tx pgx.Tx) (int64, error) {
	query := `UPDATE listings SET status = $1, resolved_at = NOW() WHERE status = $2`

	tag, err := tx.Exec(ctx, query, domain.ListingCancelled, domain.ListingActive)
	if err != nil {
		return 0, fmt.Errorf("cancel all active listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListBySellerSince returns a seller's listings created on/after the cutoff.
func (r *ListingRepo) ListBySellerSince(ctx context.Context, tx pgx.Tx, sellerID uuid.UUID, since time.Time) ([]domain.Listing, error) {
	query := fmt.Sprintf("SELECT %s FROM listings WHERE seller_id = $1 AND created_at >= $2 ORDER BY created_at", listingColumns)

	rows, err := tx.Query(ctx, query, sellerID, since)
	if err != nil {
		return nil, fmt.Errorf("list listings by seller since: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

func (r *ListingRepo) getOne(_ context.Context, row pgx.Row, op string) (*domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(&l.ID, &l.CardID, &l.SellerID, &l.AskingPrice, &l.Status, &l.CreatedAt, &l.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &l, nil
}

func scanListings(rows pgx.Rows) ([]domain.Listing, error) {
	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		err := rows.Scan(&l.ID, &l.CardID, &l.SellerID, &l.AskingPrice, &l.Status, &l.CreatedAt, &l.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}
