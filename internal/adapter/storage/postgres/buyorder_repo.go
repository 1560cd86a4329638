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

// BuyOrderRepo implements ports.BuyOrderRepository.
type BuyOrderRepo struct {
	pool Pool
}

// NewBuyOrderRepo creates a new BuyOrderRepo.
func NewBuyOrderRepo(pool Pool) *BuyOrderRepo {
	return &BuyOrderRepo{pool: pool}
}

const buyOrderColumns = "id, character_id, requester_id, offer_price, status, created_at, resolved_at"

// Create inserts a buy order within a transaction.
func (r *BuyOrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.BuyOrder) error {
	query := `INSERT INTO buy_orders (id, character_id, requester_id, offer_price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, o.ID, o.CharacterID, o.RequesterID, o.OfferPrice, o.Status, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert buy order: %w", err)
	}
	return nil
}

// GetByID returns a buy order by id, or (nil, nil) when absent.
func (r *BuyOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.BuyOrder, error) {
	query := fmt.Sprintf("SELECT %s FROM buy_orders WHERE id = $1", buyOrderColumns)

	var o domain.BuyOrder
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&o.ID, &o.CharacterID, &o.RequesterID, &o.OfferPrice, &o.Status, &o.CreatedAt, &o.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get buy order by id: %w", err)
	}
	return &o, nil
}

// ListActive returns all standing bids, highest offer first.
func (r *BuyOrderRepo) ListActive(ctx context.Context) ([]domain.BuyOrder, error) {
	query := fmt.Sprintf("SELECT %s FROM buy_orders WHERE status = $1 ORDER BY offer_price DESC, created_at", buyOrderColumns)

	rows, err := r.pool.Query(ctx, query, domain.BuyOrderActive)
	if err != nil {
		return nil, fmt.Errorf("list active buy orders: %w", err)
	}
	defer rows.Close()

	return scanBuyOrders(rows)
}

// UpdateStatus resolves a buy order.
func (r *BuyOrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BuyOrderStatus, resolvedAt *time.Time) error {
	query := `UPDATE buy_orders SET status = $1, resolved_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update buy order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update buy order status: order %s not found", id)
	}
	return nil
}

// CancelAllActive cancels every standing bid. Used by the marketplace
// shutdown switch.
func (r *BuyOrderRepo) CancelAllActive(ctx context.Context, tx pgx.Tx) (int64, error) {
	query := `UPDATE buy_orders SET status = $1, resolved_at = NOW() WHERE status = $2`

	tag, err := tx.Exec(ctx, query, domain.BuyOrderCancelled, domain.BuyOrderActive)
	if err != nil {
		return 0, fmt.Errorf("cancel all active buy orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListByRequesterSince returns a user's bids created on/after the cutoff.
func (r *BuyOrderRepo) ListByRequesterSince(ctx context.Context, tx pgx.Tx, requesterID uuid.UUID, since time.Time) ([]domain.BuyOrder, error) {
	query := fmt.Sprintf("SELECT %s FROM buy_orders WHERE requester_id = $1 AND created_at >= $2 ORDER BY created_at", buyOrderColumns)

	rows, err := tx.Query(ctx, query, requesterID, since)
	if err != nil {
		return nil, fmt.Errorf("list buy orders by requester since: %w", err)
	}
	defer rows.Close()

	return scanBuyOrders(rows)
}

func scanBuyOrders(rows pgx.Rows) ([]domain.BuyOrder, error) {
	var orders []domain.BuyOrder
	for rows.Next() {
		var o domain.BuyOrder
		err := rows.Scan(&o.ID, &o.CharacterID, &o.RequesterID, &o.OfferPrice, &o.Status, &o.CreatedAt, &o.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan buy order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buy orders: %w", err)
	}
	return orders, nil
}
