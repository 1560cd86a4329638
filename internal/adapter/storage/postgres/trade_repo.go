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

// TradeRepo implements ports.TradeRepository.
type TradeRepo struct {
	pool Pool
}

// NewTradeRepo creates a new TradeRepo.
func NewTradeRepo(pool Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

const tradeColumns = "id, initiator_id, counterparty_id, offered_card_ids, requested_card_ids, offered_credits, requested_credits, status, created_at, resolved_at"

// Create inserts a trade offer within a transaction.
func (r *TradeRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.TradeOffer) error {
	query := `INSERT INTO trades (id, initiator_id, counterparty_id, offered_card_ids, requested_card_ids,
		offered_credits, requested_credits, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.InitiatorID, t.CounterpartyID, t.OfferedCardIDs, t.RequestedCardIDs,
		t.OfferedCredits, t.RequestedCredits, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID returns a trade by id, or (nil, nil) when absent.
func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeOffer, error) {
	query := fmt.Sprintf("SELECT %s FROM trades WHERE id = $1", tradeColumns)
	return scanTrade(r.pool.QueryRow(ctx, query, id), "get trade by id")
}

// GetByIDTx is GetByID inside a transaction, locking the row.
func (r *TradeRepo) GetByIDTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeOffer, error) {
	query := fmt.Sprintf("SELECT %s FROM trades WHERE id = $1 FOR UPDATE", tradeColumns)
	return scanTrade(tx.QueryRow(ctx, query, id), "get trade by id in tx")
}

// ListPendingByCard returns pending trades referencing the card on either side.
func (r *TradeRepo) ListPendingByCard(ctx context.Context, cardID uuid.UUID) ([]domain.TradeOffer, error) {
	return r.listPendingByCard(ctx, r.pool, cardID)
}

// ListPendingByCardTx is ListPendingByCard inside a transaction.
func (r *TradeRepo) ListPendingByCardTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) ([]domain.TradeOffer, error) {
	return r.listPendingByCard(ctx, tx, cardID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *TradeRepo) listPendingByCard(ctx context.Context, q querier, cardID uuid.UUID) ([]domain.TradeOffer, error) {
	query := fmt.Sprintf(`SELECT %s FROM trades
		WHERE status = $1 AND (offered_card_ids @> ARRAY[$2]::uuid[] OR requested_card_ids @> ARRAY[$2]::uuid[])
		ORDER BY created_at`, tradeColumns)

	rows, err := q.Query(ctx, query, domain.TradePending, cardID)
	if err != nil {
		return nil, fmt.Errorf("list pending trades by card: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListForUser returns every trade the user is a party to, newest first.
func (r *TradeRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TradeOffer, error) {
	query := fmt.Sprintf(`SELECT %s FROM trades
		WHERE initiator_id = $1 OR counterparty_id = $1
		ORDER BY created_at DESC`, tradeColumns)

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list trades for user: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// UpdateStatus transitions a trade to a terminal state.
func (r *TradeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TradeStatus, resolvedAt *time.Time) error {
	query := `UPDATE trades SET status = $1, resolved_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, resolvedAt, id)
	if err != nil {
		return fmt.Errorf("update trade status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update trade status: trade %s not found", id)
	}
	return nil
}

// ListByUserSince returns trades where the user is a party, created on/after the cutoff.
func (r *TradeRepo) ListByUserSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.TradeOffer, error) {
	query := fmt.Sprintf(`SELECT %s FROM trades
		WHERE (initiator_id = $1 OR counterparty_id = $1) AND created_at >= $2
		ORDER BY created_at`, tradeColumns)

	rows, err := tx.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list trades by user since: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrade(row pgx.Row, op string) (*domain.TradeOffer, error) {
	var t domain.TradeOffer
	err := row.Scan(&t.ID, &t.InitiatorID, &t.CounterpartyID, &t.OfferedCardIDs, &t.RequestedCardIDs,
		&t.OfferedCredits, &t.RequestedCredits, &t.Status, &t.CreatedAt, &t.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]domain.TradeOffer, error) {
	var trades []domain.TradeOffer
	for rows.Next() {
		var t domain.TradeOffer
		err := rows.Scan(&t.ID, &t.InitiatorID, &t.CounterpartyID, &t.OfferedCardIDs, &t.RequestedCardIDs,
			&t.OfferedCredits, &t.RequestedCredits, &t.Status, &t.CreatedAt, &t.ResolvedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return trades, nil
}
