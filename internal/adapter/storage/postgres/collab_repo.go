package postgres

import (
	"context"
	"fmt"
	"time"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TicketRepo implements ports.TicketRepository.
type TicketRepo struct {
	pool Pool
}

// NewTicketRepo creates a new TicketRepo.
func NewTicketRepo(pool Pool) *TicketRepo {
	return &TicketRepo{pool: pool}
}

// Create inserts a lottery ticket.
func (r *TicketRepo) Create(ctx context.Context, t *domain.LotteryTicket) error {
	query := `INSERT INTO lottery_tickets (id, user_id, drawing, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := r.pool.Exec(ctx, query, t.ID, t.UserID, t.Drawing, t.CreatedAt); err != nil {
		return fmt.Errorf("insert lottery ticket: %w", err)
	}
	return nil
}

// ListSince returns a user's tickets created on/after the cutoff.
func (r *TicketRepo) ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.LotteryTicket, error) {
	query := `SELECT id, user_id, drawing, created_at FROM lottery_tickets
		WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at`

	rows, err := tx.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list lottery tickets since: %w", err)
	}
	defer rows.Close()

	var tickets []domain.LotteryTicket
	for rows.Next() {
		var t domain.LotteryTicket
		if err := rows.Scan(&t.ID, &t.UserID, &t.Drawing, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan lottery ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lottery tickets: %w", err)
	}
	return tickets, nil
}

// DeleteByIDs removes the given tickets.
func (r *TicketRepo) DeleteByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM lottery_tickets WHERE id = ANY($1)`

	if _, err := tx.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("delete lottery tickets: %w", err)
	}
	return nil
}

// Restore re-inserts snapshotted tickets.
func (r *TicketRepo) Restore(ctx context.Context, tx pgx.Tx, tickets []domain.LotteryTicket) error {
	query := `INSERT INTO lottery_tickets (id, user_id, drawing, created_at) VALUES ($1, $2, $3, $4)`

	for _, t := range tickets {
		if _, err := tx.Exec(ctx, query, t.ID, t.UserID, t.Drawing, t.CreatedAt); err != nil {
			return fmt.Errorf("restore lottery ticket %s: %w", t.ID, err)
		}
	}
	return nil
}

// CodexRepo implements ports.CodexRepository.
type CodexRepo struct {
	pool Pool
}

// NewCodexRepo creates a new CodexRepo.
func NewCodexRepo(pool Pool) *CodexRepo {
	return &CodexRepo{pool: pool}
}

// Create inserts a codex unlock.
func (r *CodexRepo) Create(ctx context.Context, u *domain.CodexUnlock) error {
	query := `INSERT INTO codex_unlocks (id, user_id, character_id, created_at) VALUES ($1, $2, $3, $4)`

	if _, err := r.pool.Exec(ctx, query, u.ID, u.UserID, u.CharacterID, u.CreatedAt); err != nil {
		return fmt.Errorf("insert codex unlock: %w", err)
	}
	return nil
}

// ListSince returns a user's unlocks created on/after the cutoff.
func (r *CodexRepo) ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.CodexUnlock, error) {
	query := `SELECT id, user_id, character_id, created_at FROM codex_unlocks
		WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at`

	rows, err := tx.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list codex unlocks since: %w", err)
	}
	defer rows.Close()

	var unlocks []domain.CodexUnlock
	for rows.Next() {
		var u domain.CodexUnlock
		if err := rows.Scan(&u.ID, &u.UserID, &u.CharacterID, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan codex unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate codex unlocks: %w", err)
	}
	return unlocks, nil
}

// DeleteByIDs removes the given unlocks.
func (r *CodexRepo) DeleteByIDs(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `DELETE FROM codex_unlocks WHERE id = ANY($1)`

	if _, err := tx.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("delete codex unlocks: %w", err)
	}
	return nil
}

// Restore re-inserts snapshotted unlocks.
func (r *CodexRepo) Restore(ctx context.Context, tx pgx.Tx, unlocks []domain.CodexUnlock) error {
	query := `INSERT INTO codex_unlocks (id, user_id, character_id, created_at) VALUES ($1, $2, $3, $4)`

	for _, u := range unlocks {
		if _, err := tx.Exec(ctx, query, u.ID, u.UserID, u.CharacterID, u.CreatedAt); err != nil {
			return fmt.Errorf("restore codex unlock %s: %w", u.ID, err)
		}
	}
	return nil
}
