package postgres

import (
	"context"
	"fmt"
	"time"

	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const ledgerColumns = "id, user_id, amount, reason, metadata, created_at"

// Append inserts a ledger entry within a transaction.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, user_id, amount, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query, e.ID, e.UserID, e.Amount, e.Reason, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// SumForUser returns the running sum of a user's entries (non-locking read).
func (r *LedgerRepo) SumForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger for user: %w", err)
	}
	return sum, nil
}

// SumForUserTx returns the running sum inside a transaction.
// This MUST be called within a critical section that holds the user's lock.
func (r *LedgerRepo) SumForUserTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1`

	var sum int64
	if err := tx.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum ledger for user in tx: %w", err)
	}
	return sum, nil
}

// ListForUser returns a page of a user's entries, newest first.
func (r *LedgerRepo) ListForUser(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	where := "WHERE user_id = $1"
	args := []any{params.UserID}

	if params.Reason != nil {
		args = append(args, *params.Reason)
		where += fmt.Sprintf(" AND reason = $%d", len(args))
	}
	if params.From != nil {
		args = append(args, time.Unix(*params.From, 0).UTC())
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, time.Unix(*params.To, 0).UTC())
		where += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	var total int64
	countQuery := "SELECT COUNT(*) FROM ledger_entries " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	args = append(args, params.PageSize, (params.Page-1)*params.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM ledger_entries %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		ledgerColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListSince returns every entry for a user created on/after the cutoff.
func (r *LedgerRepo) ListSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) ([]domain.LedgerEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM ledger_entries WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at",
		ledgerColumns)

	rows, err := tx.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries since: %w", err)
	}
	defer rows.Close()

	return scanLedgerEntries(rows)
}

// DeleteSince removes every entry for a user created on/after the cutoff.
// Only the rollback engine calls this, and only after snapshotting.
func (r *LedgerRepo) DeleteSince(ctx context.Context, tx pgx.Tx, userID uuid.UUID, since time.Time) (int64, error) {
	query := `DELETE FROM ledger_entries WHERE user_id = $1 AND created_at >= $2`

	tag, err := tx.Exec(ctx, query, userID, since)
	if err != nil {
		return 0, fmt.Errorf("delete ledger entries since: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Restore re-inserts snapshotted entries with their original ids and timestamps.
func (r *LedgerRepo) Restore(ctx context.Context, tx pgx.Tx, entries []domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (id, user_id, amount, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, e := range entries {
		if _, err := tx.Exec(ctx, query, e.ID, e.UserID, e.Amount, e.Reason, e.Metadata, e.CreatedAt); err != nil {
			return fmt.Errorf("restore ledger entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func scanLedgerEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Reason, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return entries, nil
}
