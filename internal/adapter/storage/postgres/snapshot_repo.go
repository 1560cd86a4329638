package postgres

import (
	"context"
	"errors"
	"fmt"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SnapshotRepo implements ports.SnapshotRepository. The table is keyed by
// user_id so each user holds at most one undo snapshot; Put overwrites.
type SnapshotRepo struct {
	pool Pool
}

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(pool Pool) *SnapshotRepo {
	return &SnapshotRepo{pool: pool}
}

const snapshotColumns = "id, user_id, target_date, payload, created_at"

// Put upserts the user's snapshot.
func (r *SnapshotRepo) Put(ctx context.Context, tx pgx.Tx, s *domain.RollbackSnapshot) error {
	query := `INSERT INTO rollback_snapshots (id, user_id, target_date, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id, target_date = EXCLUDED.target_date,
			payload = EXCLUDED.payload, created_at = EXCLUDED.created_at`

	_, err := tx.Exec(ctx, query, s.ID, s.UserID, s.TargetDate, s.Payload, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert rollback snapshot: %w", err)
	}
	return nil
}

// Get returns the user's snapshot, or (nil, nil) when none exists.
func (r *SnapshotRepo) Get(ctx context.Context, userID uuid.UUID) (*domain.RollbackSnapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM rollback_snapshots WHERE user_id = $1", snapshotColumns)
	return scanSnapshot(r.pool.QueryRow(ctx, query, userID), "get rollback snapshot")
}

// GetTx is Get inside a transaction, locking the row.
func (r *SnapshotRepo) GetTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.RollbackSnapshot, error) {
	query := fmt.Sprintf("SELECT %s FROM rollback_snapshots WHERE user_id = $1 FOR UPDATE", snapshotColumns)
	return scanSnapshot(tx.QueryRow(ctx, query, userID), "get rollback snapshot in tx")
}

// Delete consumes the user's snapshot. Missing rows are not an error.
func (r *SnapshotRepo) Delete(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	query := `DELETE FROM rollback_snapshots WHERE user_id = $1`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete rollback snapshot: %w", err)
	}
	return nil
}

func scanSnapshot(row pgx.Row, op string) (*domain.RollbackSnapshot, error) {
	var s domain.RollbackSnapshot
	err := row.Scan(&s.ID, &s.UserID, &s.TargetDate, &s.Payload, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}
