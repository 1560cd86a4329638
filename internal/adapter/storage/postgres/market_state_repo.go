package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MarketStateRepo implements ports.MarketStateRepository over the single-row
// market_state table seeded by the initial migration.
type MarketStateRepo struct {
	pool Pool
}

// NewMarketStateRepo creates a new MarketStateRepo.
func NewMarketStateRepo(pool Pool) *MarketStateRepo {
	return &MarketStateRepo{pool: pool}
}

// IsEnabled reports whether the marketplace accepts new activity.
func (r *MarketStateRepo) IsEnabled(ctx context.Context) (bool, error) {
	query := `SELECT enabled FROM market_state WHERE id = 1`

	var enabled bool
	if err := r.pool.QueryRow(ctx, query).Scan(&enabled); err != nil {
		return false, fmt.Errorf("get market state: %w", err)
	}
	return enabled, nil
}

// IsEnabledTx is IsEnabled inside a transaction, locking the row so the
// check holds until commit.
func (r *MarketStateRepo) IsEnabledTx(ctx context.Context, tx pgx.Tx) (bool, error) {
	query := `SELECT enabled FROM market_state WHERE id = 1 FOR UPDATE`

	var enabled bool
	if err := tx.QueryRow(ctx, query).Scan(&enabled); err != nil {
		return false, fmt.Errorf("get market state in tx: %w", err)
	}
	return enabled, nil
}

// SetEnabled flips the marketplace switch.
func (r *MarketStateRepo) SetEnabled(ctx context.Context, tx pgx.Tx, enabled bool) error {
	query := `UPDATE market_state SET enabled = $1, updated_at = NOW() WHERE id = 1`

	tag, err := tx.Exec(ctx, query, enabled)
	if err != nil {
		return fmt.Errorf("set market state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set market state: state row missing")
	}
	return nil
}
