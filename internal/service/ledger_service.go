package service

import (
	"context"
	"fmt"
	"time"

	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. The ledger is append
// only: a balance is the sum of a user's entries, never a stored field,
// so partial failures can't leave a balance out of step with its history.
type LedgerServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	userRepo   ports.UserRepository
	cache      ports.BalanceCache
	transactor ports.DBTransactor
	locks      *UserLocks
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	ledgerRepo ports.LedgerRepository,
	userRepo ports.UserRepository,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	locks *UserLocks,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		cache:      cache,
		transactor: transactor,
		locks:      locks,
		log:        log,
	}
}

// Credit appends a positive entry and returns the new balance.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return 0, err
	}

	unlock := s.locks.LockUsers(req.UserID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry := newEntry(req.UserID, req.Amount, req.Reason, req.Metadata)
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("append credit: %w", err))
	}

	balance, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, req.UserID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.refreshCache(ctx, req.UserID, balance)

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Str("reason", string(req.Reason)).
		Int64("balance", balance).
		Msg("credit applied")

	return balance, nil
}

// Debit appends a negative entry after verifying funds, and returns the
// new balance. The check and the append happen inside one critical
// section so a concurrent debit can't slip between them.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.DebitRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, apperror.ErrInvalidAmount()
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return 0, err
	}

	unlock := s.locks.LockUsers(req.UserID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	current, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, req.UserID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}
	if current < req.Amount {
		return 0, apperror.ErrInsufficientFunds(req.Amount, current)
	}

	entry := newEntry(req.UserID, -req.Amount, req.Reason, req.Metadata)
	if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("append debit: %w", err))
	}

	balance := current - req.Amount
	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.refreshCache(ctx, req.UserID, balance)

	s.log.Info().
		Str("user_id", req.UserID.String()).
		Int64("amount", req.Amount).
		Str("reason", string(req.Reason)).
		Int64("balance", balance).
		Msg("debit applied")

	return balance, nil
}

// SetBalance appends a single correcting entry so the user's sum equals
// the target. The history is preserved; only a delta is written.
func (s *LedgerServiceImpl) SetBalance(ctx context.Context, userID uuid.UUID, target int64) (int64, error) {
	if target < 0 {
		return 0, apperror.ErrNegativeTarget()
	}
	if err := s.checkUser(ctx, userID); err != nil {
		return 0, err
	}

	unlock := s.locks.LockUsers(userID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	current, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	delta := target - current
	if delta != 0 {
		entry := newEntry(userID, delta, domain.ReasonCorrection, nil)
		if err := s.ledgerRepo.Append(ctx, dbTx, entry); err != nil {
			return 0, apperror.InternalError(fmt.Errorf("append correction: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return 0, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.refreshCache(ctx, userID, target)

	s.log.Info().
		Str("user_id", userID.String()).
		Int64("target", target).
		Int64("delta", delta).
		Msg("balance correction applied")

	return target, nil
}

// Balance returns the user's current balance, serving from the cache
// when possible.
func (s *LedgerServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := s.checkUser(ctx, userID); err != nil {
		return 0, err
	}

	cached, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance cache read failed, falling through to ledger")
	}
	if ok {
		return cached, nil
	}

	balance, err := s.ledgerRepo.SumForUser(ctx, userID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	s.refreshCache(ctx, userID, balance)
	return balance, nil
}

// History returns a filtered, paginated slice of the user's ledger.
func (s *LedgerServiceImpl) History(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if err := s.checkUser(ctx, params.UserID); err != nil {
		return nil, 0, err
	}

	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	entries, total, err := s.ledgerRepo.ListForUser(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	return entries, total, nil
}

func (s *LedgerServiceImpl) checkUser(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return apperror.ErrNotFound("user")
	}
	return nil
}

// refreshCache is best-effort: a stale or missing cache entry only costs
// one extra SUM on the next read.
func (s *LedgerServiceImpl) refreshCache(ctx context.Context, userID uuid.UUID, balance int64) {
	if err := s.cache.Set(ctx, userID, balance); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("balance cache write failed")
	}
}

func newEntry(userID uuid.UUID, amount int64, reason domain.LedgerReason, metadata map[string]string) *domain.LedgerEntry {
	return &domain.LedgerEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
