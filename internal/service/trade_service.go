package service

import (
	"context"
	"fmt"
	"time"

	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// TradeServiceImpl implements ports.TradeService. A trade is pending
// until exactly one terminal transition (accepted, denied, cancelled);
// while pending, every referenced card is encumbered.
type TradeServiceImpl struct {
	tradeRepo   ports.TradeRepository
	cardRepo    ports.CardRepository
	listingRepo ports.ListingRepository
	ledgerRepo  ports.LedgerRepository
	userRepo    ports.UserRepository
	cache       ports.BalanceCache
	transactor  ports.DBTransactor
	locks       *UserLocks
	log         zerolog.Logger
}

// NewTradeService creates a new TradeServiceImpl.
func NewTradeService(
	tradeRepo ports.TradeRepository,
	cardRepo ports.CardRepository,
	listingRepo ports.ListingRepository,
	ledgerRepo ports.LedgerRepository,
	userRepo ports.UserRepository,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	locks *UserLocks,
	log zerolog.Logger,
) *TradeServiceImpl {
	return &TradeServiceImpl{
		tradeRepo:   tradeRepo,
		cardRepo:    cardRepo,
		listingRepo: listingRepo,
		ledgerRepo:  ledgerRepo,
		userRepo:    userRepo,
		cache:       cache,
		transactor:  transactor,
		locks:       locks,
		log:         log,
	}
}

// Create opens a pending offer. Only the initiator's side is fully
// validated here; the counterparty's side is checked at accept time.
// Referenced cards on both sides must be unencumbered, and become
// encumbered the moment the offer exists.
func (s *TradeServiceImpl) Create(ctx context.Context, req ports.CreateTradeRequest) (*domain.TradeOffer, error) {
	if req.InitiatorID == req.CounterpartyID {
		return nil, apperror.Validation("cannot open a trade with yourself")
	}
	if req.OfferedCredits < 0 || req.RequestedCredits < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if len(req.OfferedCardIDs) == 0 && req.OfferedCredits == 0 {
		return nil, apperror.ErrEmptyTradeSide()
	}
	if len(req.RequestedCardIDs) == 0 && req.RequestedCredits == 0 {
		return nil, apperror.ErrEmptyTradeSide()
	}

	counterparty, err := s.userRepo.GetByID(ctx, req.CounterpartyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get counterparty: %w", err))
	}
	if counterparty == nil {
		return nil, apperror.ErrNotFound("user")
	}

	unlock := s.locks.LockUsers(req.InitiatorID, req.CounterpartyID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	for _, cardID := range req.OfferedCardIDs {
		card, err := s.requireUnencumbered(ctx, dbTx, cardID)
		if err != nil {
			return nil, err
		}
		if !card.OwnedBy(req.InitiatorID) {
			return nil, apperror.ErrNotOwner("card")
		}
	}
	for _, cardID := range req.RequestedCardIDs {
		if _, err := s.requireUnencumbered(ctx, dbTx, cardID); err != nil {
			return nil, err
		}
	}

	if req.OfferedCredits > 0 {
		balance, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, req.InitiatorID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum initiator balance: %w", err))
		}
		if balance < req.OfferedCredits {
			return nil, apperror.ErrInsufficientFunds(req.OfferedCredits, balance)
		}
	}

	trade := &domain.TradeOffer{
		ID:               uuid.New(),
		InitiatorID:      req.InitiatorID,
		CounterpartyID:   req.CounterpartyID,
		OfferedCardIDs:   req.OfferedCardIDs,
		RequestedCardIDs: req.RequestedCardIDs,
		OfferedCredits:   req.OfferedCredits,
		RequestedCredits: req.RequestedCredits,
		Status:           domain.TradePending,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.tradeRepo.Create(ctx, dbTx, trade); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create trade: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("trade_id", trade.ID.String()).
		Str("initiator_id", req.InitiatorID.String()).
		Str("counterparty_id", req.CounterpartyID.String()).
		Int("offered_cards", len(req.OfferedCardIDs)).
		Int("requested_cards", len(req.RequestedCardIDs)).
		Msg("trade offer created")

	return trade, nil
}

// Accept settles the bilateral swap. Both sides are re-validated under
// the locks; on any shortfall the trade stays pending and the caller
// gets the specific error. On success credits and cards move both ways
// in a single transaction and the trade turns accepted.
func (s *TradeServiceImpl) Accept(ctx context.Context, callerID, tradeID uuid.UUID) (*domain.TradeOffer, error) {
	peek, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get trade: %w", err))
	}
	if peek == nil {
		return nil, apperror.ErrNotFound("trade")
	}
	if callerID != peek.CounterpartyID {
		return nil, apperror.ErrForbidden()
	}

	unlock := s.locks.LockUsers(peek.InitiatorID, peek.CounterpartyID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-read under the lock: a concurrent accept or cancel may have
	// already resolved the trade.
	trade, err := s.tradeRepo.GetByIDTx(ctx, dbTx, tradeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock trade: %w", err))
	}
	if trade == nil || !trade.IsPending() {
		return nil, apperror.ErrInvalidState("trade is not pending")
	}

	now := time.Now().UTC()

	// Initiator side.
	for _, cardID := range trade.OfferedCardIDs {
		card, err := s.cardRepo.GetByIDTx(ctx, dbTx, cardID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock offered card: %w", err))
		}
		if card == nil || card.IsDestroyed() || !card.OwnedBy(trade.InitiatorID) {
			return nil, apperror.ErrInvalidState("an offered card is no longer tradable")
		}
	}
	if trade.OfferedCredits > 0 {
		balance, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, trade.InitiatorID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum initiator balance: %w", err))
		}
		if balance < trade.OfferedCredits {
			return nil, apperror.ErrInsufficientFunds(trade.OfferedCredits, balance)
		}
	}

	// Counterparty side.
	for _, cardID := range trade.RequestedCardIDs {
		card, err := s.cardRepo.GetByIDTx(ctx, dbTx, cardID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("lock requested card: %w", err))
		}
		if card == nil || card.IsDestroyed() || !card.OwnedBy(trade.CounterpartyID) {
			return nil, apperror.ErrInvalidState("a requested card is no longer tradable")
		}
	}
	if trade.RequestedCredits > 0 {
		balance, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, trade.CounterpartyID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("sum counterparty balance: %w", err))
		}
		if balance < trade.RequestedCredits {
			return nil, apperror.ErrInsufficientFunds(trade.RequestedCredits, balance)
		}
	}

	// All preconditions hold under the locks; apply the swap.
	meta := map[string]string{"trade_id": trade.ID.String()}
	if trade.OfferedCredits > 0 {
		if err := s.appendPair(ctx, dbTx, trade.InitiatorID, trade.CounterpartyID, trade.OfferedCredits, meta, now); err != nil {
			return nil, err
		}
	}
	if trade.RequestedCredits > 0 {
		if err := s.appendPair(ctx, dbTx, trade.CounterpartyID, trade.InitiatorID, trade.RequestedCredits, meta, now); err != nil {
			return nil, err
		}
	}
	for _, cardID := range trade.OfferedCardIDs {
		if err := s.cardRepo.UpdateOwner(ctx, dbTx, cardID, &trade.CounterpartyID, now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("transfer offered card: %w", err))
		}
	}
	for _, cardID := range trade.RequestedCardIDs {
		if err := s.cardRepo.UpdateOwner(ctx, dbTx, cardID, &trade.InitiatorID, now); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("transfer requested card: %w", err))
		}
	}
	if err := s.tradeRepo.UpdateStatus(ctx, dbTx, tradeID, domain.TradeAccepted, &now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark trade accepted: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if err := s.cache.Invalidate(ctx, trade.InitiatorID, trade.CounterpartyID); err != nil {
		s.log.Warn().Err(err).Msg("balance cache invalidation failed after trade")
	}

	s.log.Info().
		Str("trade_id", tradeID.String()).
		Str("initiator_id", trade.InitiatorID.String()).
		Str("counterparty_id", trade.CounterpartyID.String()).
		Msg("trade accepted")

	accepted := *trade
	accepted.Status = domain.TradeAccepted
	accepted.ResolvedAt = &now
	return &accepted, nil
}

// Deny rejects a pending offer. Counterparty only.
func (s *TradeServiceImpl) Deny(ctx context.Context, callerID, tradeID uuid.UUID) error {
	return s.resolve(ctx, callerID, tradeID, domain.TradeDenied)
}

// Cancel withdraws a pending offer. Initiator only.
func (s *TradeServiceImpl) Cancel(ctx context.Context, callerID, tradeID uuid.UUID) error {
	return s.resolve(ctx, callerID, tradeID, domain.TradeCancelled)
}

func (s *TradeServiceImpl) resolve(ctx context.Context, callerID, tradeID uuid.UUID, target domain.TradeStatus) error {
	peek, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get trade: %w", err))
	}
	if peek == nil {
		return apperror.ErrNotFound("trade")
	}
	switch target {
	case domain.TradeDenied:
		if callerID != peek.CounterpartyID {
			return apperror.ErrForbidden()
		}
	case domain.TradeCancelled:
		if callerID != peek.InitiatorID {
			return apperror.ErrForbidden()
		}
	default:
		return apperror.ErrInvalidState("not a terminal transition")
	}

	unlock := s.locks.LockUsers(peek.InitiatorID, peek.CounterpartyID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	trade, err := s.tradeRepo.GetByIDTx(ctx, dbTx, tradeID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock trade: %w", err))
	}
	if trade == nil || !trade.IsPending() {
		return apperror.ErrInvalidState("trade is not pending")
	}

	now := time.Now().UTC()
	if err := s.tradeRepo.UpdateStatus(ctx, dbTx, tradeID, target, &now); err != nil {
		return apperror.InternalError(fmt.Errorf("resolve trade: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("trade_id", tradeID.String()).
		Str("status", string(target)).
		Msg("trade resolved")

	return nil
}

// Get returns a trade to one of its parties.
func (s *TradeServiceImpl) Get(ctx context.Context, callerID, tradeID uuid.UUID) (*domain.TradeOffer, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get trade: %w", err))
	}
	if trade == nil {
		return nil, apperror.ErrNotFound("trade")
	}
	if !trade.IsParty(callerID) {
		return nil, apperror.ErrForbidden()
	}
	return trade, nil
}

// ListForUser returns every trade the user is a party to.
func (s *TradeServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.TradeOffer, error) {
	trades, err := s.tradeRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list trades: %w", err))
	}
	return trades, nil
}

// appendPair writes the debit/credit pair of one credit movement.
func (s *TradeServiceImpl) appendPair(ctx context.Context, dbTx pgx.Tx, from, to uuid.UUID, amount int64, meta map[string]string, now time.Time) error {
	debit := &domain.LedgerEntry{
		ID: uuid.New(), UserID: from, Amount: -amount,
		Reason: domain.ReasonTradeCredits, Metadata: meta, CreatedAt: now,
	}
	credit := &domain.LedgerEntry{
		ID: uuid.New(), UserID: to, Amount: amount,
		Reason: domain.ReasonTradeCredits, Metadata: meta, CreatedAt: now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, debit); err != nil {
		return apperror.InternalError(fmt.Errorf("append trade debit: %w", err))
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, credit); err != nil {
		return apperror.InternalError(fmt.Errorf("append trade credit: %w", err))
	}
	return nil
}

// requireUnencumbered loads a card under the tx and rejects destroyed or
// encumbered ones.
func (s *TradeServiceImpl) requireUnencumbered(ctx context.Context, dbTx pgx.Tx, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.cardRepo.GetByIDTx(ctx, dbTx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}
	if card.IsDestroyed() {
		return nil, apperror.ErrCardDestroyed()
	}

	listing, err := s.listingRepo.GetActiveByCardTx(ctx, dbTx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check listing: %w", err))
	}
	if listing != nil {
		return nil, apperror.ErrEncumbered("card")
	}
	trades, err := s.tradeRepo.ListPendingByCardTx(ctx, dbTx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check trades: %w", err))
	}
	if len(trades) > 0 {
		return nil, apperror.ErrEncumbered("card")
	}
	return card, nil
}
