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

// RollbackServiceImpl implements ports.RollbackService. A rollback
// erases everything attributable to one user on/after a cutoff, after
// first capturing it all into a single per-user snapshot. Undo replays
// that snapshot exactly once. Counterparties of cancelled trades keep
// their ledger and inventory untouched; only encumbrance is released.
type RollbackServiceImpl struct {
	ledgerRepo   ports.LedgerRepository
	cardRepo     ports.CardRepository
	listingRepo  ports.ListingRepository
	buyOrderRepo ports.BuyOrderRepository
	tradeRepo    ports.TradeRepository
	ticketRepo   ports.TicketRepository
	codexRepo    ports.CodexRepository
	snapshotRepo ports.SnapshotRepository
	userRepo     ports.UserRepository
	cache        ports.BalanceCache
	transactor   ports.DBTransactor
	locks        *UserLocks
	log          zerolog.Logger
}

// NewRollbackService creates a new RollbackServiceImpl.
func NewRollbackService(
	ledgerRepo ports.LedgerRepository,
	cardRepo ports.CardRepository,
	listingRepo ports.ListingRepository,
	buyOrderRepo ports.BuyOrderRepository,
	tradeRepo ports.TradeRepository,
	ticketRepo ports.TicketRepository,
	codexRepo ports.CodexRepository,
	snapshotRepo ports.SnapshotRepository,
	userRepo ports.UserRepository,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	locks *UserLocks,
	log zerolog.Logger,
) *RollbackServiceImpl {
	return &RollbackServiceImpl{
		ledgerRepo:   ledgerRepo,
		cardRepo:     cardRepo,
		listingRepo:  listingRepo,
		buyOrderRepo: buyOrderRepo,
		tradeRepo:    tradeRepo,
		ticketRepo:   ticketRepo,
		codexRepo:    codexRepo,
		snapshotRepo: snapshotRepo,
		userRepo:     userRepo,
		cache:        cache,
		transactor:   transactor,
		locks:        locks,
		log:          log,
	}
}

// Rollback reverses the user's economy state to the cutoff. Snapshot
// first, then delete, all in one transaction: if anything fails nothing
// is lost.
func (s *RollbackServiceImpl) Rollback(ctx context.Context, userID uuid.UUID, targetDate time.Time) (*domain.RollbackSummary, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	// Pending trades drag counterparties into the critical section, so
	// peek at them first to build the lock set, then verify after
	// locking that the set didn't change.
	for attempt := 0; attempt < 3; attempt++ {
		summary, retry, err := s.rollbackAttempt(ctx, userID, targetDate)
		if err != nil {
			return nil, err
		}
		if !retry {
			return summary, nil
		}
	}
	return nil, apperror.InternalError(fmt.Errorf("rollback lock set kept changing for user %s", userID))
}

func (s *RollbackServiceImpl) rollbackAttempt(ctx context.Context, userID uuid.UUID, targetDate time.Time) (*domain.RollbackSummary, bool, error) {
	parties, err := s.tradeParties(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	unlock := s.locks.LockUsers(append(parties, userID)...)
	defer unlock()

	// The set of pending counterparties may have changed before we held
	// the locks; if so, release and retry with the fresh set.
	current, err := s.tradeParties(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if !sameIDSet(parties, current) {
		return nil, true, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Capture.
	entries, err := s.ledgerRepo.ListSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect ledger: %w", err))
	}
	cards, err := s.cardRepo.ListOwnedSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect cards: %w", err))
	}
	tickets, err := s.ticketRepo.ListSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect tickets: %w", err))
	}
	unlocks, err := s.codexRepo.ListSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect codex unlocks: %w", err))
	}
	trades, err := s.tradeRepo.ListByUserSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect trades: %w", err))
	}
	listings, err := s.listingRepo.ListBySellerSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect listings: %w", err))
	}
	orders, err := s.buyOrderRepo.ListByRequesterSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("collect buy orders: %w", err))
	}

	now := time.Now().UTC()
	snapshot := &domain.RollbackSnapshot{
		ID:         uuid.New(),
		UserID:     userID,
		TargetDate: targetDate,
		Payload: domain.RollbackPayload{
			LedgerEntries: entries,
			Cards:         cards,
			Tickets:       tickets,
			CodexUnlocks:  unlocks,
			Trades:        trades,
			Listings:      listings,
			BuyOrders:     orders,
		},
		CreatedAt: now,
	}
	if err := s.snapshotRepo.Put(ctx, dbTx, snapshot); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("store snapshot: %w", err))
	}

	// Reverse. Listings and pending trades first so the cards they
	// encumber are free to destroy.
	var listingsRemoved int64
	for _, l := range listings {
		if !l.IsActive() {
			continue
		}
		if err := s.listingRepo.UpdateStatus(ctx, dbTx, l.ID, domain.ListingCancelled, &now); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("cancel listing: %w", err))
		}
		listingsRemoved++
	}

	var ordersRemoved int64
	for _, o := range orders {
		if o.Status != domain.BuyOrderActive {
			continue
		}
		if err := s.buyOrderRepo.UpdateStatus(ctx, dbTx, o.ID, domain.BuyOrderCancelled, &now); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("cancel buy order: %w", err))
		}
		ordersRemoved++
	}

	var tradesCancelled int64
	for _, tr := range trades {
		if !tr.IsPending() {
			continue
		}
		if err := s.tradeRepo.UpdateStatus(ctx, dbTx, tr.ID, domain.TradeCancelled, &now); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("cancel trade: %w", err))
		}
		tradesCancelled++
	}

	for _, c := range cards {
		if err := s.cardRepo.UpdateOwner(ctx, dbTx, c.ID, nil, now); err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("destroy card: %w", err))
		}
	}

	ticketIDs := make([]uuid.UUID, len(tickets))
	for i, t := range tickets {
		ticketIDs[i] = t.ID
	}
	if err := s.ticketRepo.DeleteByIDs(ctx, dbTx, ticketIDs); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("delete tickets: %w", err))
	}

	unlockIDs := make([]uuid.UUID, len(unlocks))
	for i, u := range unlocks {
		unlockIDs[i] = u.ID
	}
	if err := s.codexRepo.DeleteByIDs(ctx, dbTx, unlockIDs); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("delete codex unlocks: %w", err))
	}

	entriesRemoved, err := s.ledgerRepo.DeleteSince(ctx, dbTx, userID, targetDate)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("delete ledger entries: %w", err))
	}

	newBalance, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, userID)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("sum balance: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("balance cache invalidation failed after rollback")
	}

	summary := &domain.RollbackSummary{
		UserID:               userID,
		TargetDate:           targetDate,
		NewBalance:           newBalance,
		LedgerEntriesRemoved: entriesRemoved,
		CardsRemoved:         int64(len(cards)),
		TicketsRemoved:       int64(len(tickets)),
		CodexUnlocksRemoved:  int64(len(unlocks)),
		TradesCancelled:      tradesCancelled,
		ListingsRemoved:      listingsRemoved,
		BuyOrdersRemoved:     ordersRemoved,
	}

	s.log.Warn().
		Str("user_id", userID.String()).
		Time("target_date", targetDate).
		Int64("ledger_entries_removed", entriesRemoved).
		Int64("cards_removed", summary.CardsRemoved).
		Int64("trades_cancelled", tradesCancelled).
		Msg("rollback applied")

	return summary, false, nil
}

// UndoRollback replays the user's snapshot once. Pending trades are
// restored pending only if every referenced card is still consistent;
// otherwise they come back cancelled.
func (s *RollbackServiceImpl) UndoRollback(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return apperror.ErrNotFound("user")
	}

	unlock := s.locks.LockUsers(userID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	snapshot, err := s.snapshotRepo.GetTx(ctx, dbTx, userID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get snapshot: %w", err))
	}
	if snapshot == nil {
		return apperror.ErrNoSnapshot()
	}
	p := snapshot.Payload

	if err := s.ledgerRepo.Restore(ctx, dbTx, p.LedgerEntries); err != nil {
		return apperror.InternalError(fmt.Errorf("restore ledger: %w", err))
	}

	for _, c := range p.Cards {
		current, err := s.cardRepo.GetByIDTx(ctx, dbTx, c.ID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("lock card: %w", err))
		}
		// Only re-own cards the rollback destroyed; a card someone else
		// now owns is left alone.
		if current == nil || !current.IsDestroyed() {
			continue
		}
		if err := s.cardRepo.UpdateOwner(ctx, dbTx, c.ID, &userID, c.AcquiredAt); err != nil {
			return apperror.InternalError(fmt.Errorf("restore card: %w", err))
		}
	}

	if err := s.ticketRepo.Restore(ctx, dbTx, p.Tickets); err != nil {
		return apperror.InternalError(fmt.Errorf("restore tickets: %w", err))
	}
	if err := s.codexRepo.Restore(ctx, dbTx, p.CodexUnlocks); err != nil {
		return apperror.InternalError(fmt.Errorf("restore codex unlocks: %w", err))
	}

	now := time.Now().UTC()
	for _, l := range p.Listings {
		if !l.IsActive() {
			continue
		}
		ok, err := s.cardConsistent(ctx, dbTx, l.CardID, l.SellerID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.listingRepo.UpdateStatus(ctx, dbTx, l.ID, domain.ListingActive, nil); err != nil {
			return apperror.InternalError(fmt.Errorf("restore listing: %w", err))
		}
	}

	for _, o := range p.BuyOrders {
		if o.Status != domain.BuyOrderActive {
			continue
		}
		if err := s.buyOrderRepo.UpdateStatus(ctx, dbTx, o.ID, domain.BuyOrderActive, nil); err != nil {
			return apperror.InternalError(fmt.Errorf("restore buy order: %w", err))
		}
	}

	for _, tr := range p.Trades {
		if !tr.IsPending() {
			continue
		}
		status := domain.TradePending
		var resolvedAt *time.Time
		consistent, err := s.tradeConsistent(ctx, dbTx, &tr)
		if err != nil {
			return err
		}
		if !consistent {
			status = domain.TradeCancelled
			resolvedAt = &now
		}
		if err := s.tradeRepo.UpdateStatus(ctx, dbTx, tr.ID, status, resolvedAt); err != nil {
			return apperror.InternalError(fmt.Errorf("restore trade: %w", err))
		}
	}

	if err := s.snapshotRepo.Delete(ctx, dbTx, userID); err != nil {
		return apperror.InternalError(fmt.Errorf("consume snapshot: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn().Err(err).Msg("balance cache invalidation failed after undo")
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int("ledger_entries_restored", len(p.LedgerEntries)).
		Int("cards_restored", len(p.Cards)).
		Msg("rollback undone")

	return nil
}

// HasUndoAvailable reports whether an unconsumed snapshot exists.
func (s *RollbackServiceImpl) HasUndoAvailable(ctx context.Context, userID uuid.UUID) (bool, error) {
	snapshot, err := s.snapshotRepo.Get(ctx, userID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get snapshot: %w", err))
	}
	return snapshot != nil, nil
}

// tradeParties lists the counterparties of the user's pending trades.
func (s *RollbackServiceImpl) tradeParties(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	trades, err := s.tradeRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list trades: %w", err))
	}
	var parties []uuid.UUID
	for _, tr := range trades {
		if !tr.IsPending() {
			continue
		}
		if tr.InitiatorID != userID {
			parties = append(parties, tr.InitiatorID)
		}
		if tr.CounterpartyID != userID {
			parties = append(parties, tr.CounterpartyID)
		}
	}
	return parties, nil
}

func (s *RollbackServiceImpl) cardConsistent(ctx context.Context, dbTx pgx.Tx, cardID, ownerID uuid.UUID) (bool, error) {
	card, err := s.cardRepo.GetByIDTx(ctx, dbTx, cardID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("check card: %w", err))
	}
	return card != nil && card.OwnedBy(ownerID), nil
}

func (s *RollbackServiceImpl) tradeConsistent(ctx context.Context, dbTx pgx.Tx, tr *domain.TradeOffer) (bool, error) {
	for _, cardID := range tr.OfferedCardIDs {
		ok, err := s.cardConsistent(ctx, dbTx, cardID, tr.InitiatorID)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, cardID := range tr.RequestedCardIDs {
		ok, err := s.cardConsistent(ctx, dbTx, cardID, tr.CounterpartyID)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func sameIDSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
