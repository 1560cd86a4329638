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

// InventoryServiceImpl implements ports.InventoryService. It is the only
// path that changes card ownership; encumbrance (an active listing or a
// pending trade referencing the card) blocks every mutation.
type InventoryServiceImpl struct {
	cardRepo    ports.CardRepository
	listingRepo ports.ListingRepository
	tradeRepo   ports.TradeRepository
	userRepo    ports.UserRepository
	transactor  ports.DBTransactor
	locks       *UserLocks
	log         zerolog.Logger
}

// NewInventoryService creates a new InventoryServiceImpl.
func NewInventoryService(
	cardRepo ports.CardRepository,
	listingRepo ports.ListingRepository,
	tradeRepo ports.TradeRepository,
	userRepo ports.UserRepository,
	transactor ports.DBTransactor,
	locks *UserLocks,
	log zerolog.Logger,
) *InventoryServiceImpl {
	return &InventoryServiceImpl{
		cardRepo:    cardRepo,
		listingRepo: listingRepo,
		tradeRepo:   tradeRepo,
		userRepo:    userRepo,
		transactor:  transactor,
		locks:       locks,
		log:         log,
	}
}

// TransferOwnership moves a card between members. Fails on ownership
// mismatch or while the card is encumbered.
func (s *InventoryServiceImpl) TransferOwnership(ctx context.Context, cardID, fromUserID, toUserID uuid.UUID) error {
	to, err := s.userRepo.GetByID(ctx, toUserID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get recipient: %w", err))
	}
	if to == nil {
		return apperror.ErrNotFound("user")
	}

	unlock := s.locks.LockUsers(fromUserID, toUserID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	card, err := s.cardRepo.GetByIDTx(ctx, dbTx, cardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil {
		return apperror.ErrNotFound("card")
	}
	if card.IsDestroyed() {
		return apperror.ErrCardDestroyed()
	}
	if !card.OwnedBy(fromUserID) {
		return apperror.ErrNotOwner("card")
	}

	encumbered, err := s.isEncumberedTx(ctx, dbTx, cardID)
	if err != nil {
		return err
	}
	if encumbered {
		return apperror.ErrEncumbered("card")
	}

	if err := s.cardRepo.UpdateOwner(ctx, dbTx, cardID, &toUserID, time.Now().UTC()); err != nil {
		return apperror.InternalError(fmt.Errorf("update owner: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("card_id", cardID.String()).
		Str("from", fromUserID.String()).
		Str("to", toUserID.String()).
		Msg("card ownership transferred")

	return nil
}

// Destroy sets the card's owner to null. The row is kept for history.
func (s *InventoryServiceImpl) Destroy(ctx context.Context, cardID uuid.UUID) error {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return apperror.ErrNotFound("card")
	}
	if card.IsDestroyed() {
		return apperror.ErrCardDestroyed()
	}

	unlock := s.locks.LockUsers(*card.OwnerID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Re-read under the lock; ownership may have moved before we held it.
	card, err = s.cardRepo.GetByIDTx(ctx, dbTx, cardID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil || card.IsDestroyed() {
		return apperror.ErrCardDestroyed()
	}

	encumbered, err := s.isEncumberedTx(ctx, dbTx, cardID)
	if err != nil {
		return err
	}
	if encumbered {
		return apperror.ErrEncumbered("card")
	}

	if err := s.cardRepo.UpdateOwner(ctx, dbTx, cardID, nil, time.Now().UTC()); err != nil {
		return apperror.InternalError(fmt.Errorf("destroy card: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("card_id", cardID.String()).
		Msg("card destroyed")

	return nil
}

// IsEncumbered reports whether an active listing or pending trade
// references the card.
func (s *InventoryServiceImpl) IsEncumbered(ctx context.Context, cardID uuid.UUID) (bool, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return false, apperror.ErrNotFound("card")
	}

	listing, err := s.listingRepo.GetActiveByCard(ctx, cardID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("check listing: %w", err))
	}
	if listing != nil {
		return true, nil
	}

	trades, err := s.tradeRepo.ListPendingByCard(ctx, cardID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("check trades: %w", err))
	}
	return len(trades) > 0, nil
}

// GetCard returns a card by id.
func (s *InventoryServiceImpl) GetCard(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	card, err := s.cardRepo.GetByID(ctx, cardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get card: %w", err))
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}
	return card, nil
}

// ListCards returns the member's collection.
func (s *InventoryServiceImpl) ListCards(ctx context.Context, ownerID uuid.UUID) ([]domain.Card, error) {
	cards, err := s.cardRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list cards: %w", err))
	}
	return cards, nil
}

// MintCard creates a card for a member. Legendary cards are unique per
// character: a second live copy is refused.
func (s *InventoryServiceImpl) MintCard(ctx context.Context, req ports.MintCardRequest) (*domain.Card, error) {
	if !domain.ValidRarity(req.Rarity) {
		return nil, apperror.Validation("unknown rarity")
	}
	if !domain.ValidFinish(req.Finish) {
		return nil, apperror.Validation("unknown finish")
	}

	owner, err := s.userRepo.GetByID(ctx, req.OwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get owner: %w", err))
	}
	if owner == nil {
		return nil, apperror.ErrNotFound("user")
	}

	unlock := s.locks.LockUsers(req.OwnerID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Checked inside the tx; the partial unique index on live legendary
	// cards catches the race between two concurrent mints.
	if req.Rarity == domain.RarityLegendary {
		count, err := s.cardRepo.CountLiveLegendaryTx(ctx, dbTx, req.CharacterID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("count legendary: %w", err))
		}
		if count > 0 {
			return nil, apperror.Validation("a live legendary card already exists for this character")
		}
	}

	now := time.Now().UTC()
	card := &domain.Card{
		ID:            uuid.New(),
		OwnerID:       &req.OwnerID,
		CharacterID:   req.CharacterID,
		CharacterName: req.CharacterName,
		MovieTitle:    req.MovieTitle,
		Rarity:        req.Rarity,
		Finish:        req.Finish,
		CardType:      req.CardType,
		CreatedAt:     now,
		AcquiredAt:    now,
	}

	if err := s.cardRepo.Create(ctx, dbTx, card); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create card: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("card_id", card.ID.String()).
		Str("owner_id", req.OwnerID.String()).
		Str("rarity", string(req.Rarity)).
		Int64("character_id", req.CharacterID).
		Msg("card minted")

	return card, nil
}

// isEncumberedTx runs the encumbrance check inside the caller's tx.
func (s *InventoryServiceImpl) isEncumberedTx(ctx context.Context, dbTx pgx.Tx, cardID uuid.UUID) (bool, error) {
	listing, err := s.listingRepo.GetActiveByCardTx(ctx, dbTx, cardID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("check listing: %w", err))
	}
	if listing != nil {
		return true, nil
	}

	trades, err := s.tradeRepo.ListPendingByCardTx(ctx, dbTx, cardID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("check trades: %w", err))
	}
	return len(trades) > 0, nil
}
