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

// MarketplaceServiceImpl implements ports.MarketplaceService.
type MarketplaceServiceImpl struct {
	listingRepo  ports.ListingRepository
	buyOrderRepo ports.BuyOrderRepository
	cardRepo     ports.CardRepository
	tradeRepo    ports.TradeRepository
	ledgerRepo   ports.LedgerRepository
	stateRepo    ports.MarketStateRepository
	cache        ports.BalanceCache
	transactor   ports.DBTransactor
	locks        *UserLocks
	log          zerolog.Logger
}

// NewMarketplaceService creates a new MarketplaceServiceImpl.
func NewMarketplaceService(
	listingRepo ports.ListingRepository,
	buyOrderRepo ports.BuyOrderRepository,
	cardRepo ports.CardRepository,
	tradeRepo ports.TradeRepository,
	ledgerRepo ports.LedgerRepository,
	stateRepo ports.MarketStateRepository,
	cache ports.BalanceCache,
	transactor ports.DBTransactor,
	locks *UserLocks,
	log zerolog.Logger,
) *MarketplaceServiceImpl {
	return &MarketplaceServiceImpl{
		listingRepo:  listingRepo,
		buyOrderRepo: buyOrderRepo,
		cardRepo:     cardRepo,
		tradeRepo:    tradeRepo,
		ledgerRepo:   ledgerRepo,
		stateRepo:    stateRepo,
		cache:        cache,
		transactor:   transactor,
		locks:        locks,
		log:          log,
	}
}

// List puts a card up for sale. The card becomes encumbered for as long
// as the listing is active.
func (s *MarketplaceServiceImpl) List(ctx context.Context, sellerID, cardID uuid.UUID, askingPrice int64) (*domain.Listing, error) {
	if askingPrice <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	unlock := s.locks.LockUsers(sellerID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.requireEnabledTx(ctx, dbTx); err != nil {
		return nil, err
	}

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
	if !card.OwnedBy(sellerID) {
		return nil, apperror.ErrNotOwner("card")
	}

	encumbered, err := s.cardEncumberedTx(ctx, dbTx, cardID)
	if err != nil {
		return nil, err
	}
	if encumbered {
		return nil, apperror.ErrEncumbered("card")
	}

	listing := &domain.Listing{
		ID:          uuid.New(),
		CardID:      cardID,
		SellerID:    sellerID,
		AskingPrice: askingPrice,
		Status:      domain.ListingActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.listingRepo.Create(ctx, dbTx, listing); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create listing: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("listing_id", listing.ID.String()).
		Str("card_id", cardID.String()).
		Str("seller_id", sellerID.String()).
		Int64("asking_price", askingPrice).
		Msg("listing created")

	return listing, nil
}

// Delist cancels the seller's own listing, clearing the encumbrance.
func (s *MarketplaceServiceImpl) Delist(ctx context.Context, sellerID, listingID uuid.UUID) error {
	unlock := s.locks.LockUsers(sellerID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	listing, err := s.listingRepo.GetByIDTx(ctx, dbTx, listingID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock listing: %w", err))
	}
	if listing == nil {
		return apperror.ErrNotFound("listing")
	}
	if listing.SellerID != sellerID {
		return apperror.ErrNotOwner("listing")
	}
	if !listing.IsActive() {
		return apperror.ErrInvalidState("listing is not active")
	}

	now := time.Now().UTC()
	if err := s.listingRepo.UpdateStatus(ctx, dbTx, listingID, domain.ListingCancelled, &now); err != nil {
		return apperror.InternalError(fmt.Errorf("cancel listing: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("listing_id", listingID.String()).
		Str("seller_id", sellerID.String()).
		Msg("listing cancelled")

	return nil
}

// BuyListing settles a sale in one critical section: debit buyer, credit
// seller, transfer the card, mark the listing sold.
func (s *MarketplaceServiceImpl) BuyListing(ctx context.Context, buyerID, listingID uuid.UUID) (*domain.Listing, error) {
	// Peek at the listing to learn the seller for lock ordering; the
	// authoritative read happens again under the locks.
	peek, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get listing: %w", err))
	}
	if peek == nil {
		return nil, apperror.ErrNotFound("listing")
	}
	if peek.SellerID == buyerID {
		return nil, apperror.ErrSelfPurchase()
	}

	unlock := s.locks.LockUsers(buyerID, peek.SellerID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.requireEnabledTx(ctx, dbTx); err != nil {
		return nil, err
	}

	listing, err := s.listingRepo.GetByIDTx(ctx, dbTx, listingID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock listing: %w", err))
	}
	if listing == nil || !listing.IsActive() {
		return nil, apperror.ErrInvalidState("listing is not active")
	}
	if listing.SellerID != peek.SellerID {
		// Seller changed between peek and lock; caller retries.
		return nil, apperror.ErrInvalidState("listing changed, retry")
	}

	balance, err := s.ledgerRepo.SumForUserTx(ctx, dbTx, buyerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("sum buyer balance: %w", err))
	}
	if balance < listing.AskingPrice {
		return nil, apperror.ErrInsufficientFunds(listing.AskingPrice, balance)
	}

	card, err := s.cardRepo.GetByIDTx(ctx, dbTx, listing.CardID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock card: %w", err))
	}
	if card == nil || card.IsDestroyed() || !card.OwnedBy(listing.SellerID) {
		return nil, apperror.ErrInvalidState("listed card is no longer sellable")
	}

	now := time.Now().UTC()
	meta := map[string]string{"listing_id": listing.ID.String(), "card_id": listing.CardID.String()}

	debit := &domain.LedgerEntry{
		ID: uuid.New(), UserID: buyerID, Amount: -listing.AskingPrice,
		Reason: domain.ReasonMarketBuy, Metadata: meta, CreatedAt: now,
	}
	credit := &domain.LedgerEntry{
		ID: uuid.New(), UserID: listing.SellerID, Amount: listing.AskingPrice,
		Reason: domain.ReasonMarketSale, Metadata: meta, CreatedAt: now,
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, debit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append buyer debit: %w", err))
	}
	if err := s.ledgerRepo.Append(ctx, dbTx, credit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append seller credit: %w", err))
	}

	if err := s.cardRepo.UpdateOwner(ctx, dbTx, listing.CardID, &buyerID, now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("transfer card: %w", err))
	}
	if err := s.listingRepo.UpdateStatus(ctx, dbTx, listingID, domain.ListingSold, &now); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark listing sold: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if err := s.cache.Invalidate(ctx, buyerID, listing.SellerID); err != nil {
		s.log.Warn().Err(err).Msg("balance cache invalidation failed after sale")
	}

	s.log.Info().
		Str("listing_id", listingID.String()).
		Str("buyer_id", buyerID.String()).
		Str("seller_id", listing.SellerID.String()).
		Int64("price", listing.AskingPrice).
		Msg("listing sold")

	sold := *listing
	sold.Status = domain.ListingSold
	sold.ResolvedAt = &now
	return &sold, nil
}

// ActiveListings returns all open listings.
func (s *MarketplaceServiceImpl) ActiveListings(ctx context.Context) ([]domain.Listing, error) {
	listings, err := s.listingRepo.ListActive(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list listings: %w", err))
	}
	return listings, nil
}

// CreateBuyOrder posts a standing bid for a character. No escrow: funds
// are only checked when a sale actually settles.
func (s *MarketplaceServiceImpl) CreateBuyOrder(ctx context.Context, requesterID uuid.UUID, characterID, offerPrice int64) (*domain.BuyOrder, error) {
	if offerPrice <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	unlock := s.locks.LockUsers(requesterID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.requireEnabledTx(ctx, dbTx); err != nil {
		return nil, err
	}

	order := &domain.BuyOrder{
		ID:          uuid.New(),
		CharacterID: characterID,
		RequesterID: requesterID,
		OfferPrice:  offerPrice,
		Status:      domain.BuyOrderActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.buyOrderRepo.Create(ctx, dbTx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create buy order: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("requester_id", requesterID.String()).
		Int64("character_id", characterID).
		Int64("offer_price", offerPrice).
		Msg("buy order created")

	return order, nil
}

// CancelBuyOrder withdraws the requester's own bid.
func (s *MarketplaceServiceImpl) CancelBuyOrder(ctx context.Context, requesterID, orderID uuid.UUID) error {
	unlock := s.locks.LockUsers(requesterID)
	defer unlock()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.buyOrderRepo.GetByID(ctx, orderID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get buy order: %w", err))
	}
	if order == nil {
		return apperror.ErrNotFound("buy order")
	}
	if order.RequesterID != requesterID {
		return apperror.ErrNotOwner("buy order")
	}
	if order.Status != domain.BuyOrderActive {
		return apperror.ErrInvalidState("buy order is not active")
	}

	now := time.Now().UTC()
	if err := s.buyOrderRepo.UpdateStatus(ctx, dbTx, orderID, domain.BuyOrderCancelled, &now); err != nil {
		return apperror.InternalError(fmt.Errorf("cancel buy order: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", orderID.String()).
		Str("requester_id", requesterID.String()).
		Msg("buy order cancelled")

	return nil
}

// ActiveBuyOrders returns all standing bids.
func (s *MarketplaceServiceImpl) ActiveBuyOrders(ctx context.Context) ([]domain.BuyOrder, error) {
	orders, err := s.buyOrderRepo.ListActive(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list buy orders: %w", err))
	}
	return orders, nil
}

// Disable shuts the marketplace: every active listing and buy order is
// cancelled and the flag flipped, in one transaction, while the
// exclusive gate keeps all other economy operations out.
func (s *MarketplaceServiceImpl) Disable(ctx context.Context) (*ports.MarketShutdownSummary, error) {
	unlockAll := s.locks.LockAll()
	defer unlockAll()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	listings, err := s.listingRepo.CancelAllActive(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel listings: %w", err))
	}
	orders, err := s.buyOrderRepo.CancelAllActive(ctx, dbTx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("cancel buy orders: %w", err))
	}
	if err := s.stateRepo.SetEnabled(ctx, dbTx, false); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("disable marketplace: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Warn().
		Int64("listings_cancelled", listings).
		Int64("buy_orders_cancelled", orders).
		Msg("marketplace disabled")

	return &ports.MarketShutdownSummary{
		ListingsCancelled:  listings,
		BuyOrdersCancelled: orders,
	}, nil
}

// Enable re-opens the marketplace. Cancelled listings stay cancelled;
// sellers relist if they want to.
func (s *MarketplaceServiceImpl) Enable(ctx context.Context) error {
	unlockAll := s.locks.LockAll()
	defer unlockAll()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.stateRepo.SetEnabled(ctx, dbTx, true); err != nil {
		return apperror.InternalError(fmt.Errorf("enable marketplace: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Msg("marketplace enabled")
	return nil
}

// Status reports whether the marketplace is open.
func (s *MarketplaceServiceImpl) Status(ctx context.Context) (bool, error) {
	enabled, err := s.stateRepo.IsEnabled(ctx)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("get market state: %w", err))
	}
	return enabled, nil
}

func (s *MarketplaceServiceImpl) requireEnabledTx(ctx context.Context, dbTx pgx.Tx) error {
	enabled, err := s.stateRepo.IsEnabledTx(ctx, dbTx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("get market state: %w", err))
	}
	if !enabled {
		return apperror.ErrMarketplaceDisabled()
	}
	return nil
}

func (s *MarketplaceServiceImpl) cardEncumberedTx(ctx context.Context, dbTx pgx.Tx, cardID uuid.UUID) (bool, error) {
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
