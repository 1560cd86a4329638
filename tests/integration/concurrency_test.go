package integration

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	redisStorage "reelhouse-economy/internal/adapter/storage/redis"
	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/internal/service"
	"reelhouse-economy/pkg/apperror"
	"reelhouse-economy/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run real services over in-memory repos under contention.
// The per-user lock table is the only thing standing between concurrent
// appends and an overdrawn ledger; that is exactly what gets hammered.

type econFixture struct {
	redis      *miniredis.Miniredis
	userRepo   *inMemoryUserRepo
	ledgerRepo *inMemoryLedgerRepo
	cardRepo   *inMemoryCardRepo
	listings   *inMemoryListingRepo
	ledgerSvc  ports.LedgerService
	marketSvc  ports.MarketplaceService
}

func newEconFixture(t *testing.T) *econFixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	cache := redisStorage.NewBalanceCache(rdb, time.Minute)

	userRepo := newInMemoryUserRepo()
	ledgerRepo := newInMemoryLedgerRepo()
	cardRepo := newInMemoryCardRepo()
	listingRepo := newInMemoryListingRepo()
	buyOrderRepo := newInMemoryBuyOrderRepo()
	tradeRepo := newInMemoryTradeRepo()
	stateRepo := newInMemoryMarketStateRepo()
	transactor := newInMemoryTransactor()
	locks := service.NewUserLocks()
	log := logger.NewWithWriter("error", io.Discard)

	return &econFixture{
		redis:      mr,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
		cardRepo:   cardRepo,
		listings:   listingRepo,
		ledgerSvc:  service.NewLedgerService(ledgerRepo, userRepo, cache, transactor, locks, log),
		marketSvc: service.NewMarketplaceService(
			listingRepo, buyOrderRepo, cardRepo, tradeRepo, ledgerRepo,
			stateRepo, cache, transactor, locks, log),
	}
}

func (f *econFixture) seedUser(t *testing.T, username string, balance int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	user := &domain.User{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.userRepo.Create(ctx, user))
	if balance > 0 {
		require.NoError(t, f.ledgerRepo.Append(ctx, nil, &domain.LedgerEntry{
			ID:        uuid.New(),
			UserID:    user.ID,
			Amount:    balance,
			Reason:    domain.ReasonStartingGrant,
			CreatedAt: time.Now().UTC(),
		}))
	}
	return user.ID
}

func (f *econFixture) seedCard(t *testing.T, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	card := &domain.Card{
		ID:            uuid.New(),
		OwnerID:       &ownerID,
		CharacterID:   7,
		CharacterName: "Sarah Connor",
		MovieTitle:    "The Terminator",
		Rarity:        domain.RarityEpic,
		Finish:        domain.FinishNormal,
		CardType:      "CHARACTER",
		CreatedAt:     now,
		AcquiredAt:    now,
	}
	require.NoError(t, f.cardRepo.Create(context.Background(), nil, card))
	return card.ID
}

func TestConcurrency_DebitsNeverOverdraw(t *testing.T) {
	f := newEconFixture(t)
	ctx := context.Background()

	const (
		startBalance = 500
		debitAmount  = 50
		workers      = 20
	)
	userID := f.seedUser(t, "contended", startBalance)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledgerSvc.Debit(ctx, ports.DebitRequest{
				UserID: userID,
				Amount: debitAmount,
				Reason: domain.ReasonQuicksell,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, insufficient int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		default:
			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr), "unexpected error: %v", err)
			require.Equal(t, "LED_001", appErr.Code)
			insufficient++
		}
	}

	// Only as many debits as the balance covers may land.
	assert.Equal(t, startBalance/debitAmount, succeeded)
	assert.Equal(t, workers-startBalance/debitAmount, insufficient)

	balance, err := f.ledgerSvc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestConcurrency_CreditsAllLand(t *testing.T) {
	f := newEconFixture(t)
	ctx := context.Background()

	const workers = 25
	userID := f.seedUser(t, "lucky", 0)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledgerSvc.Credit(ctx, ports.CreditRequest{
				UserID: userID,
				Amount: 10,
				Reason: domain.ReasonCasinoWin,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := f.ledgerSvc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(workers*10), balance)
}

func TestConcurrency_ListingSellsExactlyOnce(t *testing.T) {
	f := newEconFixture(t)
	ctx := context.Background()

	sellerID := f.seedUser(t, "seller", 0)
	cardID := f.seedCard(t, sellerID)

	listing, err := f.marketSvc.List(ctx, sellerID, cardID, 100)
	require.NoError(t, err)

	const buyers = 8
	buyerIDs := make([]uuid.UUID, buyers)
	for i := range buyerIDs {
		buyerIDs[i] = f.seedUser(t, "buyer"+string(rune('a'+i)), 500)
	}

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for _, buyerID := range buyerIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.marketSvc.BuyListing(ctx, id, listing.ID)
			results <- err
		}(buyerID)
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one buyer may win the listing")

	// Seller got paid once, the card moved once
	sellerBalance, err := f.ledgerSvc.Balance(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), sellerBalance)

	card, err := f.cardRepo.GetByID(ctx, cardID)
	require.NoError(t, err)
	require.NotNil(t, card.OwnerID)
	assert.NotEqual(t, sellerID, *card.OwnerID)

	sold, err := f.listings.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, sold.Status)
}
