package service

import (
	"context"
	"testing"
	"time"

	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/internal/core/ports/mocks"
	"reelhouse-economy/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type tradeFixture struct {
	svc        *TradeServiceImpl
	trades     *mocks.MockTradeRepository
	cards      *mocks.MockCardRepository
	listings   *mocks.MockListingRepository
	ledger     *mocks.MockLedgerRepository
	users      *mocks.MockUserRepository
	cache      *mocks.MockBalanceCache
	transactor *mocks.MockDBTransactor
}

func newTradeFixture(t *testing.T) *tradeFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	trades := mocks.NewMockTradeRepository(ctrl)
	cards := mocks.NewMockCardRepository(ctrl)
	listings := mocks.NewMockListingRepository(ctrl)
	ledger := mocks.NewMockLedgerRepository(ctrl)
	users := mocks.NewMockUserRepository(ctrl)
	cache := mocks.NewMockBalanceCache(ctrl)
	transactor := mocks.NewMockDBTransactor(ctrl)

	svc := NewTradeService(trades, cards, listings, ledger, users, cache, transactor, NewUserLocks(), zerolog.Nop())
	return &tradeFixture{
		svc: svc, trades: trades, cards: cards, listings: listings,
		ledger: ledger, users: users, cache: cache, transactor: transactor,
	}
}

func (f *tradeFixture) expectBegin() {
	f.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
}

func ownedCard(owner uuid.UUID) *domain.Card {
	return &domain.Card{ID: uuid.New(), OwnerID: &owner}
}

func pendingTrade(initiator, counterparty uuid.UUID) *domain.TradeOffer {
	return &domain.TradeOffer{
		ID:             uuid.New(),
		InitiatorID:    initiator,
		CounterpartyID: counterparty,
		OfferedCredits: 100,
		Status:         domain.TradePending,
		CreatedAt:      time.Now().UTC(),
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

func TestTradeService_Create_RejectsSelfTrade(t *testing.T) {
	f := newTradeFixture(t)
	id := uuid.New()

	_, err := f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:    id,
		CounterpartyID: id,
		OfferedCredits: 10,
	})
	assertCode(t, err, "VAL_001")
}

func TestTradeService_Create_RejectsEmptySides(t *testing.T) {
	f := newTradeFixture(t)

	// Nothing offered
	_, err := f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:      uuid.New(),
		CounterpartyID:   uuid.New(),
		RequestedCredits: 50,
	})
	assertCode(t, err, "TRD_002")

	// Nothing requested
	_, err = f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:    uuid.New(),
		CounterpartyID: uuid.New(),
		OfferedCredits: 50,
	})
	assertCode(t, err, "TRD_002")
}

func TestTradeService_Create_RejectsUnknownCounterparty(t *testing.T) {
	f := newTradeFixture(t)
	counterpartyID := uuid.New()

	f.users.EXPECT().GetByID(gomock.Any(), counterpartyID).Return(nil, nil)

	_, err := f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:      uuid.New(),
		CounterpartyID:   counterpartyID,
		OfferedCredits:   50,
		RequestedCredits: 50,
	})
	assertCode(t, err, "RES_001")
}

func TestTradeService_Create_RejectsOfferedCardNotOwned(t *testing.T) {
	f := newTradeFixture(t)
	initiatorID := uuid.New()
	counterpartyID := uuid.New()
	card := ownedCard(counterpartyID) // not the initiator's

	f.users.EXPECT().GetByID(gomock.Any(), counterpartyID).Return(&domain.User{ID: counterpartyID}, nil)
	f.expectBegin()
	f.cards.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), card.ID).Return(card, nil)
	f.listings.EXPECT().GetActiveByCardTx(gomock.Any(), gomock.Any(), card.ID).Return(nil, nil)
	f.trades.EXPECT().ListPendingByCardTx(gomock.Any(), gomock.Any(), card.ID).Return(nil, nil)

	_, err := f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:      initiatorID,
		CounterpartyID:   counterpartyID,
		OfferedCardIDs:   []uuid.UUID{card.ID},
		RequestedCredits: 50,
	})
	assertCode(t, err, "RES_002")
}

func TestTradeService_Create_RejectsListedCard(t *testing.T) {
	f := newTradeFixture(t)
	initiatorID := uuid.New()
	counterpartyID := uuid.New()
	card := ownedCard(initiatorID)

	f.users.EXPECT().GetByID(gomock.Any(), counterpartyID).Return(&domain.User{ID: counterpartyID}, nil)
	f.expectBegin()
	f.cards.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), card.ID).Return(card, nil)
	f.listings.EXPECT().GetActiveByCardTx(gomock.Any(), gomock.Any(), card.ID).
		Return(&domain.Listing{ID: uuid.New(), CardID: card.ID, Status: domain.ListingActive}, nil)

	_, err := f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:      initiatorID,
		CounterpartyID:   counterpartyID,
		OfferedCardIDs:   []uuid.UUID{card.ID},
		RequestedCredits: 50,
	})
	assertCode(t, err, "INV_001")
}

func TestTradeService_Create_Success(t *testing.T) {
	f := newTradeFixture(t)
	initiatorID := uuid.New()
	counterpartyID := uuid.New()
	card := ownedCard(initiatorID)

	f.users.EXPECT().GetByID(gomock.Any(), counterpartyID).Return(&domain.User{ID: counterpartyID}, nil)
	f.expectBegin()
	f.cards.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), card.ID).Return(card, nil)
	f.listings.EXPECT().GetActiveByCardTx(gomock.Any(), gomock.Any(), card.ID).Return(nil, nil)
	f.trades.EXPECT().ListPendingByCardTx(gomock.Any(), gomock.Any(), card.ID).Return(nil, nil)
	f.ledger.EXPECT().SumForUserTx(gomock.Any(), gomock.Any(), initiatorID).Return(int64(300), nil)
	f.trades.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ interface{}, trade *domain.TradeOffer) error {
			assert.Equal(t, domain.TradePending, trade.Status)
			assert.Equal(t, initiatorID, trade.InitiatorID)
			assert.Equal(t, []uuid.UUID{card.ID}, trade.OfferedCardIDs)
			return nil
		})

	trade, err := f.svc.Create(context.Background(), ports.CreateTradeRequest{
		InitiatorID:      initiatorID,
		CounterpartyID:   counterpartyID,
		OfferedCardIDs:   []uuid.UUID{card.ID},
		OfferedCredits:   100,
		RequestedCredits: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, trade.Status)
}

func TestTradeService_Accept_OnlyCounterparty(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)

	_, err := f.svc.Accept(context.Background(), trade.InitiatorID, trade.ID)
	assertCode(t, err, "RES_003")
}

func TestTradeService_Accept_NotPending(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())
	trade.Status = domain.TradeDenied

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)
	f.expectBegin()
	f.trades.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), trade.ID).Return(trade, nil)

	_, err := f.svc.Accept(context.Background(), trade.CounterpartyID, trade.ID)
	assertCode(t, err, "TRD_001")
}

func TestTradeService_Accept_CounterpartyShortfallKeepsPending(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())
	trade.OfferedCredits = 0
	trade.RequestedCredits = 600

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)
	f.expectBegin()
	f.trades.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), trade.ID).Return(trade, nil)
	f.ledger.EXPECT().SumForUserTx(gomock.Any(), gomock.Any(), trade.CounterpartyID).Return(int64(500), nil)
	// No UpdateStatus, no appends: the trade must stay pending.

	_, err := f.svc.Accept(context.Background(), trade.CounterpartyID, trade.ID)
	assertCode(t, err, "LED_001")
}

func TestTradeService_Accept_SwapsCardsAndCredits(t *testing.T) {
	f := newTradeFixture(t)
	initiatorID := uuid.New()
	counterpartyID := uuid.New()
	offered := ownedCard(initiatorID)
	requested := ownedCard(counterpartyID)

	trade := pendingTrade(initiatorID, counterpartyID)
	trade.OfferedCardIDs = []uuid.UUID{offered.ID}
	trade.RequestedCardIDs = []uuid.UUID{requested.ID}
	trade.OfferedCredits = 100
	trade.RequestedCredits = 0

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)
	f.expectBegin()
	f.trades.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), trade.ID).Return(trade, nil)
	f.cards.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), offered.ID).Return(offered, nil)
	f.ledger.EXPECT().SumForUserTx(gomock.Any(), gomock.Any(), initiatorID).Return(int64(500), nil)
	f.cards.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), requested.ID).Return(requested, nil)

	// One debit/credit pair for the offered credits
	appended := make([]*domain.LedgerEntry, 0, 2)
	f.ledger.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(_ context.Context, _ interface{}, e *domain.LedgerEntry) error {
			appended = append(appended, e)
			return nil
		})

	f.cards.EXPECT().UpdateOwner(gomock.Any(), gomock.Any(), offered.ID, &counterpartyID, gomock.Any()).Return(nil)
	f.cards.EXPECT().UpdateOwner(gomock.Any(), gomock.Any(), requested.ID, &initiatorID, gomock.Any()).Return(nil)
	f.trades.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), trade.ID, domain.TradeAccepted, gomock.Any()).Return(nil)
	f.cache.EXPECT().Invalidate(gomock.Any(), initiatorID, counterpartyID).Return(nil)

	accepted, err := f.svc.Accept(context.Background(), counterpartyID, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeAccepted, accepted.Status)
	require.NotNil(t, accepted.ResolvedAt)

	require.Len(t, appended, 2)
	assert.Equal(t, int64(-100), appended[0].Amount)
	assert.Equal(t, initiatorID, appended[0].UserID)
	assert.Equal(t, int64(100), appended[1].Amount)
	assert.Equal(t, counterpartyID, appended[1].UserID)
	for _, e := range appended {
		assert.Equal(t, domain.ReasonTradeCredits, e.Reason)
	}
}

func TestTradeService_Deny_OnlyCounterparty(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)

	err := f.svc.Deny(context.Background(), trade.InitiatorID, trade.ID)
	assertCode(t, err, "RES_003")
}

func TestTradeService_Cancel_OnlyInitiator(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)

	err := f.svc.Cancel(context.Background(), trade.CounterpartyID, trade.ID)
	assertCode(t, err, "RES_003")
}

func TestTradeService_Cancel_Success(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil)
	f.expectBegin()
	f.trades.EXPECT().GetByIDTx(gomock.Any(), gomock.Any(), trade.ID).Return(trade, nil)
	f.trades.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), trade.ID, domain.TradeCancelled, gomock.Any()).Return(nil)

	require.NoError(t, f.svc.Cancel(context.Background(), trade.InitiatorID, trade.ID))
}

func TestTradeService_Get_PartiesOnly(t *testing.T) {
	f := newTradeFixture(t)
	trade := pendingTrade(uuid.New(), uuid.New())

	f.trades.EXPECT().GetByID(gomock.Any(), trade.ID).Return(trade, nil).Times(2)

	got, err := f.svc.Get(context.Background(), trade.InitiatorID, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ID, got.ID)

	_, err = f.svc.Get(context.Background(), uuid.New(), trade.ID)
	assertCode(t, err, "RES_003")
}
