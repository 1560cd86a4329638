package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelhouse-economy/internal/adapter/http/dto"
	"reelhouse-economy/internal/adapter/http/middleware"
	"reelhouse-economy/internal/core/domain"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/internal/core/ports/mocks"
	"reelhouse-economy/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testContext builds a gin context with an optional JSON body and the
// given authenticated caller.
func testContext(t *testing.T, method, path string, body interface{}, callerID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, path, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if callerID != uuid.Nil {
		c.Set(middleware.CtxUserID, callerID)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username:    "filmfan",
		Password:    "password123",
		DisplayName: "Film Fan",
	}).Return(&domain.User{
		ID:          userID,
		Username:    "filmfan",
		DisplayName: "Film Fan",
	}, nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username:    "filmfan",
		Password:    "password123",
		DisplayName: "Film Fan",
	}, uuid.Nil)

	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, userID.String(), data["user_id"])
	assert.Equal(t, "filmfan", data["username"])
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	// Empty body => binding error
	c, w := testContext(t, http.MethodPost, "/api/v1/auth/register", map[string]string{}, uuid.Nil)
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_UsernameTaken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	c, w := testContext(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Username:    "taken",
		Password:    "password123",
		DisplayName: "Someone",
	}, uuid.Nil)

	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_002")
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "filmfan", "password123").Return("jwt-token", expiry, nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "filmfan",
		Password: "password123",
	}, uuid.Nil)

	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt-token", data["token"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "filmfan", "wrong").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	c, w := testContext(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Username: "filmfan",
		Password: "wrong",
	}, uuid.Nil)

	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Wallet Handler Tests ---

func TestGetBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	callerID := uuid.New()
	mockLedger.EXPECT().Balance(gomock.Any(), callerID).Return(int64(420), nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/wallet/balance", nil, callerID)
	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(420), data["balance"])
}

func TestGetHistory_Paginates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	callerID := uuid.New()
	entries := []domain.LedgerEntry{
		{ID: uuid.New(), UserID: callerID, Amount: 500, Reason: domain.ReasonStartingGrant, CreatedAt: time.Now()},
		{ID: uuid.New(), UserID: callerID, Amount: -80, Reason: domain.ReasonMarketBuy, CreatedAt: time.Now()},
	}
	mockLedger.EXPECT().History(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ interface{}, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
			assert.Equal(t, callerID, params.UserID)
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 10, params.PageSize)
			return entries, 12, nil
		})

	c, w := testContext(t, http.MethodGet, "/api/v1/wallet/history?page=2&page_size=10", nil, callerID)
	h.GetHistory(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(12), data["total"])
	assert.Equal(t, float64(2), data["total_pages"])
	items := data["items"].([]interface{})
	assert.Len(t, items, 2)
}

// --- Card Handler Tests ---

func TestGetCard_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInv := mocks.NewMockInventoryService(ctrl)
	h := NewCardHandler(mockInv)

	cardID := uuid.New()
	mockInv.EXPECT().GetCard(gomock.Any(), cardID).Return(nil, apperror.ErrNotFound("card"))

	c, w := testContext(t, http.MethodGet, "/api/v1/cards/"+cardID.String(), nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "RES_001")
}

func TestGetEncumbrance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInv := mocks.NewMockInventoryService(ctrl)
	h := NewCardHandler(mockInv)

	cardID := uuid.New()
	mockInv.EXPECT().IsEncumbered(gomock.Any(), cardID).Return(true, nil)

	c, w := testContext(t, http.MethodGet, "/api/v1/cards/"+cardID.String()+"/encumbered", nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: cardID.String()}}
	h.GetEncumbrance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["encumbered"])
}

func TestGetCard_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockInv := mocks.NewMockInventoryService(ctrl)
	h := NewCardHandler(mockInv)

	c, w := testContext(t, http.MethodGet, "/api/v1/cards/not-a-uuid", nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Market Handler Tests ---

func TestCreateListing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMarket := mocks.NewMockMarketplaceService(ctrl)
	h := NewMarketHandler(mockMarket)

	sellerID := uuid.New()
	cardID := uuid.New()
	mockMarket.EXPECT().List(gomock.Any(), sellerID, cardID, int64(250)).Return(&domain.Listing{
		ID:          uuid.New(),
		CardID:      cardID,
		SellerID:    sellerID,
		AskingPrice: 250,
		Status:      domain.ListingActive,
		CreatedAt:   time.Now(),
	}, nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/market/listings", dto.CreateListingRequest{
		CardID:      cardID.String(),
		AskingPrice: 250,
	}, sellerID)

	h.CreateListing(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "ACTIVE", data["status"])
}

func TestCreateListing_MarketplaceDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMarket := mocks.NewMockMarketplaceService(ctrl)
	h := NewMarketHandler(mockMarket)

	mockMarket.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrMarketplaceDisabled())

	c, w := testContext(t, http.MethodPost, "/api/v1/market/listings", dto.CreateListingRequest{
		CardID:      uuid.New().String(),
		AskingPrice: 100,
	}, uuid.New())

	h.CreateListing(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "MKT_001")
}

func TestBuyListing_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMarket := mocks.NewMockMarketplaceService(ctrl)
	h := NewMarketHandler(mockMarket)

	buyerID := uuid.New()
	listingID := uuid.New()
	mockMarket.EXPECT().BuyListing(gomock.Any(), buyerID, listingID).
		Return(nil, apperror.ErrInsufficientFunds(250, 40))

	c, w := testContext(t, http.MethodPost, "/api/v1/market/listings/"+listingID.String()+"/buy", nil, buyerID)
	c.Params = gin.Params{{Key: "id", Value: listingID.String()}}
	h.BuyListing(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), "LED_001")
}

// --- Trade Handler Tests ---

func TestCreateTrade_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTrade := mocks.NewMockTradeService(ctrl)
	h := NewTradeHandler(mockTrade)

	initiatorID := uuid.New()
	counterpartyID := uuid.New()
	offered := uuid.New()

	mockTrade.EXPECT().Create(gomock.Any(), ports.CreateTradeRequest{
		InitiatorID:      initiatorID,
		CounterpartyID:   counterpartyID,
		OfferedCardIDs:   []uuid.UUID{offered},
		RequestedCardIDs: []uuid.UUID{},
		OfferedCredits:   0,
		RequestedCredits: 50,
	}).Return(&domain.TradeOffer{
		ID:               uuid.New(),
		InitiatorID:      initiatorID,
		CounterpartyID:   counterpartyID,
		OfferedCardIDs:   []uuid.UUID{offered},
		RequestedCredits: 50,
		Status:           domain.TradePending,
		CreatedAt:        time.Now(),
	}, nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/trades", dto.CreateTradeRequest{
		CounterpartyID:   counterpartyID.String(),
		OfferedCardIDs:   []string{offered.String()},
		RequestedCredits: 50,
	}, initiatorID)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "PENDING", data["status"])
}

func TestAcceptTrade_WrongParty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTrade := mocks.NewMockTradeService(ctrl)
	h := NewTradeHandler(mockTrade)

	callerID := uuid.New()
	tradeID := uuid.New()
	mockTrade.EXPECT().Accept(gomock.Any(), callerID, tradeID).Return(nil, apperror.ErrForbidden())

	c, w := testContext(t, http.MethodPost, "/api/v1/trades/"+tradeID.String()+"/accept", nil, callerID)
	c.Params = gin.Params{{Key: "id", Value: tradeID.String()}}
	h.Accept(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDenyTrade_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTrade := mocks.NewMockTradeService(ctrl)
	h := NewTradeHandler(mockTrade)

	callerID := uuid.New()
	tradeID := uuid.New()
	mockTrade.EXPECT().Deny(gomock.Any(), callerID, tradeID).Return(nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/trades/"+tradeID.String()+"/deny", nil, callerID)
	c.Params = gin.Params{{Key: "id", Value: tradeID.String()}}
	h.Deny(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
}

// --- Admin Handler Tests ---

func TestGrantCredits_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewAdminHandler(mockLedger, nil, nil, nil)

	userID := uuid.New()
	mockLedger.EXPECT().Credit(gomock.Any(), ports.CreditRequest{
		UserID: userID,
		Amount: 300,
		Reason: domain.ReasonAdminGrant,
	}).Return(int64(800), nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/admin/credits/grant", dto.AdjustCreditsRequest{
		UserID: userID,
		Amount: 300,
	}, uuid.New())

	h.GrantCredits(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(800), data["balance"])
}

func TestRollback_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRollback := mocks.NewMockRollbackService(ctrl)
	h := NewAdminHandler(nil, nil, nil, mockRollback)

	userID := uuid.New()
	target := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	mockRollback.EXPECT().Rollback(gomock.Any(), userID, target).Return(&domain.RollbackSummary{
		UserID:               userID,
		TargetDate:           target,
		NewBalance:           150,
		LedgerEntriesRemoved: 4,
		CardsRemoved:         2,
	}, nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/admin/users/"+userID.String()+"/rollback", dto.RollbackRequest{
		TargetDate: target.Unix(),
	}, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: userID.String()}}

	h.Rollback(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(150), data["new_balance"])
	assert.Equal(t, float64(2), data["cards_removed"])
}

func TestUndoRollback_NoSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRollback := mocks.NewMockRollbackService(ctrl)
	h := NewAdminHandler(nil, nil, nil, mockRollback)

	userID := uuid.New()
	mockRollback.EXPECT().UndoRollback(gomock.Any(), userID).Return(apperror.ErrNoSnapshot())

	c, w := testContext(t, http.MethodPost, "/api/v1/admin/users/"+userID.String()+"/rollback/undo", nil, uuid.New())
	c.Params = gin.Params{{Key: "id", Value: userID.String()}}

	h.UndoRollback(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "RBK_001")
}

func TestDisableMarket_ReturnsSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMarket := mocks.NewMockMarketplaceService(ctrl)
	h := NewAdminHandler(nil, nil, mockMarket, nil)

	mockMarket.EXPECT().Disable(gomock.Any()).Return(&ports.MarketShutdownSummary{
		ListingsCancelled:  7,
		BuyOrdersCancelled: 3,
	}, nil)

	c, w := testContext(t, http.MethodPost, "/api/v1/admin/market/disable", nil, uuid.New())
	h.DisableMarket(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(7), data["listings_cancelled"])
	assert.Equal(t, float64(3), data["buy_orders_cancelled"])
}

// --- Router wiring ---

func TestRouter_AdminRoutesRequireAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("member-token").Return(&ports.TokenClaims{UserID: uuid.New(), IsAdmin: false}, nil)

	router := SetupRouter(RouterDeps{TokenSvc: tokenSvc})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/market/enable", nil)
	req.Header.Set("Authorization", "Bearer member-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_MemberRoutesRequireToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokenSvc := mocks.NewMockTokenService(ctrl)
	router := SetupRouter(RouterDeps{TokenSvc: tokenSvc})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet/balance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
