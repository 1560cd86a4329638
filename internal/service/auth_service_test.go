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

type authFixture struct {
	svc    *AuthServiceImpl
	users  *mocks.MockUserRepository
	hash   *mocks.MockHashService
	token  *mocks.MockTokenService
	ledger *mocks.MockLedgerService
}

func newAuthFixture(t *testing.T, startingCredits int64) *authFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	users := mocks.NewMockUserRepository(ctrl)
	hash := mocks.NewMockHashService(ctrl)
	token := mocks.NewMockTokenService(ctrl)
	ledger := mocks.NewMockLedgerService(ctrl)

	svc := NewAuthService(users, hash, token, ledger, startingCredits, zerolog.Nop())
	return &authFixture{svc: svc, users: users, hash: hash, token: token, ledger: ledger}
}

func TestAuthService_Register_GrantsStartingCredits(t *testing.T) {
	f := newAuthFixture(t, 500)

	f.users.EXPECT().GetByUsername(gomock.Any(), "cinephile").Return(nil, nil)
	f.hash.EXPECT().Hash("hunter2hunter2").Return("$argon2id$...", nil)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.ledger.EXPECT().Credit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.CreditRequest) (int64, error) {
			assert.Equal(t, int64(500), req.Amount)
			assert.Equal(t, domain.ReasonStartingGrant, req.Reason)
			return 500, nil
		})

	user, err := f.svc.Register(context.Background(), ports.RegisterRequest{
		Username:    "cinephile",
		Password:    "hunter2hunter2",
		DisplayName: "Cine Phile",
	})
	require.NoError(t, err)
	assert.Equal(t, "cinephile", user.Username)
	assert.False(t, user.IsAdmin)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	f := newAuthFixture(t, 500)

	f.users.EXPECT().GetByUsername(gomock.Any(), "taken").
		Return(&domain.User{ID: uuid.New(), Username: "taken"}, nil)

	_, err := f.svc.Register(context.Background(), ports.RegisterRequest{
		Username: "taken",
		Password: "password12345",
	})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_002", appErr.Code)
}

func TestAuthService_Register_ZeroStartingCreditsSkipsGrant(t *testing.T) {
	f := newAuthFixture(t, 0)

	f.users.EXPECT().GetByUsername(gomock.Any(), "frugal").Return(nil, nil)
	f.hash.EXPECT().Hash(gomock.Any()).Return("$argon2id$...", nil)
	f.users.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	// No Credit expectation: the grant must be skipped entirely.

	_, err := f.svc.Register(context.Background(), ports.RegisterRequest{
		Username: "frugal",
		Password: "password12345",
	})
	require.NoError(t, err)
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t, 500)
	userID := uuid.New()
	expiry := time.Now().Add(24 * time.Hour)

	f.users.EXPECT().GetByUsername(gomock.Any(), "cinephile").Return(&domain.User{
		ID:           userID,
		Username:     "cinephile",
		PasswordHash: "$argon2id$...",
		IsAdmin:      true,
	}, nil)
	f.hash.EXPECT().Verify("hunter2hunter2", "$argon2id$...").Return(true, nil)
	f.token.EXPECT().Generate(userID, true).Return("signed.jwt.token", expiry, nil)

	token, expiresAt, err := f.svc.Login(context.Background(), "cinephile", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "signed.jwt.token", token)
	assert.Equal(t, expiry, expiresAt)
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	f := newAuthFixture(t, 500)

	f.users.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, nil)

	_, _, err := f.svc.Login(context.Background(), "ghost", "whatever12345")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	f := newAuthFixture(t, 500)

	f.users.EXPECT().GetByUsername(gomock.Any(), "cinephile").Return(&domain.User{
		ID:           uuid.New(),
		Username:     "cinephile",
		PasswordHash: "$argon2id$...",
	}, nil)
	f.hash.EXPECT().Verify("wrong-password", "$argon2id$...").Return(false, nil)

	_, _, err := f.svc.Login(context.Background(), "cinephile", "wrong-password")
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "AUTH_001", appErr.Code)
}
