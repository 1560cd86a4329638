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

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo        ports.UserRepository
	hashSvc         ports.HashService
	tokenSvc        ports.TokenService
	ledgerSvc       ports.LedgerService
	startingCredits int64
	log             zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	ledgerSvc ports.LedgerService,
	startingCredits int64,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:        userRepo,
		hashSvc:         hashSvc,
		tokenSvc:        tokenSvc,
		ledgerSvc:       ledgerSvc,
		startingCredits: startingCredits,
		log:             log,
	}
}

// Register creates a club member account and grants the starting credits.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*domain.User, error) {
	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     req.Username,
		PasswordHash: passwordHash,
		DisplayName:  req.DisplayName,
		IsAdmin:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	// Every member starts with the same grant; the ledger entry is what
	// makes the balance exist.
	if s.startingCredits > 0 {
		_, err = s.ledgerSvc.Credit(ctx, ports.CreditRequest{
			UserID: user.ID,
			Amount: s.startingCredits,
			Reason: domain.ReasonStartingGrant,
		})
		if err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Int64("starting_credits", s.startingCredits).
		Msg("member registered")

	return user, nil
}

// Login verifies credentials and returns a signed token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokenSvc.Generate(user.ID, user.IsAdmin)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Msg("member logged in")

	return token, expiresAt, nil
}
