package postgres

import (
	"context"
	"testing"
	"time"

	"reelhouse-economy/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListing(sellerID uuid.UUID) *domain.Listing {
	return &domain.Listing{
		ID:          uuid.New(),
		CardID:      uuid.New(),
		SellerID:    sellerID,
		AskingPrice: 250,
		Status:      domain.ListingActive,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func listingRow(l *domain.Listing) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "card_id", "seller_id", "asking_price", "status", "created_at", "resolved_at"}).
		AddRow(l.ID, l.CardID, l.SellerID, l.AskingPrice, l.Status, l.CreatedAt, l.ResolvedAt)
}

func TestListingRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewListingRepo(mock)
	l := newTestListing(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.ID, l.CardID, l.SellerID, l.AskingPrice, l.Status, l.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, l)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepo_GetActiveByCard(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewListingRepo(mock)
	l := newTestListing(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM listings WHERE card_id").
		WithArgs(l.CardID, domain.ListingActive).
		WillReturnRows(listingRow(l))

	result, err := repo.GetActiveByCard(context.Background(), l.CardID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, l.ID, result.ID)
	assert.True(t, result.IsActive())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepo_GetActiveByCard_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewListingRepo(mock)
	cardID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM listings WHERE card_id").
		WithArgs(cardID, domain.ListingActive).
		WillReturnRows(pgxmock.NewRows([]string{"id", "card_id", "seller_id", "asking_price", "status", "created_at", "resolved_at"}))

	result, err := repo.GetActiveByCard(context.Background(), cardID)
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestListingRepo_CancelAllActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewListingRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE listings SET status").
		WithArgs(domain.ListingCancelled, domain.ListingActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	cancelled, err := repo.CancelAllActive(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
