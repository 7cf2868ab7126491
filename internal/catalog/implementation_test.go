package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BookUpserted(ctx context.Context, b Book) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *mockNotifier) BookDeleted(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64 { return &v }

func TestService_CreateBookPushesAfterCommit(t *testing.T) {
	repo := NewMemoryRepository()
	n := new(mockNotifier)
	svc := NewService(repo, n, discardLogger())

	want := Book{ID: 1, Title: "Dune", Publisher: "Ace", Category: "sci-fi", IsAvailable: true}
	n.On("BookUpserted", mock.Anything, want).Run(func(args mock.Arguments) {
		// The record is already stored when the push happens.
		stored := repo.selectBooks(func(b Book) bool { return b.ID == 1 })
		require.Len(t, stored, 1)
	}).Return(nil).Once()

	book, err := svc.CreateBook(context.Background(), "Dune", "Ace", "sci-fi")
	require.NoError(t, err)
	assert.Equal(t, want, *book)
	n.AssertExpectations(t)
}

func TestService_CreateBookSwallowsPushFailure(t *testing.T) {
	n := new(mockNotifier)
	n.On("BookUpserted", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	svc := NewService(NewMemoryRepository(), n, discardLogger())

	book, err := svc.CreateBook(context.Background(), "T", "P", "C")
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.ID)
	assert.True(t, book.IsAvailable)
}

func TestService_DeleteBook(t *testing.T) {
	repo := NewMemoryRepository()
	n := new(mockNotifier)
	n.On("BookUpserted", mock.Anything, mock.Anything).Return(nil)
	n.On("BookDeleted", mock.Anything, int64(1)).Return(errors.New("timeout")).Once()
	svc := NewService(repo, n, discardLogger())
	ctx := context.Background()

	book, err := svc.CreateBook(ctx, "Dune", "Ace", "sci-fi")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	assert.ErrorIs(t, svc.DeleteBook(ctx, book.ID), ErrNotFound)

	// The unknown-id path never reaches the notifier.
	n.AssertNumberOfCalls(t, "BookDeleted", 1)
}

func TestService_NilNotifier(t *testing.T) {
	svc := NewService(NewMemoryRepository(), nil, discardLogger())
	book, err := svc.CreateBook(context.Background(), "T", "P", "C")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteBook(context.Background(), book.ID))
}

func TestService_ListUnavailableBooks(t *testing.T) {
	repo := NewMemoryRepository()
	until := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	repo.Seed([]User{{ID: 7, Email: "paul@arrakis.io"}}, []Book{
		{ID: 1, Title: "Dune", IsAvailable: true},
		{ID: 2, Title: "Emma", IsAvailable: false, BorrowedBy: int64Ptr(7), BorrowedUntil: &until},
	})
	svc := NewService(repo, NopNotifier{}, discardLogger())

	books, err := svc.ListUnavailableBooks(context.Background())
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, int64(2), books[0].ID)
	assert.Equal(t, until, *books[0].BorrowedUntil)

	// New ids continue after seeded ones.
	created, err := svc.CreateBook(context.Background(), "T", "P", "C")
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)
}

func TestService_ListUsersWithLoans(t *testing.T) {
	repo := NewMemoryRepository()
	until := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	repo.Seed(
		[]User{{ID: 1, Email: "a@example.com"}, {ID: 2, Email: "b@example.com"}},
		[]Book{
			{ID: 10, Title: "Dune", BorrowedBy: int64Ptr(2), BorrowedUntil: &until},
			{ID: 11, Title: "Emma", BorrowedBy: int64Ptr(2), BorrowedUntil: &until},
			{ID: 12, Title: "Ulysses", IsAvailable: true},
		},
	)
	svc := NewService(repo, NopNotifier{}, discardLogger())

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 2)

	withLoans, err := svc.ListUsersWithLoans(context.Background())
	require.NoError(t, err)
	require.Len(t, withLoans, 2)
	assert.Equal(t, "a@example.com", withLoans[0].Email)
	assert.Empty(t, withLoans[0].BorrowedBooks)
	assert.NotNil(t, withLoans[0].BorrowedBooks)
	require.Len(t, withLoans[1].BorrowedBooks, 2)
	assert.Equal(t, int64(10), withLoans[1].BorrowedBooks[0].ID)
	assert.Equal(t, int64(11), withLoans[1].BorrowedBooks[1].ID)
}
