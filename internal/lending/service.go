package lending

import (
	"context"
)

// Service defines the interface for the lending service.
type Service interface {
	Enroll(ctx context.Context, email, firstName, lastName string) (*User, error)
	ListBooks(ctx context.Context) ([]Book, error)
	FilterBooks(ctx context.Context, f Filter) ([]Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	Borrow(ctx context.Context, bookID, userID int64, days int) (*Loan, error)

	// ApplyBookSync and ApplyBookDelete are driven by the catalogue authority.
	ApplyBookSync(ctx context.Context, s BookSync) error
	ApplyBookDelete(ctx context.Context, id int64) error
}

// LendFunc performs the loan transition on a locked book.
type LendFunc func(book *Book, user *User) error

// Repository is the lending service's private record store.
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	ListAvailableBooks(ctx context.Context) ([]Book, error)
	FilterAvailableBooks(ctx context.Context, f Filter) ([]Book, error)
	GetAvailableBook(ctx context.Context, id int64) (*Book, error)

	// LendBook locks the available book bookID, loads userID and persists
	// the book after lend returns nil. A missing or lent book yields
	// ErrBookUnavailable, checked before the user.
	LendBook(ctx context.Context, bookID, userID int64, lend LendFunc) (*Book, *User, error)

	// UpsertBook inserts or updates the replica of a catalogue record and
	// returns the stored state.
	UpsertBook(ctx context.Context, s BookSync) (*Book, error)
	// DeleteBook reports whether a record was removed.
	DeleteBook(ctx context.Context, id int64) (bool, error)

	Ping(ctx context.Context) error
}
