// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalogue authority.
type Service interface {
	CreateBook(ctx context.Context, title, publisher, category string) (*Book, error)
	DeleteBook(ctx context.Context, id int64) error
	ListUnavailableBooks(ctx context.Context) ([]Book, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersWithLoans(ctx context.Context) ([]UserWithLoans, error)
}

// Repository is the authority's private record store.
type Repository interface {
	// CreateBook assigns b.ID and stores b as available.
	CreateBook(ctx context.Context, b *Book) error
	// DeleteBook reports whether a record was removed.
	DeleteBook(ctx context.Context, id int64) (bool, error)
	ListUnavailableBooks(ctx context.Context) ([]Book, error)
	ListUsers(ctx context.Context) ([]User, error)
	// ListLoanedBooks returns every book carrying a borrower reference.
	ListLoanedBooks(ctx context.Context) ([]Book, error)
	Ping(ctx context.Context) error
}
