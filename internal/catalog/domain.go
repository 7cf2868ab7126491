// internal/catalog/domain.go
package catalog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a book id is unknown to the catalogue.
var ErrNotFound = errors.New("book not found")

// Book is the canonical catalogue record.
type Book struct {
	ID            int64      `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Publisher     string     `json:"publisher" db:"publisher"`
	Category      string     `json:"category" db:"category"`
	IsAvailable   bool       `json:"is_available" db:"is_available"`
	BorrowedBy    *int64     `json:"borrowed_by" db:"borrowed_by"`
	BorrowedUntil *time.Time `json:"borrowed_until" db:"borrowed_until"`
}

// User is a library member as recorded by the catalogue. It is linked to the
// lending service's member only by email.
type User struct {
	ID        int64  `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
}

// UserWithLoans pairs a user with the catalogue books referencing them.
type UserWithLoans struct {
	User
	BorrowedBooks []Book `json:"borrowed_books"`
}

// Notifier propagates committed catalogue mutations downstream. Callers treat
// a returned error as informational: the mutation has already happened.
type Notifier interface {
	BookUpserted(ctx context.Context, b Book) error
	BookDeleted(ctx context.Context, id int64) error
}

// NopNotifier drops every notification. It is used when no downstream
// replica is configured.
type NopNotifier struct{}

func (NopNotifier) BookUpserted(context.Context, Book) error { return nil }
func (NopNotifier) BookDeleted(context.Context, int64) error { return nil }
